package services

import (
	"context"
	"testing"
	"time"

	"materials-erp/apperr"
	"materials-erp/config"
	"materials-erp/models"
	"materials-erp/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func recipients(out *Outbox) []uint {
	var ids []uint
	for _, n := range out.Notifications() {
		ids = append(ids, n.RecipientID)
	}
	return ids
}

func TestNotificationService_Record(t *testing.T) {
	env := newTestEnv(t)
	inv, pur := env.userID("inv.head"), env.userID("pur.head")

	record := func(ev Event) *Outbox {
		out := &Outbox{}
		require.NoError(t, env.db.Transaction(func(tx *gorm.DB) error {
			return env.notifier.Record(tx, out, ev)
		}))
		return out
	}

	t.Run("audiences_are_merged_and_sorted", func(t *testing.T) {
		out := record(Event{
			EntityRef: "PO-9",
			Audiences: []string{config.AudiencePurchase, config.AudienceInventory},
			Users:     []uint{inv},
		})
		assert.Equal(t, []uint{inv, pur}, recipients(out))
	})

	t.Run("actor_is_excluded", func(t *testing.T) {
		out := record(Event{
			EntityRef: "PO-9",
			Audiences: []string{config.AudiencePurchase, config.AudienceInventory},
			ActorID:   pur,
		})
		assert.Equal(t, []uint{inv}, recipients(out))
	})

	t.Run("department_head", func(t *testing.T) {
		out := record(Event{
			EntityRef:  "UMI9",
			Audiences:  []string{config.AudienceDepartmentHead},
			Department: "engineering",
		})
		assert.Equal(t, []uint{env.userID("eng.head")}, recipients(out))
	})

	t.Run("inactive_users_are_skipped", func(t *testing.T) {
		extra := models.User{Username: "inv.head2", Name: "Second Inventory Head", Role: "inventory_head"}
		require.NoError(t, env.db.Create(&extra).Error)
		require.NoError(t, env.db.Model(&extra).Update("is_active", false).Error)

		out := record(Event{EntityRef: "BO-9", Audiences: []string{config.AudienceInventory}})
		assert.Equal(t, []uint{inv}, recipients(out))
	})

	t.Run("nobody_to_tell", func(t *testing.T) {
		out := record(Event{EntityRef: "MRF9", Audiences: []string{config.AudienceRequester}})
		assert.Equal(t, 0, out.Len())
	})
}

func TestNotificationService_Acknowledge(t *testing.T) {
	env := newTestEnv(t)
	comp := env.component(t, "BRG-6204", 0)
	req := env.procurement(t, LineInput{ComponentID: comp.ID, Qty: 2})
	head := env.userID("prod.head")

	count, err := env.notifier.UnreadCount(env.userID("prod.staff"))
	require.NoError(t, err)
	assert.Zero(t, count, "the submitter is not notified of their own submission")

	notes, err := env.notifier.List(head, true)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, req.RequestNo, notes[0].EntityRef)
	assert.Equal(t, models.EntityRequest, notes[0].EntityType)

	_, err = env.notifier.Acknowledge(env.userID("eng.head"), notes[0].ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "got %v", err)

	read, err := env.notifier.Acknowledge(head, notes[0].ID)
	require.NoError(t, err)
	assert.True(t, read.IsRead)
	require.NotNil(t, read.ReadAt)
	readAt := *read.ReadAt

	again, err := env.notifier.Acknowledge(head, notes[0].ID)
	require.NoError(t, err)
	assert.True(t, readAt.Equal(*again.ReadAt))

	count, err = env.notifier.UnreadCount(head)
	require.NoError(t, err)
	assert.Zero(t, count)

	all, err := env.notifier.List(head, false)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestNotificationService_PublishesAfterCommit(t *testing.T) {
	env := newTestEnv(t)
	comp := env.component(t, "CBL-2.5", 0)
	req := env.procurement(t, LineInput{ComponentID: comp.ID, Qty: 1})
	env.approve(t, "prod.head", req.RequestNo)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var got []notify.Message
	err := env.bus.Subscribe(ctx, func(ctx context.Context, msg notify.Message) {
		got = append(got, msg)
		if msg.RecipientID == env.userID("inv.head") {
			cancel()
		}
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, got, 2)
	assert.Equal(t, env.userID("prod.head"), got[0].RecipientID)
	assert.Equal(t, req.RequestNo, got[1].EntityRef)
	assert.NotEmpty(t, got[1].ID)

	// A rolled back operation publishes nothing.
	_, err = env.requests.Cancel(context.Background(), env.actor("prod.staff"), CancelInput{RequestNo: req.RequestNo, Reason: "late"})
	require.Error(t, err)
	ctx, cancel = context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	var late []notify.Message
	_ = env.bus.Subscribe(ctx, func(ctx context.Context, msg notify.Message) { late = append(late, msg) })
	assert.Empty(t, late)
}
