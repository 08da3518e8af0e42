package services

import (
	"context"
	"path/filepath"
	"testing"

	"materials-erp/config"
	"materials-erp/database"
	"materials-erp/migration"
	"materials-erp/models"
	"materials-erp/notify"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testEnv struct {
	db        *gorm.DB
	bus       *notify.MemoryBus
	seq       *SequenceIssuer
	stock     *StockService
	notifier  *NotificationService
	requests  *RequestService
	purchases *PurchaseService
	users     map[string]models.User
}

var testUsers = []models.User{
	{Username: "admin", Name: "Administrator", Role: "admin"},
	{Username: "prod.staff", Name: "Rina Production", Role: "production_employee", Email: "rina@example.test"},
	{Username: "prod.head", Name: "Production Head", Role: "production_head"},
	{Username: "eng.head", Name: "Engineering Head", Role: "engineering_head"},
	{Username: "inv.head", Name: "Inventory Head", Role: "inventory_head"},
	{Username: "pur.head", Name: "Purchase Head", Role: "purchase_head"},
	{Username: "ceo", Name: "Chief Executive", Role: "ceo"},
	{Username: "qc.staff", Name: "Quality Staff", Role: "quality_employee"},
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "materials.db"))
	require.NoError(t, err)
	require.NoError(t, migration.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	env := &testEnv{db: db, users: map[string]models.User{}}
	for _, u := range testUsers {
		u.IsActive = true
		require.NoError(t, db.Create(&u).Error)
		env.users[u.Username] = u
	}

	routing := config.DefaultRouting()
	env.bus = notify.NewMemoryBus(4096)
	env.seq = NewSequenceIssuer()
	env.stock = NewStockService(db)
	env.notifier = NewNotificationService(db, routing, env.bus)
	env.requests = NewRequestService(db, routing.StageTable(), env.seq, env.stock, env.notifier)
	env.purchases = NewPurchaseService(db, routing.StageTable(), env.seq, env.stock, env.notifier, nil, "")
	return env
}

func (e *testEnv) actor(username string) Actor {
	u, ok := e.users[username]
	if !ok {
		panic("unknown test user " + username)
	}
	return NewActor(u.ID, u.Name, u.Role)
}

func (e *testEnv) userID(username string) uint {
	return e.users[username].ID
}

// component registers a component and books onHand units of opening stock.
func (e *testEnv) component(t *testing.T, code string, onHand int) *models.Component {
	t.Helper()
	c, err := e.stock.CreateComponent(e.actor("inv.head"), ComponentInput{Code: code, Name: code + " part", Uom: "PCS"})
	require.NoError(t, err)
	if onHand > 0 {
		_, err := e.stock.OpeningReceipt(context.Background(), e.actor("inv.head"), OpeningInput{ComponentID: c.ID, Qty: onHand})
		require.NoError(t, err)
	}
	return c
}

func (e *testEnv) onHand(t *testing.T, componentID uint) int {
	t.Helper()
	c, err := e.stock.GetComponent(componentID)
	require.NoError(t, err)
	return c.OnHand
}

// direct submits a direct request of prod.staff through the draft flow.
func (e *testEnv) direct(t *testing.T, lines ...LineInput) *models.ParentRequest {
	t.Helper()
	ctx := context.Background()
	draft, err := e.requests.CreateDraft(ctx, e.actor("prod.staff"), DraftInput{Lines: lines})
	require.NoError(t, err)
	parent, err := e.requests.SubmitDraft(ctx, e.actor("prod.staff"), draft.RequestNo)
	require.NoError(t, err)
	return parent
}

func (e *testEnv) procurement(t *testing.T, lines ...LineInput) *models.ParentRequest {
	t.Helper()
	parent, err := e.requests.SubmitProcurement(context.Background(), e.actor("prod.staff"), DraftInput{Project: "Line 3 retrofit", Lines: lines})
	require.NoError(t, err)
	return parent
}

func (e *testEnv) approve(t *testing.T, username, requestNo string, lines ...LineDecision) *Result {
	t.Helper()
	res, err := e.requests.Approve(context.Background(), e.actor(username), ApproveInput{RequestNo: requestNo, Lines: lines})
	require.NoError(t, err)
	return res
}

func (e *testEnv) line(t *testing.T, id uint) *models.RequestLine {
	t.Helper()
	var l models.RequestLine
	require.NoError(t, e.db.First(&l, id).Error)
	return &l
}

func intPtr(v int) *int { return &v }
