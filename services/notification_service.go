package services

import (
	"context"
	"log"
	"materials-erp/config"
	"materials-erp/models"
	"materials-erp/notify"
	"materials-erp/repositories"
	"materials-erp/types"

	"golang.org/x/exp/slices"
	"gorm.io/gorm"
)

// Event is one notification-worthy transition. Recipients are the users of
// the named audiences plus Users; the acting user is never notified of their
// own action.
type Event struct {
	EntityType string
	EntityRef  string
	Message    string
	StatusTag  string
	Audiences  []string
	Department string
	Users      []uint
	ActorID    uint
}

// Outbox collects the notifications written by one transaction.
type Outbox struct {
	notes  []models.Notification
	emails map[uint]string
}

func (o *Outbox) Len() int { return len(o.notes) }

func (o *Outbox) Notifications() []models.Notification {
	return slices.Clone(o.notes)
}

type NotificationService struct {
	db      *gorm.DB
	routing config.Routing
	bus     notify.Bus
}

func NewNotificationService(db *gorm.DB, routing config.Routing, bus notify.Bus) *NotificationService {
	return &NotificationService{db: db, routing: routing, bus: bus}
}

// Record resolves the recipients of events and writes one unread row per
// recipient and event inside tx.
func (s *NotificationService) Record(tx *gorm.DB, out *Outbox, events ...Event) error {
	if s == nil {
		return nil
	}
	users := repositories.NewUserRepository(tx)
	var notes []models.Notification
	for _, ev := range events {
		recipients, err := s.resolve(users, ev)
		if err != nil {
			return err
		}
		for _, u := range recipients {
			notes = append(notes, models.Notification{
				RecipientID: u.ID,
				EntityType:  ev.EntityType,
				EntityRef:   ev.EntityRef,
				Message:     ev.Message,
				StatusTag:   ev.StatusTag,
			})
			if u.Email != "" {
				if out.emails == nil {
					out.emails = map[uint]string{}
				}
				out.emails[u.ID] = u.Email
			}
		}
	}
	if err := repositories.NewNotificationRepository(tx).Create(notes); err != nil {
		return err
	}
	out.notes = append(out.notes, notes...)
	return nil
}

func (s *NotificationService) resolve(users *repositories.UserRepository, ev Event) ([]models.User, error) {
	var roles []string
	ids := slices.Clone(ev.Users)
	for _, name := range ev.Audiences {
		switch name {
		case config.AudienceRequester:
		case config.AudienceDepartmentHead:
			if ev.Department != "" {
				roles = append(roles, ev.Department+"_head")
			}
		default:
			a := s.routing.Audience(name)
			roles = append(roles, a.Roles...)
			ids = append(ids, a.Users...)
		}
	}

	found := map[uint]models.User{}
	byRole, err := users.ActiveByRoles(roles)
	if err != nil {
		return nil, err
	}
	byID, err := users.ActiveByIDs(ids)
	if err != nil {
		return nil, err
	}
	for _, u := range append(byRole, byID...) {
		if u.ID != ev.ActorID {
			found[u.ID] = u
		}
	}

	keys := make([]uint, 0, len(found))
	for id := range found {
		keys = append(keys, id)
	}
	slices.Sort(keys)
	out := make([]models.User, 0, len(keys))
	for _, id := range keys {
		out = append(out, found[id])
	}
	return out, nil
}

// Publish pushes committed notifications onto the bus. Delivery is
// best-effort: failures are logged and never reach the caller.
func (s *NotificationService) Publish(ctx context.Context, out *Outbox) {
	if s == nil || s.bus == nil || out == nil || out.Len() == 0 {
		return
	}
	for _, n := range out.notes {
		msg := notify.Message{
			ID:             n.ID.String(),
			RecipientID:    n.RecipientID,
			RecipientEmail: out.emails[n.RecipientID],
			EntityType:     n.EntityType,
			EntityRef:      n.EntityRef,
			Message:        n.Message,
			StatusTag:      n.StatusTag,
			CreatedAt:      n.CreatedAt,
		}
		if err := s.bus.Publish(ctx, msg); err != nil {
			log.Printf("notify: publish %s for user %d failed: %v", msg.ID, msg.RecipientID, err)
		}
	}
}

func (s *NotificationService) List(userID uint, unreadOnly bool) ([]models.Notification, error) {
	return repositories.NewNotificationRepository(s.db).ForRecipient(userID, unreadOnly)
}

func (s *NotificationService) UnreadCount(userID uint) (int64, error) {
	return repositories.NewNotificationRepository(s.db).UnreadCount(userID)
}

// Acknowledge marks a notification of userID as read.
func (s *NotificationService) Acknowledge(userID uint, id types.SnowflakeID) (*models.Notification, error) {
	return repositories.NewNotificationRepository(s.db).MarkRead(userID, id)
}
