package services

import (
	"context"
	"fmt"
	"materials-erp/apperr"
	"materials-erp/controllers/helpers"
	"materials-erp/workflow"
	"time"

	"github.com/go-playground/validator"
	"gorm.io/gorm"
)

// Actor is the authenticated user an operation runs as.
type Actor struct {
	UserID uint
	Name   string
	Role   workflow.Role
}

func NewActor(userID uint, name, role string) Actor {
	return Actor{UserID: userID, Name: name, Role: workflow.ParseRole(role)}
}

func (a Actor) String() string {
	if a.Name != "" {
		return a.Name
	}
	return fmt.Sprintf("user %d", a.UserID)
}

var validate = validator.New()

func validateInput(entity string, in interface{}) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		f := verrs[0]
		return apperr.Validation(entity, "%s failed on the '%s' rule", f.Namespace(), f.Tag())
	}
	return apperr.Validation(entity, "%v", err)
}

// runTx executes fn in one transaction. Notifications fn records are written
// with the transaction and published only after it commits.
func runTx(ctx context.Context, db *gorm.DB, notifier *NotificationService, fn func(tx *gorm.DB, out *Outbox) error) error {
	out := &Outbox{}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(tx, out)
	})
	if err != nil {
		return apperr.FromDB(err, "")
	}
	notifier.Publish(ctx, out)
	return nil
}

func recordHistory(tx *gorm.DB, actor Actor, refNo, status, txType, detail string) error {
	return helpers.InsertTransactionHistory(tx, helpers.HistoryEntry{
		RefNo:   refNo,
		Status:  status,
		Type:    txType,
		Detail:  detail,
		ActorID: actor.UserID,
	})
}

func noteFor(itemNote, comment, fallback string) string {
	if itemNote != "" {
		return itemNote
	}
	if comment != "" {
		return comment
	}
	return fallback
}

var now = time.Now
