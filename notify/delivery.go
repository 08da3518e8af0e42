package notify

import (
	"context"
	"encoding/json"
	"log"
)

type pusher interface {
	Send(userID uint, message []byte) (int, error)
}

type sender interface {
	Send(msg Message) error
}

// Delivery pushes bus messages to the live hub and to email. Delivery is
// best-effort: the notification row is already committed, so failures are
// logged and dropped.
type Delivery struct {
	hub  pusher
	mail sender
}

func NewDelivery(hub *Hub, mailer *Mailer) *Delivery {
	d := &Delivery{}
	if hub != nil {
		d.hub = hub
	}
	if mailer != nil {
		d.mail = mailer
	}
	return d
}

func (d *Delivery) Handle(ctx context.Context, msg Message) {
	if d.hub != nil {
		payload, err := json.Marshal(msg)
		if err == nil {
			_, err = d.hub.Send(msg.RecipientID, payload)
		}
		if err != nil {
			log.Printf("notify: push %s to user %d failed: %v", msg.ID, msg.RecipientID, err)
		}
	}
	if d.mail != nil && msg.RecipientEmail != "" {
		if err := d.mail.Send(msg); err != nil {
			log.Printf("notify: email %s to %s failed: %v", msg.ID, msg.RecipientEmail, err)
		}
	}
}
