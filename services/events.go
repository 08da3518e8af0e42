package services

import (
	"fmt"
	"materials-erp/config"
	"materials-erp/models"
	"materials-erp/workflow"

	"golang.org/x/exp/slices"
)

// audiencesFor names who acts next on a request line in status.
func audiencesFor(status string) []string {
	switch status {
	case workflow.StatusHeadPending:
		return []string{config.AudienceDepartmentHead}
	case workflow.StatusInventoryPending:
		return []string{config.AudienceInventory}
	case workflow.StatusPurchasePending, workflow.StatusCEODone:
		return []string{config.AudiencePurchase}
	case workflow.StatusCEOPending:
		return []string{config.AudienceCEO}
	case workflow.StatusDeliveryPending:
		return []string{config.AudienceRequester, config.AudienceInventory}
	}
	return []string{config.AudienceRequester}
}

func requestEvent(parent *models.ParentRequest, actor Actor, status string, n int) Event {
	ev := Event{
		EntityType: models.EntityRequest,
		EntityRef:  parent.RequestNo,
		Message:    fmt.Sprintf("%s: %d line(s) %s", parent.RequestNo, n, status),
		StatusTag:  status,
		Audiences:  audiencesFor(status),
		Department: parent.Department,
		ActorID:    actor.UserID,
	}
	if slices.Contains(ev.Audiences, config.AudienceRequester) {
		ev.Users = []uint{parent.RequesterID}
	}
	return ev
}

// resultEvents emits one event per resulting status, in order of first appearance.
func resultEvents(parent *models.ParentRequest, actor Actor, lines []LineResult) []Event {
	var order []string
	count := map[string]int{}
	for _, l := range lines {
		if count[l.Status] == 0 {
			order = append(order, l.Status)
		}
		count[l.Status]++
	}
	events := make([]Event, 0, len(order))
	for _, status := range order {
		events = append(events, requestEvent(parent, actor, status, count[status]))
	}
	return events
}
