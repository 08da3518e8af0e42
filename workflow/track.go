// Package workflow holds the status vocabularies of the request tracks and the
// receiving lifecycle, and the rules for moving between them.
package workflow

import (
	"fmt"

	"golang.org/x/exp/slices"
)

type Track string

const (
	TrackDirect      Track = "direct"
	TrackProcurement Track = "procurement"
)

type Stage string

const (
	StageHead      Stage = "Head"
	StageInventory Stage = "Inventory"
	StagePurchase  Stage = "Purchase"
	StageCEO       Stage = "CEO"
)

const (
	StatusDraft            = "Draft"
	StatusHeadPending      = "Head Approval Pending"
	StatusInventoryPending = "Inventory Approval Pending"
	StatusReceivingPending = "Receiving Pending"
	StatusIssued           = "Issued"
	StatusRejected         = "Rejected"
	StatusCancelled        = "Request Cancelled"

	StatusPurchasePending = "Purchase Approval Pending"
	StatusCEOPending      = "CEO Approval Pending"
	StatusCEODone         = "CEO Approval Done"
	StatusDeliveryPending = "Material Delivery Pending"
	StatusWarehouseIn     = "Warehouse In"
)

var (
	directStatuses = []string{
		StatusDraft,
		StatusHeadPending,
		StatusInventoryPending,
		StatusReceivingPending,
		StatusIssued,
	}
	procurementStatuses = []string{
		StatusHeadPending,
		StatusInventoryPending,
		StatusPurchasePending,
		StatusCEOPending,
		StatusCEODone,
		StatusDeliveryPending,
		StatusWarehouseIn,
	}
	pendingStage = map[string]Stage{
		StatusHeadPending:      StageHead,
		StatusInventoryPending: StageInventory,
		StatusPurchasePending:  StagePurchase,
		StatusCEOPending:       StageCEO,
	}
	stageOrder = []Stage{StageHead, StageInventory, StagePurchase, StageCEO}
)

func ParseTrack(s string) (Track, error) {
	switch Track(s) {
	case TrackDirect, TrackProcurement:
		return Track(s), nil
	}
	return "", fmt.Errorf("unknown track %q", s)
}

// Prefix is the parent request id prefix of the track.
func (t Track) Prefix() string {
	if t == TrackProcurement {
		return "MRF"
	}
	return "UMI"
}

// Statuses returns the ordered main sequence of the track.
func (t Track) Statuses() []string {
	if t == TrackProcurement {
		return slices.Clone(procurementStatuses)
	}
	return slices.Clone(directStatuses)
}

// Index is the position of status in the main sequence, or -1 for the
// terminal alternates (rejections, cancellation) and unknown values.
func (t Track) Index(status string) int {
	if t == TrackProcurement {
		return slices.Index(procurementStatuses, status)
	}
	return slices.Index(directStatuses, status)
}

// Initial is the status a freshly submitted line starts in.
func (t Track) Initial() string {
	return StatusHeadPending
}

func (t Track) Next(status string) (string, bool) {
	seq := t.Statuses()
	i := slices.Index(seq, status)
	if i < 0 || i == len(seq)-1 {
		return "", false
	}
	return seq[i+1], true
}

// Legal reports whether status belongs to the track's vocabulary.
func (t Track) Legal(status string) bool {
	if t.Index(status) >= 0 {
		return true
	}
	if t == TrackDirect {
		return status == StatusRejected || status == StatusCancelled
	}
	for _, s := range stageOrder {
		if status == RejectedBy(s) {
			return true
		}
	}
	return status == StatusCancelled
}

func (t Track) IsTerminal(status string) bool {
	if IsRejected(status) || status == StatusCancelled {
		return true
	}
	if t == TrackProcurement {
		return status == StatusWarehouseIn
	}
	return status == StatusIssued
}

// StageOf returns the approval stage a pending status waits on.
func StageOf(status string) (Stage, bool) {
	s, ok := pendingStage[status]
	return s, ok
}

// PendingStatus is the inverse of StageOf.
func PendingStatus(stage Stage) string {
	for status, s := range pendingStage {
		if s == stage {
			return status
		}
	}
	return ""
}

// StageRank orders stages along the approval chain.
func StageRank(stage Stage) int {
	return slices.Index(stageOrder, stage)
}

// ApprovableAt reports whether the generic approval operation may advance a
// line in status. Direct-issue inventory approval is the issue operation.
func (t Track) ApprovableAt(status string) bool {
	stage, ok := StageOf(status)
	if !ok {
		return false
	}
	if t == TrackDirect {
		return stage == StageHead
	}
	return true
}

// RejectableAt reports whether a line in status may be rejected.
func (t Track) RejectableAt(status string) bool {
	stage, ok := StageOf(status)
	if !ok {
		return false
	}
	if t == TrackDirect {
		return stage == StageHead || stage == StageInventory
	}
	return true
}

// RejectStatus is the terminal status recorded when stage rejects a line.
func (t Track) RejectStatus(stage Stage) string {
	if t == TrackDirect {
		return StatusRejected
	}
	return RejectedBy(stage)
}

func RejectedBy(stage Stage) string {
	return "Rejected by " + string(stage)
}

func IsRejected(status string) bool {
	if status == StatusRejected {
		return true
	}
	for _, s := range stageOrder {
		if status == RejectedBy(s) {
			return true
		}
	}
	return false
}

// CancellableAt is true only for the first pending stage.
func (t Track) CancellableAt(status string) bool {
	return status == StatusHeadPending
}

// FulfillmentReady is the status from which material may be issued.
func (t Track) FulfillmentReady() string {
	if t == TrackDirect {
		return StatusInventoryPending
	}
	return ""
}

// AwaitingConfirmation is the status after issue and before the requester confirms.
func (t Track) AwaitingConfirmation() string {
	if t == TrackDirect {
		return StatusReceivingPending
	}
	return ""
}

// Fulfilled is the terminal status reached by confirmation or receipt.
func (t Track) Fulfilled() string {
	if t == TrackDirect {
		return StatusIssued
	}
	return StatusWarehouseIn
}

// CheckTransition enforces status monotonicity: a move is legal when it goes
// exactly one step forward, or into a terminal alternate from a stage that
// allows it. Terminal statuses never change.
func (t Track) CheckTransition(from, to string) error {
	if !t.Legal(from) {
		return fmt.Errorf("status %q is not part of the %s track", from, t)
	}
	if !t.Legal(to) {
		return fmt.Errorf("status %q is not part of the %s track", to, t)
	}
	if t.IsTerminal(from) {
		return fmt.Errorf("status %q is terminal", from)
	}
	if next, ok := t.Next(from); ok && next == to {
		return nil
	}
	if IsRejected(to) && t.RejectableAt(from) {
		stage, _ := StageOf(from)
		if to == t.RejectStatus(stage) {
			return nil
		}
	}
	if to == StatusCancelled && t.CancellableAt(from) {
		return nil
	}
	return fmt.Errorf("cannot move from %q to %q", from, to)
}
