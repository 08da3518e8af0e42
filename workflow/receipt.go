package workflow

import (
	"fmt"
	"strings"
)

// Receipt statuses of purchase-order lines and their backorder children.
const (
	ReceiptDeliveryPending = "Material Delivery Pending"
	ReceiptQCPending       = "Material Delivered & Quality Check Pending"
	ReceiptQCCleared       = "QC Cleared"
	ReceiptQCRejected      = "QC Rejected"
	ReceiptQCHold          = "QC Hold"
	ReceiptWarehouseIn     = "Warehouse In"
	ReceiptBackordered     = "Backordered and material delivery pending"
)

// Return-line statuses.
const (
	ReturnToVendorPending = "Return to Vendor Pending"
	ReturnedToVendor      = "Returned to Vendor"
	ReturnWarehouseIn     = "Warehouse In"
	ReturnScrapped        = "Scrapped"
)

// ReceiptStatus is the structured status of a receivable line: the base state
// plus an optional shortfall (backorder) and an optional quality return. It is
// stored as flat columns and rendered for display with String.
type ReceiptStatus struct {
	Base           string `json:"base" gorm:"size:64;index"`
	ShortfallSeq   string `json:"shortfall_seq,omitempty" gorm:"size:32"`
	ShortfallQty   int    `json:"shortfall_qty,omitempty"`
	ShortfallState string `json:"shortfall_state,omitempty" gorm:"size:64"`
	ReturnSeq      string `json:"return_seq,omitempty" gorm:"size:32"`
	ReturnQty      int    `json:"return_qty,omitempty"`
	ReturnState    string `json:"return_state,omitempty" gorm:"size:64"`
}

func NewReceiptStatus(base string) ReceiptStatus {
	return ReceiptStatus{Base: base}
}

func (s ReceiptStatus) HasShortfall() bool { return s.ShortfallSeq != "" }

func (s ReceiptStatus) HasReturn() bool { return s.ReturnSeq != "" }

func (s ReceiptStatus) WithShortfall(seq string, qty int, state string) ReceiptStatus {
	s.ShortfallSeq, s.ShortfallQty, s.ShortfallState = seq, qty, state
	return s
}

func (s ReceiptStatus) WithReturn(seq string, qty int, state string) ReceiptStatus {
	s.ReturnSeq, s.ReturnQty, s.ReturnState = seq, qty, state
	return s
}

// Open reports whether anything about the line still awaits action, including
// its shortfall and return sub-states. A shortfall sub-state only mirrors the
// base state of the backorder; the backorder's own sub-states are its own.
func (s ReceiptStatus) Open() bool {
	if !cycleClosed(s.Base) {
		return true
	}
	if s.HasShortfall() && !cycleClosed(s.ShortfallState) {
		return true
	}
	if s.HasReturn() && s.ReturnState != ReturnWarehouseIn && s.ReturnState != ReturnScrapped {
		return true
	}
	return false
}

// String renders the canonical display form, e.g.
// "Warehouse In; BO-3 Backordered and material delivery pending (4)".
func (s ReceiptStatus) String() string {
	parts := []string{s.Base}
	if s.HasShortfall() {
		parts = append(parts, fmt.Sprintf("%s %s (%d)", s.ShortfallSeq, s.ShortfallState, s.ShortfallQty))
	}
	if s.HasReturn() {
		parts = append(parts, fmt.Sprintf("%s %s (%d)", s.ReturnSeq, s.ReturnState, s.ReturnQty))
	}
	return strings.Join(parts, "; ")
}

func cycleClosed(base string) bool {
	return base == ReceiptWarehouseIn || base == ReceiptQCRejected
}

var receiptNext = map[string][]string{
	ReceiptDeliveryPending: {ReceiptQCPending},
	ReceiptBackordered:     {ReceiptQCPending},
	ReceiptQCPending:       {ReceiptQCCleared, ReceiptQCRejected, ReceiptQCHold},
	ReceiptQCHold:          {ReceiptQCCleared, ReceiptQCRejected, ReceiptQCHold},
	ReceiptQCCleared:       {ReceiptWarehouseIn},
}

// CheckReceipt validates a base-state move of a receivable line.
func CheckReceipt(from, to string) error {
	for _, next := range receiptNext[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("cannot move receipt from %q to %q", from, to)
}

var returnNext = map[string][]string{
	ReturnToVendorPending: {ReturnedToVendor, ReturnScrapped},
	ReturnedToVendor:      {ReturnWarehouseIn, ReturnScrapped},
}

func CheckReturnLine(from, to string) error {
	for _, next := range returnNext[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("cannot move return line from %q to %q", from, to)
}

func ReturnLineClosed(status string) bool {
	return status == ReturnWarehouseIn || status == ReturnScrapped
}

// Material return of issued quantity back to stock.
const (
	MaterialReturnHeadPending      = "Return Head Approval Pending"
	MaterialReturnInventoryPending = "Return Inventory Approval Pending"
	MaterialReturned               = "Returned"
	MaterialReturnRejected         = "Return Rejected"
)

func NextMaterialReturn(status string) (string, Stage, bool) {
	switch status {
	case MaterialReturnHeadPending:
		return MaterialReturnInventoryPending, StageHead, true
	case MaterialReturnInventoryPending:
		return MaterialReturned, StageInventory, true
	}
	return "", "", false
}
