package models

import (
	"materials-erp/types"
	"materials-erp/workflow"
	"time"

	"github.com/shopspring/decimal"
)

// ParentRequest groups the lines submitted together under one request number
// (UMI<n> for direct issue, MRF<n> for procurement).
type ParentRequest struct {
	ID             uint           `json:"id" gorm:"primaryKey"`
	RequestNo      string         `json:"request_no" gorm:"size:32;uniqueIndex"`
	Track          workflow.Track `json:"track" gorm:"size:16;index"`
	RequesterID    uint           `json:"requester_id" gorm:"index"`
	RequesterName  string         `json:"requester_name"`
	Department     string         `json:"department" gorm:"size:64"`
	Project        string         `json:"project" gorm:"size:64"`
	ProcurementRef string         `json:"procurement_ref" gorm:"size:32"`
	SubmittedAt    *time.Time     `json:"submitted_at"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`

	Lines []RequestLine `json:"lines" gorm:"foreignKey:ParentID;references:ID"`
}

// IsDraft is true until the request is submitted and numbered.
func (p ParentRequest) IsDraft() bool {
	return p.SubmittedAt == nil
}

// RequestLine is one requested component of a parent request.
type RequestLine struct {
	ID           uint               `json:"id" gorm:"primaryKey"`
	ParentID     uint               `json:"parent_id" gorm:"index"`
	RequestNo    string             `json:"request_no" gorm:"size:32;index"`
	Track        workflow.Track     `json:"track" gorm:"size:16"`
	ComponentID  uint               `json:"component_id" gorm:"index"`
	InitialQty   int                `json:"initial_qty"`
	Qty          int                `json:"qty"`
	IssuedQty    int                `json:"issued_qty"`
	ReturnedQty  int                `json:"returned_qty"`
	Status       string             `json:"status" gorm:"size:64;index"`
	Priority     bool               `json:"priority"`
	Remark       string             `json:"remark"`
	Notes        types.NoteLog      `json:"notes"`
	QtyChanges   types.QtyChangeLog `json:"qty_changes"`
	VendorName   string             `json:"vendor_name"`
	UnitPrice    decimal.Decimal    `json:"unit_price" gorm:"type:decimal(20,4);default:0"`
	DeliveryDate *time.Time         `json:"delivery_date"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`

	Component *Component `json:"component,omitempty" gorm:"foreignKey:ComponentID"`
}

func (l RequestLine) Terminal() bool {
	return l.Track.IsTerminal(l.Status)
}
