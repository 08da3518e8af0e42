package models

import (
	"fmt"
	"materials-erp/types"
	"materials-erp/workflow"
	"time"

	"github.com/shopspring/decimal"
)

type PurchaseOrder struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	PONumber      string    `json:"po_number" gorm:"size:32;uniqueIndex"`
	VendorName    string    `json:"vendor_name"`
	CreatedBy     uint      `json:"created_by"`
	CreatedByName string    `json:"created_by_name"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	Lines     []PurchaseOrderLine     `json:"lines" gorm:"foreignKey:PurchaseOrderID"`
	Documents []PurchaseOrderDocument `json:"documents" gorm:"foreignKey:PurchaseOrderID"`
}

// Receipt is the delivery / quality / warehouse-in state shared by purchase
// order lines and backorder lines. DeliveredQty, AcceptedQty and RejectedQty
// describe the current delivery cycle; ReceivedQty is what went into stock.
type Receipt struct {
	DeliveredQty int                    `json:"delivered_qty"`
	AcceptedQty  int                    `json:"accepted_qty"`
	RejectedQty  int                    `json:"rejected_qty"`
	ReceivedQty  int                    `json:"received_qty"`
	Status       workflow.ReceiptStatus `json:"status" gorm:"embedded;embeddedPrefix:status_"`
	StatusText   string                 `json:"status_text"`
	Notes        types.NoteLog          `json:"notes"`
}

func (r *Receipt) SetStatus(s workflow.ReceiptStatus) {
	r.Status = s
	r.StatusText = s.String()
}

// Receivable is a line that goes through delivery, quality check and warehouse in.
type Receivable interface {
	ReceiptPart() *Receipt
	ExpectedQty() int
	ComponentRef() uint
	Ref() string
	OrderNo() string
}

type PurchaseOrderLine struct {
	ID              uint            `json:"id" gorm:"primaryKey"`
	PurchaseOrderID uint            `json:"purchase_order_id" gorm:"index"`
	PONumber        string          `json:"po_number" gorm:"size:32;index"`
	RequestLineID   uint            `json:"request_line_id" gorm:"index"`
	RequestNo       string          `json:"request_no" gorm:"size:32"`
	ComponentID     uint            `json:"component_id"`
	OrderedQty      int             `json:"ordered_qty"`
	UnitPrice       decimal.Decimal `json:"unit_price" gorm:"type:decimal(20,4);default:0"`
	VendorName      string          `json:"vendor_name"`
	Receipt
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (l *PurchaseOrderLine) ReceiptPart() *Receipt { return &l.Receipt }
func (l *PurchaseOrderLine) ExpectedQty() int      { return l.OrderedQty }
func (l *PurchaseOrderLine) ComponentRef() uint    { return l.ComponentID }
func (l *PurchaseOrderLine) OrderNo() string       { return l.PONumber }
func (l *PurchaseOrderLine) Ref() string {
	return fmt.Sprintf("%s line %d", l.PONumber, l.ID)
}

func (l PurchaseOrderLine) LineCost() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.OrderedQty)))
}

// BackorderLine carries a delivery shortfall (BO-<n>). A shortfall of a
// backorder spawns a nested backorder that keeps ParentSeqID.
type BackorderLine struct {
	ID                  uint   `json:"id" gorm:"primaryKey"`
	SeqID               string `json:"seq_id" gorm:"size:32;uniqueIndex"`
	ParentSeqID         string `json:"parent_seq_id" gorm:"size:32;index"`
	PurchaseOrderLineID uint   `json:"purchase_order_line_id" gorm:"index"`
	PONumber            string `json:"po_number" gorm:"size:32"`
	ComponentID         uint   `json:"component_id"`
	Qty                 int    `json:"qty"`
	Receipt
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b *BackorderLine) ReceiptPart() *Receipt { return &b.Receipt }
func (b *BackorderLine) ExpectedQty() int      { return b.Qty }
func (b *BackorderLine) ComponentRef() uint    { return b.ComponentID }
func (b *BackorderLine) OrderNo() string       { return b.PONumber }
func (b *BackorderLine) Ref() string           { return b.SeqID }

// ReturnLine carries a quality-rejected quantity (RO-<n>) back to the vendor.
type ReturnLine struct {
	ID                  uint          `json:"id" gorm:"primaryKey"`
	SeqID               string        `json:"seq_id" gorm:"size:32;uniqueIndex"`
	PurchaseOrderLineID uint          `json:"purchase_order_line_id" gorm:"index"`
	SourceSeqID         string        `json:"source_seq_id" gorm:"size:32"`
	PONumber            string        `json:"po_number" gorm:"size:32"`
	ComponentID         uint          `json:"component_id"`
	Qty                 int           `json:"qty"`
	Status              string        `json:"status" gorm:"size:64;index"`
	Notes               types.NoteLog `json:"notes"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

type PurchaseOrderDocument struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	PurchaseOrderID uint      `json:"purchase_order_id" gorm:"index"`
	PONumber        string    `json:"po_number" gorm:"size:32"`
	Name            string    `json:"name"`
	ObjectKey       string    `json:"object_key"`
	URL             string    `json:"url"`
	UploadedBy      uint      `json:"uploaded_by"`
	CreatedAt       time.Time `json:"created_at"`
}
