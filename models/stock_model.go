package models

import (
	"materials-erp/controllers/idgen"
	"materials-erp/types"
	"time"

	"gorm.io/gorm"
)

const (
	StockTxIssue       = "issue"
	StockTxReturn      = "return"
	StockTxReceipt     = "receipt"
	StockTxReplacement = "replacement"
	StockTxOpening     = "opening"
)

// Component is the stock ledger entry of one component.
type Component struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Code        string    `json:"code" gorm:"size:64;uniqueIndex"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Location    string    `json:"location" gorm:"size:64"`
	Uom         string    `json:"uom" gorm:"size:16"`
	OnHand      int       `json:"on_hand" gorm:"default:0"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// StockCardEntry is an immutable row of the stock card.
type StockCardEntry struct {
	ID          types.SnowflakeID `json:"id" gorm:"primaryKey"`
	ComponentID uint              `json:"component_id" gorm:"index"`
	TxType      string            `json:"tx_type" gorm:"size:16"`
	Qty         int               `json:"qty"`
	Balance     int               `json:"balance"`
	RefNo       string            `json:"ref_no" gorm:"size:32"`
	ActorID     uint              `json:"actor_id"`
	ActorName   string            `json:"actor_name"`
	CreatedAt   time.Time         `json:"created_at" gorm:"index"`
}

func (e *StockCardEntry) BeforeCreate(tx *gorm.DB) (err error) {
	if e.ID == 0 {
		e.ID = types.SnowflakeID(idgen.GenerateID())
	}
	return
}

func (e *StockCardEntry) BeforeUpdate(tx *gorm.DB) error {
	return gorm.ErrInvalidTransaction
}

// MaterialIssue is the issue record (MI<n>) of one fulfillment operation.
type MaterialIssue struct {
	ID           uint                `json:"id" gorm:"primaryKey"`
	IssueNo      string              `json:"issue_no" gorm:"size:15;uniqueIndex"`
	ParentID     uint                `json:"parent_id" gorm:"index"`
	RequestNo    string              `json:"request_no" gorm:"size:32"`
	IssuedBy     uint                `json:"issued_by"`
	IssuedByName string              `json:"issued_by_name"`
	Remark       string              `json:"remark"`
	CreatedAt    time.Time           `json:"created_at"`
	Items        []MaterialIssueItem `json:"items" gorm:"foreignKey:MaterialIssueID"`
}

type MaterialIssueItem struct {
	ID              uint   `json:"id" gorm:"primaryKey"`
	MaterialIssueID uint   `json:"material_issue_id" gorm:"index"`
	LineID          uint   `json:"line_id" gorm:"index"`
	ComponentID     uint   `json:"component_id"`
	RequestedQty    int    `json:"requested_qty"`
	IssuedQty       int    `json:"issued_qty"`
	Remark          string `json:"remark"`
}

// MaterialReturn is a request to put issued material back into stock.
type MaterialReturn struct {
	ID            uint          `json:"id" gorm:"primaryKey"`
	ReturnNo      string        `json:"return_no" gorm:"size:32;uniqueIndex"`
	LineID        uint          `json:"line_id" gorm:"index"`
	ParentID      uint          `json:"parent_id"`
	RequestNo     string        `json:"request_no" gorm:"size:32"`
	ComponentID   uint          `json:"component_id"`
	Qty           int           `json:"qty"`
	Status        string        `json:"status" gorm:"size:64;index"`
	Reason        string        `json:"reason"`
	Notes         types.NoteLog `json:"notes"`
	RequesterID   uint          `json:"requester_id"`
	RequesterName string        `json:"requester_name"`
	Department    string        `json:"department" gorm:"size:64"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}
