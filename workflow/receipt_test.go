package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReceiptStatus_String(t *testing.T) {
	s := NewReceiptStatus(ReceiptWarehouseIn).
		WithShortfall("BO-3", 4, ReceiptBackordered).
		WithReturn("RO-2", 1, ReturnToVendorPending)

	assert.Equal(t, "Warehouse In; BO-3 Backordered and material delivery pending (4); RO-2 Return to Vendor Pending (1)", s.String())
	assert.Equal(t, ReceiptDeliveryPending, NewReceiptStatus(ReceiptDeliveryPending).String())
}

func TestReceiptStatus_Open(t *testing.T) {
	tests := []struct {
		name   string
		status ReceiptStatus
		want   bool
	}{
		{"pending", NewReceiptStatus(ReceiptDeliveryPending), true},
		{"warehouse_in", NewReceiptStatus(ReceiptWarehouseIn), false},
		{"open_backorder", NewReceiptStatus(ReceiptWarehouseIn).WithShortfall("BO-1", 2, ReceiptBackordered), true},
		{"closed_backorder", NewReceiptStatus(ReceiptWarehouseIn).WithShortfall("BO-1", 2, ReceiptWarehouseIn), false},
		{"open_return", NewReceiptStatus(ReceiptQCRejected).WithReturn("RO-1", 5, ReturnedToVendor), true},
		{"rejected_backorder", NewReceiptStatus(ReceiptWarehouseIn).WithShortfall("BO-1", 2, ReceiptQCRejected), false},
		{"held", NewReceiptStatus(ReceiptQCHold), true},
		{"scrapped_return", NewReceiptStatus(ReceiptQCRejected).WithReturn("RO-1", 5, ReturnScrapped), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.Open())
		})
	}
}

func TestCheckReceipt(t *testing.T) {
	assert.NoError(t, CheckReceipt(ReceiptDeliveryPending, ReceiptQCPending))
	assert.NoError(t, CheckReceipt(ReceiptBackordered, ReceiptQCPending))
	assert.NoError(t, CheckReceipt(ReceiptQCHold, ReceiptQCCleared))
	assert.NoError(t, CheckReceipt(ReceiptQCCleared, ReceiptWarehouseIn))
	assert.Error(t, CheckReceipt(ReceiptDeliveryPending, ReceiptWarehouseIn))
	assert.Error(t, CheckReceipt(ReceiptWarehouseIn, ReceiptQCPending))
}

func TestNextMaterialReturn(t *testing.T) {
	next, stage, ok := NextMaterialReturn(MaterialReturnHeadPending)
	assert.True(t, ok)
	assert.Equal(t, MaterialReturnInventoryPending, next)
	assert.Equal(t, StageHead, stage)

	_, _, ok = NextMaterialReturn(MaterialReturned)
	assert.False(t, ok)
}
