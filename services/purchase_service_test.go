package services

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"materials-erp/apperr"
	"materials-erp/models"
	"materials-erp/workflow"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/exp/slices"
)

type memBlobs struct {
	objects map[string][]byte
}

func (m *memBlobs) Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[key] = data
	return "https://files.example.test/" + key, nil
}

// ceoApproved walks one procurement line of qty through every approval stage.
func ceoApproved(t *testing.T, env *testEnv, comp *models.Component, qty int) uint {
	t.Helper()
	req := env.procurement(t, LineInput{ComponentID: comp.ID, Qty: qty})
	lineID := req.Lines[0].ID
	price := decimal.RequireFromString("12.50")
	env.approve(t, "prod.head", req.RequestNo)
	env.approve(t, "inv.head", req.RequestNo)
	env.approve(t, "pur.head", req.RequestNo, LineDecision{LineID: lineID, VendorName: "Nusantara Bearings", UnitPrice: &price})
	env.approve(t, "ceo", req.RequestNo)
	require.Equal(t, workflow.StatusCEODone, env.line(t, lineID).Status)
	return lineID
}

func (e *testEnv) order(t *testing.T, lineIDs ...uint) *models.PurchaseOrder {
	t.Helper()
	in := PurchaseOrderInput{VendorName: "Nusantara Bearings"}
	for _, id := range lineIDs {
		in.Lines = append(in.Lines, OrderLineInput{RequestLineID: id})
	}
	po, err := e.purchases.CreatePurchaseOrder(context.Background(), e.actor("pur.head"), in)
	require.NoError(t, err)
	return po
}

func (e *testEnv) receive(t *testing.T, target ReceiptTarget, delivered, accepted int) {
	t.Helper()
	ctx := context.Background()
	_, err := e.purchases.RecordDelivery(ctx, e.actor("inv.head"), DeliveryInput{ReceiptTarget: target, Qty: delivered})
	require.NoError(t, err)
	_, err = e.purchases.InspectQuality(ctx, e.actor("qc.staff"), InspectionInput{ReceiptTarget: target, AcceptedQty: accepted, RejectedQty: delivered - accepted})
	require.NoError(t, err)
	if accepted > 0 {
		_, err = e.purchases.WarehouseIn(ctx, e.actor("inv.head"), WarehouseInInput{ReceiptTarget: target})
		require.NoError(t, err)
	}
}

func (e *testEnv) backorder(t *testing.T, seqID string) models.BackorderLine {
	t.Helper()
	var bo models.BackorderLine
	require.NoError(t, e.db.Where("seq_id = ?", seqID).First(&bo).Error)
	return bo
}

func TestCreatePurchaseOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	comp := env.component(t, "BRG-6204", 0)
	lineID := ceoApproved(t, env, comp, 10)

	_, err := env.purchases.CreatePurchaseOrder(ctx, env.actor("inv.head"), PurchaseOrderInput{VendorName: "X", Lines: []OrderLineInput{{RequestLineID: lineID}}})
	assert.True(t, apperr.Is(err, apperr.KindAuthorization), "got %v", err)

	po, err := env.purchases.CreatePurchaseOrder(ctx, env.actor("pur.head"), PurchaseOrderInput{
		VendorName: "Nusantara Bearings",
		Prefix:     "PRJ",
		Lines:      []OrderLineInput{{RequestLineID: lineID, Qty: intPtr(12)}},
	})
	require.NoError(t, err)
	assert.Equal(t, "PRJ0001", po.PONumber)
	require.Len(t, po.Lines, 1)
	ol := po.Lines[0]
	assert.Equal(t, 12, ol.OrderedQty)
	assert.Equal(t, workflow.ReceiptDeliveryPending, ol.Status.Base)
	assert.True(t, decimal.RequireFromString("150").Equal(ol.LineCost()))

	l := env.line(t, lineID)
	assert.Equal(t, workflow.StatusDeliveryPending, l.Status)
	assert.Equal(t, 12, l.Qty)
	assert.Equal(t, 1, l.QtyChanges.Len())

	_, err = env.purchases.CreatePurchaseOrder(ctx, env.actor("pur.head"), PurchaseOrderInput{VendorName: "Again", Lines: []OrderLineInput{{RequestLineID: lineID}}})
	assert.True(t, apperr.Is(err, apperr.KindConflict), "got %v", err)

	orders, err := env.purchases.ListOrders()
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestReceivingWithBackordersAndReturns(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	comp := env.component(t, "BRG-6204", 0)
	lineID := ceoApproved(t, env, comp, 10)
	po := env.order(t, lineID)
	assert.Equal(t, "PO-1", po.PONumber)
	olID := po.Lines[0].ID
	root := ReceiptTarget{OrderLineID: olID}

	env.receive(t, root, 6, 5)
	assert.Equal(t, 5, env.onHand(t, comp.ID))

	views, err := env.purchases.Receiving(po.PONumber)
	require.NoError(t, err)
	require.Len(t, views, 1)
	ol := views[0].Line
	assert.Equal(t, "Warehouse In; BO-1 Backordered and material delivery pending (4); RO-1 Return to Vendor Pending (1)", ol.StatusText)
	assert.Equal(t, ol.OrderedQty, ol.DeliveredQty+ol.Status.ShortfallQty)
	assert.Equal(t, 5, ol.ReceivedQty)
	require.Len(t, views[0].Backorders, 1)
	require.Len(t, views[0].ReturnLines, 1)
	assert.Equal(t, "RO-1", views[0].ReturnLines[0].SeqID)
	assert.Equal(t, workflow.StatusDeliveryPending, env.line(t, lineID).Status)

	env.receive(t, ReceiptTarget{BackorderSeq: "BO-1"}, 3, 3)
	assert.Equal(t, 8, env.onHand(t, comp.ID))
	bo1 := env.backorder(t, "BO-1")
	assert.Equal(t, "", bo1.ParentSeqID)
	assert.Equal(t, "BO-2", bo1.Status.ShortfallSeq)
	assert.Equal(t, bo1.Qty, bo1.DeliveredQty+bo1.Status.ShortfallQty)

	bo2 := env.backorder(t, "BO-2")
	assert.Equal(t, "BO-1", bo2.ParentSeqID)
	assert.Equal(t, 1, bo2.Qty)
	assert.Equal(t, workflow.ReceiptBackordered, bo2.Status.Base)

	env.receive(t, ReceiptTarget{BackorderSeq: "BO-2"}, 1, 1)
	assert.Equal(t, 9, env.onHand(t, comp.ID))
	bo1 = env.backorder(t, "BO-1")
	assert.Equal(t, workflow.ReceiptWarehouseIn, bo1.Status.ShortfallState)
	assert.Equal(t, workflow.StatusDeliveryPending, env.line(t, lineID).Status, "the open return keeps the line pending")

	_, err = env.purchases.ScrapReturn(ctx, env.actor("inv.head"), ReturnLineInput{SeqID: "RO-1"})
	assert.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)

	_, err = env.purchases.ReceiveReplacement(ctx, env.actor("inv.head"), ReturnLineInput{SeqID: "RO-1"})
	assert.True(t, apperr.Is(err, apperr.KindConflict), "got %v", err)

	rl, err := env.purchases.DispatchReturn(ctx, env.actor("qc.staff"), ReturnLineInput{SeqID: "RO-1", Note: "Picked up by courier"})
	require.NoError(t, err)
	assert.Equal(t, workflow.ReturnedToVendor, rl.Status)

	rl, err = env.purchases.ReceiveReplacement(ctx, env.actor("inv.head"), ReturnLineInput{SeqID: "RO-1"})
	require.NoError(t, err)
	assert.Equal(t, workflow.ReturnWarehouseIn, rl.Status)
	assert.Equal(t, 10, env.onHand(t, comp.ID))

	l := env.line(t, lineID)
	assert.Equal(t, workflow.StatusWarehouseIn, l.Status)
	last, _ := l.Notes.Last()
	assert.Equal(t, "Received 10 of 10 under PO-1", last.Content)

	card, err := env.stock.Card(comp.ID, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, card, 4)
	assert.Equal(t, models.StockTxReplacement, card[3].TxType)
	assert.Equal(t, 10, card[3].Balance)

	notes, err := env.notifier.List(env.userID("prod.staff"), true)
	require.NoError(t, err)
	var settled bool
	for _, n := range notes {
		if n.StatusTag == workflow.StatusWarehouseIn && n.EntityRef == l.RequestNo {
			settled = true
		}
	}
	assert.True(t, settled, "requester was not told the line is in the warehouse")
}

func TestQualityRejectsWholeDelivery(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	comp := env.component(t, "CBL-2.5", 0)
	lineID := ceoApproved(t, env, comp, 4)
	po := env.order(t, lineID)
	root := ReceiptTarget{OrderLineID: po.Lines[0].ID}

	env.receive(t, root, 2, 0)
	assert.Equal(t, 0, env.onHand(t, comp.ID))

	views, err := env.purchases.Receiving(po.PONumber)
	require.NoError(t, err)
	ol := views[0].Line
	assert.Equal(t, workflow.ReceiptQCRejected, ol.Status.Base)
	assert.Equal(t, "BO-1", ol.Status.ShortfallSeq)
	assert.Equal(t, 2, ol.Status.ShortfallQty)
	assert.Equal(t, "RO-1", ol.Status.ReturnSeq)

	_, err = env.purchases.WarehouseIn(ctx, env.actor("inv.head"), WarehouseInInput{ReceiptTarget: root})
	assert.True(t, apperr.Is(err, apperr.KindConflict), "got %v", err)

	_, err = env.purchases.ScrapReturn(ctx, env.actor("qc.staff"), ReturnLineInput{SeqID: "RO-1", Note: "Insulation cracked"})
	require.NoError(t, err)

	env.receive(t, ReceiptTarget{BackorderSeq: "BO-1"}, 2, 2)
	assert.Equal(t, 2, env.onHand(t, comp.ID))
	l := env.line(t, lineID)
	assert.Equal(t, workflow.StatusWarehouseIn, l.Status)
	last, _ := l.Notes.Last()
	assert.True(t, strings.HasPrefix(last.Content, "Received 2 of 4"), last.Content)
}

func TestReceivingGuards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	comp := env.component(t, "OIL-HYD46", 0)
	po := env.order(t, ceoApproved(t, env, comp, 5))
	root := ReceiptTarget{OrderLineID: po.Lines[0].ID}

	tests := []struct {
		name string
		run  func() error
		want apperr.Kind
	}{
		{"quality_cannot_record_delivery", func() error {
			_, err := env.purchases.RecordDelivery(ctx, env.actor("qc.staff"), DeliveryInput{ReceiptTarget: root, Qty: 1})
			return err
		}, apperr.KindAuthorization},
		{"no_target", func() error {
			_, err := env.purchases.RecordDelivery(ctx, env.actor("inv.head"), DeliveryInput{Qty: 1})
			return err
		}, apperr.KindValidation},
		{"both_targets", func() error {
			_, err := env.purchases.RecordDelivery(ctx, env.actor("inv.head"), DeliveryInput{ReceiptTarget: ReceiptTarget{OrderLineID: root.OrderLineID, BackorderSeq: "BO-1"}, Qty: 1})
			return err
		}, apperr.KindValidation},
		{"over_delivery", func() error {
			_, err := env.purchases.RecordDelivery(ctx, env.actor("inv.head"), DeliveryInput{ReceiptTarget: root, Qty: 6})
			return err
		}, apperr.KindConflict},
		{"inspect_before_delivery", func() error {
			_, err := env.purchases.InspectQuality(ctx, env.actor("qc.staff"), InspectionInput{ReceiptTarget: root})
			return err
		}, apperr.KindConflict},
		{"warehouse_in_before_delivery", func() error {
			_, err := env.purchases.WarehouseIn(ctx, env.actor("inv.head"), WarehouseInInput{ReceiptTarget: root})
			return err
		}, apperr.KindConflict},
		{"unknown_backorder", func() error {
			_, err := env.purchases.RecordDelivery(ctx, env.actor("inv.head"), DeliveryInput{ReceiptTarget: ReceiptTarget{BackorderSeq: "BO-77"}, Qty: 1})
			return err
		}, apperr.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			assert.True(t, apperr.Is(err, tt.want), "got %v", err)
		})
	}

	_, err := env.purchases.RecordDelivery(ctx, env.actor("inv.head"), DeliveryInput{ReceiptTarget: root, Qty: 5})
	require.NoError(t, err)

	_, err = env.purchases.InspectQuality(ctx, env.actor("inv.head"), InspectionInput{ReceiptTarget: root, AcceptedQty: 5})
	assert.True(t, apperr.Is(err, apperr.KindAuthorization), "got %v", err)

	_, err = env.purchases.InspectQuality(ctx, env.actor("qc.staff"), InspectionInput{ReceiptTarget: root, AcceptedQty: 3, RejectedQty: 1})
	assert.True(t, apperr.Is(err, apperr.KindConflict), "got %v", err)

	rc, err := env.purchases.InspectQuality(ctx, env.actor("qc.staff"), InspectionInput{ReceiptTarget: root, Hold: true, Remark: "Awaiting certificate"})
	require.NoError(t, err)
	assert.Equal(t, workflow.ReceiptQCHold, rc.Status.Base)

	rc, err = env.purchases.InspectQuality(ctx, env.actor("qc.staff"), InspectionInput{ReceiptTarget: root, AcceptedQty: 5})
	require.NoError(t, err)
	assert.Equal(t, workflow.ReceiptQCCleared, rc.Status.Base)

	rc, err = env.purchases.WarehouseIn(ctx, env.actor("inv.head"), WarehouseInInput{ReceiptTarget: root})
	require.NoError(t, err)
	assert.Equal(t, "Warehouse In", rc.StatusText)
	assert.Equal(t, 5, env.onHand(t, comp.ID))
}

func TestPurchaseOrderDocumentsAndExport(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	comp := env.component(t, "BRG-6204", 0)
	po := env.order(t, ceoApproved(t, env, comp, 4))

	_, err := env.purchases.AttachDocument(ctx, env.actor("pur.head"), po.PONumber, "quote.pdf", "application/pdf", strings.NewReader("%PDF"))
	assert.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)

	blobs := &memBlobs{}
	env.purchases.blobs = blobs
	doc, err := env.purchases.AttachDocument(ctx, env.actor("pur.head"), po.PONumber, "quote.pdf", "application/pdf", strings.NewReader("%PDF"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(doc.ObjectKey, "purchase-orders/PO-1/"))
	assert.Equal(t, []byte("%PDF"), blobs.objects[doc.ObjectKey])

	_, err = env.purchases.AttachDocument(ctx, env.actor("qc.staff"), po.PONumber, "quote.pdf", "application/pdf", strings.NewReader("%PDF"))
	assert.True(t, apperr.Is(err, apperr.KindAuthorization), "got %v", err)

	got, err := env.purchases.GetOrder(po.PONumber)
	require.NoError(t, err)
	assert.Len(t, got.Documents, 1)

	buf, err := env.purchases.ExportOrder(po.PONumber)
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	vendor, err := f.GetCellValue(po.PONumber, "B1")
	require.NoError(t, err)
	assert.Equal(t, "Nusantara Bearings", vendor)
	total, err := f.GetCellValue(po.PONumber, "F5")
	require.NoError(t, err)
	assert.Equal(t, "50.00", total)
}

func TestQualityDecisionsNotifyQuality(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	qcHead := models.User{Username: "qc.head", Name: "Quality Head", Role: "quality_head", IsActive: true}
	require.NoError(t, env.db.Create(&qcHead).Error)

	tags := func(t *testing.T, userID uint) []string {
		t.Helper()
		notes, err := env.notifier.List(userID, false)
		require.NoError(t, err)
		var out []string
		for _, n := range notes {
			out = append(out, n.StatusTag)
		}
		return out
	}

	comp := env.component(t, "BRG-6204", 0)
	po := env.order(t, ceoApproved(t, env, comp, 5))
	root := ReceiptTarget{OrderLineID: po.Lines[0].ID}
	_, err := env.purchases.RecordDelivery(ctx, env.actor("inv.head"), DeliveryInput{ReceiptTarget: root, Qty: 5})
	require.NoError(t, err)

	_, err = env.purchases.InspectQuality(ctx, env.actor("qc.staff"), InspectionInput{ReceiptTarget: root, Hold: true, Remark: "Awaiting certificate"})
	require.NoError(t, err)
	assert.Contains(t, tags(t, qcHead.ID), workflow.ReceiptQCHold)
	assert.Contains(t, tags(t, env.userID("pur.head")), workflow.ReceiptQCHold)
	assert.NotContains(t, tags(t, env.userID("qc.staff")), workflow.ReceiptQCHold)

	_, err = env.purchases.InspectQuality(ctx, env.actor("qc.staff"), InspectionInput{ReceiptTarget: root, AcceptedQty: 5})
	require.NoError(t, err)

	tests := []struct {
		name   string
		userID uint
		want   bool
	}{
		{"quality_head", qcHead.ID, true},
		{"inventory_head", env.userID("inv.head"), true},
		{"inspector_is_actor", env.userID("qc.staff"), false},
		{"requester", env.userID("prod.staff"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, slices.Contains(tags(t, tt.userID), workflow.ReceiptQCCleared))
		})
	}
}

func TestWarehouseInReconcilesQualitySplit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	comp := env.component(t, "CBL-2.5", 0)
	po := env.order(t, ceoApproved(t, env, comp, 5))
	lineID := po.Lines[0].ID
	root := ReceiptTarget{OrderLineID: lineID}

	_, err := env.purchases.RecordDelivery(ctx, env.actor("inv.head"), DeliveryInput{ReceiptTarget: root, Qty: 4})
	require.NoError(t, err)
	_, err = env.purchases.InspectQuality(ctx, env.actor("qc.staff"), InspectionInput{ReceiptTarget: root, AcceptedQty: 4})
	require.NoError(t, err)

	tests := []struct {
		name    string
		updates map[string]any
	}{
		{"split_short_of_delivery", map[string]any{"accepted_qty": 3}},
		{"delivered_over_expected", map[string]any{"delivered_qty": 6, "accepted_qty": 6}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, env.db.Model(&models.PurchaseOrderLine{}).Where("id = ?", lineID).Updates(tt.updates).Error)
			_, err := env.purchases.WarehouseIn(ctx, env.actor("inv.head"), WarehouseInInput{ReceiptTarget: root})
			assert.True(t, apperr.Is(err, apperr.KindIntegrity), "got %v", err)
			assert.Equal(t, 0, env.onHand(t, comp.ID))
		})
	}

	require.NoError(t, env.db.Model(&models.PurchaseOrderLine{}).Where("id = ?", lineID).
		Updates(map[string]any{"delivered_qty": 4, "accepted_qty": 4}).Error)
	rc, err := env.purchases.WarehouseIn(ctx, env.actor("inv.head"), WarehouseInInput{ReceiptTarget: root})
	require.NoError(t, err)
	assert.Equal(t, 1, rc.Status.ShortfallQty)
	assert.Equal(t, 4, env.onHand(t, comp.ID))
}
