package services

import (
	"context"
	"fmt"
	"materials-erp/apperr"
	"materials-erp/config"
	"materials-erp/models"
	"materials-erp/repositories"
	"materials-erp/types"
	"materials-erp/workflow"

	"gorm.io/gorm"
)

// ReceiptTarget addresses a receivable line: a purchase order line by id or
// a backorder by sequence id. Exactly one must be set.
type ReceiptTarget struct {
	OrderLineID  uint   `json:"order_line_id"`
	BackorderSeq string `json:"backorder_seq"`
}

type DeliveryInput struct {
	ReceiptTarget
	Qty  int    `json:"qty" validate:"required,min=1"`
	Note string `json:"note"`
}

type InspectionInput struct {
	ReceiptTarget
	AcceptedQty int    `json:"accepted_qty" validate:"min=0"`
	RejectedQty int    `json:"rejected_qty" validate:"min=0"`
	Hold        bool   `json:"hold"`
	Remark      string `json:"remark"`
}

type WarehouseInInput struct {
	ReceiptTarget
	Note string `json:"note"`
}

type ReturnLineInput struct {
	SeqID string `json:"seq_id" validate:"required"`
	Note  string `json:"note"`
}

// receivable is a locked receivable line together with the purchase order
// line it descends from.
type receivable struct {
	models.Receivable
	orderLine *models.PurchaseOrderLine
	backorder *models.BackorderLine
}

func (r *receivable) seqID() string {
	if r.backorder != nil {
		return r.backorder.SeqID
	}
	return ""
}

func (r *receivable) save(repo *repositories.PurchaseRepository) error {
	if r.backorder != nil {
		return repo.SaveBackorder(r.backorder)
	}
	return repo.SaveOrderLine(r.orderLine)
}

// lockTarget locks the root purchase order line first, then the backorder.
func lockTarget(tx *gorm.DB, t ReceiptTarget) (*receivable, error) {
	repo := repositories.NewPurchaseRepository(tx)
	switch {
	case t.OrderLineID != 0 && t.BackorderSeq == "":
		ol, err := repo.LockOrderLine(t.OrderLineID)
		if err != nil {
			return nil, err
		}
		return &receivable{Receivable: ol, orderLine: ol}, nil

	case t.OrderLineID == 0 && t.BackorderSeq != "":
		var peek models.BackorderLine
		if err := tx.Where("seq_id = ?", t.BackorderSeq).First(&peek).Error; err != nil {
			return nil, apperr.FromDB(err, "backorder")
		}
		ol, err := repo.LockOrderLine(peek.PurchaseOrderLineID)
		if err != nil {
			return nil, err
		}
		bo, err := repo.LockBackorder(t.BackorderSeq)
		if err != nil {
			return nil, err
		}
		return &receivable{Receivable: bo, orderLine: ol, backorder: bo}, nil
	}
	return nil, apperr.Validation("receipt", "set exactly one of order_line_id and backorder_seq")
}

// RecordDelivery opens a delivery cycle on a line waiting for material.
func (p *PurchaseService) RecordDelivery(ctx context.Context, actor Actor, in DeliveryInput) (*models.Receipt, error) {
	if err := validateInput("receipt", in); err != nil {
		return nil, err
	}
	if !p.canReceive(actor) {
		return nil, apperr.Authorization("receipt", "only inventory may record deliveries")
	}

	var out models.Receipt
	err := runTx(ctx, p.db, p.notifier, func(tx *gorm.DB, ob *Outbox) error {
		r, err := lockTarget(tx, in.ReceiptTarget)
		if err != nil {
			return err
		}
		rc := r.ReceiptPart()
		if err := workflow.CheckReceipt(rc.Status.Base, workflow.ReceiptQCPending); err != nil {
			return apperr.Conflict("receipt", "%s: %v", r.Ref(), err)
		}
		if in.Qty > r.ExpectedQty() {
			return apperr.Conflict("receipt", "%s: delivered %d exceeds the expected %d", r.Ref(), in.Qty, r.ExpectedQty())
		}

		rc.DeliveredQty, rc.AcceptedQty, rc.RejectedQty = in.Qty, 0, 0
		st := rc.Status
		st.Base = workflow.ReceiptQCPending
		rc.SetStatus(st)
		rc.Notes = rc.Notes.Append(types.Note{At: now(), Actor: actor.String(), Content: noteFor(in.Note, "", fmt.Sprintf("Delivered %d of %d", in.Qty, r.ExpectedQty()))})

		repo := repositories.NewPurchaseRepository(tx)
		if err := r.save(repo); err != nil {
			return err
		}
		if err := p.syncShortfall(repo, r); err != nil {
			return err
		}
		if err := recordHistory(tx, actor, r.OrderNo(), rc.StatusText, "receipt_delivery", r.Ref()); err != nil {
			return err
		}
		out = *rc
		return p.notifier.Record(tx, ob, receiptEvent(r, actor, config.AudienceQuality))
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// InspectQuality records the quality decision of the current delivery.
// Rejected quantity goes to a new RO-<n> return line; a delivery rejected in
// full closes the cycle and backorders what never arrived.
func (p *PurchaseService) InspectQuality(ctx context.Context, actor Actor, in InspectionInput) (*models.Receipt, error) {
	if err := validateInput("receipt", in); err != nil {
		return nil, err
	}
	if !p.canInspect(actor) {
		return nil, apperr.Authorization("receipt", "only quality may inspect deliveries")
	}

	var out models.Receipt
	err := runTx(ctx, p.db, p.notifier, func(tx *gorm.DB, ob *Outbox) error {
		r, err := lockTarget(tx, in.ReceiptTarget)
		if err != nil {
			return err
		}
		rc := r.ReceiptPart()
		repo := repositories.NewPurchaseRepository(tx)

		if in.Hold {
			if err := workflow.CheckReceipt(rc.Status.Base, workflow.ReceiptQCHold); err != nil {
				return apperr.Conflict("receipt", "%s: %v", r.Ref(), err)
			}
			st := rc.Status
			st.Base = workflow.ReceiptQCHold
			rc.SetStatus(st)
			rc.Notes = rc.Notes.Append(types.Note{At: now(), Actor: actor.String(), Content: noteFor(in.Remark, "", "Quality check on hold")})
			if err := r.save(repo); err != nil {
				return err
			}
			if err := p.syncShortfall(repo, r); err != nil {
				return err
			}
			out = *rc
			if err := recordHistory(tx, actor, r.OrderNo(), rc.StatusText, "receipt_qc", r.Ref()); err != nil {
				return err
			}
			return p.notifier.Record(tx, ob, receiptEvent(r, actor, config.AudienceQuality, config.AudiencePurchase))
		}

		if in.AcceptedQty+in.RejectedQty != rc.DeliveredQty {
			return apperr.Conflict("receipt", "%s: accepted %d + rejected %d must equal delivered %d", r.Ref(), in.AcceptedQty, in.RejectedQty, rc.DeliveredQty)
		}
		to := workflow.ReceiptQCCleared
		if in.AcceptedQty == 0 {
			to = workflow.ReceiptQCRejected
		}
		if err := workflow.CheckReceipt(rc.Status.Base, to); err != nil {
			return apperr.Conflict("receipt", "%s: %v", r.Ref(), err)
		}

		rc.AcceptedQty, rc.RejectedQty = in.AcceptedQty, in.RejectedQty
		st := rc.Status
		st.Base = to
		rc.SetStatus(st)
		rc.Notes = rc.Notes.Append(types.Note{At: now(), Actor: actor.String(), Content: noteFor(in.Remark, "", fmt.Sprintf("Accepted %d, rejected %d", in.AcceptedQty, in.RejectedQty))})

		events := []Event{}
		if in.RejectedQty > 0 {
			rl, err := p.openReturnLine(tx, actor, r, in.RejectedQty, in.Remark)
			if err != nil {
				return err
			}
			events = append(events, returnLineEvent(rl, actor))
		}
		if to == workflow.ReceiptQCRejected {
			bo, err := p.closeCycle(tx, actor, r)
			if err != nil {
				return err
			}
			if bo != nil {
				events = append(events, backorderEvent(bo, actor))
			}
			events = append(events, receiptEvent(r, actor, config.AudiencePurchase))
		} else {
			events = append(events, receiptEvent(r, actor, config.AudienceInventory, config.AudienceQuality))
		}

		if err := r.save(repo); err != nil {
			return err
		}
		if err := p.syncShortfall(repo, r); err != nil {
			return err
		}
		if err := recordHistory(tx, actor, r.OrderNo(), rc.StatusText, "receipt_qc", r.Ref()); err != nil {
			return err
		}
		settled, err := p.settle(tx, actor, r.orderLine)
		if err != nil {
			return err
		}
		events = append(events, settled...)
		out = *rc
		return p.notifier.Record(tx, ob, events...)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// WarehouseIn puts the accepted quantity of a cleared delivery into stock
// and backorders the shortfall.
func (p *PurchaseService) WarehouseIn(ctx context.Context, actor Actor, in WarehouseInInput) (*models.Receipt, error) {
	if err := validateInput("receipt", in); err != nil {
		return nil, err
	}
	if !p.canReceive(actor) {
		return nil, apperr.Authorization("receipt", "only inventory may put material into the warehouse")
	}

	var out models.Receipt
	err := runTx(ctx, p.db, p.notifier, func(tx *gorm.DB, ob *Outbox) error {
		r, err := lockTarget(tx, in.ReceiptTarget)
		if err != nil {
			return err
		}
		rc := r.ReceiptPart()
		if err := workflow.CheckReceipt(rc.Status.Base, workflow.ReceiptWarehouseIn); err != nil {
			return apperr.Conflict("receipt", "%s: %v", r.Ref(), err)
		}

		if _, err := p.stock.receive(tx, actor, r.ComponentRef(), rc.AcceptedQty, models.StockTxReceipt, r.Ref()); err != nil {
			return err
		}
		rc.ReceivedQty += rc.AcceptedQty
		st := rc.Status
		st.Base = workflow.ReceiptWarehouseIn
		rc.SetStatus(st)
		rc.Notes = rc.Notes.Append(types.Note{At: now(), Actor: actor.String(), Content: noteFor(in.Note, "", fmt.Sprintf("Warehouse in %d", rc.AcceptedQty))})

		var events []Event
		bo, err := p.closeCycle(tx, actor, r)
		if err != nil {
			return err
		}
		if bo != nil {
			events = append(events, backorderEvent(bo, actor))
		}

		repo := repositories.NewPurchaseRepository(tx)
		if err := r.save(repo); err != nil {
			return err
		}
		if err := p.syncShortfall(repo, r); err != nil {
			return err
		}
		if err := recordHistory(tx, actor, r.OrderNo(), rc.StatusText, "receipt_warehouse_in", r.Ref()); err != nil {
			return err
		}
		settled, err := p.settle(tx, actor, r.orderLine)
		if err != nil {
			return err
		}
		events = append(events, settled...)
		out = *rc
		return p.notifier.Record(tx, ob, events...)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DispatchReturn records that rejected material left for the vendor.
func (p *PurchaseService) DispatchReturn(ctx context.Context, actor Actor, in ReturnLineInput) (*models.ReturnLine, error) {
	if !p.canReceive(actor) && !p.canInspect(actor) {
		return nil, apperr.Authorization("return line", "only inventory or quality may dispatch returns")
	}
	return p.moveReturnLine(ctx, actor, in, workflow.ReturnedToVendor, "Returned to vendor")
}

// ReceiveReplacement books the vendor's replacement of a returned quantity into stock.
func (p *PurchaseService) ReceiveReplacement(ctx context.Context, actor Actor, in ReturnLineInput) (*models.ReturnLine, error) {
	if !p.canReceive(actor) {
		return nil, apperr.Authorization("return line", "only inventory may receive replacements")
	}
	return p.moveReturnLine(ctx, actor, in, workflow.ReturnWarehouseIn, "Replacement received")
}

// ScrapReturn writes a returned quantity off.
func (p *PurchaseService) ScrapReturn(ctx context.Context, actor Actor, in ReturnLineInput) (*models.ReturnLine, error) {
	if !p.canReceive(actor) && !p.canInspect(actor) {
		return nil, apperr.Authorization("return line", "only inventory or quality may scrap returns")
	}
	if in.Note == "" {
		return nil, apperr.Validation("return line", "a reason is required to scrap %s", in.SeqID)
	}
	return p.moveReturnLine(ctx, actor, in, workflow.ReturnScrapped, "Scrapped")
}

func (p *PurchaseService) moveReturnLine(ctx context.Context, actor Actor, in ReturnLineInput, to, defaultNote string) (*models.ReturnLine, error) {
	if err := validateInput("return line", in); err != nil {
		return nil, err
	}

	var out models.ReturnLine
	err := runTx(ctx, p.db, p.notifier, func(tx *gorm.DB, ob *Outbox) error {
		repo := repositories.NewPurchaseRepository(tx)
		var peek models.ReturnLine
		if err := tx.Where("seq_id = ?", in.SeqID).First(&peek).Error; err != nil {
			return apperr.FromDB(err, "return line")
		}
		ol, err := repo.LockOrderLine(peek.PurchaseOrderLineID)
		if err != nil {
			return err
		}
		rl, err := repo.LockReturnLine(in.SeqID)
		if err != nil {
			return err
		}
		if err := workflow.CheckReturnLine(rl.Status, to); err != nil {
			return apperr.Conflict("return line", "%s: %v", rl.SeqID, err)
		}

		if to == workflow.ReturnWarehouseIn {
			if _, err := p.stock.receive(tx, actor, rl.ComponentID, rl.Qty, models.StockTxReplacement, rl.SeqID); err != nil {
				return err
			}
		}
		rl.Status = to
		rl.Notes = rl.Notes.Append(types.Note{At: now(), Actor: actor.String(), Content: noteFor(in.Note, "", defaultNote)})
		if err := repo.SaveReturnLine(rl); err != nil {
			return err
		}
		if err := p.syncReturn(repo, ol, rl); err != nil {
			return err
		}
		if err := recordHistory(tx, actor, rl.PONumber, rl.Status, "return_line", rl.SeqID); err != nil {
			return err
		}

		events := []Event{returnLineEvent(rl, actor)}
		settled, err := p.settle(tx, actor, ol)
		if err != nil {
			return err
		}
		events = append(events, settled...)
		out = *rl
		return p.notifier.Record(tx, ob, events...)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (p *PurchaseService) openReturnLine(tx *gorm.DB, actor Actor, r *receivable, qty int, remark string) (*models.ReturnLine, error) {
	seqID, err := p.seq.Next(tx, SeqReturnLine)
	if err != nil {
		return nil, err
	}
	rl := &models.ReturnLine{
		SeqID:               seqID,
		PurchaseOrderLineID: r.orderLine.ID,
		SourceSeqID:         r.seqID(),
		PONumber:            r.OrderNo(),
		ComponentID:         r.ComponentRef(),
		Qty:                 qty,
		Status:              workflow.ReturnToVendorPending,
		Notes:               types.NewNoteLog(types.Note{At: now(), Actor: actor.String(), Content: noteFor(remark, "", fmt.Sprintf("Rejected %d from %s", qty, r.Ref()))}),
	}
	if err := repositories.NewPurchaseRepository(tx).CreateReturnLine(rl); err != nil {
		return nil, err
	}
	rc := r.ReceiptPart()
	rc.SetStatus(rc.Status.WithReturn(seqID, qty, rl.Status))
	return rl, nil
}

// closeCycle ends the delivery cycle of r. What was expected but never
// delivered becomes a BO-<n> backorder that keeps r's sequence id as its
// parent. The recorded quality split must account for every delivered unit
// and the delivery may not exceed what was expected.
func (p *PurchaseService) closeCycle(tx *gorm.DB, actor Actor, r *receivable) (*models.BackorderLine, error) {
	rc := r.ReceiptPart()
	expected := r.ExpectedQty()
	if rc.AcceptedQty+rc.RejectedQty != rc.DeliveredQty {
		return nil, apperr.Integrity("receipt", "%s: accepted %d + rejected %d does not reconcile with delivered %d", r.Ref(), rc.AcceptedQty, rc.RejectedQty, rc.DeliveredQty)
	}
	shortfall := expected - rc.DeliveredQty
	if shortfall < 0 {
		return nil, apperr.Integrity("receipt", "%s: delivered %d exceeds expected %d", r.Ref(), rc.DeliveredQty, expected)
	}
	if shortfall == 0 {
		return nil, nil
	}

	seqID, err := p.seq.Next(tx, SeqBackorder)
	if err != nil {
		return nil, err
	}
	bo := &models.BackorderLine{
		SeqID:               seqID,
		ParentSeqID:         r.seqID(),
		PurchaseOrderLineID: r.orderLine.ID,
		PONumber:            r.OrderNo(),
		ComponentID:         r.ComponentRef(),
		Qty:                 shortfall,
	}
	bo.SetStatus(workflow.NewReceiptStatus(workflow.ReceiptBackordered))
	bo.Notes = types.NewNoteLog(types.Note{At: now(), Actor: actor.String(), Content: fmt.Sprintf("Shortfall of %d on %s", shortfall, r.Ref())})
	if err := repositories.NewPurchaseRepository(tx).CreateBackorder(bo); err != nil {
		return nil, err
	}
	rc.SetStatus(rc.Status.WithShortfall(seqID, shortfall, workflow.ReceiptBackordered))
	return bo, nil
}

// syncShortfall mirrors a backorder's base state into its parent's shortfall sub-state.
func (p *PurchaseService) syncShortfall(repo *repositories.PurchaseRepository, r *receivable) error {
	bo := r.backorder
	if bo == nil {
		return nil
	}
	if bo.ParentSeqID == "" {
		ol := r.orderLine
		ol.SetStatus(ol.Status.WithShortfall(bo.SeqID, bo.Qty, bo.Status.Base))
		return repo.SaveOrderLine(ol)
	}
	parent, err := repo.LockBackorder(bo.ParentSeqID)
	if err != nil {
		return err
	}
	parent.SetStatus(parent.Status.WithShortfall(bo.SeqID, bo.Qty, bo.Status.Base))
	return repo.SaveBackorder(parent)
}

// syncReturn mirrors a return line's state into its source's return sub-state.
func (p *PurchaseService) syncReturn(repo *repositories.PurchaseRepository, ol *models.PurchaseOrderLine, rl *models.ReturnLine) error {
	if rl.SourceSeqID == "" {
		ol.SetStatus(ol.Status.WithReturn(rl.SeqID, rl.Qty, rl.Status))
		return repo.SaveOrderLine(ol)
	}
	bo, err := repo.LockBackorder(rl.SourceSeqID)
	if err != nil {
		return err
	}
	bo.SetStatus(bo.Status.WithReturn(rl.SeqID, rl.Qty, rl.Status))
	return repo.SaveBackorder(bo)
}

// settle closes the request line behind ol once ol and everything descended
// from it is closed.
func (p *PurchaseService) settle(tx *gorm.DB, actor Actor, ol *models.PurchaseOrderLine) ([]Event, error) {
	if ol.Status.Open() {
		return nil, nil
	}
	repo := repositories.NewPurchaseRepository(tx)
	received := ol.ReceivedQty
	bos, err := repo.Backorders(ol.ID)
	if err != nil {
		return nil, err
	}
	for _, bo := range bos {
		if bo.Status.Open() {
			return nil, nil
		}
		received += bo.ReceivedQty
	}
	rls, err := repo.ReturnLines(ol.ID)
	if err != nil {
		return nil, err
	}
	for _, rl := range rls {
		if !workflow.ReturnLineClosed(rl.Status) {
			return nil, nil
		}
		if rl.Status == workflow.ReturnWarehouseIn {
			received += rl.Qty
		}
	}

	requests := repositories.NewRequestRepository(tx)
	line, err := requests.LockLine(ol.RequestLineID)
	if err != nil {
		return nil, err
	}
	if line.Status != workflow.StatusDeliveryPending {
		return nil, nil
	}
	if err := line.Track.CheckTransition(line.Status, workflow.StatusWarehouseIn); err != nil {
		return nil, apperr.Integrity("request line", "%v", err)
	}
	line.Status = workflow.StatusWarehouseIn
	line.Notes = line.Notes.Append(types.Note{At: now(), Actor: actor.String(), Content: fmt.Sprintf("Received %d of %d under %s", received, line.Qty, ol.PONumber)})
	if err := requests.SaveLine(line); err != nil {
		return nil, err
	}
	parent, err := requests.GetParentByID(line.ParentID)
	if err != nil {
		return nil, err
	}
	return []Event{requestEvent(parent, actor, workflow.StatusWarehouseIn, 1)}, nil
}

func receiptEvent(r *receivable, actor Actor, audiences ...string) Event {
	rc := r.ReceiptPart()
	entity, ref := models.EntityPurchaseOrder, r.OrderNo()
	if r.backorder != nil {
		entity, ref = models.EntityBackorder, r.backorder.SeqID
	}
	return Event{
		EntityType: entity,
		EntityRef:  ref,
		Message:    fmt.Sprintf("%s: %s", r.Ref(), rc.StatusText),
		StatusTag:  rc.Status.Base,
		Audiences:  audiences,
		ActorID:    actor.UserID,
	}
}

func backorderEvent(bo *models.BackorderLine, actor Actor) Event {
	return Event{
		EntityType: models.EntityBackorder,
		EntityRef:  bo.SeqID,
		Message:    fmt.Sprintf("%s: %d of %s backordered", bo.SeqID, bo.Qty, bo.PONumber),
		StatusTag:  bo.Status.Base,
		Audiences:  []string{config.AudiencePurchase, config.AudienceInventory},
		ActorID:    actor.UserID,
	}
}

func returnLineEvent(rl *models.ReturnLine, actor Actor) Event {
	return Event{
		EntityType: models.EntityReturnLine,
		EntityRef:  rl.SeqID,
		Message:    fmt.Sprintf("%s: %d of %s %s", rl.SeqID, rl.Qty, rl.PONumber, rl.Status),
		StatusTag:  rl.Status,
		Audiences:  []string{config.AudiencePurchase},
		ActorID:    actor.UserID,
	}
}
