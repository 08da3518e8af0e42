package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"materials-erp/apperr"
	"materials-erp/config"
	"materials-erp/models"
	"materials-erp/repositories"
	"materials-erp/storage"
	"materials-erp/types"
	"materials-erp/workflow"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// PurchaseService turns CEO-approved procurement lines into purchase orders
// and carries the order lines through delivery, quality check and warehouse
// in, including backorders and vendor returns.
type PurchaseService struct {
	db       *gorm.DB
	stages   workflow.StageTable
	seq      *SequenceIssuer
	stock    *StockService
	notifier *NotificationService
	blobs    storage.BlobStore
	poPrefix string
}

func NewPurchaseService(db *gorm.DB, stages workflow.StageTable, seq *SequenceIssuer, stock *StockService, notifier *NotificationService, blobs storage.BlobStore, poPrefix string) *PurchaseService {
	return &PurchaseService{
		db:       db,
		stages:   stages,
		seq:      seq,
		stock:    stock,
		notifier: notifier,
		blobs:    blobs,
		poPrefix: poPrefix,
	}
}

type OrderLineInput struct {
	RequestLineID uint             `json:"request_line_id" validate:"required"`
	Qty           *int             `json:"qty" validate:"omitempty,min=1"`
	UnitPrice     *decimal.Decimal `json:"unit_price"`
}

type PurchaseOrderInput struct {
	VendorName string           `json:"vendor_name" validate:"required"`
	Prefix     string           `json:"prefix" validate:"max=16"`
	Lines      []OrderLineInput `json:"lines" validate:"required,min=1,dive"`
	Comment    string           `json:"comment"`
}

// CreatePurchaseOrder raises one purchase order over CEO-approved lines and
// moves them to Material Delivery Pending.
func (p *PurchaseService) CreatePurchaseOrder(ctx context.Context, actor Actor, in PurchaseOrderInput) (*models.PurchaseOrder, error) {
	if err := validateInput("purchase order", in); err != nil {
		return nil, err
	}
	if !p.canPurchase(actor) {
		return nil, apperr.Authorization("purchase order", "only purchase may raise purchase orders")
	}
	seen := map[uint]bool{}
	for _, li := range in.Lines {
		if seen[li.RequestLineID] {
			return nil, apperr.Validation("request line", "line %d is listed twice", li.RequestLineID)
		}
		if li.UnitPrice != nil && li.UnitPrice.IsNegative() {
			return nil, apperr.Validation("request line", "line %d: unit price cannot be negative", li.RequestLineID)
		}
		seen[li.RequestLineID] = true
	}

	prefix := in.Prefix
	if prefix == "" {
		prefix = p.poPrefix
	}

	var poNumber string
	err := runTx(ctx, p.db, p.notifier, func(tx *gorm.DB, out *Outbox) error {
		var err error
		if poNumber, err = p.seq.NextPO(tx, prefix); err != nil {
			return err
		}
		po := &models.PurchaseOrder{
			PONumber:      poNumber,
			VendorName:    in.VendorName,
			CreatedBy:     actor.UserID,
			CreatedByName: actor.Name,
		}

		requests := repositories.NewRequestRepository(tx)
		parents := map[uint]int{}
		var parentOrder []uint
		for _, li := range in.Lines {
			l, err := requests.LockLine(li.RequestLineID)
			if err != nil {
				return err
			}
			if l.Track != workflow.TrackProcurement || l.Status != workflow.StatusCEODone {
				return apperr.Conflict("request line", "line %d is %s; only CEO-approved procurement lines can be ordered", l.ID, l.Status)
			}
			if li.Qty != nil && *li.Qty != l.Qty {
				reviseQty(l, actor, *li.Qty, "Ordered under "+poNumber)
			}
			if li.UnitPrice != nil {
				l.UnitPrice = *li.UnitPrice
			}
			if err := l.Track.CheckTransition(l.Status, workflow.StatusDeliveryPending); err != nil {
				return apperr.Integrity("request line", "%v", err)
			}
			content := noteFor("", in.Comment, fmt.Sprintf("Ordered %d from %s under %s", l.Qty, in.VendorName, poNumber))
			l.Notes = l.Notes.Append(types.Note{At: now(), Actor: actor.String(), Content: content})
			l.VendorName = in.VendorName
			l.Status = workflow.StatusDeliveryPending
			if err := requests.SaveLine(l); err != nil {
				return err
			}

			ol := models.PurchaseOrderLine{
				PONumber:      poNumber,
				RequestLineID: l.ID,
				RequestNo:     l.RequestNo,
				ComponentID:   l.ComponentID,
				OrderedQty:    l.Qty,
				UnitPrice:     l.UnitPrice,
				VendorName:    in.VendorName,
			}
			ol.SetStatus(workflow.NewReceiptStatus(workflow.ReceiptDeliveryPending))
			po.Lines = append(po.Lines, ol)

			if parents[l.ParentID] == 0 {
				parentOrder = append(parentOrder, l.ParentID)
			}
			parents[l.ParentID]++
		}

		if err := repositories.NewPurchaseRepository(tx).CreateOrder(po); err != nil {
			return err
		}
		if err := recordHistory(tx, actor, poNumber, workflow.ReceiptDeliveryPending, "purchase_order", fmt.Sprintf("%s, %d line(s)", in.VendorName, len(po.Lines))); err != nil {
			return err
		}

		events := []Event{{
			EntityType: models.EntityPurchaseOrder,
			EntityRef:  poNumber,
			Message:    fmt.Sprintf("%s raised on %s: %d line(s) awaiting delivery", poNumber, in.VendorName, len(po.Lines)),
			StatusTag:  workflow.ReceiptDeliveryPending,
			Audiences:  []string{config.AudienceInventory},
			ActorID:    actor.UserID,
		}}
		for _, id := range parentOrder {
			parent, err := requests.GetParentByID(id)
			if err != nil {
				return err
			}
			ev := requestEvent(parent, actor, workflow.StatusDeliveryPending, parents[id])
			ev.Audiences = []string{config.AudienceRequester}
			events = append(events, ev)
		}
		return p.notifier.Record(tx, out, events...)
	})
	if err != nil {
		return nil, err
	}
	return p.GetOrder(poNumber)
}

func (p *PurchaseService) GetOrder(poNumber string) (*models.PurchaseOrder, error) {
	return repositories.NewPurchaseRepository(p.db).GetOrder(poNumber)
}

func (p *PurchaseService) ListOrders() ([]models.PurchaseOrder, error) {
	return repositories.NewPurchaseRepository(p.db).ListOrders()
}

// OrderLineView is a purchase order line with every backorder and return
// line descended from it.
type OrderLineView struct {
	Line        models.PurchaseOrderLine `json:"line"`
	Backorders  []models.BackorderLine   `json:"backorders"`
	ReturnLines []models.ReturnLine      `json:"return_lines"`
}

func (p *PurchaseService) Receiving(poNumber string) ([]OrderLineView, error) {
	po, err := p.GetOrder(poNumber)
	if err != nil {
		return nil, err
	}
	repo := repositories.NewPurchaseRepository(p.db)
	views := make([]OrderLineView, 0, len(po.Lines))
	for _, l := range po.Lines {
		bos, err := repo.Backorders(l.ID)
		if err != nil {
			return nil, err
		}
		rls, err := repo.ReturnLines(l.ID)
		if err != nil {
			return nil, err
		}
		views = append(views, OrderLineView{Line: l, Backorders: bos, ReturnLines: rls})
	}
	return views, nil
}

// AttachDocument stores a document of a purchase order in the blob store.
func (p *PurchaseService) AttachDocument(ctx context.Context, actor Actor, poNumber, filename, contentType string, body io.Reader) (*models.PurchaseOrderDocument, error) {
	if !p.canPurchase(actor) {
		return nil, apperr.Authorization("purchase order", "only purchase may attach documents")
	}
	if p.blobs == nil {
		return nil, apperr.Validation("purchase order", "document storage is not configured")
	}
	if filename == "" {
		return nil, apperr.Validation("purchase order", "file name is required")
	}
	po, err := p.GetOrder(poNumber)
	if err != nil {
		return nil, err
	}

	key := storage.DocumentKey(po.PONumber, filename)
	url, err := p.blobs.Put(ctx, key, body, contentType)
	if err != nil {
		return nil, err
	}
	doc := &models.PurchaseOrderDocument{
		PurchaseOrderID: po.ID,
		PONumber:        po.PONumber,
		Name:            filename,
		ObjectKey:       key,
		URL:             url,
		UploadedBy:      actor.UserID,
	}
	if err := repositories.NewPurchaseRepository(p.db.WithContext(ctx)).CreateDocument(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// ExportOrder renders a purchase order and its receiving state as xlsx.
func (p *PurchaseService) ExportOrder(poNumber string) (*bytes.Buffer, error) {
	views, err := p.Receiving(poNumber)
	if err != nil {
		return nil, err
	}
	po, err := p.GetOrder(poNumber)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := po.PONumber
	f.SetSheetName("Sheet1", sheet)
	f.SetCellValue(sheet, "A1", "Vendor")
	f.SetCellValue(sheet, "B1", po.VendorName)

	headers := []string{"Ref", "Request", "Component", "Qty", "Unit price", "Cost", "Delivered", "Received", "Status"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 3)
		f.SetCellValue(sheet, cell, h)
	}

	row := 4
	total := decimal.Zero
	put := func(values ...interface{}) {
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			f.SetCellValue(sheet, cell, v)
		}
		row++
	}
	for _, v := range views {
		l := v.Line
		total = total.Add(l.LineCost())
		put(l.Ref(), l.RequestNo, l.ComponentID, l.OrderedQty, l.UnitPrice.StringFixed(2), l.LineCost().StringFixed(2), l.DeliveredQty, l.ReceivedQty, l.StatusText)
		for _, bo := range v.Backorders {
			put(bo.SeqID, l.RequestNo, bo.ComponentID, bo.Qty, "", "", bo.DeliveredQty, bo.ReceivedQty, bo.StatusText)
		}
		for _, rl := range v.ReturnLines {
			put(rl.SeqID, l.RequestNo, rl.ComponentID, rl.Qty, "", "", "", "", rl.Status)
		}
	}
	put("Total", "", "", "", "", total.StringFixed(2))

	return f.WriteToBuffer()
}

func (p *PurchaseService) canPurchase(actor Actor) bool {
	return actor.Role.IsAdmin() || actor.Role.In(workflow.DepartmentPurchase) || p.stages[actor.Role.Raw] == workflow.StagePurchase
}

func (p *PurchaseService) canReceive(actor Actor) bool {
	return canManageStock(actor) || p.stages[actor.Role.Raw] == workflow.StageInventory
}

func (p *PurchaseService) canInspect(actor Actor) bool {
	return actor.Role.IsAdmin() || actor.Role.In(workflow.DepartmentQuality)
}
