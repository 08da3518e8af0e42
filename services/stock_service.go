package services

import (
	"bytes"
	"context"
	"fmt"
	"materials-erp/apperr"
	"materials-erp/models"
	"materials-erp/repositories"
	"materials-erp/workflow"
	"time"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// StockService owns the on-hand balances and the stock card. Balances only
// change through issue and receive, each of which posts one card entry.
type StockService struct {
	db *gorm.DB
}

func NewStockService(db *gorm.DB) *StockService {
	return &StockService{db: db}
}

// issue takes qty out of stock inside tx and returns the new balance.
func (s *StockService) issue(tx *gorm.DB, actor Actor, componentID uint, qty int, refNo string) (int, error) {
	if qty <= 0 {
		return 0, apperr.Validation("component", "issue quantity must be positive")
	}
	repo := repositories.NewStockRepository(tx)
	balance, err := repo.Decrement(componentID, qty)
	if err != nil {
		return 0, err
	}
	return balance, repo.AppendCard(&models.StockCardEntry{
		ComponentID: componentID,
		TxType:      models.StockTxIssue,
		Qty:         -qty,
		Balance:     balance,
		RefNo:       refNo,
		ActorID:     actor.UserID,
		ActorName:   actor.Name,
	})
}

// receive puts qty into stock inside tx and returns the new balance.
func (s *StockService) receive(tx *gorm.DB, actor Actor, componentID uint, qty int, txType, refNo string) (int, error) {
	if qty <= 0 {
		return 0, apperr.Validation("component", "receipt quantity must be positive")
	}
	repo := repositories.NewStockRepository(tx)
	balance, err := repo.Increment(componentID, qty)
	if err != nil {
		return 0, err
	}
	return balance, repo.AppendCard(&models.StockCardEntry{
		ComponentID: componentID,
		TxType:      txType,
		Qty:         qty,
		Balance:     balance,
		RefNo:       refNo,
		ActorID:     actor.UserID,
		ActorName:   actor.Name,
	})
}

type ComponentInput struct {
	Code        string `json:"code" validate:"required,max=64"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Location    string `json:"location" validate:"max=64"`
	Uom         string `json:"uom" validate:"max=16"`
}

func (s *StockService) CreateComponent(actor Actor, in ComponentInput) (*models.Component, error) {
	if err := validateInput("component", in); err != nil {
		return nil, err
	}
	if !canManageStock(actor) {
		return nil, apperr.Authorization("component", "only inventory may register components")
	}
	repo := repositories.NewStockRepository(s.db)
	if _, err := repo.GetComponentByCode(in.Code); err == nil {
		return nil, apperr.Integrity("component", "component code %s is already registered", in.Code)
	} else if !apperr.Is(err, apperr.KindNotFound) {
		return nil, err
	}
	c := &models.Component{
		Code:        in.Code,
		Name:        in.Name,
		Description: in.Description,
		Location:    in.Location,
		Uom:         in.Uom,
	}
	if err := repo.CreateComponent(c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *StockService) ListComponents(search string) ([]models.Component, error) {
	return repositories.NewStockRepository(s.db).ListComponents(search)
}

func (s *StockService) GetComponent(id uint) (*models.Component, error) {
	return repositories.NewStockRepository(s.db).GetComponent(id)
}

type OpeningInput struct {
	ComponentID uint   `json:"component_id" validate:"required"`
	Qty         int    `json:"qty" validate:"required,min=1"`
	RefNo       string `json:"ref_no" validate:"max=32"`
}

// OpeningReceipt books initial or counted stock onto a component.
func (s *StockService) OpeningReceipt(ctx context.Context, actor Actor, in OpeningInput) (int, error) {
	if err := validateInput("component", in); err != nil {
		return 0, err
	}
	if !canManageStock(actor) {
		return 0, apperr.Authorization("component", "only inventory may book opening stock")
	}
	ref := in.RefNo
	if ref == "" {
		ref = "OPENING"
	}
	var balance int
	err := runTx(ctx, s.db, nil, func(tx *gorm.DB, _ *Outbox) error {
		var err error
		if balance, err = s.receive(tx, actor, in.ComponentID, in.Qty, models.StockTxOpening, ref); err != nil {
			return err
		}
		return recordHistory(tx, actor, ref, "Posted", "stock_opening", fmt.Sprintf("component %d +%d", in.ComponentID, in.Qty))
	})
	return balance, err
}

func (s *StockService) Card(componentID uint, from, to time.Time) ([]models.StockCardEntry, error) {
	if _, err := s.GetComponent(componentID); err != nil {
		return nil, err
	}
	return repositories.NewStockRepository(s.db).Card(componentID, from, to)
}

// ExportCard renders the stock card of a component as an xlsx workbook.
func (s *StockService) ExportCard(componentID uint, from, to time.Time) (*bytes.Buffer, error) {
	c, err := s.GetComponent(componentID)
	if err != nil {
		return nil, err
	}
	entries, err := repositories.NewStockRepository(s.db).Card(componentID, from, to)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Stock Card"
	f.SetSheetName("Sheet1", sheet)
	f.SetCellValue(sheet, "A1", "Component")
	f.SetCellValue(sheet, "B1", fmt.Sprintf("%s - %s", c.Code, c.Name))
	f.SetCellValue(sheet, "A2", "On hand")
	f.SetCellValue(sheet, "B2", c.OnHand)

	headers := []string{"Date", "Type", "Reference", "Qty", "Balance", "By"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 4)
		f.SetCellValue(sheet, cell, h)
	}
	for i, e := range entries {
		row := i + 5
		values := []interface{}{e.CreatedAt.Format("2006-01-02 15:04:05"), e.TxType, e.RefNo, e.Qty, e.Balance, e.ActorName}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			f.SetCellValue(sheet, cell, v)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func canManageStock(actor Actor) bool {
	return actor.Role.IsAdmin() || actor.Role.In(workflow.DepartmentInventory)
}
