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

	"golang.org/x/exp/slices"
	"gorm.io/gorm"
)

type ReturnInput struct {
	LineID uint   `json:"line_id" validate:"required"`
	Qty    int    `json:"qty" validate:"required,min=1"`
	Reason string `json:"reason" validate:"required"`
}

type ReturnDecisionInput struct {
	ReturnNo string `json:"return_no" validate:"required"`
	Comment  string `json:"comment"`
}

var openReturnStatuses = []string{workflow.MaterialReturnHeadPending, workflow.MaterialReturnInventoryPending}

// RequestReturn raises an MRN<n> return of issued material. The returnable
// quantity is what was issued less earlier and pending returns.
func (s *RequestService) RequestReturn(ctx context.Context, actor Actor, in ReturnInput) (*models.MaterialReturn, error) {
	if err := validateInput("material return", in); err != nil {
		return nil, err
	}
	repo := repositories.NewRequestRepository(s.db)
	line, err := repo.GetLine(in.LineID)
	if err != nil {
		return nil, err
	}
	parent, err := repo.GetParentByID(line.ParentID)
	if err != nil {
		return nil, err
	}
	if parent.RequesterID != actor.UserID && !actor.Role.IsAdmin() {
		return nil, apperr.Authorization("material return", "only the requester may return material of %s", parent.RequestNo)
	}

	var ret *models.MaterialReturn
	err = runTx(ctx, s.db, s.notifier, func(tx *gorm.DB, out *Outbox) error {
		line, err := repositories.NewRequestRepository(tx).LockLine(in.LineID)
		if err != nil {
			return err
		}
		if line.Status != workflow.StatusIssued {
			return apperr.Conflict("request line", "line %d is %s; only issued material can be returned", line.ID, line.Status)
		}
		stock := repositories.NewStockRepository(tx)
		pending, err := stock.OpenReturnQty(line.ID, openReturnStatuses)
		if err != nil {
			return err
		}
		if avail := line.IssuedQty - line.ReturnedQty - pending; in.Qty > avail {
			return apperr.Conflict("request line", "line %d: only %d can be returned", line.ID, avail)
		}

		no, err := s.seq.Next(tx, SeqMaterialReturn)
		if err != nil {
			return err
		}
		ret = &models.MaterialReturn{
			ReturnNo:      no,
			LineID:        line.ID,
			ParentID:      parent.ID,
			RequestNo:     parent.RequestNo,
			ComponentID:   line.ComponentID,
			Qty:           in.Qty,
			Status:        workflow.MaterialReturnHeadPending,
			Reason:        in.Reason,
			Notes:         types.NewNoteLog(types.Note{At: now(), Actor: actor.String(), Content: in.Reason}),
			RequesterID:   actor.UserID,
			RequesterName: actor.Name,
			Department:    parent.Department,
		}
		if err := stock.CreateReturn(ret); err != nil {
			return err
		}
		if err := recordHistory(tx, actor, no, ret.Status, "material_return", fmt.Sprintf("%s line %d qty %d", parent.RequestNo, line.ID, in.Qty)); err != nil {
			return err
		}
		return s.notifier.Record(tx, out, returnEvent(ret, actor, config.AudienceDepartmentHead))
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// ApproveReturn moves a return one stage forward. The inventory approval
// puts the quantity back into stock.
func (s *RequestService) ApproveReturn(ctx context.Context, actor Actor, in ReturnDecisionInput) (*models.MaterialReturn, error) {
	return s.decideReturn(ctx, actor, in, true)
}

func (s *RequestService) RejectReturn(ctx context.Context, actor Actor, in ReturnDecisionInput) (*models.MaterialReturn, error) {
	return s.decideReturn(ctx, actor, in, false)
}

func (s *RequestService) decideReturn(ctx context.Context, actor Actor, in ReturnDecisionInput, approve bool) (*models.MaterialReturn, error) {
	if err := validateInput("material return", in); err != nil {
		return nil, err
	}
	current, err := repositories.NewStockRepository(s.db).GetReturn(in.ReturnNo)
	if err != nil {
		return nil, err
	}
	_, stage, ok := workflow.NextMaterialReturn(current.Status)
	if !ok {
		return nil, apperr.Conflict("material return", "%s is %s", current.ReturnNo, current.Status)
	}
	if !actor.Role.IsAdmin() && !slices.Contains(s.stages.StagesFor(actor.Role, current.Department), stage) {
		return nil, apperr.Authorization("material return", "role %q cannot act at %s stage", actor.Role.Raw, stage)
	}

	var ret *models.MaterialReturn
	err = runTx(ctx, s.db, s.notifier, func(tx *gorm.DB, out *Outbox) error {
		stock := repositories.NewStockRepository(tx)
		var err error
		if ret, err = stock.LockReturn(in.ReturnNo); err != nil {
			return err
		}
		if ret.Status != current.Status {
			return apperr.Conflict("material return", "%s changed to %s", ret.ReturnNo, ret.Status)
		}
		next, _, _ := workflow.NextMaterialReturn(ret.Status)

		if !approve {
			ret.Status = workflow.MaterialReturnRejected
			ret.Notes = ret.Notes.Append(types.Note{At: now(), Actor: actor.String(), Content: noteFor("", in.Comment, fmt.Sprintf("%s rejected", stage))})
			if err := stock.SaveReturn(ret); err != nil {
				return err
			}
			if err := recordHistory(tx, actor, ret.ReturnNo, ret.Status, "material_return", in.Comment); err != nil {
				return err
			}
			return s.notifier.Record(tx, out, returnEvent(ret, actor, config.AudienceRequester))
		}

		if next == workflow.MaterialReturned {
			if _, err := s.stock.receive(tx, actor, ret.ComponentID, ret.Qty, models.StockTxReturn, ret.ReturnNo); err != nil {
				return err
			}
			lines := repositories.NewRequestRepository(tx)
			line, err := lines.LockLine(ret.LineID)
			if err != nil {
				return err
			}
			if line.IssuedQty-line.ReturnedQty < ret.Qty {
				return apperr.Conflict("request line", "line %d: return %s exceeds the issued quantity", line.ID, ret.ReturnNo)
			}
			line.ReturnedQty += ret.Qty
			line.Notes = line.Notes.Append(types.Note{At: now(), Actor: actor.String(), Content: fmt.Sprintf("Returned %d under %s", ret.Qty, ret.ReturnNo)})
			if err := lines.SaveLine(line); err != nil {
				return err
			}
		}

		ret.Status = next
		ret.Notes = ret.Notes.Append(types.Note{At: now(), Actor: actor.String(), Content: noteFor("", in.Comment, fmt.Sprintf("%s approved", stage))})
		if err := stock.SaveReturn(ret); err != nil {
			return err
		}
		if err := recordHistory(tx, actor, ret.ReturnNo, ret.Status, "material_return", in.Comment); err != nil {
			return err
		}
		audience := config.AudienceRequester
		if next == workflow.MaterialReturnInventoryPending {
			audience = config.AudienceInventory
		}
		return s.notifier.Record(tx, out, returnEvent(ret, actor, audience))
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *RequestService) GetReturn(returnNo string) (*models.MaterialReturn, error) {
	return repositories.NewStockRepository(s.db).GetReturn(returnNo)
}

func (s *RequestService) OpenReturns() ([]models.MaterialReturn, error) {
	return repositories.NewStockRepository(s.db).ReturnsByStatus(openReturnStatuses)
}

func returnEvent(ret *models.MaterialReturn, actor Actor, audience string) Event {
	ev := Event{
		EntityType: models.EntityMaterialReturn,
		EntityRef:  ret.ReturnNo,
		Message:    fmt.Sprintf("%s: return of %d from %s is %s", ret.ReturnNo, ret.Qty, ret.RequestNo, ret.Status),
		StatusTag:  ret.Status,
		Audiences:  []string{audience},
		Department: ret.Department,
		ActorID:    actor.UserID,
	}
	if audience == config.AudienceRequester {
		ev.Users = []uint{ret.RequesterID}
	}
	return ev
}
