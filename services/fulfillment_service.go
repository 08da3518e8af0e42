package services

import (
	"context"
	"fmt"
	"materials-erp/apperr"
	"materials-erp/models"
	"materials-erp/repositories"
	"materials-erp/types"
	"materials-erp/workflow"

	"golang.org/x/exp/slices"
	"gorm.io/gorm"
)

type IssueItem struct {
	LineID    uint   `json:"line_id" validate:"required"`
	IssuedQty *int   `json:"issued_qty" validate:"omitempty,min=0"`
	Remark    string `json:"remark"`
}

type IssueInput struct {
	RequestNo string      `json:"request_no" validate:"required"`
	Lines     []IssueItem `json:"lines" validate:"dive"`
	Comment   string      `json:"comment"`
}

type ConfirmInput struct {
	RequestNo string `json:"request_no" validate:"required"`
	LineIDs   []uint `json:"line_ids"`
	Comment   string `json:"comment"`
}

type issueItem struct {
	line   *models.RequestLine
	qty    int
	remark string
}

// Issue is the inventory approval of a direct request: it takes the issued
// quantities out of stock, records one MI<n> issue and moves the lines to
// Receiving Pending. Lines not named are issued in full.
func (s *RequestService) Issue(ctx context.Context, actor Actor, in IssueInput) (*Result, error) {
	if err := validateInput("request", in); err != nil {
		return nil, err
	}
	named := map[uint]IssueItem{}
	for _, it := range in.Lines {
		if _, dup := named[it.LineID]; dup {
			return nil, apperr.Validation("request line", "line %d is listed twice", it.LineID)
		}
		named[it.LineID] = it
	}
	parent, stages, err := s.authorize(actor, in.RequestNo)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(stages, workflow.StageInventory) {
		return nil, apperr.Authorization("request", "only inventory may issue material")
	}
	if parent.Track != workflow.TrackDirect {
		return nil, apperr.Conflict("request", "%s is a procurement request; it is received through a purchase order", parent.RequestNo)
	}

	res := &Result{RequestNo: parent.RequestNo, Stage: workflow.StageInventory}
	err = runTx(ctx, s.db, s.notifier, func(tx *gorm.DB, out *Outbox) error {
		res.Affected, res.Lines, res.IssueNo = 0, nil, ""
		_, lines, err := s.lockRequest(tx, parent.RequestNo)
		if err != nil {
			return err
		}
		for id := range named {
			if !slices.ContainsFunc(lines, func(l models.RequestLine) bool { return l.ID == id }) {
				return apperr.Validation("request line", "line %d is not part of %s", id, parent.RequestNo)
			}
		}

		ready := parent.Track.FulfillmentReady()
		var items []issueItem
		open := false
		for i := range lines {
			l := &lines[i]
			it, isNamed := named[l.ID]
			open = open || !l.Terminal()
			if l.Status != ready {
				if isNamed && !l.Terminal() {
					return apperr.Conflict("request line", "line %d is %s and not awaiting issue", l.ID, l.Status)
				}
				continue
			}
			item := issueItem{line: l, qty: l.Qty}
			if isNamed {
				if it.IssuedQty != nil {
					item.qty = *it.IssuedQty
				}
				item.remark = it.Remark
			}
			items = append(items, item)
		}
		if len(items) == 0 {
			if open {
				return apperr.Conflict("request", "nothing in %s awaits issue", parent.RequestNo)
			}
			return nil
		}

		issueNo, err := s.issueLines(tx, actor, parent, items, in.Comment)
		if err != nil {
			return err
		}
		res.IssueNo = issueNo
		for _, it := range items {
			res.add(it.line)
		}

		if err := recordHistory(tx, actor, parent.RequestNo, workflow.StatusReceivingPending, "request_issue", issueNo); err != nil {
			return err
		}
		return s.notifier.Record(tx, out, resultEvents(parent, actor, res.Lines)...)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// issueLines posts the stock movements of items under one new issue number
// and moves each line to the awaiting-confirmation status.
func (s *RequestService) issueLines(tx *gorm.DB, actor Actor, parent *models.ParentRequest, items []issueItem, comment string) (string, error) {
	issueNo, err := s.seq.Next(tx, SeqIssue)
	if err != nil {
		return "", err
	}
	issue := &models.MaterialIssue{
		IssueNo:      issueNo,
		ParentID:     parent.ID,
		RequestNo:    parent.RequestNo,
		IssuedBy:     actor.UserID,
		IssuedByName: actor.Name,
		Remark:       comment,
	}

	repo := repositories.NewRequestRepository(tx)
	for _, it := range items {
		l := it.line
		if it.qty < 0 || it.qty > l.Qty {
			return "", apperr.Validation("request line", "line %d: issued quantity %d is outside 0..%d", l.ID, it.qty, l.Qty)
		}
		if it.qty != l.Qty && it.remark == "" {
			return "", apperr.Validation("request line", "line %d: a remark is required when issuing %d of %d", l.ID, it.qty, l.Qty)
		}
		if it.qty > 0 {
			if _, err := s.stock.issue(tx, actor, l.ComponentID, it.qty, issueNo); err != nil {
				return "", err
			}
		}

		next := parent.Track.AwaitingConfirmation()
		if err := l.Track.CheckTransition(l.Status, next); err != nil {
			return "", apperr.Integrity("request line", "%v", err)
		}
		content := noteFor(it.remark, comment, fmt.Sprintf("Issued %d of %d under %s", it.qty, l.Qty, issueNo))
		l.Notes = l.Notes.Append(types.Note{At: now(), Actor: actor.String(), Content: content})
		l.IssuedQty = it.qty
		l.Status = next
		if err := repo.SaveLine(l); err != nil {
			return "", err
		}

		issue.Items = append(issue.Items, models.MaterialIssueItem{
			LineID:       l.ID,
			ComponentID:  l.ComponentID,
			RequestedQty: l.Qty,
			IssuedQty:    it.qty,
			Remark:       it.remark,
		})
	}

	if err := repositories.NewStockRepository(tx).CreateIssue(issue); err != nil {
		return "", err
	}
	return issueNo, nil
}

// Confirm records that the requester received issued material. Confirming
// a line twice is a no-op. Without named lines, a request whose open lines
// are not yet issued is a conflict.
func (s *RequestService) Confirm(ctx context.Context, actor Actor, in ConfirmInput) (*Result, error) {
	if err := validateInput("request", in); err != nil {
		return nil, err
	}
	parent, err := repositories.NewRequestRepository(s.db).GetParent(in.RequestNo)
	if err != nil {
		return nil, err
	}
	if parent.RequesterID != actor.UserID && !actor.Role.IsAdmin() {
		return nil, apperr.Authorization("request", "only the requester may confirm receipt of %s", parent.RequestNo)
	}
	if parent.Track != workflow.TrackDirect {
		return nil, apperr.Conflict("request", "%s is a procurement request", parent.RequestNo)
	}
	named := map[uint]bool{}
	for _, id := range in.LineIDs {
		named[id] = true
	}

	res := &Result{RequestNo: parent.RequestNo}
	err = runTx(ctx, s.db, s.notifier, func(tx *gorm.DB, out *Outbox) error {
		res.Affected, res.Lines = 0, nil
		_, lines, err := s.lockRequest(tx, parent.RequestNo)
		if err != nil {
			return err
		}
		repo := repositories.NewRequestRepository(tx)
		awaiting, done := parent.Track.AwaitingConfirmation(), parent.Track.Fulfilled()
		seen, open := 0, false
		for i := range lines {
			l := &lines[i]
			if len(named) > 0 && !named[l.ID] {
				continue
			}
			seen++
			open = open || !l.Terminal()
			switch l.Status {
			case awaiting:
			case done:
				continue
			default:
				if named[l.ID] {
					return apperr.Conflict("request line", "line %d is %s and not awaiting confirmation", l.ID, l.Status)
				}
				continue
			}
			if err := l.Track.CheckTransition(l.Status, done); err != nil {
				return apperr.Integrity("request line", "%v", err)
			}
			content := noteFor("", in.Comment, fmt.Sprintf("Received %d", l.IssuedQty))
			l.Notes = l.Notes.Append(types.Note{At: now(), Actor: actor.String(), Content: content})
			l.Status = done
			if err := repo.SaveLine(l); err != nil {
				return err
			}
			res.add(l)
		}
		if seen < len(named) {
			return apperr.Validation("request line", "some lines are not part of %s", parent.RequestNo)
		}
		if res.Affected == 0 {
			if len(named) == 0 && open {
				return apperr.Conflict("request", "nothing in %s awaits confirmation", parent.RequestNo)
			}
			return nil
		}
		return recordHistory(tx, actor, parent.RequestNo, done, "request_confirm", fmt.Sprintf("%d line(s)", res.Affected))
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *RequestService) Issues(requestNo string) ([]models.MaterialIssue, error) {
	parent, err := repositories.NewRequestRepository(s.db).GetParent(requestNo)
	if err != nil {
		return nil, err
	}
	return repositories.NewStockRepository(s.db).IssuesForRequest(parent.ID)
}

func (s *RequestService) GetIssue(issueNo string) (*models.MaterialIssue, error) {
	return repositories.NewStockRepository(s.db).GetIssue(issueNo)
}
