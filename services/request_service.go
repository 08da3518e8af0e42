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
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/exp/slices"
	"gorm.io/gorm"
)

// RequestService runs the request-line state machine of both tracks:
// submission, stage approvals and rejections, cancellation, issue and
// confirmation of direct requests, and material returns.
type RequestService struct {
	db       *gorm.DB
	stages   workflow.StageTable
	seq      *SequenceIssuer
	stock    *StockService
	notifier *NotificationService
}

func NewRequestService(db *gorm.DB, stages workflow.StageTable, seq *SequenceIssuer, stock *StockService, notifier *NotificationService) *RequestService {
	return &RequestService{db: db, stages: stages, seq: seq, stock: stock, notifier: notifier}
}

type LineInput struct {
	ComponentID uint   `json:"component_id" validate:"required"`
	Qty         int    `json:"qty" validate:"required,min=1"`
	Priority    bool   `json:"priority"`
	Remark      string `json:"remark"`
	VendorName  string `json:"vendor_name"`
}

type DraftInput struct {
	Project string      `json:"project" validate:"max=64"`
	Lines   []LineInput `json:"lines" validate:"required,min=1,dive"`
}

// LineDecision addresses one line in an approval or rejection. Unset fields
// leave the line as it is.
type LineDecision struct {
	LineID       uint             `json:"line_id" validate:"required"`
	Qty          *int             `json:"qty" validate:"omitempty,min=1"`
	Note         string           `json:"note"`
	VendorName   string           `json:"vendor_name"`
	UnitPrice    *decimal.Decimal `json:"unit_price"`
	DeliveryDate *time.Time       `json:"delivery_date"`
}

type ApproveInput struct {
	RequestNo string         `json:"request_no" validate:"required"`
	Lines     []LineDecision `json:"lines" validate:"dive"`
	Comment   string         `json:"comment"`
}

type RejectInput struct {
	RequestNo string         `json:"request_no" validate:"required"`
	Lines     []LineDecision `json:"lines" validate:"required,min=1,dive"`
	Reason    string         `json:"reason"`
}

type CancelInput struct {
	RequestNo string `json:"request_no" validate:"required"`
	LineIDs   []uint `json:"line_ids"`
	Reason    string `json:"reason" validate:"required"`
}

type TopUpInput struct {
	RequestNo string      `json:"request_no" validate:"required"`
	Lines     []LineInput `json:"lines" validate:"required,min=1,dive"`
	Comment   string      `json:"comment"`
}

type LineResult struct {
	LineID    uint   `json:"line_id"`
	Status    string `json:"status"`
	Qty       int    `json:"qty"`
	IssuedQty int    `json:"issued_qty,omitempty"`
}

// Result reports what one operation changed. Affected is zero when nothing
// was waiting on the actor.
type Result struct {
	RequestNo string         `json:"request_no"`
	Stage     workflow.Stage `json:"stage,omitempty"`
	Affected  int            `json:"affected"`
	IssueNo   string         `json:"issue_no,omitempty"`
	Lines     []LineResult   `json:"lines"`
}

func (r *Result) add(l *models.RequestLine) {
	r.Affected++
	r.Lines = append(r.Lines, LineResult{LineID: l.ID, Status: l.Status, Qty: l.Qty, IssuedQty: l.IssuedQty})
}

// CreateDraft saves an unsubmitted direct request under a DRAFT-<n> number.
func (s *RequestService) CreateDraft(ctx context.Context, actor Actor, in DraftInput) (*models.ParentRequest, error) {
	if err := validateInput("request", in); err != nil {
		return nil, err
	}
	if err := s.checkRequester(actor); err != nil {
		return nil, err
	}

	var requestNo string
	err := runTx(ctx, s.db, s.notifier, func(tx *gorm.DB, out *Outbox) error {
		no, err := s.seq.Next(tx, SeqDraft)
		if err != nil {
			return err
		}
		requestNo = no
		parent, err := s.newParent(tx, actor, workflow.TrackDirect, no, actor.Role.Department, in.Project, in.Lines, workflow.StatusDraft, "Draft created")
		if err != nil {
			return err
		}
		parent.SubmittedAt = nil
		if err := repositories.NewRequestRepository(tx).CreateParent(parent); err != nil {
			return err
		}
		return recordHistory(tx, actor, no, workflow.StatusDraft, "request_draft", fmt.Sprintf("%d line(s)", len(in.Lines)))
	})
	if err != nil {
		return nil, err
	}
	return s.GetRequest(requestNo)
}

// AddDraftLines appends lines to a draft of the actor.
func (s *RequestService) AddDraftLines(ctx context.Context, actor Actor, draftNo string, lines []LineInput) (*models.ParentRequest, error) {
	if err := validateInput("request", DraftInput{Lines: lines}); err != nil {
		return nil, err
	}
	if _, err := s.ownDraft(actor, draftNo); err != nil {
		return nil, err
	}
	err := runTx(ctx, s.db, s.notifier, func(tx *gorm.DB, out *Outbox) error {
		repo := repositories.NewRequestRepository(tx)
		parent, err := repo.LockParent(draftNo)
		if err != nil {
			return err
		}
		if !parent.IsDraft() {
			return apperr.Conflict("request", "%s is already submitted", draftNo)
		}
		built, err := s.newLines(tx, actor, parent, lines, workflow.StatusDraft, "Draft created")
		if err != nil {
			return err
		}
		for i := range built {
			if err := repo.SaveLine(&built[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetRequest(draftNo)
}

// RemoveDraftLine deletes a line from a draft. Removing the last line deletes the draft.
func (s *RequestService) RemoveDraftLine(ctx context.Context, actor Actor, draftNo string, lineID uint) error {
	if _, err := s.ownDraft(actor, draftNo); err != nil {
		return err
	}
	return runTx(ctx, s.db, s.notifier, func(tx *gorm.DB, out *Outbox) error {
		repo := repositories.NewRequestRepository(tx)
		parent, err := repo.LockParent(draftNo)
		if err != nil {
			return err
		}
		if !parent.IsDraft() {
			return apperr.Conflict("request", "%s is already submitted", draftNo)
		}
		lines, err := repo.LockLines(parent.ID)
		if err != nil {
			return err
		}
		idx := slices.IndexFunc(lines, func(l models.RequestLine) bool { return l.ID == lineID })
		if idx < 0 {
			return apperr.NotFound("request line", "line %d is not part of %s", lineID, draftNo)
		}
		if len(lines) == 1 {
			return repo.DeleteParent(parent)
		}
		return repo.DeleteLine(&lines[idx])
	})
}

// SubmitDraft numbers a draft UMI<n> and sends its lines to head approval.
func (s *RequestService) SubmitDraft(ctx context.Context, actor Actor, draftNo string) (*models.ParentRequest, error) {
	if _, err := s.ownDraft(actor, draftNo); err != nil {
		return nil, err
	}

	var requestNo string
	err := runTx(ctx, s.db, s.notifier, func(tx *gorm.DB, out *Outbox) error {
		repo := repositories.NewRequestRepository(tx)
		parent, err := repo.LockParent(draftNo)
		if err != nil {
			return err
		}
		if !parent.IsDraft() {
			return apperr.Conflict("request", "%s is already submitted", draftNo)
		}
		lines, err := repo.LockLines(parent.ID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return apperr.Validation("request", "%s has no lines", draftNo)
		}

		requestNo, err = s.seq.Next(tx, SeqDirectRequest)
		if err != nil {
			return err
		}
		at := now()
		for i := range lines {
			l := &lines[i]
			next := parent.Track.Initial()
			if err := l.Track.CheckTransition(l.Status, next); err != nil {
				return apperr.Integrity("request line", "%v", err)
			}
			l.Status = next
			l.RequestNo = requestNo
			l.Notes = l.Notes.Append(types.Note{At: at, Actor: actor.String(), Content: "Submitted"})
			if err := repo.SaveLine(l); err != nil {
				return err
			}
		}
		parent.RequestNo = requestNo
		parent.SubmittedAt = &at
		if err := repo.SaveParent(parent); err != nil {
			return err
		}

		if err := recordHistory(tx, actor, requestNo, workflow.StatusHeadPending, "request_submit", "from "+draftNo); err != nil {
			return err
		}
		return s.notifier.Record(tx, out, requestEvent(parent, actor, workflow.StatusHeadPending, len(lines)))
	})
	if err != nil {
		return nil, err
	}
	return s.GetRequest(requestNo)
}

// SubmitProcurement raises an MRF<n> procurement request straight into head approval.
func (s *RequestService) SubmitProcurement(ctx context.Context, actor Actor, in DraftInput) (*models.ParentRequest, error) {
	if err := validateInput("request", in); err != nil {
		return nil, err
	}
	if err := s.checkRequester(actor); err != nil {
		return nil, err
	}

	var requestNo string
	err := runTx(ctx, s.db, s.notifier, func(tx *gorm.DB, out *Outbox) error {
		var err error
		if requestNo, err = s.seq.Next(tx, SeqProcurementRequest); err != nil {
			return err
		}
		track := workflow.TrackProcurement
		parent, err := s.newParent(tx, actor, track, requestNo, actor.Role.Department, in.Project, in.Lines, track.Initial(), "Submitted")
		if err != nil {
			return err
		}
		if err := repositories.NewRequestRepository(tx).CreateParent(parent); err != nil {
			return err
		}
		if err := recordHistory(tx, actor, requestNo, track.Initial(), "request_submit", fmt.Sprintf("%d line(s)", len(in.Lines))); err != nil {
			return err
		}
		return s.notifier.Record(tx, out, requestEvent(parent, actor, track.Initial(), len(in.Lines)))
	})
	if err != nil {
		return nil, err
	}
	return s.GetRequest(requestNo)
}

// RaiseTopUp lets inventory cover a direct request it cannot fill from stock
// with a procurement request that starts at purchase approval. The direct
// request keeps the reference of the procurement request.
func (s *RequestService) RaiseTopUp(ctx context.Context, actor Actor, in TopUpInput) (*models.ParentRequest, error) {
	if err := validateInput("request", in); err != nil {
		return nil, err
	}
	if !canManageStock(actor) {
		return nil, apperr.Authorization("request", "only inventory may raise a top-up")
	}
	direct, err := repositories.NewRequestRepository(s.db).GetParent(in.RequestNo)
	if err != nil {
		return nil, err
	}
	if direct.Track != workflow.TrackDirect || direct.IsDraft() {
		return nil, apperr.Conflict("request", "%s is not a submitted direct request", in.RequestNo)
	}

	var requestNo string
	err = runTx(ctx, s.db, s.notifier, func(tx *gorm.DB, out *Outbox) error {
		repo := repositories.NewRequestRepository(tx)
		direct, err := repo.LockParent(in.RequestNo)
		if err != nil {
			return err
		}
		if direct.ProcurementRef != "" {
			return apperr.Conflict("request", "%s is already covered by %s", direct.RequestNo, direct.ProcurementRef)
		}
		if requestNo, err = s.seq.Next(tx, SeqProcurementRequest); err != nil {
			return err
		}

		dept := actor.Role.Department
		if dept == "" {
			dept = workflow.DepartmentInventory
		}
		note := noteFor("", in.Comment, "Top-up for "+direct.RequestNo)
		parent, err := s.newParent(tx, actor, workflow.TrackProcurement, requestNo, dept, direct.Project, in.Lines, workflow.StatusPurchasePending, note)
		if err != nil {
			return err
		}
		if err := repo.CreateParent(parent); err != nil {
			return err
		}
		direct.ProcurementRef = requestNo
		if err := repo.SaveParent(direct); err != nil {
			return err
		}

		if err := recordHistory(tx, actor, requestNo, workflow.StatusPurchasePending, "request_topup", "for "+direct.RequestNo); err != nil {
			return err
		}
		return s.notifier.Record(tx, out, requestEvent(parent, actor, workflow.StatusPurchasePending, len(in.Lines)))
	})
	if err != nil {
		return nil, err
	}
	return s.GetRequest(requestNo)
}

// Approve advances the lines waiting on the actor's stage. Lines named in
// the input may carry a revised quantity, procurement details and a note;
// every other non-terminal line at the same stage advances with them.
func (s *RequestService) Approve(ctx context.Context, actor Actor, in ApproveInput) (*Result, error) {
	if err := validateInput("request", in); err != nil {
		return nil, err
	}
	decisions, err := indexDecisions(in.Lines)
	if err != nil {
		return nil, err
	}
	parent, _, err := s.authorize(actor, in.RequestNo)
	if err != nil {
		return nil, err
	}
	label := s.labeler(actor, parent)

	res := &Result{RequestNo: parent.RequestNo}
	err = runTx(ctx, s.db, s.notifier, func(tx *gorm.DB, out *Outbox) error {
		res.Affected, res.Lines = 0, nil
		_, lines, err := s.lockRequest(tx, parent.RequestNo)
		if err != nil {
			return err
		}
		if err := checkMembership(parent.RequestNo, lines, decisions); err != nil {
			return err
		}
		stage, err := pickStage(parent.RequestNo, lines, label, decisions, parent.Track.ApprovableAt)
		if err != nil || stage == "" {
			return err
		}
		res.Stage = stage

		repo := repositories.NewRequestRepository(tx)
		pending := workflow.PendingStatus(stage)
		for i := range lines {
			l := &lines[i]
			if l.Status != pending {
				continue
			}
			if err := advance(l, actor, stage, decisions[l.ID], in.Comment); err != nil {
				return err
			}
			if err := repo.SaveLine(l); err != nil {
				return err
			}
			res.add(l)
		}

		if err := recordHistory(tx, actor, parent.RequestNo, string(stage)+" approved", "request_approve", fmt.Sprintf("%d line(s)", res.Affected)); err != nil {
			return err
		}
		return s.notifier.Record(tx, out, resultEvents(parent, actor, res.Lines)...)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Reject terminates the named lines at the actor's stage. Lines at the same
// stage that are not named advance as in Approve. At least one line must end
// up rejected.
func (s *RequestService) Reject(ctx context.Context, actor Actor, in RejectInput) (*Result, error) {
	if err := validateInput("request", in); err != nil {
		return nil, err
	}
	decisions, err := indexDecisions(in.Lines)
	if err != nil {
		return nil, err
	}
	parent, _, err := s.authorize(actor, in.RequestNo)
	if err != nil {
		return nil, err
	}
	label := s.labeler(actor, parent)

	res := &Result{RequestNo: parent.RequestNo}
	err = runTx(ctx, s.db, s.notifier, func(tx *gorm.DB, out *Outbox) error {
		res.Affected, res.Lines, res.IssueNo = 0, nil, ""
		_, lines, err := s.lockRequest(tx, parent.RequestNo)
		if err != nil {
			return err
		}
		if err := checkMembership(parent.RequestNo, lines, decisions); err != nil {
			return err
		}
		stage, err := pickStage(parent.RequestNo, lines, label, decisions, parent.Track.RejectableAt)
		if err != nil {
			return err
		}
		if stage == "" {
			return apperr.Conflict("request", "no valid pending line to reject in %s", parent.RequestNo)
		}
		res.Stage = stage

		repo := repositories.NewRequestRepository(tx)
		pending := workflow.PendingStatus(stage)
		issueSiblings := parent.Track == workflow.TrackDirect && stage == workflow.StageInventory
		var toIssue []issueItem
		rejected := 0
		for i := range lines {
			l := &lines[i]
			if l.Status != pending {
				continue
			}
			d, named := decisions[l.ID]
			switch {
			case named:
				to := l.Track.RejectStatus(stage)
				if err := l.Track.CheckTransition(l.Status, to); err != nil {
					return apperr.Integrity("request line", "%v", err)
				}
				content := noteFor(d.Note, in.Reason, fmt.Sprintf("%s rejected", stage))
				l.Notes = l.Notes.Append(types.Note{At: now(), Actor: actor.String(), Content: content})
				l.Status = to
				rejected++
			case issueSiblings:
				toIssue = append(toIssue, issueItem{line: l, qty: l.Qty})
				continue
			default:
				if err := advance(l, actor, stage, nil, ""); err != nil {
					return err
				}
			}
			if err := repo.SaveLine(l); err != nil {
				return err
			}
			res.add(l)
		}
		if rejected == 0 {
			return apperr.Conflict("request", "no valid pending line to reject in %s", parent.RequestNo)
		}
		if len(toIssue) > 0 {
			issueNo, err := s.issueLines(tx, actor, parent, toIssue, "")
			if err != nil {
				return err
			}
			res.IssueNo = issueNo
			for _, it := range toIssue {
				res.add(it.line)
			}
		}

		if err := recordHistory(tx, actor, parent.RequestNo, string(stage)+" rejected", "request_reject", fmt.Sprintf("%d rejected, %d advanced", rejected, res.Affected-rejected)); err != nil {
			return err
		}
		return s.notifier.Record(tx, out, resultEvents(parent, actor, res.Lines)...)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Cancel withdraws lines still waiting on head approval. Only the requester
// or an admin may cancel; siblings are left as they are.
func (s *RequestService) Cancel(ctx context.Context, actor Actor, in CancelInput) (*Result, error) {
	in.Reason = strings.TrimSpace(in.Reason)
	if err := validateInput("request", in); err != nil {
		return nil, err
	}
	parent, err := repositories.NewRequestRepository(s.db).GetParent(in.RequestNo)
	if err != nil {
		return nil, err
	}
	if parent.RequesterID != actor.UserID && !actor.Role.IsAdmin() {
		return nil, apperr.Authorization("request", "only the requester may cancel %s", parent.RequestNo)
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
		for id := range named {
			if !slices.ContainsFunc(lines, func(l models.RequestLine) bool { return l.ID == id }) {
				return apperr.Validation("request line", "line %d is not part of %s", id, parent.RequestNo)
			}
		}

		repo := repositories.NewRequestRepository(tx)
		for i := range lines {
			l := &lines[i]
			if len(named) > 0 && !named[l.ID] {
				continue
			}
			if l.Terminal() {
				continue
			}
			if !l.Track.CancellableAt(l.Status) {
				if named[l.ID] {
					return apperr.Conflict("request line", "line %d is %s and can no longer be cancelled", l.ID, l.Status)
				}
				continue
			}
			if err := l.Track.CheckTransition(l.Status, workflow.StatusCancelled); err != nil {
				return apperr.Integrity("request line", "%v", err)
			}
			l.Notes = l.Notes.Append(types.Note{At: now(), Actor: actor.String(), Content: "Cancelled: " + in.Reason})
			l.Status = workflow.StatusCancelled
			if err := repo.SaveLine(l); err != nil {
				return err
			}
			res.add(l)
		}
		if res.Affected == 0 {
			return apperr.Conflict("request", "no valid pending line to cancel in %s", parent.RequestNo)
		}

		if err := recordHistory(tx, actor, parent.RequestNo, workflow.StatusCancelled, "request_cancel", in.Reason); err != nil {
			return err
		}
		ev := requestEvent(parent, actor, workflow.StatusCancelled, res.Affected)
		ev.Audiences = []string{config.AudienceDepartmentHead}
		return s.notifier.Record(tx, out, ev)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *RequestService) GetRequest(requestNo string) (*models.ParentRequest, error) {
	return repositories.NewRequestRepository(s.db).GetParent(requestNo)
}

func (s *RequestService) ListRequests(f repositories.RequestFilter) ([]models.ParentRequest, error) {
	return repositories.NewRequestRepository(s.db).ListParents(f)
}

// Inbox lists the lines waiting on any stage the actor may act on.
func (s *RequestService) Inbox(actor Actor) ([]models.RequestLine, error) {
	repo := repositories.NewRequestRepository(s.db)
	var out []models.RequestLine
	for _, track := range []workflow.Track{workflow.TrackDirect, workflow.TrackProcurement} {
		for _, stage := range []workflow.Stage{workflow.StageHead, workflow.StageInventory, workflow.StagePurchase, workflow.StageCEO} {
			dept := ""
			switch {
			case actor.Role.IsAdmin():
			case stage == workflow.StageHead:
				if !actor.Role.Head || actor.Role.Department == "" {
					continue
				}
				dept = actor.Role.Department
			case s.stages[actor.Role.Raw] != stage:
				continue
			}
			lines, err := repo.LinesByStatus(track, workflow.PendingStatus(stage), dept)
			if err != nil {
				return nil, err
			}
			out = append(out, lines...)
		}
	}
	return out, nil
}

func (s *RequestService) History(refNo string) ([]models.TransactionHistory, error) {
	var rows []models.TransactionHistory
	err := s.db.Where("ref_no = ?", refNo).Order("created_at, id").Find(&rows).Error
	return rows, err
}

func (s *RequestService) checkRequester(actor Actor) error {
	if actor.Role.Department == "" && !actor.Role.IsAdmin() {
		return apperr.Validation("request", "role %q belongs to no department", actor.Role.Raw)
	}
	return nil
}

func (s *RequestService) ownDraft(actor Actor, draftNo string) (*models.ParentRequest, error) {
	parent, err := repositories.NewRequestRepository(s.db).GetParent(draftNo)
	if err != nil {
		return nil, err
	}
	if !parent.IsDraft() {
		return nil, apperr.Conflict("request", "%s is already submitted", draftNo)
	}
	if parent.RequesterID != actor.UserID && !actor.Role.IsAdmin() {
		return nil, apperr.Authorization("request", "%s belongs to another requester", draftNo)
	}
	return parent, nil
}

// authorize is the read-only pre-check every stage operation runs before
// opening its transaction.
func (s *RequestService) authorize(actor Actor, requestNo string) (*models.ParentRequest, []workflow.Stage, error) {
	parent, err := repositories.NewRequestRepository(s.db).GetParent(requestNo)
	if err != nil {
		return nil, nil, err
	}
	if parent.IsDraft() {
		return nil, nil, apperr.Conflict("request", "%s is a draft", requestNo)
	}
	stages := s.actingStages(actor, parent)
	if len(stages) == 0 {
		return nil, nil, apperr.Authorization("request", "role %q cannot act on %s", actor.Role.Raw, requestNo)
	}
	return parent, stages, nil
}

func (s *RequestService) actingStages(actor Actor, parent *models.ParentRequest) []workflow.Stage {
	if actor.Role.IsAdmin() {
		return []workflow.Stage{workflow.StageHead, workflow.StageInventory, workflow.StagePurchase, workflow.StageCEO}
	}
	return s.stages.StagesFor(actor.Role, parent.Department)
}

// labeler resolves the stage the actor holds for a line status.
func (s *RequestService) labeler(actor Actor, parent *models.ParentRequest) func(string) (workflow.Stage, bool) {
	return func(status string) (workflow.Stage, bool) {
		return s.stages.Label(actor.Role, parent.Department, status)
	}
}

// lockRequest locks a parent request and its lines for the rest of tx.
func (s *RequestService) lockRequest(tx *gorm.DB, requestNo string) (*models.ParentRequest, []models.RequestLine, error) {
	repo := repositories.NewRequestRepository(tx)
	parent, err := repo.LockParent(requestNo)
	if err != nil {
		return nil, nil, err
	}
	lines, err := repo.LockLines(parent.ID)
	if err != nil {
		return nil, nil, err
	}
	return parent, lines, nil
}

func (s *RequestService) newParent(tx *gorm.DB, actor Actor, track workflow.Track, requestNo, dept, project string, in []LineInput, status, note string) (*models.ParentRequest, error) {
	at := now()
	parent := &models.ParentRequest{
		RequestNo:     requestNo,
		Track:         track,
		RequesterID:   actor.UserID,
		RequesterName: actor.Name,
		Department:    dept,
		Project:       project,
		SubmittedAt:   &at,
	}
	lines, err := s.newLines(tx, actor, parent, in, status, note)
	if err != nil {
		return nil, err
	}
	parent.Lines = lines
	return parent, nil
}

func (s *RequestService) newLines(tx *gorm.DB, actor Actor, parent *models.ParentRequest, in []LineInput, status, note string) ([]models.RequestLine, error) {
	stock := repositories.NewStockRepository(tx)
	lines := make([]models.RequestLine, 0, len(in))
	for _, li := range in {
		if _, err := stock.GetComponent(li.ComponentID); err != nil {
			return nil, err
		}
		lines = append(lines, models.RequestLine{
			ParentID:    parent.ID,
			RequestNo:   parent.RequestNo,
			Track:       parent.Track,
			ComponentID: li.ComponentID,
			InitialQty:  li.Qty,
			Qty:         li.Qty,
			Status:      status,
			Priority:    li.Priority,
			Remark:      li.Remark,
			VendorName:  li.VendorName,
			Notes:       types.NewNoteLog(types.Note{At: now(), Actor: actor.String(), Content: note}),
		})
	}
	return lines, nil
}

func indexDecisions(in []LineDecision) (map[uint]*LineDecision, error) {
	decisions := make(map[uint]*LineDecision, len(in))
	for i := range in {
		d := &in[i]
		if _, dup := decisions[d.LineID]; dup {
			return nil, apperr.Validation("request line", "line %d is listed twice", d.LineID)
		}
		decisions[d.LineID] = d
	}
	return decisions, nil
}

func checkMembership(requestNo string, lines []models.RequestLine, decisions map[uint]*LineDecision) error {
	for id := range decisions {
		if !slices.ContainsFunc(lines, func(l models.RequestLine) bool { return l.ID == id }) {
			return apperr.Validation("request line", "line %d is not part of %s", id, requestNo)
		}
	}
	return nil
}

// pickStage decides which stage an operation acts on: the stage of the named
// lines when there are any, otherwise the earliest stage the actor holds that
// has a line waiting. Terminal named lines are skipped. An empty stage with no
// error means every line is terminal. When open lines exist but none waits on
// the actor, the error is an authorization failure if some wait on another
// stage and a conflict otherwise.
func pickStage(requestNo string, lines []models.RequestLine, label func(status string) (workflow.Stage, bool), decisions map[uint]*LineDecision, allowed func(string) bool) (workflow.Stage, error) {
	var named, earliest workflow.Stage
	open, foreign := false, false
	for _, l := range lines {
		if l.Terminal() {
			continue
		}
		open = true
		_, isNamed := decisions[l.ID]
		if _, pending := workflow.StageOf(l.Status); !pending {
			if isNamed {
				return "", apperr.Conflict("request line", "line %d is %s and not awaiting approval", l.ID, l.Status)
			}
			continue
		}
		stage, ok := label(l.Status)
		if !ok {
			foreign = true
			if isNamed {
				return "", apperr.Authorization("request line", "line %d waits on another stage (%s)", l.ID, l.Status)
			}
			continue
		}
		if !allowed(l.Status) {
			if isNamed {
				return "", apperr.Conflict("request line", "line %d is %s and not awaiting your action", l.ID, l.Status)
			}
			continue
		}
		if isNamed {
			if named != "" && named != stage {
				return "", apperr.Conflict("request line", "named lines wait on different stages (%s, %s)", named, stage)
			}
			named = stage
		}
		if earliest == "" || workflow.StageRank(stage) < workflow.StageRank(earliest) {
			earliest = stage
		}
	}
	switch {
	case named != "":
		return named, nil
	case earliest != "":
		return earliest, nil
	case foreign:
		return "", apperr.Authorization("request", "no line of %s waits on your stage", requestNo)
	case open:
		return "", apperr.Conflict("request", "nothing in %s awaits your action", requestNo)
	}
	return "", nil
}

// advance moves a line one step forward at stage, applying the decision if any.
func advance(l *models.RequestLine, actor Actor, stage workflow.Stage, d *LineDecision, comment string) error {
	next, ok := l.Track.Next(l.Status)
	if !ok {
		return apperr.Integrity("request line", "line %d has no status after %s", l.ID, l.Status)
	}
	if err := l.Track.CheckTransition(l.Status, next); err != nil {
		return apperr.Integrity("request line", "%v", err)
	}

	itemNote := ""
	if d != nil {
		itemNote = d.Note
		if d.Qty != nil && *d.Qty != l.Qty {
			reviseQty(l, actor, *d.Qty, noteFor(d.Note, comment, fmt.Sprintf("Revised at %s approval", stage)))
		}
		if l.Track == workflow.TrackProcurement {
			if d.VendorName != "" {
				l.VendorName = d.VendorName
			}
			if d.UnitPrice != nil {
				if d.UnitPrice.IsNegative() {
					return apperr.Validation("request line", "line %d: unit price cannot be negative", l.ID)
				}
				l.UnitPrice = *d.UnitPrice
			}
			if d.DeliveryDate != nil {
				l.DeliveryDate = d.DeliveryDate
			}
		}
	}

	content := noteFor(itemNote, comment, fmt.Sprintf("%s approved", stage))
	l.Notes = l.Notes.Append(types.Note{At: now(), Actor: actor.String(), Content: content})
	l.Status = next
	return nil
}

func reviseQty(l *models.RequestLine, actor Actor, qty int, reason string) {
	l.QtyChanges = l.QtyChanges.Append(types.QtyChange{
		At:     now(),
		Actor:  actor.String(),
		Old:    l.Qty,
		New:    qty,
		Reason: reason,
	})
	l.Qty = qty
}
