package services

import (
	"context"
	"testing"
	"time"

	"materials-erp/apperr"
	"materials-erp/models"
	"materials-erp/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueDrainsStockAndRefusesOverdraw(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	comp := env.component(t, "BLT-M10", 5)

	req := env.direct(t, LineInput{ComponentID: comp.ID, Qty: 5})
	env.approve(t, "prod.head", req.RequestNo)

	res, err := env.requests.Issue(ctx, env.actor("inv.head"), IssueInput{RequestNo: req.RequestNo})
	require.NoError(t, err)
	assert.Equal(t, "MI1", res.IssueNo)
	assert.Equal(t, 1, res.Affected)
	assert.Equal(t, 0, env.onHand(t, comp.ID))

	l := env.line(t, req.Lines[0].ID)
	assert.Equal(t, workflow.StatusReceivingPending, l.Status)
	assert.Equal(t, 5, l.IssuedQty)

	card, err := env.stock.Card(comp.ID, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, card, 2)
	assert.Equal(t, models.StockTxOpening, card[0].TxType)
	assert.Equal(t, models.StockTxIssue, card[1].TxType)
	assert.Equal(t, -5, card[1].Qty)
	assert.Equal(t, 0, card[1].Balance)
	assert.Equal(t, "MI1", card[1].RefNo)

	issue, err := env.requests.GetIssue("MI1")
	require.NoError(t, err)
	assert.Equal(t, req.RequestNo, issue.RequestNo)
	require.Len(t, issue.Items, 1)
	assert.Equal(t, 5, issue.Items[0].IssuedQty)

	_, err = env.requests.GetIssue("MI404")
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "got %v", err)

	issues, err := env.requests.Issues(req.RequestNo)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	require.Len(t, issues[0].Items, 1)
	assert.Equal(t, 5, issues[0].Items[0].IssuedQty)

	more := env.direct(t, LineInput{ComponentID: comp.ID, Qty: 1})
	env.approve(t, "prod.head", more.RequestNo)
	_, err = env.requests.Issue(ctx, env.actor("inv.head"), IssueInput{RequestNo: more.RequestNo})
	assert.True(t, apperr.Is(err, apperr.KindConflict), "got %v", err)

	assert.Equal(t, 0, env.onHand(t, comp.ID))
	assert.Equal(t, workflow.StatusInventoryPending, env.line(t, more.Lines[0].ID).Status)
	card, err = env.stock.Card(comp.ID, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, card, 2)
	issues, err = env.requests.Issues(more.RequestNo)
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestIssueRollsBackEveryLine(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	plenty := env.component(t, "BRG-6204", 20)
	scarce := env.component(t, "CBL-2.5", 1)

	req := env.direct(t,
		LineInput{ComponentID: plenty.ID, Qty: 4},
		LineInput{ComponentID: scarce.ID, Qty: 3},
	)
	env.approve(t, "prod.head", req.RequestNo)

	_, err := env.requests.Issue(ctx, env.actor("inv.head"), IssueInput{RequestNo: req.RequestNo})
	require.True(t, apperr.Is(err, apperr.KindConflict), "got %v", err)
	assert.Equal(t, 20, env.onHand(t, plenty.ID))
	assert.Equal(t, 1, env.onHand(t, scarce.ID))
	for _, l := range req.Lines {
		assert.Equal(t, workflow.StatusInventoryPending, env.line(t, l.ID).Status)
	}
}

func TestPartialIssue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	comp := env.component(t, "OIL-HYD46", 10)
	req := env.direct(t, LineInput{ComponentID: comp.ID, Qty: 5})
	env.approve(t, "prod.head", req.RequestNo)
	lineID := req.Lines[0].ID
	inv := env.actor("inv.head")

	tests := []struct {
		name string
		item IssueItem
		want apperr.Kind
	}{
		{"remark_required", IssueItem{LineID: lineID, IssuedQty: intPtr(3)}, apperr.KindValidation},
		{"above_requested", IssueItem{LineID: lineID, IssuedQty: intPtr(6), Remark: "extra"}, apperr.KindValidation},
		{"negative", IssueItem{LineID: lineID, IssuedQty: intPtr(-1), Remark: "x"}, apperr.KindValidation},
		{"foreign_line", IssueItem{LineID: 4242}, apperr.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.requests.Issue(ctx, inv, IssueInput{RequestNo: req.RequestNo, Lines: []IssueItem{tt.item}})
			assert.True(t, apperr.Is(err, tt.want), "got %v", err)
			assert.Equal(t, 10, env.onHand(t, comp.ID))
		})
	}

	res, err := env.requests.Issue(ctx, inv, IssueInput{
		RequestNo: req.RequestNo,
		Lines:     []IssueItem{{LineID: lineID, IssuedQty: intPtr(3), Remark: "Only three sealed drums"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Affected)
	assert.Equal(t, 7, env.onHand(t, comp.ID))

	l := env.line(t, lineID)
	assert.Equal(t, 3, l.IssuedQty)
	assert.Equal(t, 5, l.Qty)
	last, _ := l.Notes.Last()
	assert.Equal(t, "Only three sealed drums", last.Content)

	t.Run("not_by_head", func(t *testing.T) {
		_, err := env.requests.Issue(ctx, env.actor("prod.head"), IssueInput{RequestNo: req.RequestNo})
		assert.True(t, apperr.Is(err, apperr.KindAuthorization), "got %v", err)
	})

	t.Run("nothing_left_to_issue", func(t *testing.T) {
		_, err := env.requests.Issue(ctx, inv, IssueInput{RequestNo: req.RequestNo})
		assert.True(t, apperr.Is(err, apperr.KindConflict), "got %v", err)
		assert.Equal(t, 7, env.onHand(t, comp.ID))
		assert.Equal(t, workflow.StatusReceivingPending, env.line(t, lineID).Status)
	})
}

func TestZeroIssueSkipsStock(t *testing.T) {
	env := newTestEnv(t)
	comp := env.component(t, "BLT-M10", 0)
	req := env.direct(t, LineInput{ComponentID: comp.ID, Qty: 2})
	env.approve(t, "prod.head", req.RequestNo)

	_, err := env.requests.Issue(context.Background(), env.actor("inv.head"), IssueInput{
		RequestNo: req.RequestNo,
		Lines:     []IssueItem{{LineID: req.Lines[0].ID, IssuedQty: intPtr(0), Remark: "Out of stock, top-up raised"}},
	})
	require.NoError(t, err)
	l := env.line(t, req.Lines[0].ID)
	assert.Equal(t, workflow.StatusReceivingPending, l.Status)
	assert.Equal(t, 0, l.IssuedQty)

	card, err := env.stock.Card(comp.ID, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, card)
}

func TestInventoryRejectIssuesSiblings(t *testing.T) {
	env := newTestEnv(t)
	a := env.component(t, "BRG-6204", 10)
	b := env.component(t, "CBL-2.5", 10)
	req := env.direct(t, LineInput{ComponentID: a.ID, Qty: 2}, LineInput{ComponentID: b.ID, Qty: 4})
	env.approve(t, "prod.head", req.RequestNo)

	res, err := env.requests.Reject(context.Background(), env.actor("inv.head"), RejectInput{
		RequestNo: req.RequestNo,
		Lines:     []LineDecision{{LineID: req.Lines[0].ID}},
		Reason:    "Use the refurbished bearings",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Affected)
	assert.NotEmpty(t, res.IssueNo)

	assert.Equal(t, workflow.StatusRejected, env.line(t, req.Lines[0].ID).Status)
	sibling := env.line(t, req.Lines[1].ID)
	assert.Equal(t, workflow.StatusReceivingPending, sibling.Status)
	assert.Equal(t, 4, sibling.IssuedQty)
	assert.Equal(t, 10, env.onHand(t, a.ID))
	assert.Equal(t, 6, env.onHand(t, b.ID))
}

func TestConfirm(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	comp := env.component(t, "BRG-6204", 3)
	req := env.direct(t, LineInput{ComponentID: comp.ID, Qty: 3})
	env.approve(t, "prod.head", req.RequestNo)

	t.Run("before_issue", func(t *testing.T) {
		for _, in := range []ConfirmInput{
			{RequestNo: req.RequestNo},
			{RequestNo: req.RequestNo, LineIDs: []uint{req.Lines[0].ID}},
		} {
			_, err := env.requests.Confirm(ctx, env.actor("prod.staff"), in)
			assert.True(t, apperr.Is(err, apperr.KindConflict), "got %v", err)
		}
		assert.Equal(t, workflow.StatusInventoryPending, env.line(t, req.Lines[0].ID).Status)
	})

	_, err := env.requests.Issue(ctx, env.actor("inv.head"), IssueInput{RequestNo: req.RequestNo})
	require.NoError(t, err)

	_, err = env.requests.Confirm(ctx, env.actor("inv.head"), ConfirmInput{RequestNo: req.RequestNo})
	assert.True(t, apperr.Is(err, apperr.KindAuthorization), "got %v", err)

	res, err := env.requests.Confirm(ctx, env.actor("prod.staff"), ConfirmInput{RequestNo: req.RequestNo})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Affected)
	assert.Equal(t, workflow.StatusIssued, env.line(t, req.Lines[0].ID).Status)

	for _, in := range []ConfirmInput{
		{RequestNo: req.RequestNo, LineIDs: []uint{req.Lines[0].ID}},
		{RequestNo: req.RequestNo},
	} {
		res, err = env.requests.Confirm(ctx, env.actor("prod.staff"), in)
		require.NoError(t, err)
		assert.Equal(t, 0, res.Affected)
	}
	assert.Equal(t, workflow.StatusIssued, env.line(t, req.Lines[0].ID).Status)
}

func TestRaiseTopUp(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	comp := env.component(t, "CBL-2.5", 0)
	req := env.direct(t, LineInput{ComponentID: comp.ID, Qty: 50})
	env.approve(t, "prod.head", req.RequestNo)

	in := TopUpInput{RequestNo: req.RequestNo, Lines: []LineInput{{ComponentID: comp.ID, Qty: 50}}}
	_, err := env.requests.RaiseTopUp(ctx, env.actor("prod.head"), in)
	assert.True(t, apperr.Is(err, apperr.KindAuthorization), "got %v", err)

	mrf, err := env.requests.RaiseTopUp(ctx, env.actor("inv.head"), in)
	require.NoError(t, err)
	assert.Equal(t, workflow.TrackProcurement, mrf.Track)
	assert.Equal(t, "inventory", mrf.Department)
	require.Len(t, mrf.Lines, 1)
	assert.Equal(t, workflow.StatusPurchasePending, mrf.Lines[0].Status)

	direct, err := env.requests.GetRequest(req.RequestNo)
	require.NoError(t, err)
	assert.Equal(t, mrf.RequestNo, direct.ProcurementRef)

	_, err = env.requests.RaiseTopUp(ctx, env.actor("inv.head"), in)
	assert.True(t, apperr.Is(err, apperr.KindConflict), "got %v", err)

	_, err = env.requests.RaiseTopUp(ctx, env.actor("inv.head"), TopUpInput{RequestNo: mrf.RequestNo, Lines: in.Lines})
	assert.True(t, apperr.Is(err, apperr.KindConflict), "got %v", err)
}
