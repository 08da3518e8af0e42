package controllers

import (
	"materials-erp/workflow"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type DashboardController struct {
	DB *gorm.DB
}

func NewDashboardController(db *gorm.DB) *DashboardController {
	return &DashboardController{DB: db}
}

type dashboardRow struct {
	TransType string         `json:"trans_type"`
	Track     workflow.Track `json:"track,omitempty"`
	Status    string         `json:"status"`
	TotItem   int            `json:"tot_item"`
	TotQty    int            `json:"tot_qty"`
}

// GetDashboard counts the work still open per status: request lines, vendor
// returns and material returns.
func (c *DashboardController) GetDashboard(ctx *fiber.Ctx) error {
	sql := `WITH rl AS (
			SELECT 'request_line' AS trans_type, track, status, COUNT(id) AS tot_item, SUM(qty) AS tot_qty
			FROM request_lines
			WHERE status <> ?
			GROUP BY track, status
		), ro AS (
			SELECT 'return_line' AS trans_type, '' AS track, status, COUNT(id) AS tot_item, SUM(qty) AS tot_qty
			FROM return_lines
			WHERE status NOT IN (?, ?)
			GROUP BY status
		), mr AS (
			SELECT 'material_return' AS trans_type, '' AS track, status, COUNT(id) AS tot_item, SUM(qty) AS tot_qty
			FROM material_returns
			WHERE status IN (?, ?)
			GROUP BY status
		)

		SELECT * FROM rl
		UNION ALL
		SELECT * FROM ro
		UNION ALL
		SELECT * FROM mr ORDER BY trans_type, status`

	var rows []dashboardRow
	err := c.DB.Raw(sql,
		workflow.StatusDraft,
		workflow.ReturnWarehouseIn, workflow.ReturnScrapped,
		workflow.MaterialReturnHeadPending, workflow.MaterialReturnInventoryPending,
	).Scan(&rows).Error
	if err != nil {
		return fail(ctx, err)
	}

	open := make([]dashboardRow, 0, len(rows))
	for _, r := range rows {
		if r.TransType == "request_line" && r.Track.IsTerminal(r.Status) {
			continue
		}
		open = append(open, r)
	}
	return respond(ctx, fiber.StatusOK, "Dashboard found", fiber.Map{"transactions": open})
}
