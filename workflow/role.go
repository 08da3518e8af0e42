package workflow

import (
	"strings"

	"golang.org/x/exp/slices"
)

const (
	RoleAdmin = "admin"
	RoleCEO   = "ceo"

	DepartmentInventory = "inventory"
	DepartmentPurchase  = "purchase"
	DepartmentQuality   = "quality"
)

// Role is a parsed role string. Roles follow `<department>_<head|employee>`
// or are one of the fixed literals.
type Role struct {
	Raw        string
	Department string
	Head       bool
}

func ParseRole(raw string) Role {
	raw = strings.ToLower(strings.TrimSpace(raw))
	r := Role{Raw: raw}
	switch raw {
	case RoleAdmin, RoleCEO, "":
		return r
	}
	i := strings.LastIndex(raw, "_")
	if i <= 0 {
		return r
	}
	switch raw[i+1:] {
	case "head":
		r.Department, r.Head = raw[:i], true
	case "employee":
		r.Department = raw[:i]
	}
	return r
}

func (r Role) IsAdmin() bool { return r.Raw == RoleAdmin }

func (r Role) IsCEO() bool { return r.Raw == RoleCEO }

func (r Role) In(department string) bool { return r.Department == department }

// StageTable maps a role string to the non-head approval stage it acts on.
// Head approval is not in the table: any department head approves the head
// stage of requests raised in their own department.
type StageTable map[string]Stage

func DefaultStageTable() StageTable {
	return StageTable{
		DepartmentInventory + "_head": StageInventory,
		DepartmentPurchase + "_head":  StagePurchase,
		RoleCEO:                       StageCEO,
	}
}

// StagesFor lists the approval stages the role may act on for a request raised
// by requestDept, ordered along the chain.
func (t StageTable) StagesFor(role Role, requestDept string) []Stage {
	var stages []Stage
	if role.Head && role.Department != "" && role.Department == requestDept {
		stages = append(stages, StageHead)
	}
	if s, ok := t[role.Raw]; ok && !slices.Contains(stages, s) {
		stages = append(stages, s)
	}
	slices.SortFunc(stages, func(a, b Stage) int { return StageRank(a) - StageRank(b) })
	return stages
}

// Label returns the stage a role acts at for a line status, used to pick the
// stage of approvals and rejections.
// Labels come from the stage the line is waiting on, never from free text.
func (t StageTable) Label(role Role, requestDept, status string) (Stage, bool) {
	stage, ok := StageOf(status)
	if !ok {
		return "", false
	}
	if role.IsAdmin() {
		return stage, true
	}
	if slices.Contains(t.StagesFor(role, requestDept), stage) {
		return stage, true
	}
	return "", false
}
