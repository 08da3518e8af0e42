package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"materials-erp/workflow"

	"github.com/spf13/viper"
)

// Audience names used by the notification fan-out.
const (
	AudienceRequester      = "requester"
	AudienceDepartmentHead = "department_head"
	AudienceInventory      = "inventory"
	AudiencePurchase       = "purchase"
	AudienceCEO            = "ceo"
	AudienceQuality        = "quality"
)

// Audience resolves to every active user holding one of Roles, plus the fixed Users.
type Audience struct {
	Roles []string `mapstructure:"roles"`
	Users []uint   `mapstructure:"users"`
}

// Routing is the declarative recipient and rejection-stage table.
type Routing struct {
	Audiences map[string]Audience `mapstructure:"audiences"`
	Stages    map[string]string   `mapstructure:"stages"`
}

func DefaultRouting() Routing {
	return Routing{
		Audiences: map[string]Audience{
			AudienceInventory: {Roles: []string{"inventory_head"}},
			AudiencePurchase:  {Roles: []string{"purchase_head"}},
			AudienceCEO:       {Roles: []string{workflow.RoleCEO}},
			AudienceQuality:   {Roles: []string{"quality_head", "quality_employee"}},
		},
		Stages: map[string]string{
			"inventory_head":  string(workflow.StageInventory),
			"purchase_head":   string(workflow.StagePurchase),
			workflow.RoleCEO: string(workflow.StageCEO),
		},
	}
}

// LoadRouting reads the routing YAML. A missing file yields the defaults;
// entries present in the file replace the default entry of the same name.
func LoadRouting(path string) (Routing, error) {
	routing := DefaultRouting()
	if path == "" {
		return routing, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return routing, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return routing, fmt.Errorf("read routing file: %w", err)
	}

	var fromFile Routing
	if err := v.Unmarshal(&fromFile); err != nil {
		return routing, fmt.Errorf("decode routing file: %w", err)
	}

	for name, a := range fromFile.Audiences {
		routing.Audiences[strings.ToLower(name)] = a
	}
	for role, stage := range fromFile.Stages {
		routing.Stages[strings.ToLower(role)] = stage
	}
	return routing, routing.validate()
}

func (r Routing) validate() error {
	for role, stage := range r.Stages {
		if workflow.StageRank(workflow.Stage(stage)) < 0 {
			return fmt.Errorf("routing: role %q maps to unknown stage %q", role, stage)
		}
	}
	return nil
}

// StageTable converts the role→stage entries for the workflow package.
func (r Routing) StageTable() workflow.StageTable {
	table := workflow.StageTable{}
	for role, stage := range r.Stages {
		table[role] = workflow.Stage(stage)
	}
	return table
}

func (r Routing) Audience(name string) Audience {
	return r.Audiences[name]
}
