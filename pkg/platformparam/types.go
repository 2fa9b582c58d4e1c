// Package platformparam provides rule-driven platform parameters: named,
// typed configuration values whose effective value depends on the client
// context. Parameter definitions are registered in code; rule sets edited
// by administrators are persisted as versioned snapshots in a Store.
package platformparam

import (
	"context"
	"encoding/json"
	"time"
)

// DataType is the type of a parameter's values.
type DataType string

// Supported data types.
const (
	DataTypeBool   DataType = "bool"
	DataTypeString DataType = "string"
	DataTypeNumber DataType = "number"
)

// Filter types.
const (
	FilterPlatformType     = "platform_type"
	FilterAppVersion       = "app_version"
	FilterAppVersionFlavor = "app_version_flavor"
)

// CurrentRuleSchemaVersion is the schema version stamped on every parameter.
const CurrentRuleSchemaVersion = 1

// Filter restricts a rule to clients matching any of its conditions.
// Each condition is an [operator, value] pair.
type Filter struct {
	Type       string   `json:"type" yaml:"type"`
	Conditions [][2]any `json:"conditions" yaml:"conditions"`
}

// Rule yields ValueWhenMatched when every filter matches.
type Rule struct {
	Filters          []Filter `json:"filters" yaml:"filters"`
	ValueWhenMatched any      `json:"value_when_matched" yaml:"value_when_matched"`
}

// Parameter is a platform parameter definition with its current rules.
type Parameter struct {
	Name              string   `json:"name" yaml:"name"`
	Description       string   `json:"description" yaml:"description"`
	DataType          DataType `json:"data_type" yaml:"data_type"`
	Rules             []Rule   `json:"rules" yaml:"rules"`
	RuleSchemaVersion int      `json:"rule_schema_version" yaml:"rule_schema_version"`
	DefaultValue      any      `json:"default_value" yaml:"default_value"`
}

// ClientContext describes the client a parameter is evaluated for.
type ClientContext struct {
	PlatformType     string
	AppVersion       string
	AppVersionFlavor string
}

// Snapshot is the persisted, editable part of a parameter.
type Snapshot struct {
	Rules        []Rule `json:"rules"`
	DefaultValue any    `json:"default_value"`
}

// SaveMeta holds metadata for a rule update.
type SaveMeta struct {
	Author  string
	Comment string
}

// Revision describes a historical rule-set version of one parameter.
type Revision struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Version   int       `json:"version"`
	Author    string    `json:"author"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists rule-set snapshots per parameter.
type Store interface {
	// Load returns the active snapshot for a parameter, or nil if none was saved.
	Load(ctx context.Context, name string) (*Snapshot, error)
	// Save persists a new active snapshot with metadata.
	Save(ctx context.Context, name string, snap Snapshot, meta SaveMeta) error
	// History returns recent revisions of a parameter, newest first.
	History(ctx context.Context, name string, limit int) ([]Revision, error)
}

// ToDict returns the JSON-compatible map form of the parameter.
func (p Parameter) ToDict() map[string]any {
	rules := make([]any, 0, len(p.Rules))
	for _, r := range p.Rules {
		rules = append(rules, r.toDict())
	}
	return map[string]any{
		"name":                p.Name,
		"description":         p.Description,
		"data_type":           string(p.DataType),
		"rules":               rules,
		"rule_schema_version": p.RuleSchemaVersion,
		"default_value":       p.DefaultValue,
	}
}

func (r Rule) toDict() map[string]any {
	filters := make([]any, 0, len(r.Filters))
	for _, f := range r.Filters {
		conds := make([]any, 0, len(f.Conditions))
		for _, c := range f.Conditions {
			conds = append(conds, []any{c[0], c[1]})
		}
		filters = append(filters, map[string]any{"type": f.Type, "conditions": conds})
	}
	return map[string]any{"filters": filters, "value_when_matched": r.ValueWhenMatched}
}

// RulesFromDicts converts decoded JSON rule objects into rules.
func RulesFromDicts(dicts []map[string]any) ([]Rule, error) {
	data, err := json.Marshal(dicts)
	if err != nil {
		return nil, err
	}
	rules := []Rule{}
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, err
	}
	for i := range rules {
		rules[i].ValueWhenMatched = normalizeValue(rules[i].ValueWhenMatched)
	}
	return rules, nil
}

// normalizeValue converts decoded JSON numbers to float64.
func normalizeValue(v any) any {
	switch n := v.(type) {
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f
		}
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return v
}
