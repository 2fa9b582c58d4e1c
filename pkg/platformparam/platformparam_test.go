package platformparam

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alice21mota/oppia/pkg/apperr"
)

const testParam = "test_param_1"

func webRule(v any) Rule {
	return Rule{
		Filters:          []Filter{{Type: FilterPlatformType, Conditions: [][2]any{{"=", "Web"}}}},
		ValueWhenMatched: v,
	}
}

func newTestRegistry(t *testing.T) (*Registry, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	r, err := NewRegistry(store, nil, Parameter{
		Name:         testParam,
		Description:  "Param for test.",
		DataType:     DataTypeBool,
		DefaultValue: false,
	})
	require.NoError(t, err)
	t.Cleanup(r.Close)
	return r, store
}

func TestParameter_ToDict(t *testing.T) {
	p := Parameter{
		Name:              testParam,
		Description:       "Param for test.",
		DataType:          DataTypeBool,
		Rules:             []Rule{webRule(true)},
		RuleSchemaVersion: 1,
		DefaultValue:      false,
	}
	data, err := json.Marshal(p.ToDict())
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"name": "test_param_1",
		"description": "Param for test.",
		"data_type": "bool",
		"rules": [{"filters": [{"type": "platform_type", "conditions": [["=", "Web"]]}], "value_when_matched": true}],
		"rule_schema_version": 1,
		"default_value": false
	}`, string(data))
}

func TestRulesFromDicts(t *testing.T) {
	var dicts []map[string]any
	dec := json.NewDecoder(strings.NewReader(`[{"filters":[{"type":"app_version","conditions":[[">=","1.2.0"]]}],"value_when_matched":5}]`))
	dec.UseNumber()
	require.NoError(t, dec.Decode(&dicts))

	rules, err := RulesFromDicts(dicts)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.InDelta(t, 5.0, rules[0].ValueWhenMatched, 0)
	assert.Equal(t, FilterAppVersion, rules[0].Filters[0].Type)
	assert.Equal(t, [2]any{">=", "1.2.0"}, rules[0].Filters[0].Conditions[0])
}

func TestValidateRules(t *testing.T) {
	tests := []struct {
		name    string
		dt      DataType
		rules   []Rule
		wantErr string
	}{
		{name: "valid bool", dt: DataTypeBool, rules: []Rule{webRule(true)}},
		{
			name:    "wrong value type",
			dt:      DataTypeBool,
			rules:   []Rule{webRule("unknown")},
			wantErr: "Expected bool, received 'unknown' in value_when_matched.",
		},
		{
			name:    "unsupported filter",
			dt:      DataTypeBool,
			rules:   []Rule{{Filters: []Filter{{Type: "user_locale"}}, ValueWhenMatched: true}},
			wantErr: "Unsupported filter type 'user_locale'",
		},
		{
			name: "bad operator",
			dt:   DataTypeString,
			rules: []Rule{{
				Filters:          []Filter{{Type: FilterPlatformType, Conditions: [][2]any{{"<", "Web"}}}},
				ValueWhenMatched: "x",
			}},
			wantErr: "Unsupported comparison operator '<' for platform_type filter, expected one of ['=']",
		},
		{
			name: "bad version",
			dt:   DataTypeNumber,
			rules: []Rule{{
				Filters:          []Filter{{Type: FilterAppVersion, Conditions: [][2]any{{"=", "1.2"}}}},
				ValueWhenMatched: 1.0,
			}},
			wantErr: "Invalid version string '1.2'",
		},
		{
			name: "bad flavor",
			dt:   DataTypeBool,
			rules: []Rule{{
				Filters:          []Filter{{Type: FilterAppVersionFlavor, Conditions: [][2]any{{"=", "nightly"}}}},
				ValueWhenMatched: true,
			}},
			wantErr: "Invalid app version flavor 'nightly'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRules(tt.dt, tt.rules)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestParameter_Evaluate(t *testing.T) {
	p := Parameter{
		DataType: DataTypeString,
		Rules: []Rule{
			{
				Filters: []Filter{
					{Type: FilterPlatformType, Conditions: [][2]any{{"=", "Android"}}},
					{Type: FilterAppVersion, Conditions: [][2]any{{">=", "1.2.0"}}},
				},
				ValueWhenMatched: "new-android",
			},
			{
				Filters:          []Filter{{Type: FilterAppVersionFlavor, Conditions: [][2]any{{"<", "release"}}}},
				ValueWhenMatched: "prerelease",
			},
			{
				Filters:          []Filter{{Type: FilterPlatformType, Conditions: [][2]any{{"=", "Web"}}}},
				ValueWhenMatched: "web",
			},
		},
		DefaultValue: "default",
	}

	assert.Equal(t, "new-android", p.Evaluate(ClientContext{PlatformType: "Android", AppVersion: "1.10.0-abc-beta"}))
	assert.Equal(t, "prerelease", p.Evaluate(ClientContext{PlatformType: "Android", AppVersion: "1.1.9", AppVersionFlavor: "beta"}))
	assert.Equal(t, "default", p.Evaluate(ClientContext{PlatformType: "Android", AppVersionFlavor: "release"}))
	assert.Equal(t, "web", p.Evaluate(ClientContext{PlatformType: "Web"}))
	assert.Equal(t, "default", p.Evaluate(ClientContext{PlatformType: "Backend"}))
}

func TestRegistry_RegisterRejectsBadDefault(t *testing.T) {
	_, err := NewRegistry(NewMemoryStore(), nil, Parameter{Name: "p", DataType: DataTypeBool, DefaultValue: "no"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Expected bool, received 'no' in default value.")
}

func TestRegistry_RegisterDuplicate(t *testing.T) {
	r, _ := newTestRegistry(t)
	err := r.Register(Parameter{Name: testParam, DataType: DataTypeBool, DefaultValue: true})
	require.Error(t, err)
}

func TestRegistry_DefaultsRegister(t *testing.T) {
	r, err := NewRegistry(NewMemoryStore(), nil, Defaults()...)
	require.NoError(t, err)
	defer r.Close()

	params, err := r.All(context.Background())
	require.NoError(t, err)
	require.Len(t, params, len(Defaults()))
	assert.Equal(t, ParamDummyFeatureFlag, params[0].Name)
	assert.Equal(t, CurrentRuleSchemaVersion, params[0].RuleSchemaVersion)
	assert.Equal(t, []Rule{}, params[0].Rules)
}

func TestRegistry_UpdateRules(t *testing.T) {
	ctx := context.Background()
	r, store := newTestRegistry(t)

	before, err := r.Get(ctx, testParam)
	require.NoError(t, err)
	assert.Empty(t, before.Rules)

	require.NoError(t, r.UpdateRules(ctx, testParam, "admin-id", "test update param", []Rule{webRule(true)}, false))

	after, err := r.Get(ctx, testParam)
	require.NoError(t, err)
	assert.Equal(t, []Rule{webRule(true)}, after.Rules)
	assert.Equal(t, false, after.DefaultValue)
	assert.Equal(t, true, after.Evaluate(ClientContext{PlatformType: "Web"}))

	revs, err := store.History(ctx, testParam, 10)
	require.NoError(t, err)
	require.Len(t, revs, 1)
	assert.Equal(t, "admin-id", revs[0].Author)
	assert.Equal(t, "test update param", revs[0].Comment)
}

func TestRegistry_UpdateRulesKeepsDefaultWhenNil(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry(t)
	require.NoError(t, r.UpdateRules(ctx, testParam, "a", "m", nil, true))
	require.NoError(t, r.UpdateRules(ctx, testParam, "a", "m", []Rule{webRule(false)}, nil))

	p, err := r.Get(ctx, testParam)
	require.NoError(t, err)
	assert.Equal(t, true, p.DefaultValue)
}

func TestRegistry_UpdateRulesUnknownParam(t *testing.T) {
	r, _ := newTestRegistry(t)
	err := r.UpdateRules(context.Background(), "unknown_param", "a", "m", []Rule{webRule(true)}, false)
	require.Error(t, err)
	assert.Equal(t, "Platform parameter not found: unknown_param.", err.Error())
	assert.Equal(t, apperr.Kind(0), apperr.KindOf(err))
}

func TestRegistry_UpdateRulesMissingDefinition(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.defs[testParam] = nil

	err := r.UpdateRules(context.Background(), testParam, "a", "m", []Rule{webRule(true)}, false)
	require.Error(t, err)
	assert.Equal(t, apperr.Kind(0), apperr.KindOf(err))
}

func TestRegistry_UpdateRulesInvalidValue(t *testing.T) {
	r, _ := newTestRegistry(t)
	err := r.UpdateRules(context.Background(), testParam, "a", "m", []Rule{webRule("unknown")}, false)
	require.Error(t, err)
	assert.Equal(t, "Expected bool, received 'unknown' in value_when_matched.", err.Error())
}

type failingStore struct{ *MemoryStore }

func (*failingStore) Save(context.Context, string, Snapshot, SaveMeta) error {
	return errors.New("db down")
}

func TestRegistry_UpdateRulesStoreError(t *testing.T) {
	r, err := NewRegistry(&failingStore{MemoryStore: NewMemoryStore()}, nil,
		Parameter{Name: testParam, DataType: DataTypeBool, DefaultValue: false})
	require.NoError(t, err)
	defer r.Close()

	err = r.UpdateRules(context.Background(), testParam, "a", "m", nil, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

// gatedStore pauses the first Load after reading until release is closed.
type gatedStore struct {
	*MemoryStore
	once    sync.Once
	loaded  chan struct{}
	release chan struct{}
}

func (g *gatedStore) Load(ctx context.Context, name string) (*Snapshot, error) {
	snap, err := g.MemoryStore.Load(ctx, name)
	g.once.Do(func() {
		close(g.loaded)
		<-g.release
	})
	return snap, err
}

func TestRegistry_UpdateRulesDuringLoad(t *testing.T) {
	ctx := context.Background()
	store := &gatedStore{
		MemoryStore: NewMemoryStore(),
		loaded:      make(chan struct{}),
		release:     make(chan struct{}),
	}
	r, err := NewRegistry(store, nil, Parameter{Name: testParam, DataType: DataTypeBool, DefaultValue: false})
	require.NoError(t, err)
	defer r.Close()

	done := make(chan error, 1)
	go func() {
		_, err := r.Get(ctx, testParam)
		done <- err
	}()
	<-store.loaded

	require.NoError(t, r.UpdateRules(ctx, testParam, "a", "m", []Rule{webRule(true)}, true))
	close(store.release)
	require.NoError(t, <-done)

	p, err := r.Get(ctx, testParam)
	require.NoError(t, err)
	assert.Equal(t, true, p.DefaultValue)
	assert.Equal(t, []Rule{webRule(true)}, p.Rules)
}

func TestRegistry_History(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry(t)
	require.NoError(t, r.UpdateRules(ctx, testParam, "a", "first", nil, false))
	require.NoError(t, r.UpdateRules(ctx, testParam, "b", "second", nil, true))

	revs, err := r.History(ctx, testParam, 0)
	require.NoError(t, err)
	require.Len(t, revs, 2)
	assert.Equal(t, "second", revs[0].Comment)
	assert.Equal(t, 2, revs[0].Version)

	_, err = r.History(ctx, "missing", 5)
	assert.True(t, apperr.IsNotFound(err))
}

func TestRegistry_ExportYAML(t *testing.T) {
	r, _ := newTestRegistry(t)
	data, err := r.ExportYAML(context.Background())
	require.NoError(t, err)
	assert.Contains(t, string(data), "name: test_param_1")
	assert.Contains(t, string(data), "data_type: bool")
}
