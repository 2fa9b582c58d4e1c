package platformparam

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/dgraph-io/ristretto"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/alice21mota/oppia/pkg/apperr"
)

const (
	cacheNumCounters = 1 << 12
	cacheMaxCost     = 1 << 10
	cacheBufferItems = 64

	// DefaultHistoryLimit bounds revision listings when no limit is given.
	DefaultHistoryLimit = 20
)

// Registry holds the registered parameter definitions and resolves their
// current rules from a Store, caching resolved parameters.
type Registry struct {
	mu     sync.RWMutex
	order  []string
	defs   map[string]*Parameter
	gens   map[string]uint64
	store  Store
	cache  *ristretto.Cache
	group  singleflight.Group
	logger *slog.Logger
}

// NewRegistry creates a registry backed by store with the given definitions.
func NewRegistry(store Store, logger *slog.Logger, params ...Parameter) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cacheNumCounters,
		MaxCost:     cacheMaxCost,
		BufferItems: cacheBufferItems,
	})
	if err != nil {
		return nil, fmt.Errorf("creating parameter cache: %w", err)
	}

	r := &Registry{
		defs:   map[string]*Parameter{},
		gens:   map[string]uint64{},
		store:  store,
		cache:  cache,
		logger: logger,
	}
	for _, p := range params {
		if err := r.Register(p); err != nil {
			cache.Close()
			return nil, err
		}
	}
	return r, nil
}

// Register adds a parameter definition. Names must be unique.
func (r *Registry) Register(p Parameter) error {
	if p.Name == "" {
		return fmt.Errorf("platform parameter name is required")
	}
	def, err := validateDefault(p.DataType, p.DefaultValue)
	if err != nil {
		return fmt.Errorf("registering %s: %w", p.Name, err)
	}
	p.DefaultValue = def
	if p.Rules == nil {
		p.Rules = []Rule{}
	}
	if err := ValidateRules(p.DataType, p.Rules); err != nil {
		return fmt.Errorf("registering %s: %w", p.Name, err)
	}
	if p.RuleSchemaVersion == 0 {
		p.RuleSchemaVersion = CurrentRuleSchemaVersion
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[p.Name]; exists {
		return fmt.Errorf("platform parameter %s already registered", p.Name)
	}
	r.order = append(r.order, p.Name)
	r.defs[p.Name] = &p
	return nil
}

// Names returns registered parameter names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

func (r *Registry) definition(name string) (*Parameter, error) {
	r.mu.RLock()
	def, ok := r.defs[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("Platform parameter not found: %s.", name) //nolint:revive,staticcheck // message is client-facing
	}
	if def == nil {
		return nil, fmt.Errorf("platform parameter %s has no definition", name)
	}
	return def, nil
}

// Get returns a parameter with its current rules applied.
func (r *Registry) Get(ctx context.Context, name string) (Parameter, error) {
	def, err := r.definition(name)
	if err != nil {
		return Parameter{}, err
	}
	if cached, ok := r.cache.Get(name); ok {
		if p, ok := cached.(Parameter); ok {
			return p, nil
		}
	}

	loaded, err, _ := r.group.Do(name, func() (any, error) {
		r.mu.RLock()
		gen := r.gens[name]
		r.mu.RUnlock()

		p := *def
		p.Rules = slices.Clone(def.Rules)
		snap, err := r.store.Load(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("loading rules for %s: %w", name, err)
		}
		if snap != nil {
			p.Rules = snap.Rules
			if p.Rules == nil {
				p.Rules = []Rule{}
			}
			p.DefaultValue = snap.DefaultValue
		}
		r.storeCached(name, gen, p)
		return p, nil
	})
	if err != nil {
		return Parameter{}, err
	}
	return loaded.(Parameter), nil
}

// storeCached caches p unless the parameter was updated after gen was read.
func (r *Registry) storeCached(name string, gen uint64, p Parameter) {
	r.mu.Lock()
	if r.gens[name] != gen {
		r.mu.Unlock()
		return
	}
	r.cache.Set(name, p, 1)
	r.mu.Unlock()
	r.cache.Wait()
}

// invalidate drops the cached parameter and any in-flight load of it.
func (r *Registry) invalidate(name string) {
	r.mu.Lock()
	r.gens[name]++
	r.cache.Del(name)
	r.mu.Unlock()
	r.group.Forget(name)
}

// All returns every registered parameter in registration order.
func (r *Registry) All(ctx context.Context) ([]Parameter, error) {
	names := r.Names()
	params := make([]Parameter, 0, len(names))
	for _, name := range names {
		p, err := r.Get(ctx, name)
		if err != nil {
			return nil, err
		}
		params = append(params, p)
	}
	return params, nil
}

// UpdateRules validates and persists a new rule set for a parameter. A nil
// defaultValue keeps the current default.
func (r *Registry) UpdateRules(ctx context.Context, name, committerID, commitMessage string, rules []Rule, defaultValue any) error {
	def, err := r.definition(name)
	if err != nil {
		return err
	}
	if rules == nil {
		rules = []Rule{}
	}
	if err := ValidateRules(def.DataType, rules); err != nil {
		return err
	}

	if defaultValue == nil {
		current, err := r.Get(ctx, name)
		if err != nil {
			return err
		}
		defaultValue = current.DefaultValue
	}
	defaultValue, err = validateDefault(def.DataType, defaultValue)
	if err != nil {
		return err
	}

	snap := Snapshot{Rules: rules, DefaultValue: defaultValue}
	if err := r.store.Save(ctx, name, snap, SaveMeta{Author: committerID, Comment: commitMessage}); err != nil {
		return fmt.Errorf("saving rules for %s: %w", name, err)
	}
	r.invalidate(name)

	r.logger.Info("platform parameter rules updated",
		"name", name, "committer_id", committerID, "rules", len(rules))
	return nil
}

// History lists recent rule revisions of a parameter, newest first.
func (r *Registry) History(ctx context.Context, name string, limit int) ([]Revision, error) {
	if _, err := r.definition(name); err != nil {
		return nil, apperr.NotFound("Platform parameter not found: %s.", name)
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	revs, err := r.store.History(ctx, name, limit)
	if err != nil {
		return nil, fmt.Errorf("listing history for %s: %w", name, err)
	}
	if revs == nil {
		revs = []Revision{}
	}
	return revs, nil
}

// ExportYAML renders every parameter with its current rules as YAML.
func (r *Registry) ExportYAML(ctx context.Context) ([]byte, error) {
	params, err := r.All(ctx)
	if err != nil {
		return nil, err
	}
	data, err := yaml.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshaling parameters: %w", err)
	}
	return data, nil
}

// Close releases the cache.
func (r *Registry) Close() {
	r.cache.Close()
}
