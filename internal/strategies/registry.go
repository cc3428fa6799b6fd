package strategies

import (
	"fmt"
	"sort"
	"time"

	"github.com/wonny/zscreen/internal/contracts"
	"github.com/wonny/zscreen/internal/indicators"
	"github.com/wonny/zscreen/internal/strategyconfig"
)

// Definition is a named rule: one pure evaluation function plus its parameter type
type Definition struct {
	Name        string
	Description string

	newParams func() any
	eval      func(f *indicators.Frame, i int, p any) contracts.MatchResult
}

// warmup is implemented by parameter structs whose rule needs a minimum
// number of bars, the evaluation date included, before it can match
type warmup interface {
	MinBars() int
}

// MinBars returns the bars the rule needs under params (nil means defaults)
func (d Definition) MinBars(params any) int {
	if params == nil && d.newParams != nil {
		p, errs := decodeParams(d, nil, d.Name)
		if len(errs) > 0 {
			return 1
		}
		params = p
	}
	if w, ok := params.(warmup); ok {
		return w.MinBars()
	}
	return 1
}

// Define binds a typed rule function to a name. P is the rule's parameter
// struct carrying yaml/default/validate tags.
func Define[P any](name, description string, rule func(f *indicators.Frame, i int, p *P) contracts.MatchResult) Definition {
	return Definition{
		Name:        name,
		Description: description,
		newParams:   func() any { return new(P) },
		eval: func(f *indicators.Frame, i int, p any) contracts.MatchResult {
			return rule(f, i, p.(*P))
		},
	}
}

// Catalog lists the rules that configuration can refer to
type Catalog struct {
	defs map[string]Definition
}

// NewCatalog creates a catalog from definitions
func NewCatalog(defs ...Definition) *Catalog {
	c := &Catalog{defs: make(map[string]Definition, len(defs))}
	for _, d := range defs {
		c.Register(d)
	}
	return c
}

// Register adds or replaces a definition
func (c *Catalog) Register(d Definition) {
	c.defs[d.Name] = d
}

// Lookup finds a definition by name
func (c *Catalog) Lookup(name string) (Definition, bool) {
	d, ok := c.defs[name]
	return d, ok
}

// Names returns sorted definition names
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.defs))
	for n := range c.defs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Builtins returns the catalog of the six built-in rules
// ⭐ SSOT: 새 전략은 여기 등록만 하면 선정 엔진 수정 없이 동작한다
func Builtins() *Catalog {
	return NewCatalog(
		BreakoutVolumeKDJ,
		PeakKDJ,
		BBIKDJ,
		MA60CrossVolumeWave,
		SuperB1,
		BBIShortLong,
	)
}

// Strategy is a configured, immutable rule instance
type Strategy struct {
	Name   string // output label
	Rule   string // definition name
	Params any

	def Definition
}

// NewStrategy instantiates def under label. Nil params means defaults.
func NewStrategy(def Definition, label string, params any) (Strategy, error) {
	if params == nil {
		p, errs := decodeParams(def, nil, label)
		if len(errs) > 0 {
			return Strategy{}, &strategyconfig.ConfigurationError{Errors: errs}
		}
		params = p
	}
	if label == "" {
		label = def.Name
	}
	return Strategy{Name: label, Rule: def.Name, Params: params, def: def}, nil
}

// MinBars returns the history the strategy needs at the evaluation date
func (s Strategy) MinBars() int {
	return s.def.MinBars(s.Params)
}

// Evaluate runs the rule at bar index i of f
func (s Strategy) Evaluate(f *indicators.Frame, i int) contracts.MatchResult {
	if i < 0 || i >= f.Len() {
		return contracts.NoMatch
	}
	return s.def.eval(f, i, s.Params)
}

// Evaluate runs one strategy on series as of date.
// Bars after date are never visible to the rule.
func Evaluate(s Strategy, series *contracts.SymbolSeries, date time.Time) (contracts.MatchResult, error) {
	if _, ok := series.IndexOf(date); !ok {
		return contracts.NoMatch, fmt.Errorf("%s at %s: %w", series.Symbol, contracts.DateKey(date), contracts.ErrMissingData)
	}
	view := series.Until(date, 0)
	return s.Evaluate(indicators.NewFrame(view), view.Len()-1), nil
}

// Registry holds the enabled strategies of a run, ordered by name
type Registry struct {
	strategies []Strategy
}

// NewRegistry creates a registry from strategies
func NewRegistry(strategies ...Strategy) *Registry {
	s := append([]Strategy(nil), strategies...)
	sort.Slice(s, func(i, j int) bool { return s[i].Name < s[j].Name })
	return &Registry{strategies: s}
}

// Build instantiates the enabled entries of cfg from catalog.
// Unknown rule names and invalid parameters fail with *ConfigurationError,
// including for disabled entries.
func Build(catalog *Catalog, cfg *strategyconfig.Config) (*Registry, error) {
	var (
		errs       []strategyconfig.ValidationError
		strategies []Strategy
	)

	for i, e := range cfg.Strategies {
		field := fmt.Sprintf("strategies[%d]", i)
		def, ok := catalog.Lookup(e.Name)
		if !ok {
			errs = append(errs, strategyconfig.ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("unknown strategy %q (known: %v)", e.Name, catalog.Names()),
			})
			continue
		}

		params, perrs := decodeParams(def, e.Params, field)
		if len(perrs) > 0 {
			errs = append(errs, perrs...)
			continue
		}
		if !e.Enabled {
			continue
		}
		strategies = append(strategies, Strategy{Name: e.Label(), Rule: def.Name, Params: params, def: def})
	}

	if len(errs) > 0 {
		return nil, &strategyconfig.ConfigurationError{Errors: errs}
	}
	return NewRegistry(strategies...), nil
}

// Strategies returns the strategies in name order
func (r *Registry) Strategies() []Strategy {
	return r.strategies
}

// Len returns the number of strategies
func (r *Registry) Len() int {
	return len(r.strategies)
}

// Names returns the strategy labels in order
func (r *Registry) Names() []string {
	names := make([]string, len(r.strategies))
	for i, s := range r.strategies {
		names[i] = s.Name
	}
	return names
}

// MinBars returns the largest history any strategy needs (0 when empty)
func (r *Registry) MinBars() int {
	most := 0
	for _, s := range r.strategies {
		if n := s.MinBars(); n > most {
			most = n
		}
	}
	return most
}

// CheckHistory rejects a history tail shorter than the registry needs.
// tail 0 keeps the whole series and always passes.
func (r *Registry) CheckHistory(tail int) error {
	if tail <= 0 {
		return nil
	}
	var errs []strategyconfig.ValidationError
	for _, s := range r.strategies {
		if need := s.MinBars(); tail < need {
			errs = append(errs, strategyconfig.ValidationError{
				Field:   "HISTORY_TAIL",
				Message: fmt.Sprintf("%d bars is below the %d needed by %s", tail, need, s.Name),
			})
		}
	}
	if len(errs) > 0 {
		return &strategyconfig.ConfigurationError{Errors: errs}
	}
	return nil
}

// EvaluateAll runs every strategy at index i and returns the matched names
// (sorted) and their scores
func (r *Registry) EvaluateAll(f *indicators.Frame, i int) ([]string, map[string]float64) {
	var (
		matched []string
		scores  map[string]float64
	)
	for _, s := range r.strategies {
		res := s.Evaluate(f, i)
		if !res.Matched {
			continue
		}
		matched = append(matched, s.Name)
		if res.Score != nil {
			if scores == nil {
				scores = make(map[string]float64)
			}
			scores[s.Name] = *res.Score
		}
	}
	return matched, scores
}
