package strategyconfig

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wonny/zscreen/internal/contracts"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ConfigurationError aborts a run before any evaluation starts
type ConfigurationError struct {
	Errors []ValidationError
}

func (e *ConfigurationError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, v := range e.Errors {
		msgs = append(msgs, v.Error())
	}
	return "configuration error: " + strings.Join(msgs, "; ")
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

// MaxHorizon bounds the forward window measured by the backtest
const MaxHorizon = 60

// Validate checks structural constraints. Rule names and parameter values
// are checked against the rule catalog when the registry is built.
// 실패 시 *ConfigurationError 반환 (프로그램 중단)
func Validate(cfg *Config) error {
	var errs []ValidationError

	labels := make(map[string]int)
	for i, e := range cfg.Strategies {
		field := fmt.Sprintf("strategies[%d]", i)
		if strings.TrimSpace(e.Name) == "" {
			errs = append(errs, ValidationError{field + ".name", "required"})
			continue
		}
		if strings.ContainsAny(e.Label(), "+,\n") {
			errs = append(errs, ValidationError{field + ".alias", "must not contain '+', ',' or newlines"})
		}
		if prev, dup := labels[e.Label()]; dup {
			errs = append(errs, ValidationError{field, fmt.Sprintf("duplicate label %q (also strategies[%d])", e.Label(), prev)})
			continue
		}
		labels[e.Label()] = i
	}

	if err := validateHorizons(cfg.Backtest.Horizons); err != nil {
		errs = append(errs, ValidationError{"backtest.horizons", err.Error()})
	}

	switch cfg.Backtest.Reference {
	case contracts.ReferenceClose, contracts.ReferenceNextOpen:
	default:
		errs = append(errs, ValidationError{
			"backtest.reference",
			fmt.Sprintf("must be %q or %q", contracts.ReferenceClose, contracts.ReferenceNextOpen),
		})
	}

	if len(errs) > 0 {
		return &ConfigurationError{Errors: errs}
	}
	return nil
}

func validateHorizons(hs []int) error {
	if len(hs) == 0 {
		return fmt.Errorf("at least one horizon required")
	}
	if !sort.IntsAreSorted(hs) {
		return fmt.Errorf("must be ascending")
	}
	for i, h := range hs {
		if h < 1 || h > MaxHorizon {
			return fmt.Errorf("horizon %d out of range [1, %d]", h, MaxHorizon)
		}
		if i > 0 && hs[i-1] == h {
			return fmt.Errorf("duplicate horizon %d", h)
		}
	}
	return nil
}

// Warn checks recommendations (warnings only)
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	if len(cfg.Enabled()) == 0 {
		warnings = append(warnings, Warning{
			Code:    "NO_ENABLED_STRATEGY",
			Message: "no strategy is enabled; selections will be empty",
		})
	}

	has5 := false
	for _, h := range cfg.Backtest.Horizons {
		if h == 5 {
			has5 = true
		}
	}
	if !has5 {
		warnings = append(warnings, Warning{
			Code:    "NO_5D_HORIZON",
			Message: "composite score uses the 5-session horizon; report scores will be 0",
		})
	}

	return warnings
}
