package strategyconfig

import "github.com/wonny/zscreen/internal/contracts"

// Config는 선정 전략과 백테스트 규칙의 전체 설정
// 실행 시작 시 한 번 로드되고 이후 변경되지 않는다
type Config struct {
	Strategies []StrategyEntry `yaml:"strategies" json:"strategies"`
	Backtest   Backtest        `yaml:"backtest" json:"backtest"`
}

// StrategyEntry enables one built-in rule with its numeric parameters
type StrategyEntry struct {
	Name    string             `yaml:"name" json:"name"`                       // built-in rule identifier
	Alias   string             `yaml:"alias,omitempty" json:"alias,omitempty"` // output label (default: name)
	Enabled bool               `yaml:"enabled" json:"enabled"`
	Params  map[string]float64 `yaml:"params,omitempty" json:"params,omitempty"`
}

// Label is the name written to selection outputs
func (e StrategyEntry) Label() string {
	if e.Alias != "" {
		return e.Alias
	}
	return e.Name
}

// Backtest 백테스트 설정
type Backtest struct {
	Horizons  []int  `yaml:"horizons" json:"horizons"`   // 거래일 기준 보유 기간
	Reference string `yaml:"reference" json:"reference"` // close | next_open
}

// Enabled returns the enabled entries in file order
func (c *Config) Enabled() []StrategyEntry {
	var out []StrategyEntry
	for _, e := range c.Strategies {
		if e.Enabled {
			out = append(out, e)
		}
	}
	return out
}

// Default enables every built-in rule with its default parameters
func Default() *Config {
	names := []string{
		"BreakoutVolumeKDJ",
		"PeakKDJ",
		"BBIKDJ",
		"MA60CrossVolumeWave",
		"SuperB1",
		"BBIShortLong",
	}
	cfg := &Config{
		Backtest: Backtest{
			Horizons:  append([]int(nil), contracts.DefaultHorizons...),
			Reference: contracts.ReferenceClose,
		},
	}
	for _, n := range names {
		cfg.Strategies = append(cfg.Strategies, StrategyEntry{Name: n, Enabled: true})
	}
	return cfg
}
