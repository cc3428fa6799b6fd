package strategies

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/zscreen/internal/contracts"
	"github.com/wonny/zscreen/internal/indicators"
	"github.com/wonny/zscreen/internal/strategyconfig"
)

func TestBuild_Defaults(t *testing.T) {
	reg, err := Build(Builtins(), strategyconfig.Default())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"BBIKDJ", "BBIShortLong", "BreakoutVolumeKDJ", "MA60CrossVolumeWave", "PeakKDJ", "SuperB1",
	}, reg.Names())

	for _, s := range reg.Strategies() {
		if s.Rule != "BBIKDJ" {
			continue
		}
		p := s.Params.(*BBIKDJParams)
		assert.Equal(t, 20, p.BBIWindow)
		assert.InDelta(t, 0.02, p.BBITolerance, 1e-12)
		assert.Equal(t, 1.0, p.JThreshold)
		assert.Equal(t, 60, p.JWindow)
	}
}

func TestBuild_ParamsAndAlias(t *testing.T) {
	cfg := &strategyconfig.Config{Strategies: []strategyconfig.StrategyEntry{
		{Name: "BBIKDJ", Alias: "少妇战法", Enabled: true, Params: map[string]float64{"j_threshold": -5}},
		{Name: "SuperB1", Enabled: true, Params: map[string]float64{"bbi_window": 30, "drop_pct": 0.03}},
		{Name: "PeakKDJ", Enabled: false},
	}}

	reg, err := Build(Builtins(), cfg)
	require.NoError(t, err)
	require.Equal(t, 2, reg.Len())
	assert.Equal(t, []string{"SuperB1", "少妇战法"}, reg.Names())

	b1 := reg.Strategies()[0].Params.(*SuperB1Params)
	assert.Equal(t, 30, b1.BBIWindow)
	assert.InDelta(t, 0.03, b1.DropPct, 1e-12)
	assert.Equal(t, 10, b1.Lookback)

	kdj := reg.Strategies()[1]
	assert.Equal(t, "BBIKDJ", kdj.Rule)
	assert.Equal(t, -5.0, kdj.Params.(*BBIKDJParams).JThreshold)
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name  string
		entry strategyconfig.StrategyEntry
		field string
	}{
		{"unknown rule", strategyconfig.StrategyEntry{Name: "Nope", Enabled: true}, "strategies[0].name"},
		{"out of range", strategyconfig.StrategyEntry{Name: "BBIKDJ", Enabled: true, Params: map[string]float64{"j_q": 2}}, "strategies[0].params.j_q"},
		{"unknown param", strategyconfig.StrategyEntry{Name: "BBIKDJ", Enabled: true, Params: map[string]float64{"jq": 0.2}}, "strategies[0].params"},
		{"fractional window", strategyconfig.StrategyEntry{Name: "PeakKDJ", Enabled: true, Params: map[string]float64{"lookback": 12.5}}, "strategies[0].params"},
		{"cross-field", strategyconfig.StrategyEntry{Name: "BBIShortLong", Enabled: true, Params: map[string]float64{"n_long": 3, "n_short": 5}}, "strategies[0].params.n_long"},
		{"disabled still validated", strategyconfig.StrategyEntry{Name: "BBIKDJ", Params: map[string]float64{"j_window": 1}}, "strategies[0].params.j_window"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &strategyconfig.Config{Strategies: []strategyconfig.StrategyEntry{tt.entry}}
			_, err := Build(Builtins(), cfg)
			require.Error(t, err)

			var cfgErr *strategyconfig.ConfigurationError
			require.True(t, errors.As(err, &cfgErr), "got %T", err)
			require.NotEmpty(t, cfgErr.Errors)
			assert.Equal(t, tt.field, cfgErr.Errors[0].Field)
		})
	}
}

func TestBuild_NoneEnabled(t *testing.T) {
	reg, err := Build(Builtins(), &strategyconfig.Config{})
	require.NoError(t, err)
	assert.Equal(t, 0, reg.Len())

	names, scores := reg.EvaluateAll(frameOf(constant(5, 10)), 4)
	assert.Empty(t, names)
	assert.Empty(t, scores)
}

type alwaysParams struct {
	Score float64 `yaml:"score" default:"7" validate:"gte=0"`
}

func TestCatalog_Register(t *testing.T) {
	always := Define("Always", "matches every bar",
		func(f *indicators.Frame, i int, p *alwaysParams) contracts.MatchResult {
			return contracts.Match(p.Score)
		})

	catalog := Builtins()
	catalog.Register(always)
	assert.Contains(t, catalog.Names(), "Always")

	cfg := &strategyconfig.Config{Strategies: []strategyconfig.StrategyEntry{
		{Name: "Always", Enabled: true},
		{Name: "BBIKDJ", Enabled: true},
	}}
	reg, err := Build(catalog, cfg)
	require.NoError(t, err)

	names, scores := reg.EvaluateAll(frameOf(constant(5, 10)), 4)
	assert.Equal(t, []string{"Always"}, names)
	assert.Equal(t, map[string]float64{"Always": 7}, scores)
}

func TestEvaluate_MissingDate(t *testing.T) {
	s := mustStrategy(BBIKDJ)
	series := seriesOf("A", constant(30, 10))

	_, err := Evaluate(s, series, day0.AddDate(0, 0, 100))
	assert.ErrorIs(t, err, contracts.ErrMissingData)

	res, err := Evaluate(s, series, day0.AddDate(0, 0, 29))
	require.NoError(t, err)
	assert.False(t, res.Matched)
}

func TestEvaluate_OutOfRangeIndex(t *testing.T) {
	s := mustStrategy(PeakKDJ)
	f := frameOf(constant(5, 10))
	assert.False(t, s.Evaluate(f, -1).Matched)
	assert.False(t, s.Evaluate(f, 5).Matched)
}

func TestDefaultParams(t *testing.T) {
	p, err := DefaultParams(MA60CrossVolumeWave)
	require.NoError(t, err)
	mp := p.(*MA60CrossParams)
	assert.Equal(t, 25, mp.Lookback)
	assert.InDelta(t, 1.8, mp.VolumeMultiple, 1e-12)
}

func TestMinBars_Defaults(t *testing.T) {
	tests := []struct {
		def  Definition
		want int
	}{
		{BreakoutVolumeKDJ, 114},
		{PeakKDJ, 62},
		{BBIKDJ, 68},
		{SuperB1, 78},
		{MA60CrossVolumeWave, 85},
		{BBIShortLong, 43},
	}
	for _, tt := range tests {
		t.Run(tt.def.Name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.def.MinBars(nil))
			assert.Equal(t, tt.want, mustStrategy(tt.def).MinBars())
		})
	}
}

func TestMinBars_FollowsParams(t *testing.T) {
	cfg := &strategyconfig.Config{Strategies: []strategyconfig.StrategyEntry{
		{Name: "BBIKDJ", Enabled: true, Params: map[string]float64{"j_window": 200}},
		{Name: "PeakKDJ", Enabled: true, Params: map[string]float64{"lookback": 150}},
	}}
	reg, err := Build(Builtins(), cfg)
	require.NoError(t, err)

	// BBIKDJ: J from bar 9, then 200 of them
	assert.Equal(t, 208, reg.Strategies()[0].MinBars())
	assert.Equal(t, 152, reg.Strategies()[1].MinBars())
	assert.Equal(t, 208, reg.MinBars())
}

func TestMinBars_MatchesIndicatorWarmup(t *testing.T) {
	f := frameOf(rising(200, 10, 0.1))
	defined := func(x []float64, bars int) bool {
		_, ok := indicators.At(x, bars-1)
		return ok
	}

	// 필요한 봉 수에서 처음 정의되고 그 전에는 정의되지 않는다
	assert.True(t, defined(f.ZXLong(), 114))
	assert.False(t, defined(f.ZXLong(), 113))
	assert.True(t, defined(f.BBI(), bbiBars))
	assert.False(t, defined(f.BBI(), bbiBars-1))
	assert.True(t, defined(f.DEA(), deaBars))
	assert.False(t, defined(f.DEA(), deaBars-1))
	assert.True(t, defined(f.ZXQuick(), quickBars))
	assert.False(t, defined(f.ZXQuick(), quickBars-1))
	assert.True(t, defined(f.JPercentile(60), kdjBars+59))
	assert.False(t, defined(f.JPercentile(60), kdjBars+58))
}

func TestRegistry_CheckHistory(t *testing.T) {
	reg, err := Build(Builtins(), strategyconfig.Default())
	require.NoError(t, err)
	require.Equal(t, 114, reg.MinBars())

	assert.NoError(t, reg.CheckHistory(400))
	assert.NoError(t, reg.CheckHistory(114))
	assert.NoError(t, reg.CheckHistory(0), "0 keeps the whole series")

	err = reg.CheckHistory(80)
	var cfgErr *strategyconfig.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	// BreakoutVolumeKDJ(114)와 MA60CrossVolumeWave(85)만 부족
	require.Len(t, cfgErr.Errors, 2)
	assert.Equal(t, "HISTORY_TAIL", cfgErr.Errors[0].Field)
	assert.Contains(t, cfgErr.Errors[0].Message, "BreakoutVolumeKDJ")
	assert.Contains(t, cfgErr.Errors[1].Message, "MA60CrossVolumeWave")

	assert.Equal(t, 0, NewRegistry().MinBars())
	assert.NoError(t, NewRegistry().CheckHistory(1))
}
