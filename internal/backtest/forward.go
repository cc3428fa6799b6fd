package backtest

import "github.com/wonny/zscreen/internal/contracts"

// Compute measures forward returns of sel against series.
// Horizon h exits at the close of the h-th session after the selection date;
// horizons beyond the last stored bar stay undefined.
func Compute(series *contracts.SymbolSeries, sel contracts.SelectionRecord, horizons []int, reference string) contracts.BacktestRecord {
	rec := contracts.BacktestRecord{
		Date:       sel.Date,
		Symbol:     sel.Symbol,
		Name:       sel.Name,
		Strategies: sel.Strategies,
		Reference:  reference,
		Returns:    emptyReturns(horizons),
	}
	if series != nil {
		if rec.Name == "" {
			rec.Name = series.Name
		}
		if n := len(series.Bars); n > 0 {
			rec.AsOf = series.Bars[n-1].Date
		}
	}

	idx, ok := -1, false
	if series != nil {
		idx, ok = series.IndexOf(sel.Date)
	}
	if !ok {
		// 선정일 봉 없음 (정지/삭제)
		rec.Status = contracts.BacktestNoData
		return rec
	}

	bars := series.Bars
	rec.Close = bars[idx].Close
	if idx+1 < len(bars) {
		open := bars[idx+1].Open
		rec.NextOpen = &open
	}

	switch reference {
	case contracts.ReferenceNextOpen:
		if rec.NextOpen == nil {
			rec.Status = contracts.BacktestPending
			return rec
		}
		rec.RefPrice = *rec.NextOpen
	default:
		rec.Reference = contracts.ReferenceClose
		rec.RefPrice = rec.Close
	}

	for i, h := range horizons {
		rec.Returns[i] = exitAt(bars, idx, h, rec.RefPrice)
	}

	// 종가 기준일 때 다음날 시가 매수 수익률을 보조 열로 기록
	if rec.Reference == contracts.ReferenceClose && rec.NextOpen != nil && *rec.NextOpen > 0 {
		rec.NextOpenReturns = emptyReturns(horizons)
		for i, h := range horizons {
			rec.NextOpenReturns[i] = exitAt(bars, idx, h, *rec.NextOpen)
		}
	}

	rec.Status = status(rec)
	return rec
}

// Fill completes the undefined horizons of prev from series. Defined values
// are never changed, so refilling with no new sessions returns prev unchanged.
func Fill(series *contracts.SymbolSeries, prev contracts.BacktestRecord) (contracts.BacktestRecord, int) {
	if prev.Complete() {
		return prev, 0
	}

	horizons := make([]int, len(prev.Returns))
	for i, hr := range prev.Returns {
		horizons[i] = hr.Horizon
	}
	sel := contracts.SelectionRecord{Date: prev.Date, Symbol: prev.Symbol, Name: prev.Name, Strategies: prev.Strategies}
	fresh := Compute(series, sel, horizons, prev.Reference)

	// 선정일 봉이 없거나 기준가가 아직 없던 기록은 통째로 교체
	if prev.Status == contracts.BacktestNoData || prev.Status == contracts.BacktestPending {
		return fresh, countDefined(fresh.Returns)
	}
	if fresh.Status == contracts.BacktestNoData {
		return prev, 0
	}

	out := prev
	out.AsOf = fresh.AsOf
	out.Returns = mergeReturns(prev.Returns, fresh.Returns)
	out.NextOpenReturns = mergeReturns(prev.NextOpenReturns, fresh.NextOpenReturns)
	if out.NextOpen == nil {
		out.NextOpen = fresh.NextOpen
	}
	out.Status = status(out)
	return out, countDefined(out.Returns) - countDefined(prev.Returns)
}

func mergeReturns(prev, fresh []contracts.HorizonReturn) []contracts.HorizonReturn {
	if len(prev) == 0 {
		return fresh
	}
	out := make([]contracts.HorizonReturn, len(prev))
	copy(out, prev)
	for i := range out {
		if out[i].Defined() || i >= len(fresh) || fresh[i].Horizon != out[i].Horizon {
			continue
		}
		out[i] = fresh[i]
	}
	return out
}

func exitAt(bars []contracts.Bar, idx, h int, ref float64) contracts.HorizonReturn {
	hr := contracts.HorizonReturn{Horizon: h}
	j := idx + h
	if j >= len(bars) || ref <= 0 {
		return hr
	}
	exitDate := bars[j].Date
	exitPrice := bars[j].Close
	ret := (exitPrice/ref - 1) * 100
	hr.ExitDate = &exitDate
	hr.ExitPrice = &exitPrice
	hr.Return = &ret
	return hr
}

func emptyReturns(horizons []int) []contracts.HorizonReturn {
	out := make([]contracts.HorizonReturn, len(horizons))
	for i, h := range horizons {
		out[i] = contracts.HorizonReturn{Horizon: h}
	}
	return out
}

func countDefined(rs []contracts.HorizonReturn) int {
	n := 0
	for _, r := range rs {
		if r.Defined() {
			n++
		}
	}
	return n
}

func status(rec contracts.BacktestRecord) contracts.BacktestStatus {
	defined := countDefined(rec.Returns)
	switch {
	case defined == len(rec.Returns):
		return contracts.BacktestComplete
	case defined == 0:
		return contracts.BacktestPending
	default:
		return contracts.BacktestPartial
	}
}
