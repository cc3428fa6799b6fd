package handlers

import (
	"net/http"

	"github.com/wonny/zscreen/internal/strategies"
)

// StrategyHandler lists the strategies enabled for this process
type StrategyHandler struct {
	registry *strategies.Registry
}

// NewStrategyHandler creates a new strategy handler
func NewStrategyHandler(registry *strategies.Registry) *StrategyHandler {
	return &StrategyHandler{registry: registry}
}

// StrategyItem describes one configured strategy
type StrategyItem struct {
	Name   string      `json:"name"`
	Rule   string      `json:"rule"`
	Params interface{} `json:"params"`
}

// List returns the enabled strategies with their effective parameters
// GET /api/strategies
func (h *StrategyHandler) List(w http.ResponseWriter, r *http.Request) {
	items := make([]StrategyItem, 0, h.registry.Len())
	for _, s := range h.registry.Strategies() {
		items = append(items, StrategyItem{Name: s.Name, Rule: s.Rule, Params: s.Params})
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"strategies": items,
		"count":      len(items),
	})
}
