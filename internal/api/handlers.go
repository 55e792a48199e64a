package api

import (
	"encoding/json"
	"math"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/tradelens/journal-backend/internal/equity"
	"github.com/tradelens/journal-backend/internal/journal"
	"github.com/tradelens/journal-backend/internal/montecarlo"
	"github.com/tradelens/journal-backend/internal/risk"
	"github.com/tradelens/journal-backend/internal/segment"
	"github.com/tradelens/journal-backend/internal/stats"
	"github.com/tradelens/journal-backend/pkg/types"
	"github.com/tradelens/journal-backend/pkg/utils"
	"go.uber.org/zap"
)

// defaultStartingBalance backs analytics endpoints when no balance is given.
const defaultStartingBalance = 10000

// profitFactorCap replaces an infinite profit factor in JSON responses,
// which encoding/json cannot represent.
const profitFactorCap = 999.99

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

type createJournalRequest struct {
	Name   string         `json:"name"`
	Trades []*types.Trade `json:"trades"`
}

func (s *Server) handleCreateJournal(w http.ResponseWriter, r *http.Request) {
	var req createJournalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	state := &JournalState{
		ID:        newJournalID(),
		Name:      req.Name,
		Trades:    req.Trades,
		UpdatedAt: time.Now(),
	}
	s.storeJournal(state)

	s.logger.Info("journal created",
		zap.String("id", state.ID),
		zap.Int("trades", len(state.Trades)),
	)
	s.broadcastJournalUpdate(state)

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":     state.ID,
		"trades": len(state.Trades),
	})
}

func (s *Server) handleGetJournal(w http.ResponseWriter, r *http.Request) {
	state, _, ok := s.getJournal(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "journal not found")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleReplaceTrades(w http.ResponseWriter, r *http.Request) {
	state, _, ok := s.getJournal(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "journal not found")
		return
	}

	var trades []*types.Trade
	if err := json.NewDecoder(r.Body).Decode(&trades); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated := &JournalState{
		ID:        state.ID,
		Name:      state.Name,
		Trades:    trades,
		UpdatedAt: time.Now(),
	}
	s.storeJournal(updated)
	s.broadcastJournalUpdate(updated)

	writeJSON(w, http.StatusOK, map[string]any{
		"id":     updated.ID,
		"trades": len(updated.Trades),
	})
}

func (s *Server) handleKPIs(w http.ResponseWriter, r *http.Request) {
	_, trades, ok := s.getJournal(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "journal not found")
		return
	}

	timer := startComputeTimer("kpis")
	kpis := stats.Calculate(trades)
	timer.ObserveDuration()

	writeJSON(w, http.StatusOK, safeKPIs(kpis))
}

func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	_, trades, ok := s.getJournal(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "journal not found")
		return
	}

	balance, errMsg := balanceParam(r)
	if errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	timer := startComputeTimer("performance")
	metrics := s.calculator.Calculate(trades, balance)
	timer.ObserveDuration()

	metrics.KPIs = safeKPIs(metrics.KPIs)
	for i := range metrics.Monthly {
		metrics.Monthly[i].ProfitFactor = capProfitFactor(metrics.Monthly[i].ProfitFactor)
	}

	writeJSON(w, http.StatusOK, metrics)
}

func (s *Server) handleEquityCurve(w http.ResponseWriter, r *http.Request) {
	_, trades, ok := s.getJournal(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "journal not found")
		return
	}

	balance, errMsg := balanceParam(r)
	if errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	timer := startComputeTimer("equity_curve")
	curve := equity.BuildEquityCurve(trades, balance)
	timer.ObserveDuration()

	writeJSON(w, http.StatusOK, map[string]any{
		"points": curve,
		"count":  len(curve),
	})
}

func (s *Server) handleDrawdowns(w http.ResponseWriter, r *http.Request) {
	_, trades, ok := s.getJournal(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "journal not found")
		return
	}

	balance, errMsg := balanceParam(r)
	if errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	timer := startComputeTimer("drawdowns")
	periods := equity.IdentifyDrawdownPeriods(equity.BuildEquityCurve(trades, balance))
	timer.ObserveDuration()

	writeJSON(w, http.StatusOK, map[string]any{
		"periods": periods,
		"count":   len(periods),
	})
}

func (s *Server) handleSegments(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	_, trades, ok := s.getJournal(vars["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "journal not found")
		return
	}

	var buckets []types.SegmentStats
	timer := startComputeTimer("segments")
	switch vars["dimension"] {
	case "day-of-week":
		buckets = segment.ByDayOfWeek(trades)
	case "session":
		buckets = segment.BySession(trades)
	case "session-hour":
		buckets = segment.BySessionHour(trades)
	case "symbol":
		buckets = segment.BySymbol(trades)
	case "grade":
		buckets = segment.ByGrade(trades)
	default:
		timer.ObserveDuration()
		writeError(w, http.StatusBadRequest, "unknown dimension: "+vars["dimension"])
		return
	}
	timer.ObserveDuration()

	for i := range buckets {
		buckets[i].KPIs = safeKPIs(buckets[i].KPIs)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"dimension": vars["dimension"],
		"buckets":   buckets,
	})
}

func (s *Server) handleHistogram(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	_, trades, ok := s.getJournal(vars["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "journal not found")
		return
	}

	bins := 0
	if raw := r.URL.Query().Get("bins"); raw != "" {
		parsed := utils.ParseNumber(raw, 1, 200)
		if !parsed.Valid {
			writeError(w, http.StatusBadRequest, "bins: "+parsed.Error)
			return
		}
		bins = int(parsed.Value)
	}

	var histogram []types.HistogramBin
	switch vars["metric"] {
	case "r":
		histogram = segment.HistogramR(trades, bins)
	case "mae":
		histogram = segment.HistogramMAE(trades, bins)
	case "mfe":
		histogram = segment.HistogramMFE(trades, bins)
	case "hold-time":
		histogram = segment.HistogramHoldTime(trades, bins)
	default:
		writeError(w, http.StatusBadRequest, "unknown metric: "+vars["metric"])
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"metric": vars["metric"],
		"bins":   histogram,
	})
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	_, trades, ok := s.getJournal(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "journal not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"insights": segment.AutoInsights(trades),
	})
}

func (s *Server) handleSimulation(w http.ResponseWriter, r *http.Request) {
	_, trades, ok := s.getJournal(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "journal not found")
		return
	}

	balance, errMsg := balanceParam(r)
	if errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	simConfig := montecarlo.DefaultConfig()
	if raw := r.URL.Query().Get("runs"); raw != "" {
		parsed := utils.ParseNumber(raw, 100, 10000)
		if !parsed.Valid {
			writeError(w, http.StatusBadRequest, "runs: "+parsed.Error)
			return
		}
		simConfig.Runs = int(parsed.Value)
	}

	timer := startComputeTimer("simulation")
	result := montecarlo.NewSimulator(s.logger, simConfig).Run(trades, balance, s.config.Risk.MaxDrawdownPct)
	timer.ObserveDuration()

	if result == nil {
		writeError(w, http.StatusUnprocessableEntity, "journal has no closed trades with a defined R-multiple")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleIntegrity(w http.ResponseWriter, r *http.Request) {
	_, trades, ok := s.getJournal(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "journal not found")
		return
	}

	warnings := journal.RIntegrityWarnings(trades)
	writeJSON(w, http.StatusOK, map[string]any{
		"warnings": warnings,
		"count":    len(warnings),
	})
}

func (s *Server) handleRisk(w http.ResponseWriter, r *http.Request) {
	_, trades, ok := s.getJournal(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "journal not found")
		return
	}

	balance, errMsg := balanceParam(r)
	if errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	openPositions := 0
	if raw := r.URL.Query().Get("open"); raw != "" {
		parsed := utils.ParseNumber(raw, 0, 1000)
		if !parsed.Valid {
			writeError(w, http.StatusBadRequest, "open: "+parsed.Error)
			return
		}
		openPositions = int(parsed.Value)
	}

	timer := startComputeTimer("risk")
	metrics := risk.Metrics(trades, balance, s.config.Risk, time.Now())
	rules := risk.EvaluateRules(metrics, s.config.Risk, balance, openPositions)
	timer.ObserveDuration()

	writeJSON(w, http.StatusOK, map[string]any{
		"metrics": metrics,
		"rules":   rules,
	})
}

func (s *Server) handleOptimalSize(w http.ResponseWriter, r *http.Request) {
	_, trades, ok := s.getJournal(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "journal not found")
		return
	}

	writeJSON(w, http.StatusOK, risk.OptimalPositionSize(trades, s.config.Risk))
}

type positionSizeRequest struct {
	Balance  float64 `json:"balance"`
	RiskPct  float64 `json:"riskPct"`
	Entry    float64 `json:"entry"`
	Stop     float64 `json:"stop"`
	PipValue float64 `json:"pipValue"`
	Symbol   string  `json:"symbol"`
}

func (s *Server) handlePositionSize(w http.ResponseWriter, r *http.Request) {
	var req positionSizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Balance <= 0 || req.RiskPct <= 0 {
		writeError(w, http.StatusBadRequest, "balance and riskPct must be positive")
		return
	}

	result := risk.PositionSize(
		decimal.NewFromFloat(req.Balance),
		req.RiskPct,
		decimal.NewFromFloat(req.Entry),
		decimal.NewFromFloat(req.Stop),
		req.PipValue,
		req.Symbol,
	)
	writeJSON(w, http.StatusOK, result)
}

type kellyRequest struct {
	WinRatePct float64 `json:"winRatePct"`
	AvgWin     float64 `json:"avgWin"`
	AvgLoss    float64 `json:"avgLoss"`
}

func (s *Server) handleKelly(w http.ResponseWriter, r *http.Request) {
	var req kellyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	writeJSON(w, http.StatusOK, risk.KellyCriterion(req.WinRatePct, req.AvgWin, req.AvgLoss))
}

// balanceParam reads the starting balance query param, validated, with a
// default when absent.
func balanceParam(r *http.Request) (decimal.Decimal, string) {
	raw := r.URL.Query().Get("balance")
	if raw == "" {
		return decimal.NewFromInt(defaultStartingBalance), ""
	}

	parsed := utils.ParseNumber(raw, 1, 1e12)
	if !parsed.Valid {
		return decimal.Zero, "balance: " + parsed.Error
	}
	return decimal.NewFromFloat(parsed.Value), ""
}

// safeKPIs returns a copy with JSON-unrepresentable values capped.
func safeKPIs(kpis types.KPIs) types.KPIs {
	kpis.ProfitFactor = capProfitFactor(kpis.ProfitFactor)
	return kpis
}

func capProfitFactor(pf *float64) *float64 {
	if pf == nil || !math.IsInf(*pf, 1) {
		return pf
	}
	capped := profitFactorCap
	return &capped
}

// broadcastJournalUpdate pushes fresh KPIs for a changed journal to
// subscribed WebSocket clients.
func (s *Server) broadcastJournalUpdate(state *JournalState) {
	kpis := safeKPIs(stats.Calculate(state.Trades))
	payload, err := json.Marshal(map[string]any{
		"journalId": state.ID,
		"kpis":      kpis,
	})
	if err != nil {
		s.logger.Error("marshal journal update", zap.Error(err))
		return
	}
	s.hub.BroadcastEvent(MsgTypeJournalUpdate, "journal:"+state.ID, payload)
}
