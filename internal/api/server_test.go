package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tradelens/journal-backend/internal/config"
	"github.com/tradelens/journal-backend/pkg/types"
	"go.uber.org/zap"
)

func testServer() *Server {
	cfg := &config.Config{
		LogLevel: "info",
		Server:   types.DefaultServerConfig(),
		Risk:     types.DefaultRiskSettings(),
	}
	return NewServer(zap.NewNop(), cfg)
}

// rTrade builds a closed long trade with a derived R of exactly r.
func rTrade(id string, r float64, day string) *types.Trade {
	entry := decimal.NewFromInt(100)
	stop := decimal.NewFromInt(90)
	exit := decimal.NewFromFloat(100 + 10*r)
	closed, err := time.Parse("2006-01-02", day)
	if err != nil {
		panic(err)
	}

	return &types.Trade{
		ID:         id,
		Symbol:     "EURUSD",
		Direction:  types.DirectionLong,
		Quantity:   decimal.NewFromInt(1),
		EntryPrice: entry,
		StopPrice:  &stop,
		ExitPrice:  &exit,
		EntryDate:  closed,
		ExitDate:   &closed,
		PnL:        decimal.NewFromFloat(100 * r),
	}
}

func doRequest(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func createJournal(t *testing.T, s *Server, trades []*types.Trade) string {
	t.Helper()

	rec := doRequest(t, s, http.MethodPost, "/api/v1/journals", map[string]any{
		"name":   "test journal",
		"trades": trades,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create journal: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if resp.ID == "" {
		t.Fatal("expected non-empty journal id")
	}
	return resp.ID
}

func TestHealthEndpoint(t *testing.T) {
	rec := doRequest(t, testServer(), http.MethodGet, "/api/v1/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestCreateAndGetJournal(t *testing.T) {
	s := testServer()
	id := createJournal(t, s, []*types.Trade{rTrade("t1", 2, "2024-01-01")})

	rec := doRequest(t, s, http.MethodGet, "/api/v1/journals/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var state JournalState
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatalf("decode journal: %v", err)
	}
	if state.Name != "test journal" || len(state.Trades) != 1 {
		t.Errorf("unexpected journal state: %s with %d trades", state.Name, len(state.Trades))
	}
}

func TestGetJournalNotFound(t *testing.T) {
	rec := doRequest(t, testServer(), http.MethodGet, "/api/v1/journals/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestReplaceTrades(t *testing.T) {
	s := testServer()
	id := createJournal(t, s, []*types.Trade{rTrade("t1", 2, "2024-01-01")})

	trades := []*types.Trade{
		rTrade("t1", 2, "2024-01-01"),
		rTrade("t2", -1, "2024-01-02"),
	}
	rec := doRequest(t, s, http.MethodPut, "/api/v1/journals/"+id+"/trades", trades)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Trades int `json:"trades"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Trades != 2 {
		t.Errorf("expected 2 trades, got %d", resp.Trades)
	}
}

func TestKPIsEndpoint(t *testing.T) {
	s := testServer()
	id := createJournal(t, s, []*types.Trade{
		rTrade("t1", 2, "2024-01-01"),
		rTrade("t2", -1, "2024-01-02"),
		rTrade("t3", 1, "2024-01-03"),
	})

	rec := doRequest(t, s, http.MethodGet, "/api/v1/journals/"+id+"/kpis", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var kpis types.KPIs
	if err := json.Unmarshal(rec.Body.Bytes(), &kpis); err != nil {
		t.Fatalf("decode KPIs: %v", err)
	}
	if kpis.TotalTrades != 3 {
		t.Errorf("expected 3 trades, got %d", kpis.TotalTrades)
	}
	if kpis.WinRate == nil || *kpis.WinRate != 66.67 {
		t.Errorf("expected win rate 66.67, got %v", kpis.WinRate)
	}
}

func TestKPIsProfitFactorCappedInJSON(t *testing.T) {
	s := testServer()
	id := createJournal(t, s, []*types.Trade{
		rTrade("t1", 2, "2024-01-01"),
		rTrade("t2", 1, "2024-01-02"),
	})

	rec := doRequest(t, s, http.MethodGet, "/api/v1/journals/"+id+"/kpis", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var kpis types.KPIs
	if err := json.Unmarshal(rec.Body.Bytes(), &kpis); err != nil {
		t.Fatalf("decode KPIs: %v", err)
	}
	if kpis.ProfitFactor == nil || *kpis.ProfitFactor != profitFactorCap {
		t.Errorf("expected capped profit factor %v, got %v", profitFactorCap, kpis.ProfitFactor)
	}
}

func TestEquityCurveEndpoint(t *testing.T) {
	s := testServer()
	id := createJournal(t, s, []*types.Trade{
		rTrade("t1", 2, "2024-01-01"),
		rTrade("t2", -1, "2024-01-02"),
	})

	rec := doRequest(t, s, http.MethodGet, "/api/v1/journals/"+id+"/equity-curve?balance=10000", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Points []types.EquityCurvePoint `json:"points"`
		Count  int                      `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode curve: %v", err)
	}
	if resp.Count != 2 {
		t.Fatalf("expected 2 points, got %d", resp.Count)
	}
	if !resp.Points[0].Equity.Equal(decimal.NewFromInt(10200)) {
		t.Errorf("expected first equity 10200, got %s", resp.Points[0].Equity)
	}
}

func TestEquityCurveRejectsBadBalance(t *testing.T) {
	s := testServer()
	id := createJournal(t, s, nil)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/journals/"+id+"/equity-curve?balance=-5", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestSegmentsEndpoint(t *testing.T) {
	s := testServer()
	id := createJournal(t, s, []*types.Trade{
		rTrade("t1", 2, "2024-05-13"), // Monday
		rTrade("t2", -1, "2024-05-17"),
	})

	rec := doRequest(t, s, http.MethodGet, "/api/v1/journals/"+id+"/segments/day-of-week", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Dimension string               `json:"dimension"`
		Buckets   []types.SegmentStats `json:"buckets"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode segments: %v", err)
	}
	if len(resp.Buckets) != 2 {
		t.Errorf("expected 2 buckets, got %d", len(resp.Buckets))
	}

	rec = doRequest(t, s, http.MethodGet, "/api/v1/journals/"+id+"/segments/bogus", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown dimension: expected 400, got %d", rec.Code)
	}
}

func TestHistogramEndpoint(t *testing.T) {
	s := testServer()
	id := createJournal(t, s, []*types.Trade{
		rTrade("t1", -1, "2024-01-01"),
		rTrade("t2", 1, "2024-01-02"),
		rTrade("t3", 3, "2024-01-03"),
	})

	rec := doRequest(t, s, http.MethodGet, "/api/v1/journals/"+id+"/histograms/r?bins=4", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Metric string               `json:"metric"`
		Bins   []types.HistogramBin `json:"bins"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode histogram: %v", err)
	}
	total := 0
	for _, bin := range resp.Bins {
		total += bin.Count
	}
	if total != 3 {
		t.Errorf("expected all 3 values binned, got %d", total)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/v1/journals/"+id+"/histograms/bogus", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown metric: expected 400, got %d", rec.Code)
	}
}

func TestRiskEndpoint(t *testing.T) {
	s := testServer()
	id := createJournal(t, s, []*types.Trade{rTrade("t1", -2, "2024-01-01")})

	rec := doRequest(t, s, http.MethodGet, "/api/v1/journals/"+id+"/risk?open=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Rules []types.RiskRule `json:"rules"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode risk: %v", err)
	}
	if len(resp.Rules) != 6 {
		t.Errorf("expected 6 rules, got %d", len(resp.Rules))
	}
}

func TestPositionSizeEndpoint(t *testing.T) {
	s := testServer()

	rec := doRequest(t, s, http.MethodPost, "/api/v1/risk/position-size", map[string]any{
		"balance":  10000,
		"riskPct":  1,
		"entry":    1.1000,
		"stop":     1.0950,
		"pipValue": 10,
		"symbol":   "EURUSD",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result types.PositionSizeResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.LotSize != 0.2 {
		t.Errorf("expected lot size 0.2, got %v", result.LotSize)
	}

	rec = doRequest(t, s, http.MethodPost, "/api/v1/risk/position-size", map[string]any{
		"balance": -1,
		"riskPct": 1,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("negative balance: expected 400, got %d", rec.Code)
	}
}

func TestKellyEndpoint(t *testing.T) {
	rec := doRequest(t, testServer(), http.MethodPost, "/api/v1/risk/kelly", map[string]any{
		"winRatePct": 55,
		"avgWin":     1.5,
		"avgLoss":    1.0,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var result types.KellyResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Suggested != 0.05 {
		t.Errorf("expected capped suggestion 0.05, got %v", result.Suggested)
	}
}

func TestOptimalSizeEndpoint(t *testing.T) {
	s := testServer()
	id := createJournal(t, s, []*types.Trade{rTrade("t1", 1, "2024-01-01")})

	rec := doRequest(t, s, http.MethodGet, "/api/v1/journals/"+id+"/optimal-size", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var result types.OptimalSizeResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.KellyBased {
		t.Error("expected conservative default below the sample gate")
	}
	if result.SuggestedRiskPct != types.DefaultRiskSettings().DefaultRiskPct {
		t.Errorf("expected default risk pct, got %v", result.SuggestedRiskPct)
	}
}

func TestSimulationEndpoint(t *testing.T) {
	s := testServer()
	id := createJournal(t, s, []*types.Trade{
		rTrade("t1", 2, "2024-01-01"),
		rTrade("t2", -1, "2024-01-02"),
		rTrade("t3", 1, "2024-01-03"),
	})

	rec := doRequest(t, s, http.MethodGet, "/api/v1/journals/"+id+"/simulation?runs=200", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Runs       int `json:"runs"`
		SampleSize int `json:"sampleSize"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode simulation: %v", err)
	}
	if resp.Runs != 200 || resp.SampleSize != 3 {
		t.Errorf("unexpected batch shape: %+v", resp)
	}
}

func TestSimulationEndpointEmptyJournal(t *testing.T) {
	s := testServer()
	id := createJournal(t, s, nil)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/journals/"+id+"/simulation", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 without defined R trades, got %d", rec.Code)
	}
}

func TestIntegrityEndpoint(t *testing.T) {
	s := testServer()
	stored := 5.0 // derived is +2.00
	bad := rTrade("t1", 2, "2024-01-01")
	bad.StoredR = &stored
	id := createJournal(t, s, []*types.Trade{bad})

	rec := doRequest(t, s, http.MethodGet, "/api/v1/journals/"+id+"/integrity", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode integrity: %v", err)
	}
	if resp.Count != 1 {
		t.Errorf("expected 1 warning, got %d", resp.Count)
	}
}
