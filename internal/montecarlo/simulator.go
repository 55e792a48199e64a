// Package montecarlo resamples a journal's R-multiple distribution to
// estimate the spread of outcomes the same trading edge could have produced.
// The order of wins and losses in a journal is one draw from many possible
// sequences; bootstrapping shows how lucky or unlucky that draw was.
package montecarlo

import (
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tradelens/journal-backend/internal/journal"
	"github.com/tradelens/journal-backend/pkg/types"
	"github.com/tradelens/journal-backend/pkg/utils"
	"go.uber.org/zap"
)

// Config controls a simulation batch.
type Config struct {
	Runs            int   // Number of resampled paths
	Seed            int64 // Random seed, 0 for time-based
	Workers         int   // Parallel workers
	WithReplacement bool  // Bootstrap (true) or permutation (false)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Runs:            1000,
		Seed:            0,
		Workers:         4,
		WithReplacement: true,
	}
}

// Simulator runs bootstrap simulations over trade R sequences.
type Simulator struct {
	logger *zap.Logger
	config Config
}

// NewSimulator creates a simulator. A zero-value config is replaced with
// defaults.
func NewSimulator(logger *zap.Logger, config Config) *Simulator {
	if config.Runs <= 0 {
		config = DefaultConfig()
	}
	if config.Workers <= 0 {
		config.Workers = DefaultConfig().Workers
	}
	return &Simulator{logger: logger, config: config}
}

// PathStats summarizes one simulated equity path.
type PathStats struct {
	FinalEquity    decimal.Decimal `json:"finalEquity"`
	NetR           float64         `json:"netR"`
	MaxDrawdownPct float64         `json:"maxDrawdownPct"`
}

// Distribution describes the spread of one statistic across all runs.
type Distribution struct {
	Mean        float64            `json:"mean"`
	Median      float64            `json:"median"`
	StdDev      float64            `json:"stdDev"`
	Min         float64            `json:"min"`
	Max         float64            `json:"max"`
	Percentiles map[string]float64 `json:"percentiles"`
}

// Result is the aggregate outcome of a simulation batch.
type Result struct {
	Runs           int          `json:"runs"`
	SampleSize     int          `json:"sampleSize"`
	Original       PathStats    `json:"original"`
	FinalEquity    Distribution `json:"finalEquity"`
	MaxDrawdownPct Distribution `json:"maxDrawdownPct"`
	NetR           Distribution `json:"netR"`

	// RuinProbability is the fraction of paths whose drawdown reached the
	// ruin threshold; ProfitProbability the fraction ending above start.
	RuinProbability   float64 `json:"ruinProbability"`
	ProfitProbability float64 `json:"profitProbability"`
}

// reported percentile levels, keyed for JSON.
var percentileLevels = []struct {
	key   string
	level float64
}{
	{"p05", 0.05},
	{"p25", 0.25},
	{"p50", 0.50},
	{"p75", 0.75},
	{"p95", 0.95},
}

// Run resamples the journal's defined-R trades. ruinDrawdownPct is the
// drawdown percentage treated as account ruin. Returns nil when the journal
// has no defined-R trades to resample.
func (s *Simulator) Run(trades []*types.Trade, startingBalance decimal.Decimal, ruinDrawdownPct float64) *Result {
	rs := rSequence(trades)
	if len(rs) == 0 {
		return nil
	}

	start, _ := startingBalance.Float64()
	if start <= 0 {
		return nil
	}

	if s.logger != nil {
		s.logger.Debug("starting simulation batch",
			zap.Int("runs", s.config.Runs),
			zap.Int("sampleSize", len(rs)),
		)
	}

	baseSeed := s.config.Seed
	if baseSeed == 0 {
		baseSeed = time.Now().UnixNano()
	}

	paths := make([]PathStats, s.config.Runs)
	jobs := make(chan int, s.config.Runs)
	var wg sync.WaitGroup

	for w := 0; w < s.config.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				// Per-run seed keeps results reproducible regardless
				// of worker scheduling.
				rng := rand.New(rand.NewSource(baseSeed + int64(idx)))
				paths[idx] = walkPath(s.resample(rs, rng), start)
			}
		}()
	}
	for i := 0; i < s.config.Runs; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	result := &Result{
		Runs:           s.config.Runs,
		SampleSize:     len(rs),
		Original:       walkPath(rs, start),
		FinalEquity:    distribution(extract(paths, func(p PathStats) float64 { f, _ := p.FinalEquity.Float64(); return f })),
		MaxDrawdownPct: distribution(extract(paths, func(p PathStats) float64 { return p.MaxDrawdownPct })),
		NetR:           distribution(extract(paths, func(p PathStats) float64 { return p.NetR })),
	}

	ruined, profitable := 0, 0
	for _, p := range paths {
		if ruinDrawdownPct > 0 && p.MaxDrawdownPct >= ruinDrawdownPct {
			ruined++
		}
		if f, _ := p.FinalEquity.Float64(); f > start {
			profitable++
		}
	}
	result.RuinProbability = utils.Round2(float64(ruined) / float64(s.config.Runs))
	result.ProfitProbability = utils.Round2(float64(profitable) / float64(s.config.Runs))

	return result
}

// rSequence extracts R values from closed trades in chronological order.
func rSequence(trades []*types.Trade) []float64 {
	ordered := journal.WithDefinedR(journal.SortByClose(trades))
	rs := make([]float64, 0, len(ordered))
	for _, t := range ordered {
		if r, ok := journal.RMultiple(t); ok {
			rs = append(rs, r)
		}
	}
	return rs
}

// resample draws a new R sequence of the same length.
func (s *Simulator) resample(rs []float64, rng *rand.Rand) []float64 {
	n := len(rs)
	out := make([]float64, n)
	if s.config.WithReplacement {
		for i := range out {
			out[i] = rs[rng.Intn(n)]
		}
		return out
	}
	for i, idx := range rng.Perm(n) {
		out[i] = rs[idx]
	}
	return out
}

// walkPath simulates an equity path with each 1R worth 1% of the starting
// balance, the same convention the equity curve uses.
func walkPath(rs []float64, start float64) PathStats {
	riskPerR := start * 0.01
	equity := start
	peak := start
	maxDDPct := 0.0
	netR := 0.0

	for _, r := range rs {
		equity += riskPerR * r
		netR += r
		if equity > peak {
			peak = equity
			continue
		}
		if peak > 0 {
			if ddPct := (peak - equity) / peak * 100; ddPct > maxDDPct {
				maxDDPct = ddPct
			}
		}
	}

	return PathStats{
		FinalEquity:    decimal.NewFromFloat(equity).Round(2),
		NetR:           utils.Round2(netR),
		MaxDrawdownPct: utils.Round2(maxDDPct),
	}
}

func extract(paths []PathStats, f func(PathStats) float64) []float64 {
	values := make([]float64, len(paths))
	for i, p := range paths {
		values[i] = f(p)
	}
	return values
}

// distribution summarizes values with moments and fixed percentiles.
func distribution(values []float64) Distribution {
	if len(values) == 0 {
		return Distribution{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := float64(len(sorted))
	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	mean := sum / n

	variance := 0.0
	for _, v := range sorted {
		diff := v - mean
		variance += diff * diff
	}
	variance /= n

	dist := Distribution{
		Mean:        utils.Round2(mean),
		Median:      utils.Round2(sorted[len(sorted)/2]),
		StdDev:      utils.Round2(math.Sqrt(variance)),
		Min:         sorted[0],
		Max:         sorted[len(sorted)-1],
		Percentiles: make(map[string]float64, len(percentileLevels)),
	}
	for _, p := range percentileLevels {
		idx := int(p.level * (n - 1))
		dist.Percentiles[p.key] = sorted[idx]
	}
	return dist
}
