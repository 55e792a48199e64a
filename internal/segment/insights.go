package segment

import (
	"fmt"

	"github.com/tradelens/journal-backend/pkg/types"
)

// MinInsightSampleSize is the minimum defined-R trade count a bucket needs
// before it can back an insight. Thinner buckets produce spurious edges.
const MinInsightSampleSize = 15

// maxInsights bounds the output to the two strongest observations.
const maxInsights = 2

// AutoInsights scans the session and day-of-week groupings for buckets with
// a clear positive or negative expectancy and enough samples, and emits at
// most two short observations: the best session and the worst weekday.
func AutoInsights(trades []*types.Trade) []types.Insight {
	insights := make([]types.Insight, 0, maxInsights)

	if best, ok := bestBucket(BySession(trades)); ok {
		insights = append(insights, types.Insight{
			Kind: "best_session",
			Message: fmt.Sprintf("Your best session is %s with an expectancy of %+.2fR over %d trades.",
				best.Label, expectancyOf(best), best.KPIs.ValidRTrades),
			Expectancy: expectancyOf(best),
			SampleSize: best.KPIs.ValidRTrades,
		})
	}

	if worst, ok := worstBucket(ByDayOfWeek(trades)); ok {
		insights = append(insights, types.Insight{
			Kind: "worst_day_of_week",
			Message: fmt.Sprintf("%s is your weakest day with an expectancy of %+.2fR over %d trades.",
				worst.Label, expectancyOf(worst), worst.KPIs.ValidRTrades),
			Expectancy: expectancyOf(worst),
			SampleSize: worst.KPIs.ValidRTrades,
		})
	}

	if len(insights) > maxInsights {
		insights = insights[:maxInsights]
	}
	return insights
}

// bestBucket picks the qualifying bucket with the highest positive expectancy.
func bestBucket(buckets []types.SegmentStats) (types.SegmentStats, bool) {
	var best types.SegmentStats
	found := false
	for _, b := range buckets {
		if !qualifies(b) || expectancyOf(b) <= 0 {
			continue
		}
		if !found || expectancyOf(b) > expectancyOf(best) {
			best = b
			found = true
		}
	}
	return best, found
}

// worstBucket picks the qualifying bucket with the lowest negative expectancy.
func worstBucket(buckets []types.SegmentStats) (types.SegmentStats, bool) {
	var worst types.SegmentStats
	found := false
	for _, b := range buckets {
		if !qualifies(b) || expectancyOf(b) >= 0 {
			continue
		}
		if !found || expectancyOf(b) < expectancyOf(worst) {
			worst = b
			found = true
		}
	}
	return worst, found
}

func qualifies(b types.SegmentStats) bool {
	return b.KPIs.ValidRTrades >= MinInsightSampleSize && b.KPIs.Expectancy != nil
}

func expectancyOf(b types.SegmentStats) float64 {
	if b.KPIs.Expectancy == nil {
		return 0
	}
	return *b.KPIs.Expectancy
}
