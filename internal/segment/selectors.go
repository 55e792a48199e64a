// Package segment provides grouping selectors over a trade collection.
// Each selector returns per-bucket aggregate statistics by reusing the KPI
// calculation on the filtered subset.
package segment

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tradelens/journal-backend/internal/journal"
	"github.com/tradelens/journal-backend/internal/stats"
	"github.com/tradelens/journal-backend/pkg/types"
)

// Session labels, in display order.
const (
	SessionNewYork = "New York"
	SessionLondon  = "London"
	SessionAsia    = "Asia"
	SessionOther   = "Other"
)

var sessionOrder = map[string]int{
	SessionNewYork: 0,
	SessionLondon:  1,
	SessionAsia:    2,
	SessionOther:   3,
}

// weekdayOrder lists trading days Monday-first.
var weekdayOrder = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

// ByDayOfWeek groups closed trades by the weekday they were closed on.
// Only days with activity produce a bucket.
func ByDayOfWeek(trades []*types.Trade) []types.SegmentStats {
	byDay := make(map[time.Weekday][]*types.Trade)
	for _, t := range journal.ClosedTrades(trades) {
		ts, ok := journal.CloseTimestamp(t)
		if !ok {
			continue
		}
		byDay[ts.Weekday()] = append(byDay[ts.Weekday()], t)
	}

	result := make([]types.SegmentStats, 0, len(byDay))
	for _, day := range weekdayOrder {
		bucket, ok := byDay[day]
		if !ok {
			continue
		}
		result = append(result, bucketStats(day.String(), day.String(), bucket))
	}
	return result
}

// BySession groups trades by trading session, from the explicit session
// field or, as fallback, decoded from the sessionHour code.
func BySession(trades []*types.Trade) []types.SegmentStats {
	bySession := make(map[string][]*types.Trade)
	for _, t := range trades {
		session := SessionOf(t)
		if session == "" {
			continue
		}
		bySession[session] = append(bySession[session], t)
	}

	sessions := make([]string, 0, len(bySession))
	for session := range bySession {
		sessions = append(sessions, session)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessionRank(sessions[i]) < sessionRank(sessions[j])
	})

	result := make([]types.SegmentStats, 0, len(sessions))
	for _, session := range sessions {
		result = append(result, bucketStats(session, session, bySession[session]))
	}
	return result
}

// BySessionHour groups trades by session and local entry hour.
func BySessionHour(trades []*types.Trade) []types.SegmentStats {
	type sessionHour struct {
		session string
		hour    int
	}

	buckets := make(map[sessionHour][]*types.Trade)
	for _, t := range trades {
		session := SessionOf(t)
		if session == "" {
			continue
		}
		key := sessionHour{session: session, hour: entryHour(t)}
		buckets[key] = append(buckets[key], t)
	}

	keys := make([]sessionHour, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].session != keys[j].session {
			return sessionRank(keys[i].session) < sessionRank(keys[j].session)
		}
		return keys[i].hour < keys[j].hour
	})

	result := make([]types.SegmentStats, 0, len(keys))
	for _, key := range keys {
		id := fmt.Sprintf("%s-%02d", key.session, key.hour)
		label := fmt.Sprintf("%s %02d:00", key.session, key.hour)
		result = append(result, bucketStats(id, label, buckets[key]))
	}
	return result
}

// BySymbol groups trades by symbol, alphabetically.
func BySymbol(trades []*types.Trade) []types.SegmentStats {
	return byStringKey(trades, func(t *types.Trade) string {
		return strings.ToUpper(strings.TrimSpace(t.Symbol))
	})
}

// ByGrade groups trades by playbook setup grade, alphabetically.
func ByGrade(trades []*types.Trade) []types.SegmentStats {
	return byStringKey(trades, func(t *types.Trade) string {
		return strings.ToUpper(strings.TrimSpace(t.SetupGrade))
	})
}

func byStringKey(trades []*types.Trade, keyOf func(*types.Trade) string) []types.SegmentStats {
	buckets := make(map[string][]*types.Trade)
	for _, t := range trades {
		key := keyOf(t)
		if key == "" {
			continue
		}
		buckets[key] = append(buckets[key], t)
	}

	keys := make([]string, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := make([]types.SegmentStats, 0, len(keys))
	for _, key := range keys {
		result = append(result, bucketStats(key, key, buckets[key]))
	}
	return result
}

func bucketStats(key, label string, bucket []*types.Trade) types.SegmentStats {
	return types.SegmentStats{
		Key:    key,
		Label:  label,
		Trades: len(bucket),
		KPIs:   stats.Calculate(bucket),
	}
}

// SessionOf resolves a trade's session label. The explicit session field
// wins; otherwise the sessionHour code is decoded by its NY/L/A prefix.
func SessionOf(t *types.Trade) string {
	if s := normalizeSession(t.Session); s != "" {
		return s
	}
	if session, _, ok := decodeSessionHour(t.SessionHour); ok {
		return session
	}
	return ""
}

func normalizeSession(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return ""
	case "ny", "new york", "newyork", "us":
		return SessionNewYork
	case "london", "ldn", "uk", "eu":
		return SessionLondon
	case "asia", "tokyo", "sydney":
		return SessionAsia
	default:
		return SessionOther
	}
}

// decodeSessionHour parses codes like "NY9", "L14", "A2".
func decodeSessionHour(code string) (string, int, bool) {
	code = strings.TrimSpace(strings.ToUpper(code))
	if code == "" {
		return "", 0, false
	}

	var session, rest string
	switch {
	case strings.HasPrefix(code, "NY"):
		session, rest = SessionNewYork, code[2:]
	case strings.HasPrefix(code, "L"):
		session, rest = SessionLondon, code[1:]
	case strings.HasPrefix(code, "A"):
		session, rest = SessionAsia, code[1:]
	default:
		return "", 0, false
	}

	hour, err := strconv.Atoi(rest)
	if err != nil || hour < 0 || hour > 23 {
		return session, 0, true
	}
	return session, hour, true
}

func sessionRank(session string) int {
	if rank, ok := sessionOrder[session]; ok {
		return rank
	}
	return len(sessionOrder)
}

// entryHour returns the trade's local entry hour, preferring the intraday
// open time when present, else decoding the sessionHour code.
func entryHour(t *types.Trade) int {
	if t.OpenTime != "" {
		if parsed, err := time.Parse("15:04", t.OpenTime); err == nil {
			return parsed.Hour()
		}
	}
	if _, hour, ok := decodeSessionHour(t.SessionHour); ok {
		return hour
	}
	return t.EntryDate.Hour()
}

// HistogramR buckets the R-multiple distribution. binCount <= 0 selects a
// computed bin count from the sample size.
func HistogramR(trades []*types.Trade, binCount int) []types.HistogramBin {
	var values []float64
	for _, t := range journal.ClosedTrades(trades) {
		if r, ok := journal.RMultiple(t); ok {
			values = append(values, r)
		}
	}
	return histogram(values, binCount)
}

// HistogramMAE buckets recorded maximum adverse excursions (R-units).
func HistogramMAE(trades []*types.Trade, binCount int) []types.HistogramBin {
	var values []float64
	for _, t := range trades {
		if t.MAE != nil {
			values = append(values, *t.MAE)
		}
	}
	return histogram(values, binCount)
}

// HistogramMFE buckets recorded maximum favorable excursions (R-units).
func HistogramMFE(trades []*types.Trade, binCount int) []types.HistogramBin {
	var values []float64
	for _, t := range trades {
		if t.MFE != nil {
			values = append(values, *t.MFE)
		}
	}
	return histogram(values, binCount)
}

// HistogramHoldTime buckets hold times in minutes.
func HistogramHoldTime(trades []*types.Trade, binCount int) []types.HistogramBin {
	var values []float64
	for _, t := range trades {
		if minutes, ok := journal.HoldTime(t); ok {
			values = append(values, minutes)
		}
	}
	return histogram(values, binCount)
}

// histogram distributes values over equal-width bins. Every value lands in
// exactly one bin: the upper edge of the last bin is inclusive so boundary
// values are not dropped.
func histogram(values []float64, binCount int) []types.HistogramBin {
	if len(values) == 0 {
		return nil
	}
	if binCount <= 0 {
		binCount = computedBinCount(len(values))
	}

	min, max := values[0], values[0]
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	if min == max {
		return []types.HistogramBin{{
			From:  min,
			To:    max,
			Label: fmt.Sprintf("%.2f", min),
			Count: len(values),
		}}
	}

	width := (max - min) / float64(binCount)
	bins := make([]types.HistogramBin, binCount)
	for i := range bins {
		from := min + float64(i)*width
		bins[i] = types.HistogramBin{
			From:  from,
			To:    from + width,
			Label: fmt.Sprintf("%.2f – %.2f", from, from+width),
		}
	}

	for _, v := range values {
		idx := int((v - min) / width)
		if idx >= binCount {
			idx = binCount - 1
		}
		bins[idx].Count++
	}

	return bins
}

// computedBinCount applies Sturges' rule.
func computedBinCount(n int) int {
	count := int(math.Ceil(math.Log2(float64(n)))) + 1
	if count < 1 {
		count = 1
	}
	return count
}
