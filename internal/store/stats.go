package store

import (
	"time"
)

// GetStats aggregates dashboard counters over the given time range, using
// the same slice-of-query loop shape the donor uses for its briefing stats.
func (db *DB) GetStats(since time.Time) (*Stats, error) {
	s := &Stats{ByHospital: map[string]int{}, BySource: map[string]int{}}

	counters := []struct {
		sql  string
		dest *int
	}{
		{`SELECT COUNT(*) FROM sentiments WHERE processed_at >= ?`, &s.TotalSentiments},
		{`SELECT COUNT(*) FROM sentiments WHERE processed_at >= ? AND status = 'active'`, &s.ActiveSentiments},
		{`SELECT COUNT(*) FROM sentiments WHERE processed_at >= ? AND status = 'dismissed'`, &s.DismissedCount},
		{`SELECT COUNT(*) FROM sentiments WHERE processed_at >= ? AND severity = 'high'`, &s.HighSeverity},
		{`SELECT COUNT(*) FROM sentiments WHERE processed_at >= ? AND severity = 'medium'`, &s.MediumSeverity},
		{`SELECT COUNT(*) FROM sentiments WHERE processed_at >= ? AND severity = 'low'`, &s.LowSeverity},
		{`SELECT COUNT(*) FROM events WHERE last_seen_at >= ?`, &s.TotalEvents},
	}
	for _, c := range counters {
		if err := db.conn.QueryRow(c.sql, since).Scan(c.dest); err != nil {
			return nil, err
		}
	}

	hospitalRows, err := db.conn.Query(
		`SELECT hospital_name, COUNT(*) FROM sentiments WHERE processed_at >= ? GROUP BY hospital_name`, since,
	)
	if err != nil {
		return nil, err
	}
	defer hospitalRows.Close()
	for hospitalRows.Next() {
		var name string
		var n int
		if err := hospitalRows.Scan(&name, &n); err != nil {
			return nil, err
		}
		s.ByHospital[name] = n
	}
	if err := hospitalRows.Err(); err != nil {
		return nil, err
	}

	sourceRows, err := db.conn.Query(
		`SELECT COALESCE(source, ''), COUNT(*) FROM sentiments WHERE processed_at >= ? GROUP BY source`, since,
	)
	if err != nil {
		return nil, err
	}
	defer sourceRows.Close()
	for sourceRows.Next() {
		var name string
		var n int
		if err := sourceRows.Scan(&name, &n); err != nil {
			return nil, err
		}
		s.BySource[name] = n
	}
	return s, sourceRows.Err()
}

// TrendBucket describes how /api/stats/trend should group rows: hourly
// buckets over the last 24h, or daily buckets over 7d/30d.
type TrendBucket int

const (
	TrendHourly TrendBucket = iota
	TrendDaily
)

// GetTrend returns time-bucketed sentiment counts and average severity
// score, in the server's local zone, oldest bucket first.
func (db *DB) GetTrend(since time.Time, bucket TrendBucket) ([]TrendPoint, error) {
	rows, err := db.conn.Query(
		`SELECT processed_at, severity FROM sentiments WHERE processed_at >= ? ORDER BY processed_at ASC`, since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type acc struct {
		count int
		sum   float64
	}
	buckets := map[string]*acc{}
	var order []string

	for rows.Next() {
		var ts time.Time
		var severity string
		if err := rows.Scan(&ts, &severity); err != nil {
			return nil, err
		}
		ts = ts.Local()

		var label string
		if bucket == TrendHourly {
			label = ts.Format("15:00")
		} else {
			label = ts.Format("01-02")
		}

		a, ok := buckets[label]
		if !ok {
			a = &acc{}
			buckets[label] = a
			order = append(order, label)
		}
		a.count++
		a.sum += severityScore(severity)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	points := make([]TrendPoint, 0, len(order))
	for _, label := range order {
		a := buckets[label]
		avg := 0.0
		if a.count > 0 {
			avg = a.sum / float64(a.count)
		}
		points = append(points, TrendPoint{Label: label, Count: a.count, AvgScore: avg})
	}
	return points, nil
}

// severityScore maps a severity literal to the stable UI score spec pins.
func severityScore(severity string) float64 {
	switch severity {
	case "high":
		return 0.92
	case "medium":
		return 0.60
	default:
		return 0.35
	}
}
