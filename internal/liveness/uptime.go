package liveness

import "time"

const (
	uptimeWindowDays = 7
	uptimeMinWeight  = 1.0
	uptimeMaxWeight  = 3.3
)

// DayBucket counts probe results for one UTC day.
type DayBucket struct {
	Day    time.Time
	Total  int
	Online int
}

// WeightedUptime returns the uptime percentage over the trailing seven
// days, weighting each day linearly from 1.0 (oldest) to 3.3 (today).
// Buckets outside the window or without samples are ignored; ok is false
// when nothing remains.
func WeightedUptime(buckets []DayBucket, now time.Time) (pct float64, ok bool) {
	today := dayStart(now)
	step := (uptimeMaxWeight - uptimeMinWeight) / float64(uptimeWindowDays-1)

	var sum, weights float64
	for _, b := range buckets {
		if b.Total <= 0 {
			continue
		}
		age := int(today.Sub(dayStart(b.Day)).Hours() / 24)
		if age < 0 || age >= uptimeWindowDays {
			continue
		}
		w := uptimeMinWeight + float64(uptimeWindowDays-1-age)*step
		sum += w * float64(b.Online) / float64(b.Total) * 100
		weights += w
	}
	if weights == 0 {
		return 0, false
	}
	return sum / weights, true
}

func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// dayNumber is the UTC day index stored with history rows for bucketing.
func dayNumber(t time.Time) int64 {
	return dayStart(t).Unix() / 86400
}
