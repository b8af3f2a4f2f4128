package liveness

import (
	"math"
	"testing"
	"time"
)

func TestWeightedUptime(t *testing.T) {
	now := time.Date(2026, 5, 10, 15, 30, 0, 0, time.UTC)
	day := func(ago int) time.Time { return now.AddDate(0, 0, -ago) }

	tests := []struct {
		name    string
		buckets []DayBucket
		want    float64
		wantOK  bool
	}{
		{
			name:   "no samples",
			wantOK: false,
		},
		{
			name:    "single perfect day",
			buckets: []DayBucket{{Day: day(0), Total: 10, Online: 10}},
			want:    100,
			wantOK:  true,
		},
		{
			name: "today down, oldest up",
			buckets: []DayBucket{
				{Day: day(0), Total: 10, Online: 0},
				{Day: day(6), Total: 10, Online: 10},
			},
			// 1.0*100 / (3.3 + 1.0)
			want:   100 / 4.3,
			wantOK: true,
		},
		{
			name: "outside window ignored",
			buckets: []DayBucket{
				{Day: day(7), Total: 10, Online: 0},
				{Day: day(1), Total: 4, Online: 2},
			},
			want:   50,
			wantOK: true,
		},
		{
			name:    "empty bucket ignored",
			buckets: []DayBucket{{Day: day(2), Total: 0}},
			wantOK:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := WeightedUptime(tt.buckets, now)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("WeightedUptime = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWeightedUptime_RecentDaysWeighMore(t *testing.T) {
	now := time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)
	recentGood := []DayBucket{
		{Day: now, Total: 10, Online: 10},
		{Day: now.AddDate(0, 0, -5), Total: 10, Online: 0},
	}
	recentBad := []DayBucket{
		{Day: now, Total: 10, Online: 0},
		{Day: now.AddDate(0, 0, -5), Total: 10, Online: 10},
	}
	good, _ := WeightedUptime(recentGood, now)
	bad, _ := WeightedUptime(recentBad, now)
	if good <= 50 || bad >= 50 {
		t.Errorf("recent-good = %v, recent-bad = %v; want recent day to dominate", good, bad)
	}
}
