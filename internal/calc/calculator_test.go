package calc

import (
	"math"
	"testing"
	"time"

	"github.com/smiglya/Project.vsm/internal/config"
)

func newTestCalculator() *Calculator {
	return New(&config.DefaultConfig().Thresholds)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func intPtr(v int) *int          { return &v }
func int64Ptr(v int64) *int64    { return &v }
func datePtr(t time.Time) *time.Time { return &t }

func TestTotalMileage(t *testing.T) {
	tests := []struct {
		name     string
		previous int64
		daily    int64
		expected int64
	}{
		{"normal accumulation", 100000, 500, 100500},
		{"zero delta", 100000, 0, 100000},
		{"negative correction is not clamped", 100000, -300, 99700},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TotalMileage(tt.previous, tt.daily); got != tt.expected {
				t.Errorf("TotalMileage(%d, %d) = %d, want %d", tt.previous, tt.daily, got, tt.expected)
			}
		})
	}
}

func TestDailyMileage(t *testing.T) {
	tests := []struct {
		name      string
		today     int64
		yesterday int64
		expected  int64
	}{
		{"normal day", 100500, 100000, 500},
		{"no movement", 100000, 100000, 0},
		{"odometer reset clamps to zero", 99000, 100000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DailyMileage(tt.today, tt.yesterday); got != tt.expected {
				t.Errorf("DailyMileage(%d, %d) = %d, want %d", tt.today, tt.yesterday, got, tt.expected)
			}
		})
	}
}

func TestMileageSinceAndRemaining(t *testing.T) {
	if got := MileageSinceService(105000, 100000); got != 5000 {
		t.Errorf("MileageSinceService = %d, want 5000", got)
	}
	if got := MileageSinceService(100000, 105000); got != 0 {
		t.Errorf("MileageSinceService with stale odometer = %d, want 0", got)
	}
	if got := RemainingToService(15000, 5000); got != 10000 {
		t.Errorf("RemainingToService = %d, want 10000", got)
	}
	if got := RemainingToService(15000, 20000); got != 0 {
		t.Errorf("RemainingToService past the limit = %d, want 0", got)
	}
}

func TestDaysSinceService(t *testing.T) {
	tests := []struct {
		name     string
		current  time.Time
		last     time.Time
		expected int
	}{
		{"same day", date(2024, 3, 15), date(2024, 3, 15), 0},
		{"thirty days", date(2024, 3, 31), date(2024, 3, 1), 30},
		{"time of day is ignored", date(2024, 3, 2).Add(23 * time.Hour), date(2024, 3, 1).Add(1 * time.Hour), 1},
		{"across month boundary", date(2024, 4, 10), date(2024, 2, 25), 45},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DaysSinceService(tt.current, tt.last); got != tt.expected {
				t.Errorf("DaysSinceService = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestPlannedServiceDate(t *testing.T) {
	cur := date(2024, 3, 1)

	// 10000 km remaining at 500 km/day lands 20 days out
	if got := PlannedServiceDate(cur, 500, 10000); !got.Equal(date(2024, 3, 21)) {
		t.Errorf("PlannedServiceDate = %v, want %v", got, date(2024, 3, 21))
	}

	// fractional days are floored, not rounded
	if got := PlannedServiceDate(cur, 400, 999); !got.Equal(date(2024, 3, 3)) {
		t.Errorf("PlannedServiceDate = %v, want %v", got, date(2024, 3, 3))
	}

	// no average or no headroom returns the current date unchanged
	if got := PlannedServiceDate(cur, 0, 10000); !got.Equal(cur) {
		t.Errorf("PlannedServiceDate with zero average = %v, want current date", got)
	}
	if got := PlannedServiceDate(cur, 500, 0); !got.Equal(cur) {
		t.Errorf("PlannedServiceDate with no headroom = %v, want current date", got)
	}
}

func TestNextInspectionDates(t *testing.T) {
	c := newTestCalculator()

	block := c.NextBlockDate(datePtr(date(2024, 3, 1)))
	if block == nil || !block.Equal(date(2024, 4, 15)) {
		t.Errorf("NextBlockDate = %v, want 2024-04-15", block)
	}
	if c.NextBlockDate(nil) != nil {
		t.Error("NextBlockDate(nil) should be nil")
	}

	kp := c.NextKPDate(datePtr(date(2024, 3, 1)))
	if kp == nil || !kp.Equal(date(2024, 3, 31)) {
		t.Errorf("NextKPDate = %v, want 2024-03-31", kp)
	}
	if c.NextKPDate(nil) != nil {
		t.Error("NextKPDate(nil) should be nil")
	}
}

func TestDayIndicator(t *testing.T) {
	c := newTestCalculator()

	tests := []struct {
		name     string
		days     *int
		expected Color
	}{
		{"nil is gray", nil, ColorGray},
		{"zero days", intPtr(0), ColorGreen},
		{"one below warning", intPtr(44), ColorGreen},
		{"warning boundary", intPtr(45), ColorYellow},
		{"upper warning boundary", intPtr(55), ColorYellow},
		{"one past maximum", intPtr(56), ColorRed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.DayIndicator(tt.days); got != tt.expected {
				t.Errorf("DayIndicator(%v) = %s, want %s", tt.days, got, tt.expected)
			}
		})
	}
}

func TestMileageIndicator(t *testing.T) {
	c := newTestCalculator()

	tests := []struct {
		name     string
		mileage  *int64
		expected Color
	}{
		{"nil is gray", nil, ColorGray},
		{"fresh", int64Ptr(0), ColorGreen},
		{"one below warning", int64Ptr(22999), ColorGreen},
		{"warning boundary", int64Ptr(23000), ColorYellow},
		{"one below maximum", int64Ptr(24999), ColorYellow},
		{"maximum boundary", int64Ptr(25000), ColorRed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.MileageIndicator(tt.mileage); got != tt.expected {
				t.Errorf("MileageIndicator(%v) = %s, want %s", tt.mileage, got, tt.expected)
			}
		})
	}
}

// staticLookup returns the same samples for every call and counts calls
type staticLookup struct {
	samples []Sample
	calls   int
}

func (s *staticLookup) fn(trainID uint, from, to time.Time) ([]Sample, error) {
	s.calls++
	return s.samples, nil
}

func constantSamples(n, mileage int) []Sample {
	samples := make([]Sample, n)
	base := date(2024, 1, 1)
	for i := range samples {
		m := mileage
		samples[i] = Sample{Date: base.AddDate(0, 0, i), Mileage: &m}
	}
	return samples
}

func TestAverageDailyMileage(t *testing.T) {
	asOf := date(2024, 3, 31)

	t.Run("constant history", func(t *testing.T) {
		c := newTestCalculator()
		lookup := &staticLookup{samples: constantSamples(90, 500)}
		avg, err := c.AverageDailyMileage(1, asOf, 90, lookup.fn)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if avg != 500 {
			t.Errorf("avg = %v, want 500", avg)
		}
	})

	t.Run("zero and missing entries are excluded", func(t *testing.T) {
		c := newTestCalculator()
		samples := []Sample{
			{Date: date(2024, 3, 1), Mileage: intPtr(400)},
			{Date: date(2024, 3, 2), Mileage: intPtr(0)},
			{Date: date(2024, 3, 3), Mileage: nil},
			{Date: date(2024, 3, 4), Mileage: intPtr(600)},
		}
		lookup := &staticLookup{samples: samples}
		avg, err := c.AverageDailyMileage(1, asOf, 90, lookup.fn)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if avg != 500 {
			t.Errorf("avg = %v, want 500 (mean of 400 and 600)", avg)
		}
	})

	t.Run("all idle days yield zero", func(t *testing.T) {
		c := newTestCalculator()
		lookup := &staticLookup{samples: constantSamples(30, 0)}
		avg, err := c.AverageDailyMileage(1, asOf, 90, lookup.fn)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if avg != 0 {
			t.Errorf("avg = %v, want 0", avg)
		}
	})

	t.Run("result is rounded to two decimals", func(t *testing.T) {
		c := newTestCalculator()
		samples := []Sample{
			{Date: date(2024, 3, 1), Mileage: intPtr(100)},
			{Date: date(2024, 3, 2), Mileage: intPtr(100)},
			{Date: date(2024, 3, 3), Mileage: intPtr(101)},
		}
		lookup := &staticLookup{samples: samples}
		avg, err := c.AverageDailyMileage(1, asOf, 90, lookup.fn)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if math.Abs(avg-100.33) > 1e-9 {
			t.Errorf("avg = %v, want 100.33", avg)
		}
	})

	t.Run("second call hits the cache", func(t *testing.T) {
		c := newTestCalculator()
		lookup := &staticLookup{samples: constantSamples(10, 500)}
		if _, err := c.AverageDailyMileage(1, asOf, 90, lookup.fn); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := c.AverageDailyMileage(1, asOf, 90, lookup.fn); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if lookup.calls != 1 {
			t.Errorf("lookup called %d times, want 1", lookup.calls)
		}
	})

	t.Run("invalidation forces a reload", func(t *testing.T) {
		c := newTestCalculator()
		lookup := &staticLookup{samples: constantSamples(10, 500)}
		c.AverageDailyMileage(1, asOf, 90, lookup.fn)
		c.InvalidateTrain(1)
		c.AverageDailyMileage(1, asOf, 90, lookup.fn)
		if lookup.calls != 2 {
			t.Errorf("lookup called %d times, want 2", lookup.calls)
		}
	})

	t.Run("invalidation is per train", func(t *testing.T) {
		c := newTestCalculator()
		lookup := &staticLookup{samples: constantSamples(10, 500)}
		c.AverageDailyMileage(1, asOf, 90, lookup.fn)
		c.AverageDailyMileage(2, asOf, 90, lookup.fn)
		c.InvalidateTrain(1)
		c.AverageDailyMileage(2, asOf, 90, lookup.fn)
		if lookup.calls != 2 {
			t.Errorf("lookup called %d times, want 2 (train 2 stays cached)", lookup.calls)
		}
	})

	t.Run("empty result is not cached", func(t *testing.T) {
		c := newTestCalculator()
		lookup := &staticLookup{samples: nil}
		c.AverageDailyMileage(1, asOf, 90, lookup.fn)
		c.AverageDailyMileage(1, asOf, 90, lookup.fn)
		if lookup.calls != 2 {
			t.Errorf("lookup called %d times, want 2 (zero average must not stick)", lookup.calls)
		}
	})
}

func TestSweepCache(t *testing.T) {
	thresholds := config.DefaultConfig().Thresholds
	thresholds.AvgCacheTTLMinutes = 0 // entries expire immediately
	c := New(&thresholds)

	lookup := &staticLookup{samples: constantSamples(10, 500)}
	c.AverageDailyMileage(1, date(2024, 3, 31), 90, lookup.fn)

	time.Sleep(5 * time.Millisecond)
	if removed := c.SweepCache(); removed != 1 {
		t.Errorf("SweepCache removed %d entries, want 1", removed)
	}
	if removed := c.SweepCache(); removed != 0 {
		t.Errorf("second SweepCache removed %d entries, want 0", removed)
	}
}
