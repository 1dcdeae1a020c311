package calc

import (
	"math"
	"time"

	"github.com/smiglya/Project.vsm/internal/config"
	"github.com/smiglya/Project.vsm/internal/models"
)

// Color is a traffic-light risk signal
type Color string

const (
	ColorGreen  Color = "green"
	ColorYellow Color = "yellow"
	ColorRed    Color = "red"
	ColorGray   Color = "gray" // missing inputs, no verdict
)

// Sample is one day's mileage reading used for the rolling average
type Sample struct {
	Date    time.Time
	Mileage *int
}

// HistoryLookup fetches mileage samples for a train within [from, to].
// The calculator never queries storage directly; history is injected.
type HistoryLookup func(trainID uint, from, to time.Time) ([]Sample, error)

// Calculator derives maintenance-readiness metrics from records and their
// trailing history. All formulas are deterministic given their inputs; the
// only shared state is the advisory rolling-average cache.
type Calculator struct {
	thresholds *config.ThresholdsConfig
	cache      *averageCache
}

// New creates a calculator with the given threshold table
func New(thresholds *config.ThresholdsConfig) *Calculator {
	return &Calculator{
		thresholds: thresholds,
		cache:      newAverageCache(thresholds.GetAvgCacheTTL()),
	}
}

// Thresholds returns the injected threshold table
func (c *Calculator) Thresholds() *config.ThresholdsConfig {
	return c.thresholds
}

// TotalMileage is the previous total plus the daily delta. No clamping.
func TotalMileage(previousTotal, dailyMileage int64) int64 {
	return previousTotal + dailyMileage
}

// DailyMileage is today's total minus yesterday's total.
// Negative deltas (odometer resets) are clamped to zero.
func DailyMileage(todayTotal, yesterdayTotal int64) int64 {
	return maxInt64(0, todayTotal-yesterdayTotal)
}

// MileageSinceService is total mileage minus the odometer
// reading at the last maintenance event
func MileageSinceService(totalMileage, lastServiceMileage int64) int64 {
	return maxInt64(0, totalMileage-lastServiceMileage)
}

// RemainingToService is the mileage limit minus mileage run since
// the last maintenance event
func RemainingToService(limit, sinceService int64) int64 {
	return maxInt64(0, limit-sinceService)
}

// DaysSinceService counts whole days between the last maintenance
// date and the current date
func DaysSinceService(currentDate, lastServiceDate time.Time) int {
	cur := models.DateOnly(currentDate)
	last := models.DateOnly(lastServiceDate)
	return int(cur.Sub(last).Hours() / 24)
}

// PlannedServiceDate projects the days until the limit is reached at the
// current average pace. Returns currentDate unchanged when either input
// cannot support a forecast.
func PlannedServiceDate(currentDate time.Time, avgDailyMileage float64, remainingMileage int64) time.Time {
	if avgDailyMileage <= 0 || remainingMileage <= 0 {
		return currentDate
	}
	daysToAdd := int(float64(remainingMileage) / avgDailyMileage)
	return currentDate.AddDate(0, 0, daysToAdd)
}

// NextBlockDate is the last БЛОК inspection plus the block interval.
// Nil-propagating.
func (c *Calculator) NextBlockDate(lastBlockDate *time.Time) *time.Time {
	return shiftDate(lastBlockDate, c.thresholds.BlockIntervalDays)
}

// NextKPDate is the last wheel-pair measurement plus the KP interval.
// Nil-propagating.
func (c *Calculator) NextKPDate(lastKPDate *time.Time) *time.Time {
	return shiftDate(lastKPDate, c.thresholds.KPIntervalDays)
}

// MileageFromServiceL is the Sapsan mileage run since ТО-L
func MileageFromServiceL(totalMileage, toLMileage int64) int64 {
	return maxInt64(0, totalMileage-toLMileage)
}

// MileageToServiceL is the Sapsan remainder to the ТО-L limit
func MileageToServiceL(limit, mileageFromServiceL int64) int64 {
	return maxInt64(0, limit-mileageFromServiceL)
}

// MileageToServiceN is the Sapsan remainder to the ТО-N limit
func MileageToServiceN(limit, mileageFromServiceN int64) int64 {
	return maxInt64(0, limit-mileageFromServiceN)
}

// DayIndicator grades elapsed days since the last maintenance event
func (c *Calculator) DayIndicator(daysSinceService *int) Color {
	if daysSinceService == nil {
		return ColorGray
	}
	switch {
	case *daysSinceService < c.thresholds.DaysWarn:
		return ColorGreen
	case *daysSinceService <= c.thresholds.DaysMax:
		return ColorYellow
	default:
		return ColorRed
	}
}

// MileageIndicator grades elapsed mileage since the last maintenance event.
// Independent of DayIndicator; the two may disagree.
func (c *Calculator) MileageIndicator(mileageSinceService *int64) Color {
	if mileageSinceService == nil {
		return ColorGray
	}
	switch {
	case *mileageSinceService < c.thresholds.MileageWarn:
		return ColorGreen
	case *mileageSinceService < c.thresholds.MileageMax:
		return ColorYellow
	default:
		return ColorRed
	}
}

// AverageDailyMileage is the mean daily mileage over the trailing
// window, excluding zero and missing entries (non-operating days).
// An empty window yields 0. Results are cached per (train, window) with a
// TTL; writers must call InvalidateTrain.
func (c *Calculator) AverageDailyMileage(trainID uint, asOf time.Time, windowDays int, lookup HistoryLookup) (float64, error) {
	if windowDays <= 0 {
		windowDays = c.thresholds.AvgWindowDays
	}

	if avg, ok := c.cache.get(trainID, windowDays); ok {
		return avg, nil
	}

	from := models.DateOnly(asOf).AddDate(0, 0, -windowDays)
	samples, err := lookup(trainID, from, models.DateOnly(asOf))
	if err != nil {
		return 0, err
	}

	var sum int64
	var count int
	for _, s := range samples {
		if s.Mileage == nil || *s.Mileage <= 0 {
			continue
		}
		sum += int64(*s.Mileage)
		count++
	}

	if count == 0 {
		return 0, nil
	}

	avg := math.Round(float64(sum)/float64(count)*100) / 100
	c.cache.set(trainID, windowDays, avg)
	return avg, nil
}

// InvalidateTrain drops cached averages for a train. Must be called
// whenever records inside the averaging window are written.
func (c *Calculator) InvalidateTrain(trainID uint) {
	c.cache.invalidateTrain(trainID)
}

// SweepCache removes expired average entries and returns how many were dropped
func (c *Calculator) SweepCache() int {
	return c.cache.sweep()
}

func shiftDate(d *time.Time, days int) *time.Time {
	if d == nil {
		return nil
	}
	next := d.AddDate(0, 0, days)
	return &next
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
