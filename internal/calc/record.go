package calc

import (
	"time"

	"github.com/smiglya/Project.vsm/internal/models"
)

// RecalculateRecord re-derives every output field on the record, in order:
// mileage-since-service, remaining-to-service, days-since-service, rolling
// average, planned date (only when both the average and mileage-since-service
// resolved), the БЛОК and КП next dates, then both color indicators. Missing prerequisite inputs yield
// nil derived fields, never errors. Idempotent for unchanged history.
func (c *Calculator) RecalculateRecord(rec *models.DailyRecord, trainType string, lookup HistoryLookup) error {
	// mileage run since the last maintenance event
	if rec.LastTOMileage != nil {
		since := MileageSinceService(rec.TotalMileage, *rec.LastTOMileage)
		rec.MileageSinceTO = &since
	} else {
		rec.MileageSinceTO = nil
	}

	// remainder to the per-type service limit
	if rec.MileageSinceTO != nil {
		remaining := RemainingToService(c.thresholds.ServiceLimitFor(trainType), *rec.MileageSinceTO)
		rec.MileageToTO = &remaining
	} else {
		rec.MileageToTO = nil
	}

	// calendar days since the last maintenance event
	if rec.LastTODate != nil {
		days := DaysSinceService(rec.RecordDate, *rec.LastTODate)
		rec.DaysSinceTO = &days
	} else {
		rec.DaysSinceTO = nil
	}

	// rolling average over the trailing window
	avg, err := c.AverageDailyMileage(rec.TrainID, rec.RecordDate, c.thresholds.AvgWindowDays, lookup)
	if err != nil {
		return err
	}
	rec.AvgMileage = &avg

	// projected service date at the current pace
	if avg > 0 && rec.MileageToTO != nil {
		planned := PlannedServiceDate(models.DateOnly(rec.RecordDate), avg, *rec.MileageToTO)
		rec.PlannedTODate = &planned
	} else {
		rec.PlannedTODate = nil
	}

	// fixed-interval inspection cycle projections
	rec.NextBlockDate = c.NextBlockDate(rec.LastBlockDate)
	rec.NextKPDate = c.NextKPDate(rec.LastKPMeasureDate)

	dayColor := string(c.DayIndicator(rec.DaysSinceTO))
	rec.IndicatorColor = &dayColor

	mileageColor := string(c.MileageIndicator(rec.MileageSinceTO))
	rec.MileageIndicatorColor = &mileageColor

	return nil
}

// SapsanMetrics are the extra maintenance sub-cycle metrics tracked only
// for Sapsan trainsets
type SapsanMetrics struct {
	MileageFromTOL *int64 `json:"mileage_from_to_l,omitempty"`
	MileageToTOL   *int64 `json:"mileage_to_to_l,omitempty"`
	MileageToTON   *int64 `json:"mileage_to_to_n,omitempty"`
}

// SapsanRecordMetrics derives the ТО-L and ТО-N remainders from a record.
// Returns nil for non-Sapsan trains.
func (c *Calculator) SapsanRecordMetrics(rec *models.DailyRecord, trainType string) *SapsanMetrics {
	if trainType != models.TrainTypeSapsan {
		return nil
	}

	m := &SapsanMetrics{}
	if rec.TOLMileage != nil {
		fromL := MileageFromServiceL(rec.TotalMileage, *rec.TOLMileage)
		m.MileageFromTOL = &fromL
		toL := MileageToServiceL(c.thresholds.ServiceLLimit, fromL)
		m.MileageToTOL = &toL
	}
	if rec.TONMileage != nil {
		fromN := maxInt64(0, rec.TotalMileage-*rec.TONMileage)
		toN := MileageToServiceN(c.thresholds.ServiceNLimit, fromN)
		m.MileageToTON = &toN
	}
	return m
}

// Forecast reports when a train is expected to hit its maintenance limit
type Forecast struct {
	Status           string     `json:"status"` // forecast, overdue, insufficient_data, no_records
	Message          string     `json:"message,omitempty"`
	DaysToService    int        `json:"days_to_to,omitempty"`
	ForecastDate     *time.Time `json:"forecast_date,omitempty"`
	AvgDailyMileage  float64    `json:"avg_daily_mileage,omitempty"`
	RemainingMileage int64      `json:"remaining_mileage,omitempty"`
}

// MaintenanceForecast projects the next maintenance date from the latest
// record and the rolling average daily mileage
func (c *Calculator) MaintenanceForecast(trainID uint, latest *models.DailyRecord, today time.Time, lookup HistoryLookup) (Forecast, error) {
	if latest == nil {
		return Forecast{Status: "no_records", Message: "no records available for forecast"}, nil
	}

	avg, err := c.AverageDailyMileage(trainID, today, c.thresholds.AvgWindowDays, lookup)
	if err != nil {
		return Forecast{}, err
	}
	if avg == 0 {
		return Forecast{Status: "insufficient_data", Message: "not enough mileage history for forecast"}, nil
	}

	var since int64
	if latest.MileageSinceTO != nil {
		since = *latest.MileageSinceTO
	}

	remaining := c.thresholds.ForecastLimit - since
	if remaining <= 0 {
		return Forecast{Status: "overdue", Message: "maintenance required immediately"}, nil
	}

	days := int(float64(remaining) / avg)
	forecastDate := models.DateOnly(today).AddDate(0, 0, days)

	return Forecast{
		Status:           "forecast",
		DaysToService:    days,
		ForecastDate:     &forecastDate,
		AvgDailyMileage:  avg,
		RemainingMileage: remaining,
	}, nil
}
