package excel

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/smiglya/Project.vsm/internal/calc"
	"github.com/smiglya/Project.vsm/internal/database"
	"github.com/smiglya/Project.vsm/internal/models"
	"github.com/xuri/excelize/v2"
)

// Column headers as they appear in the depot spreadsheets
const (
	ColTrain         = "Поезд"
	ColTrainType     = "Тип поезда"
	ColDepot         = "Депо"
	ColDate          = "Дата"
	ColTotalMileage  = "Общий пробег"
	ColDailyMileage  = "Суточный пробег"
	ColLastTOMileage = "Пробег последнего ТО"
	ColLastTODate    = "Дата последнего ТО"
	ColLastTOType    = "Вид последнего ТО"
	ColNextTOType    = "Вид следующего ТО"
	ColPlannedTODate = "Плановая дата ТО"
	ColLastBlockDate = "Дата последнего БЛОК"
	ColLastKPDate    = "Дата последнего БЗКП"
	ColInspections   = "Счетчик инспекций"
	ColSinceTO       = "Пробег с последнего ТО"
	ColToTO          = "Остаток до ТО"
	ColDaysSinceTO   = "Дней с последнего ТО"
	ColAvgMileage    = "Средний пробег"
	ColTOLMileage    = "Пробег ТО-L"
	ColTONMileage    = "Пробег ТО-N"
	ColIS510         = "Километраж IS510"
	ColIS520         = "Километраж IS520"
	ColIS530         = "Километраж IS530"
	ColManualTrain   = "Ручная индикация поезда"
	ColManualNextTO  = "Ручная индикация ТО"
)

const (
	exportSheet   = "Данные VSM"
	templateSheet = "Шаблон импорта"
	dateLayout    = "2006-01-02"
)

var requiredColumns = []string{ColTrain, ColDate, ColTotalMileage, ColDailyMileage}

var exportHeaders = []string{
	ColTrain, ColTrainType, ColDepot, ColDate,
	ColTotalMileage, ColDailyMileage,
	ColLastTOMileage, ColLastTODate, ColLastTOType, ColNextTOType, ColPlannedTODate,
	ColLastBlockDate, ColLastKPDate, ColInspections,
	ColSinceTO, ColToTO, ColDaysSinceTO, ColAvgMileage,
	ColTOLMileage, ColTONMileage, ColIS510, ColIS520, ColIS530,
	ColManualTrain, ColManualNextTO,
}

// Service reads and writes spreadsheet exports of daily records
type Service struct {
	db         *database.GormDB
	calculator *calc.Calculator
}

// NewService creates an Excel import/export service
func NewService(db *database.GormDB, calculator *calc.Calculator) *Service {
	return &Service{db: db, calculator: calculator}
}

// Export renders records into a workbook with the full column set
func (s *Service) Export(records []models.DailyRecord) (*excelize.File, error) {
	f := excelize.NewFile()
	f.SetSheetName("Sheet1", exportSheet)

	for i, h := range exportHeaders {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(exportSheet, cell, h); err != nil {
			return nil, err
		}
	}

	for rowIdx, r := range records {
		trainName, trainType, depotName := "", "", ""
		if r.Train != nil {
			trainName = r.Train.Name
			trainType = r.Train.Type
			if r.Train.Depot != nil {
				depotName = r.Train.Depot.Name
			}
		}

		values := []interface{}{
			trainName, trainType, depotName, r.RecordDate.Format(dateLayout),
			r.TotalMileage, intPtrCell(r.DailyMileage),
			int64PtrCell(r.LastTOMileage), datePtrCell(r.LastTODate),
			strPtrCell(r.LastTOType), strPtrCell(r.NextTOType), datePtrCell(r.PlannedTODate),
			datePtrCell(r.LastBlockDate), datePtrCell(r.LastKPMeasureDate),
			r.InspectionCounter,
			int64PtrCell(r.MileageSinceTO), int64PtrCell(r.MileageToTO),
			intPtrCell(r.DaysSinceTO), floatPtrCell(r.AvgMileage),
			int64PtrCell(r.TOLMileage), int64PtrCell(r.TONMileage),
			int64PtrCell(r.IS510Mileage), int64PtrCell(r.IS520Mileage), int64PtrCell(r.IS530Mileage),
			r.ManualIndicatorTrain, r.ManualIndicatorNextTO,
		}
		for colIdx, v := range values {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(exportSheet, cell, v); err != nil {
				return nil, err
			}
		}
	}

	return f, nil
}

// Template builds an import workbook with the required columns and sample rows
func (s *Service) Template() (*excelize.File, error) {
	f := excelize.NewFile()
	f.SetSheetName("Sheet1", templateSheet)

	rows := [][]interface{}{
		{ColTrain, ColDate, ColTotalMileage, ColDailyMileage},
		{"Ласточка-001", "2024-01-01", 150000, 500},
		{"Финист-002", "2024-01-01", 120000, 400},
	}
	for rowIdx, row := range rows {
		for colIdx, v := range row {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+1)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(templateSheet, cell, v); err != nil {
				return nil, err
			}
		}
	}

	return f, nil
}

// ImportResult summarizes an import run
type ImportResult struct {
	Created        int      `json:"created"`
	Updated        int      `json:"updated"`
	TotalProcessed int      `json:"total_processed"`
	Errors         []string `json:"errors"`
}

// Import loads records from a workbook. Rows that fail validation are
// reported individually and do not stop the import. When updateExisting
// is false, rows colliding with stored records are rejected.
func (s *Service) Import(reader io.Reader, sheetName string, skipRows int, updateExisting bool) (*ImportResult, error) {
	f, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if sheetName == "" {
		sheetName = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheetName, err)
	}
	if skipRows > 0 && skipRows < len(rows) {
		rows = rows[skipRows:]
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheetName)
	}

	header := rows[0]
	colIndex := make(map[string]int, len(header))
	for i, h := range header {
		colIndex[strings.TrimSpace(h)] = i
	}
	for _, required := range requiredColumns {
		if _, ok := colIndex[required]; !ok {
			return nil, fmt.Errorf("missing required column %q", required)
		}
	}

	result := &ImportResult{Errors: make([]string, 0)}
	touched := make(map[uint]bool)

	for i, row := range rows[1:] {
		rowNum := i + 2 // 1-based, after the header
		if emptyRow(row) {
			continue
		}
		result.TotalProcessed++

		if err := s.importRow(row, colIndex, updateExisting, result, touched); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", rowNum, err))
		}
	}

	for trainID := range touched {
		s.calculator.InvalidateTrain(trainID)
	}

	return result, nil
}

func (s *Service) importRow(row []string, colIndex map[string]int, updateExisting bool, result *ImportResult, touched map[uint]bool) error {
	get := func(col string) string {
		idx, ok := colIndex[col]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	trainName := get(ColTrain)
	if trainName == "" {
		return fmt.Errorf("train name is missing")
	}
	train, err := s.db.GetTrainByName(trainName)
	if err != nil {
		if database.IsNotFound(err) {
			return fmt.Errorf("train %q not found", trainName)
		}
		return err
	}

	recordDate, err := parseDate(get(ColDate))
	if err != nil {
		return fmt.Errorf("record date: %w", err)
	}
	if recordDate.IsZero() {
		return fmt.Errorf("record date is missing")
	}

	totalMileage, err := parseInt64(get(ColTotalMileage))
	if err != nil {
		return fmt.Errorf("total mileage: %w", err)
	}
	if totalMileage == nil {
		return fmt.Errorf("total mileage is missing")
	}

	existing, err := s.db.GetRecordForDate(train.ID, recordDate)
	if err != nil && !database.IsNotFound(err) {
		return err
	}

	var rec *models.DailyRecord
	if existing != nil {
		if !updateExisting {
			return fmt.Errorf("record for train %q on %s already exists", trainName, recordDate.Format(dateLayout))
		}
		rec = existing
	} else {
		rec = &models.DailyRecord{TrainID: train.ID, RecordDate: recordDate}
	}

	rec.TotalMileage = clampNonNegative(*totalMileage)
	if v, err := parseIntPtr(get(ColDailyMileage)); err != nil {
		return fmt.Errorf("daily mileage: %w", err)
	} else if v != nil {
		clamped := clampNonNegativeInt(*v)
		rec.DailyMileage = &clamped
	}

	if err := applyOptionalFields(rec, get); err != nil {
		return err
	}

	lookup := s.db.HistorySamples
	if err := s.calculator.RecalculateRecord(rec, train.Type, lookup); err != nil {
		return fmt.Errorf("recalculate: %w", err)
	}

	if existing != nil {
		if err := s.db.SaveRecord(rec); err != nil {
			return err
		}
		result.Updated++
	} else {
		if err := s.db.CreateRecord(rec); err != nil {
			return err
		}
		result.Created++
	}
	touched[train.ID] = true
	return nil
}

func applyOptionalFields(rec *models.DailyRecord, get func(string) string) error {
	if v, err := parseInt64(get(ColLastTOMileage)); err != nil {
		return fmt.Errorf("last maintenance mileage: %w", err)
	} else if v != nil {
		clamped := clampNonNegative(*v)
		rec.LastTOMileage = &clamped
	}

	dateFields := []struct {
		col    string
		target **time.Time
	}{
		{ColLastTODate, &rec.LastTODate},
		{ColLastBlockDate, &rec.LastBlockDate},
		{ColLastKPDate, &rec.LastKPMeasureDate},
	}
	for _, df := range dateFields {
		raw := get(df.col)
		if raw == "" {
			continue
		}
		d, err := parseDate(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", df.col, err)
		}
		*df.target = &d
	}

	if v := get(ColLastTOType); v != "" {
		if !models.ValidMaintenanceType(v) {
			return fmt.Errorf("unknown maintenance type %q", v)
		}
		rec.LastTOType = &v
	}
	if v := get(ColNextTOType); v != "" {
		if !models.ValidMaintenanceType(v) {
			return fmt.Errorf("unknown maintenance type %q", v)
		}
		rec.NextTOType = &v
	}

	if v, err := parseIntPtr(get(ColInspections)); err != nil {
		return fmt.Errorf("inspection counter: %w", err)
	} else if v != nil {
		rec.InspectionCounter = clampNonNegativeInt(*v)
	}

	sapsanFields := []struct {
		col    string
		target **int64
	}{
		{ColTOLMileage, &rec.TOLMileage},
		{ColTONMileage, &rec.TONMileage},
		{ColIS510, &rec.IS510Mileage},
		{ColIS520, &rec.IS520Mileage},
		{ColIS530, &rec.IS530Mileage},
	}
	for _, sf := range sapsanFields {
		v, err := parseInt64(get(sf.col))
		if err != nil {
			return fmt.Errorf("%s: %w", sf.col, err)
		}
		if v != nil {
			clamped := clampNonNegative(*v)
			*sf.target = &clamped
		}
	}

	rec.ManualIndicatorTrain = parseBool(get(ColManualTrain))
	rec.ManualIndicatorNextTO = parseBool(get(ColManualNextTO))
	return nil
}

func emptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

var dateLayouts = []string{dateLayout, "02.01.2006", "01-02-06", "2006-01-02 15:04:05", "1/2/06 15:04"}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return models.DateOnly(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}

func parseInt64(raw string) (*int64, error) {
	if raw == "" || isNA(raw) {
		return nil, nil
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q", raw)
	}
	v := int64(f)
	return &v, nil
}

func parseIntPtr(raw string) (*int, error) {
	v, err := parseInt64(raw)
	if err != nil || v == nil {
		return nil, err
	}
	i := int(*v)
	return &i, nil
}

func parseBool(raw string) bool {
	switch strings.ToLower(raw) {
	case "true", "1", "да", "истина", "yes":
		return true
	}
	return false
}

func isNA(raw string) bool {
	switch strings.ToUpper(raw) {
	case "N/A", "NULL", "-":
		return true
	}
	return false
}

func clampNonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

func clampNonNegativeInt(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

func intPtrCell(v *int) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func int64PtrCell(v *int64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func floatPtrCell(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func strPtrCell(v *string) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func datePtrCell(v *time.Time) interface{} {
	if v == nil {
		return ""
	}
	return v.Format(dateLayout)
}
