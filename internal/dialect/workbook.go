package dialect

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/estado-transparente/transparencia-cli/internal/fault"
	"github.com/estado-transparente/transparencia-cli/internal/model"
)

// Candidate header names for the spreadsheet format, matched by
// case-insensitive substring. List order is the priority order.
var (
	sheetEntityCandidates   = []string{"entidad", "entity", "organismo", "institucion", "nombre"}
	sheetAmountCandidates   = []string{"monto", "amount", "valor", "total"}
	sheetYearCandidates     = []string{"anio", "año", "year", "periodo"}
	sheetCategoryCandidates = []string{"categoria", "category", "item", "glosa"}
)

// ParseWorkbook parses the first sheet of a spreadsheet workbook. The
// header is sheet row 0. Entity and amount columns are required; when no
// year column exists the year comes from the source id. A row with no
// usable entity or a zero or unparseable amount is skipped, not fatal.
func ParseWorkbook(data []byte, sourceID string) ([]model.FactCandidate, error) {
	log := zap.L().With(zap.String("component", "dialect.xlsx"), zap.String("source_id", sourceID))

	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, fault.Wrap(fault.KindAmbiguity, err, "xlsx: open workbook")
	}
	if len(f.Sheets) == 0 {
		return nil, fault.New(fault.KindAmbiguity, "xlsx: workbook has no sheets")
	}

	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, fault.New(fault.KindAmbiguity, "xlsx: first sheet is empty")
	}

	header := rowStrings(sheet.Rows[0])

	entityIdx := findColumn(header, sheetEntityCandidates)
	if entityIdx < 0 {
		return nil, fault.Errorf(fault.KindAmbiguity,
			"xlsx: entity column not found in header (accepted substrings: %s)",
			strings.Join(sheetEntityCandidates, ", "))
	}
	amountIdx := findColumn(header, sheetAmountCandidates)
	if amountIdx < 0 {
		return nil, fault.Errorf(fault.KindAmbiguity,
			"xlsx: amount column not found in header (accepted substrings: %s)",
			strings.Join(sheetAmountCandidates, ", "))
	}
	yearIdx := findColumn(header, sheetYearCandidates)
	categoryIdx := findColumn(header, sheetCategoryCandidates)

	// Without a year column, the year must come from the source id.
	sourceYear := 0
	if yearIdx < 0 {
		sourceYear, err = YearFromSourceID(sourceID)
		if err != nil {
			return nil, fault.Errorf(fault.KindAmbiguity,
				"xlsx: no year column in header and no year in source id %q", sourceID)
		}
	}

	metricKey, metricName := metricForSource(sourceID)

	var candidates []model.FactCandidate
	for rowIdx := 1; rowIdx < len(sheet.Rows); rowIdx++ {
		cells := rowStrings(sheet.Rows[rowIdx])

		entity := fieldAt(cells, entityIdx)
		if entity == "" {
			log.Warn("skipping row without entity", zap.Int("row", rowIdx))
			continue
		}

		year := sourceYear
		if yearIdx >= 0 {
			year, err = strconv.Atoi(fieldAt(cells, yearIdx))
			if err != nil || year < minYear || year > maxYear {
				log.Warn("skipping row with unparseable year",
					zap.Int("row", rowIdx), zap.String("value", fieldAt(cells, yearIdx)))
				continue
			}
		}

		amount, err := coerceAmount(fieldAt(cells, amountIdx))
		if err != nil || amount == 0 {
			log.Warn("skipping row with unusable amount",
				zap.Int("row", rowIdx), zap.String("value", fieldAt(cells, amountIdx)))
			continue
		}

		var dims map[string]string
		if categoryIdx >= 0 {
			if category := fieldAt(cells, categoryIdx); category != "" {
				dims = map[string]string{"category": category}
			}
		}

		start, end := yearPeriod(year)
		candidates = append(candidates, model.FactCandidate{
			EntityKey:   NormalizeKey(entity),
			EntityName:  entity,
			EntityType:  "organismo",
			MetricKey:   metricKey,
			MetricName:  metricName,
			MetricUnit:  "CLP",
			PeriodStart: start,
			PeriodEnd:   end,
			Value:       amount,
			Location:    fmt.Sprintf("xls:sheet='%s':row=%d", sheet.Name, rowIdx),
			Dims:        dims,
		})
	}

	return candidates, nil
}

// findColumn returns the first column whose header contains one of the
// candidate substrings (case-insensitive), trying candidates in priority
// order. Returns -1 when nothing matches.
func findColumn(header []string, candidates []string) int {
	for _, cand := range candidates {
		for i, h := range header {
			if strings.Contains(strings.ToLower(strings.TrimSpace(h)), cand) {
				return i
			}
		}
	}
	return -1
}

func rowStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for i, cell := range row.Cells {
		cells[i] = cell.String()
	}
	return cells
}
