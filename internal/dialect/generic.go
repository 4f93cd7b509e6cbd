package dialect

import (
	"bytes"
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/estado-transparente/transparencia-cli/internal/fault"
	"github.com/estado-transparente/transparencia-cli/internal/model"
)

// Header spellings accepted by the generic CSV format, matched exactly
// after trim and lowercase.
var (
	genericEntityAliases   = []string{"entidad", "entity", "organismo"}
	genericCategoryAliases = []string{"categoria", "category", "item"}
	genericYearAliases     = []string{"anio", "año", "year", "periodo"}
	genericAmountAliases   = []string{"monto", "amount", "valor"}
)

// ParseGenericCSV parses a comma-delimited disclosure file. The header is
// line 1; each data row yields one candidate with location "csv:line=<n>".
// Rows that fail to deserialize are skipped with a warning; missing
// required headers halt the parse.
func ParseGenericCSV(data []byte, sourceID string) ([]model.FactCandidate, error) {
	log := zap.L().With(zap.String("component", "dialect.csv"), zap.String("source_id", sourceID))

	reader := csv.NewReader(bytes.NewReader(stripBOM(data)))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fault.Wrap(fault.KindAmbiguity, err, "csv: read header")
	}

	entityIdx, err := findAlias(header, genericEntityAliases, "entity")
	if err != nil {
		return nil, err
	}
	yearIdx, err := findAlias(header, genericYearAliases, "year")
	if err != nil {
		return nil, err
	}
	amountIdx, err := findAlias(header, genericAmountAliases, "amount")
	if err != nil {
		return nil, err
	}
	categoryIdx, _ := findAlias(header, genericCategoryAliases, "category")

	metricKey, metricName := metricForSource(sourceID)

	var candidates []model.FactCandidate
	line := 1 // header is line 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			log.Warn("skipping malformed line", zap.Int("line", line), zap.Error(err))
			continue
		}

		entity := fieldAt(record, entityIdx)
		if entity == "" {
			log.Warn("skipping line without entity", zap.Int("line", line))
			continue
		}

		year, err := strconv.Atoi(fieldAt(record, yearIdx))
		if err != nil || year < minYear || year > maxYear {
			log.Warn("skipping line with unparseable year",
				zap.Int("line", line), zap.String("value", fieldAt(record, yearIdx)))
			continue
		}

		amount, err := strconv.ParseFloat(fieldAt(record, amountIdx), 64)
		if err != nil {
			log.Warn("skipping line with unparseable amount",
				zap.Int("line", line), zap.String("value", fieldAt(record, amountIdx)))
			continue
		}

		var dims map[string]string
		if categoryIdx >= 0 {
			if category := fieldAt(record, categoryIdx); category != "" {
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
			Location:    "csv:line=" + strconv.Itoa(line),
			Dims:        dims,
		})
	}

	return candidates, nil
}

// findAlias returns the index of the first header cell equal to one of the
// aliases (trimmed, case-insensitive), or an ambiguity error naming the
// missing semantic column. Alias order is the priority order.
func findAlias(header []string, aliases []string, semantic string) (int, error) {
	for _, alias := range aliases {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), alias) {
				return i, nil
			}
		}
	}
	return -1, fault.Errorf(fault.KindAmbiguity,
		"csv: required column %q not found in header (accepted: %s)",
		semantic, strings.Join(aliases, ", "))
}

// fieldAt returns the trimmed field at idx, or "" when the row is short.
func fieldAt(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}
