// Package dialect classifies registered artifacts into a fixed set of file
// formats and parses each format into canonical fact candidates. Parsers
// are pure functions: identical bytes and source id always yield an
// identical, identically-ordered candidate list, and any condition not
// covered by a fixed rule halts with an ambiguity error instead of a guess.
package dialect

import (
	"strings"
	"time"

	"github.com/estado-transparente/transparencia-cli/internal/model"
)

// Kind is the format family of an artifact.
type Kind int

const (
	GenericCSV Kind = iota
	Spreadsheet
	NamedDialect
)

// Format is the tagged variant selected once by Detect. For NamedDialect,
// Dialect carries the dialect name. The dialect set is fixed and small;
// there is no plugin registration.
type Format struct {
	Kind    Kind
	Dialect string
}

func (f Format) String() string {
	switch f.Kind {
	case Spreadsheet:
		return "spreadsheet"
	case NamedDialect:
		return f.Dialect
	default:
		return "csv"
	}
}

// Method names the parser recorded in provenance rows for this format.
func (f Format) Method() string {
	switch f.Kind {
	case Spreadsheet:
		return "xlsx_parser_v1"
	case NamedDialect:
		return f.Dialect + "_parser_v1"
	default:
		return "csv_parser_v1"
	}
}

// Parse dispatches to the pure parser for this format.
func (f Format) Parse(data []byte, sourceID string) ([]model.FactCandidate, error) {
	switch f.Kind {
	case Spreadsheet:
		return ParseWorkbook(data, sourceID)
	case NamedDialect:
		return ParseDipres(data, sourceID)
	default:
		return ParseGenericCSV(data, sourceID)
	}
}

// dipresPrefix selects the DIPRES fiscal-law export dialect by source
// identifier prefix. Dialect selection never sniffs content; prefix match
// keeps detection deterministic and auditable.
const dipresPrefix = "dipres"

// Detect classifies an artifact from its mime type, storage path suffix,
// and source identifier. Pure classification, no I/O.
func Detect(mimeType, storagePath, sourceID string) Format {
	if strings.HasPrefix(sourceID, dipresPrefix) {
		return Format{Kind: NamedDialect, Dialect: "dipres"}
	}

	lowerPath := strings.ToLower(storagePath)
	lowerMime := strings.ToLower(mimeType)
	if strings.HasSuffix(lowerPath, ".xlsx") || strings.HasSuffix(lowerPath, ".xls") ||
		strings.Contains(lowerMime, "spreadsheet") || strings.Contains(lowerMime, "ms-excel") {
		return Format{Kind: Spreadsheet}
	}

	return Format{Kind: GenericCSV}
}

// yearPeriod maps a calendar year to its Jan 1 - Dec 31 period.
func yearPeriod(year int) (time.Time, time.Time) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
	return start, end
}

// metricForSource picks the metric identity by substring match on the
// source identifier against a fixed small vocabulary.
func metricForSource(sourceID string) (key, name string) {
	s := strings.ToLower(sourceID)
	switch {
	case strings.Contains(s, "presupuesto"):
		return "presupuesto_ejecutado", "Presupuesto Ejecutado"
	case strings.Contains(s, "gasto"):
		return "gasto_total", "Gasto Total"
	case strings.Contains(s, "dotacion"):
		return "dotacion", "Dotación de Personal"
	default:
		return "monto", "Monto"
	}
}
