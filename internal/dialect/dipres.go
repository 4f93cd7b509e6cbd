package dialect

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/estado-transparente/transparencia-cli/internal/fault"
	"github.com/estado-transparente/transparencia-cli/internal/model"
)

// dipresColumns is the exact ordered header of the DIPRES fiscal-law
// export. This format is exact by specification: any mismatch in count or
// name is fatal, never fuzzy-matched.
var dipresColumns = []string{
	"PARTIDA", "CAPITULO", "PROGRAMA", "SUBTITULO", "ITEM",
	"ASIGNACION", "DENOMINACION", "MONTO_PESOS", "MONTO_DOLARES",
}

// Column positions within dipresColumns.
const (
	dipresColPartida      = 0
	dipresColDenominacion = 6
	dipresColMontoPesos   = 7
	dipresColMontoDolares = 8
)

// dipresGroup accumulates one partida's rows during aggregation.
type dipresGroup struct {
	code      string
	name      string // first row's DENOMINACION wins
	sumPesos  int64
	firstLine int
	lastLine  int
	rows      int
}

// ParseDipres parses the semicolon-delimited DIPRES budget-law export.
// Rows are grouped by the leading PARTIDA code into aggregated facts:
// value = 1000 × sum of MONTO_PESOS (source units are thousands of pesos).
// Output is ordered by normalized entity key so it is reproducible
// regardless of input row order. The fiscal year comes from the source id.
func ParseDipres(data []byte, sourceID string) ([]model.FactCandidate, error) {
	log := zap.L().With(zap.String("component", "dialect.dipres"), zap.String("source_id", sourceID))

	year, err := YearFromSourceID(sourceID)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(stripBOM(data)))
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fault.Wrap(fault.KindAmbiguity, err, "dipres: read header")
	}
	if err := checkDipresHeader(header); err != nil {
		return nil, err
	}

	groups := make(map[string]*dipresGroup)
	line := 1 // header is line 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil || len(record) != len(dipresColumns) {
			log.Warn("skipping structurally invalid line",
				zap.Int("line", line), zap.Int("fields", len(record)), zap.Error(err))
			continue
		}

		code := strings.TrimSpace(record[dipresColPartida])
		if code == "" {
			log.Warn("skipping line without partida code", zap.Int("line", line))
			continue
		}

		pesos, err := strconv.ParseInt(strings.TrimSpace(record[dipresColMontoPesos]), 10, 64)
		if err != nil {
			return nil, fault.Errorf(fault.KindAmbiguity,
				"dipres: MONTO_PESOS %q at line %d is not an integer",
				record[dipresColMontoPesos], line)
		}
		if _, err := dipresDolares(record[dipresColMontoDolares]); err != nil {
			return nil, fault.Errorf(fault.KindAmbiguity,
				"dipres: MONTO_DOLARES %q at line %d is not an integer",
				record[dipresColMontoDolares], line)
		}

		g, ok := groups[code]
		if !ok {
			g = &dipresGroup{
				code:      code,
				name:      strings.TrimSpace(record[dipresColDenominacion]),
				firstLine: line,
			}
			groups[code] = g
		}
		g.sumPesos += pesos
		g.lastLine = line
		g.rows++
	}

	if len(groups) == 0 {
		return nil, fault.New(fault.KindAmbiguity, "dipres: no facts parsed")
	}

	ordered := make([]*dipresGroup, 0, len(groups))
	for _, g := range groups {
		ordered = append(ordered, g)
	}
	sort.Slice(ordered, func(i, j int) bool {
		ki, kj := NormalizeKey(ordered[i].name), NormalizeKey(ordered[j].name)
		if ki != kj {
			return ki < kj
		}
		return ordered[i].code < ordered[j].code
	})

	start, end := yearPeriod(year)
	candidates := make([]model.FactCandidate, 0, len(ordered))
	for _, g := range ordered {
		candidates = append(candidates, model.FactCandidate{
			EntityKey:   NormalizeKey(g.name),
			EntityName:  g.name,
			EntityType:  "partida",
			MetricKey:   "presupuesto_ley",
			MetricName:  "Presupuesto Ley de Presupuestos",
			MetricUnit:  "CLP",
			PeriodStart: start,
			PeriodEnd:   end,
			Value:       float64(g.sumPesos) * 1000, // source units are thousands of CLP
			Location: fmt.Sprintf("dipres:partida=%s:lines=%d-%d:rows=%d",
				g.code, g.firstLine, g.lastLine, g.rows),
			Dims: map[string]string{"partida": g.code},
		})
	}

	return candidates, nil
}

// checkDipresHeader requires the full ordered header to equal the known
// column list exactly.
func checkDipresHeader(header []string) error {
	if len(header) != len(dipresColumns) {
		return fault.Errorf(fault.KindAmbiguity,
			"dipres: header has %d columns, want %d", len(header), len(dipresColumns))
	}
	for i, want := range dipresColumns {
		if strings.TrimSpace(header[i]) != want {
			return fault.Errorf(fault.KindAmbiguity,
				"dipres: header column %d is %q, want %q", i, strings.TrimSpace(header[i]), want)
		}
	}
	return nil
}

// dipresDolares parses the optional second numeric column, defaulting to
// zero when blank.
func dipresDolares(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
