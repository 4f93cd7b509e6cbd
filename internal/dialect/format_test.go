package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		mime     string
		path     string
		sourceID string
		want     Format
	}{
		{
			name:     "dipres prefix wins over everything",
			mime:     "application/vnd.ms-excel",
			path:     "/data/raw/x.raw",
			sourceID: "dipres_ley_presupuestos_2024",
			want:     Format{Kind: NamedDialect, Dialect: "dipres"},
		},
		{
			name:     "xlsx suffix",
			mime:     "application/octet-stream",
			path:     "/tmp/dotacion_2023.xlsx",
			sourceID: "dotacion_2023",
			want:     Format{Kind: Spreadsheet},
		},
		{
			name:     "spreadsheet mime",
			mime:     "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			path:     "/data/raw/x.raw",
			sourceID: "dotacion_2023",
			want:     Format{Kind: Spreadsheet},
		},
		{
			name:     "ms-excel mime",
			mime:     "application/ms-excel",
			path:     "/data/raw/x.raw",
			sourceID: "gasto_2022",
			want:     Format{Kind: Spreadsheet},
		},
		{
			name:     "csv fallback",
			mime:     "text/csv",
			path:     "/data/raw/x.raw",
			sourceID: "presupuesto_2024",
			want:     Format{Kind: GenericCSV},
		},
		{
			name:     "unknown everything falls back to csv",
			mime:     "",
			path:     "",
			sourceID: "",
			want:     Format{Kind: GenericCSV},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect(tt.mime, tt.path, tt.sourceID))
		})
	}
}

func TestFormat_Method(t *testing.T) {
	assert.Equal(t, "csv_parser_v1", Format{Kind: GenericCSV}.Method())
	assert.Equal(t, "xlsx_parser_v1", Format{Kind: Spreadsheet}.Method())
	assert.Equal(t, "dipres_parser_v1", Format{Kind: NamedDialect, Dialect: "dipres"}.Method())
}

func TestFormat_String(t *testing.T) {
	assert.Equal(t, "csv", Format{Kind: GenericCSV}.String())
	assert.Equal(t, "spreadsheet", Format{Kind: Spreadsheet}.String())
	assert.Equal(t, "dipres", Format{Kind: NamedDialect, Dialect: "dipres"}.String())
}

func TestMetricForSource(t *testing.T) {
	key, name := metricForSource("presupuesto_ejecutado_2024")
	assert.Equal(t, "presupuesto_ejecutado", key)
	assert.Equal(t, "Presupuesto Ejecutado", name)

	key, _ = metricForSource("gasto_regional_2023")
	assert.Equal(t, "gasto_total", key)

	key, name = metricForSource("dotacion_personal_2023")
	assert.Equal(t, "dotacion", key)
	assert.Equal(t, "Dotación de Personal", name)

	key, name = metricForSource("otros_datos")
	assert.Equal(t, "monto", key)
	assert.Equal(t, "Monto", name)
}
