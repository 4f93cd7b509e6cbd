package dialect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/estado-transparente/transparencia-cli/internal/fault"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

const genericCSV = "entidad,categoria,anio,monto\n" +
	"Ministerio de Salud,Personal,2024,1500000.50\n" +
	"Ministerio de Educación,Bienes,2024,2300000\n" +
	"Poder Judicial,,2024,990000\n"

func TestParseGenericCSV(t *testing.T) {
	facts, err := ParseGenericCSV([]byte(genericCSV), "presupuesto_2024")
	require.NoError(t, err)
	require.Len(t, facts, 3)

	// Header is line 1, so data rows are lines 2..4.
	assert.Equal(t, "csv:line=2", facts[0].Location)
	assert.Equal(t, "csv:line=3", facts[1].Location)
	assert.Equal(t, "csv:line=4", facts[2].Location)

	assert.Equal(t, "ministerio_de_salud", facts[0].EntityKey)
	assert.Equal(t, "Ministerio de Salud", facts[0].EntityName)
	assert.Equal(t, "organismo", facts[0].EntityType)
	assert.Equal(t, "presupuesto_ejecutado", facts[0].MetricKey)
	assert.Equal(t, "CLP", facts[0].MetricUnit)
	assert.Equal(t, 1500000.50, facts[0].Value)
	assert.Equal(t, map[string]string{"category": "Personal"}, facts[0].Dims)
	assert.Nil(t, facts[2].Dims)

	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), facts[0].PeriodStart)
	assert.Equal(t, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), facts[0].PeriodEnd)
}

func TestParseGenericCSV_HeaderAliases(t *testing.T) {
	csv := "entity,year,amount\nACME,2023,100\n"
	facts, err := ParseGenericCSV([]byte(csv), "datos_misc")
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "monto", facts[0].MetricKey) // fallback metric
	assert.Equal(t, float64(100), facts[0].Value)
}

func TestParseGenericCSV_SkipsBadRows(t *testing.T) {
	csv := "entidad,anio,monto\n" +
		"Buena Entidad,2024,100\n" +
		",2024,200\n" + // no entity
		"Sin Año,veinte,300\n" + // bad year
		"Sin Monto,2024,mucho\n" + // bad amount
		"Otra Buena,2024,400\n"

	facts, err := ParseGenericCSV([]byte(csv), "gasto_2024")
	require.NoError(t, err)
	require.Len(t, facts, 2)
	assert.Equal(t, "csv:line=2", facts[0].Location)
	assert.Equal(t, "csv:line=6", facts[1].Location) // skipped lines still advance the counter
}

func TestParseGenericCSV_MissingRequiredHeader(t *testing.T) {
	csv := "nombre,anio,monto\nX,2024,1\n"
	_, err := ParseGenericCSV([]byte(csv), "gasto_2024")
	require.Error(t, err)
	assert.Equal(t, fault.KindAmbiguity, fault.KindOf(err))
	assert.Contains(t, err.Error(), "entity")

	csv = "entidad,anio\nX,2024\n"
	_, err = ParseGenericCSV([]byte(csv), "gasto_2024")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "amount")
}

func TestParseGenericCSV_EmptyInput(t *testing.T) {
	_, err := ParseGenericCSV(nil, "gasto_2024")
	require.Error(t, err)
	assert.Equal(t, fault.KindAmbiguity, fault.KindOf(err))
}

func TestParseGenericCSV_Deterministic(t *testing.T) {
	first, err := ParseGenericCSV([]byte(genericCSV), "presupuesto_2024")
	require.NoError(t, err)
	for range 5 {
		again, err := ParseGenericCSV([]byte(genericCSV), "presupuesto_2024")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestParseGenericCSV_BOM(t *testing.T) {
	facts, err := ParseGenericCSV([]byte("\xef\xbb\xbf"+genericCSV), "presupuesto_2024")
	require.NoError(t, err)
	assert.Len(t, facts, 3)
}
