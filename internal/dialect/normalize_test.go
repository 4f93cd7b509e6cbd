package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estado-transparente/transparencia-cli/internal/fault"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Ministerio de Salud  ", "ministerio_de_salud"},
		{"Ministerio de Educación", "ministerio_de_educación"}, // diacritics preserved
		{"Contraloría General de la República", "contraloría_general_de_la_república"},
		{"S.E.R.V.I.U.", "serviu"},
		{"Gobierno   Regional", "gobierno_regional"}, // whitespace runs collapse
		{"Partida 01", "partida_01"},
		{"", ""},
		{"---", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeKey(tt.in), "input: %q", tt.in)
	}
}

func TestYearFromSourceID(t *testing.T) {
	year, err := YearFromSourceID("dipres_ley_presupuestos_2024")
	require.NoError(t, err)
	assert.Equal(t, 2024, year)

	// First plausible token wins.
	year, err = YearFromSourceID("gasto_2019_revision_2021")
	require.NoError(t, err)
	assert.Equal(t, 2019, year)

	// Longer digit runs are not years.
	_, err = YearFromSourceID("serie_20240101")
	require.Error(t, err)
	assert.Equal(t, fault.KindAmbiguity, fault.KindOf(err))

	// Out-of-range four-digit tokens are not years.
	_, err = YearFromSourceID("codigo_9999")
	require.Error(t, err)

	_, err = YearFromSourceID("presupuesto_anual")
	require.Error(t, err)

	// Token at the end of the string.
	year, err = YearFromSourceID("presupuesto2023")
	require.NoError(t, err)
	assert.Equal(t, 2023, year)
}

func TestCoerceAmount(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"1000", 1000},
		{"1500.75", 1500.75},
		{"1.234.567", 1234567},   // dot thousands
		{"1.234.567,89", 1234567.89}, // dot thousands, comma decimal
		{"1234,56", 1234.56},     // decimal comma
		{"1,234,567", 1234567},   // comma thousands
		{"2.500.000", 2500000},
		{"$ 2500", 2500},
		{"$ 2.5", 2.5}, // a single dot is a decimal mark
		{"-300", -300},
	}
	for _, tt := range tests {
		got, err := coerceAmount(tt.in)
		require.NoError(t, err, "input: %q", tt.in)
		assert.Equal(t, tt.want, got, "input: %q", tt.in)
	}

	_, err := coerceAmount("")
	assert.Error(t, err)
	_, err = coerceAmount("n/a")
	assert.Error(t, err)
}

func TestStripBOM(t *testing.T) {
	assert.Equal(t, []byte("abc"), stripBOM([]byte("\xef\xbb\xbfabc")))
	assert.Equal(t, []byte("abc"), stripBOM([]byte("abc")))
	assert.Empty(t, stripBOM([]byte("\xef\xbb\xbf")))
}
