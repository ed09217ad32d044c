package money

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		m, err := New(1250, "myr")
		require.NoError(t, err)
		assert.Equal(t, int64(1250), m.MinorUnits())
		assert.Equal(t, "MYR", m.Currency())
	})

	t.Run("bad_code", func(t *testing.T) {
		_, err := New(100, "MYRX")
		assert.Error(t, err)
	})
}

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		in       string
		currency string
		want     int64
		wantErr  bool
	}{
		{"12.50", "MYR", 1250, false},
		{"0.01", "MYR", 1, false},
		{"1000", "JPY", 1000, false},
		{"1.250", "BHD", 1250, false},
		{"12.505", "MYR", 0, true}, // sub-cent precision
		{"1.5", "JPY", 0, true},    // JPY has no minor units
		{"abc", "MYR", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in+"_"+tt.currency, func(t *testing.T) {
			m, err := ParseDecimal(tt.in, tt.currency)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.MinorUnits())
		})
	}
}

func TestArithmetic(t *testing.T) {
	a := MustNew(1000, "MYR")
	b := MustNew(250, "MYR")

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, int64(1250), sum.MinorUnits())

	diff, err := a.Sub(b)
	require.NoError(t, err)
	assert.Equal(t, int64(750), diff.MinorUnits())

	// Inputs are unchanged.
	assert.Equal(t, int64(1000), a.MinorUnits())
	assert.Equal(t, int64(250), b.MinorUnits())
}

func TestCurrencyMismatch(t *testing.T) {
	a := MustNew(1000, "MYR")
	b := MustNew(1000, "USD")

	_, err := a.Add(b)
	var mismatch *CurrencyMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "MYR", mismatch.Left)
	assert.Equal(t, "USD", mismatch.Right)

	_, err = a.Sub(b)
	assert.Error(t, err)
	_, err = a.Cmp(b)
	assert.Error(t, err)
}

func TestMulRoundsHalfUp(t *testing.T) {
	tests := []struct {
		name string
		in   int64
		num  int64
		den  int64
		want int64
	}{
		{"exact", 100, 1, 2, 50},
		{"half_rounds_up", 5, 1, 2, 3},     // 2.5 -> 3
		{"below_half_down", 7, 1, 3, 2},    // 2.33 -> 2
		{"above_half_up", 8, 1, 3, 3},      // 2.67 -> 3
		{"third_of_hundred", 100, 1, 3, 33},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := MustNew(tt.in, "MYR")
			got := m.MulRatio(tt.num, tt.den)
			assert.Equal(t, tt.want, got.MinorUnits())
			assert.Equal(t, "MYR", got.Currency())
		})
	}
}

func TestMulDecimal(t *testing.T) {
	m := MustNew(10000, "MYR")
	half := m.MulDecimal(decimal.RequireFromString("0.5"))
	assert.Equal(t, int64(5000), half.MinorUnits())

	third := m.MulDecimal(decimal.RequireFromString("0.333333333333"))
	assert.Equal(t, int64(3333), third.MinorUnits())
}

func TestExponent(t *testing.T) {
	assert.Equal(t, int32(2), MustNew(1, "MYR").Exponent())
	assert.Equal(t, int32(0), MustNew(1, "JPY").Exponent())
	assert.Equal(t, int32(3), MustNew(1, "KWD").Exponent())
}

func TestString(t *testing.T) {
	assert.Equal(t, "12.50 MYR", MustNew(1250, "MYR").String())
	assert.Equal(t, "1250 JPY", MustNew(1250, "JPY").String())
}

func TestJSONRoundTrip(t *testing.T) {
	m := MustNew(9900, "MYR")
	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":9900,"currency":"MYR"}`, string(data))

	var back Money
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, m.Equal(back))
}
