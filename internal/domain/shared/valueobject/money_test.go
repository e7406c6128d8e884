package valueobject

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netbill/backend/internal/domain/shared"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		name      string
		amount    string
		currency  Currency
		wantMinor int64
		wantErr   bool
	}{
		{"two decimals", "50.23", CNY, 5023, false},
		{"integer", "200", CNY, 20000, false},
		{"one decimal", "0.5", USD, 50, false},
		{"yen has no minor digits", "1500", JPY, 1500, false},
		{"too many digits", "0.225", CNY, 0, true},
		{"fractional yen", "10.5", JPY, 0, true},
		{"garbage", "ten", CNY, 0, true},
		{"empty currency", "1.00", "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ParseMoney(tt.amount, tt.currency)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMinor, m.MinorUnits())
			assert.Equal(t, tt.currency, m.Currency())
		})
	}
}

func TestNewMoneyFromDecimal_RoundsHalfUp(t *testing.T) {
	assert.Equal(t, int64(23), NewMoneyFromDecimal(decimal.RequireFromString("0.225"), CNY).MinorUnits())
	assert.Equal(t, int64(22), NewMoneyFromDecimal(decimal.RequireFromString("0.2249"), CNY).MinorUnits())
}

func TestMoney_AddSubtract(t *testing.T) {
	a := NewMoney(5000, CNY)
	b := NewMoney(23, CNY)

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, int64(5023), sum.MinorUnits())

	diff, err := a.Subtract(b)
	require.NoError(t, err)
	assert.Equal(t, int64(4977), diff.MinorUnits())

	t.Run("currency mismatch", func(t *testing.T) {
		_, err := a.Add(NewMoney(1, USD))
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrCurrencyMismatch))

		_, err = a.Compare(NewMoney(1, USD))
		assert.True(t, errors.Is(err, shared.ErrCurrencyMismatch))
		assert.Panics(t, func() { a.MustAdd(NewMoney(1, USD)) })
	})
}

func TestMoney_MulRatio(t *testing.T) {
	price := NewMoney(5, CNY) // 0.05 per GiB
	gib := int64(1 << 30)

	t.Run("half rounds up", func(t *testing.T) {
		// 4.5 GiB * 0.05 = 0.225 -> 0.23
		got := price.MulRatio(gib*9/2, gib)
		assert.Equal(t, int64(23), got.MinorUnits())
	})

	t.Run("below half rounds down", func(t *testing.T) {
		got := NewMoney(100, CNY).MulRatio(1, 3)
		assert.Equal(t, int64(33), got.MinorUnits())
	})

	t.Run("ceil", func(t *testing.T) {
		assert.Equal(t, int64(34), NewMoney(100, CNY).MulRatioCeil(1, 3).MinorUnits())
		assert.Equal(t, int64(50), NewMoney(100, CNY).MulRatioCeil(1, 2).MinorUnits())
	})
}

func TestMoney_PercentAndDecimal(t *testing.T) {
	subtotal := NewMoney(20000, CNY)
	assert.Equal(t, int64(1200), subtotal.Percent(decimal.NewFromInt(6)).MinorUnits())
	assert.Equal(t, int64(1200), subtotal.MulDecimal(decimal.RequireFromString("0.06")).MinorUnits())
	assert.Equal(t, int64(5), NewMoney(10, CNY).Percent(decimal.NewFromInt(45)).MinorUnits())
}

func TestMoney_Max0AndCompare(t *testing.T) {
	neg := NewMoney(-500, CNY)
	assert.True(t, neg.Max0().IsZero())
	assert.Equal(t, CNY, neg.Max0().Currency())

	lt, err := NewMoney(1, CNY).LessThan(NewMoney(2, CNY))
	require.NoError(t, err)
	assert.True(t, lt)

	gt, err := NewMoney(1, CNY).GreaterThan(NewMoney(2, CNY))
	require.NoError(t, err)
	assert.False(t, gt)
}

func TestMoney_String(t *testing.T) {
	assert.Equal(t, "50.23 CNY", NewMoney(5023, CNY).String())
	assert.Equal(t, "1500 JPY", NewMoney(1500, JPY).String())
	assert.Equal(t, "0.05", NewMoney(5, USD).Amount())
}

func TestMoney_JSON(t *testing.T) {
	data, err := json.Marshal(NewMoney(19200, CNY))
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"192.00","currency":"CNY","minor_units":19200}`, string(data))

	var fromAmount Money
	require.NoError(t, json.Unmarshal([]byte(`{"amount":"12.50","currency":"usd"}`), &fromAmount))
	assert.True(t, fromAmount.Equals(NewMoney(1250, USD)))

	var bad Money
	assert.Error(t, json.Unmarshal([]byte(`{"amount":"1.00","currency":"ZZZ"}`), &bad))
}

func TestParseCurrency(t *testing.T) {
	c, err := ParseCurrency(" cny ")
	require.NoError(t, err)
	assert.Equal(t, CNY, c)
	assert.Equal(t, int32(2), c.Scale())
	assert.Equal(t, int32(0), JPY.Scale())

	_, err = ParseCurrency("NOPE")
	assert.Error(t, err)
}
