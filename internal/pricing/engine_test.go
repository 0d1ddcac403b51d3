package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestDiscountPercentTiers(t *testing.T) {
	cases := map[int]int64{
		1:  0,
		2:  0,
		3:  5,
		4:  5,
		5:  10,
		9:  10,
		10: 15,
		50: 15,
	}
	for qty, want := range cases {
		require.Equal(t, want, DiscountPercent(qty), "quantity %d", qty)
	}
}

func TestDiscountPercentMonotonic(t *testing.T) {
	prev := int64(0)
	for qty := 1; qty <= 100; qty++ {
		cur := DiscountPercent(qty)
		require.GreaterOrEqual(t, cur, prev, "discount decreased at quantity %d", qty)
		prev = cur
	}
}

func TestPriceLine(t *testing.T) {
	base := decimal.NewFromInt(100)

	line := PriceLine(base, 1)
	require.Equal(t, "100", line.UnitPrice.String())
	require.Equal(t, int64(0), line.DiscountPercent)
	require.Equal(t, "100", line.Total().String())

	line = PriceLine(base, 5)
	require.Equal(t, "90", line.UnitPrice.String())
	require.Equal(t, int64(10), line.DiscountPercent)
	require.Equal(t, "450", line.Total().String())

	line = PriceLine(base, 10)
	require.Equal(t, "85", line.UnitPrice.String())
	require.Equal(t, int64(15), line.DiscountPercent)
	require.Equal(t, "850", line.Total().String())
}

func TestPriceLineRoundsUnitPrice(t *testing.T) {
	// 9.99 at 5% off is 9.4905, charged unit price must be the rounded 9.49.
	line := PriceLine(decimal.RequireFromString("9.99"), 3)
	require.Equal(t, "9.49", line.UnitPrice.String())
	require.Equal(t, "28.47", line.Total().String())
	require.Equal(t, "1.5", line.Discount().String())
}

func TestCompute(t *testing.T) {
	base := decimal.NewFromInt(100)
	lines := []Line{
		PriceLine(base, 1),
		PriceLine(base, 5),
		PriceLine(base, 10),
	}
	summary := Compute(lines)
	require.Equal(t, "1400", summary.Subtotal.String())
	// 0 + 50 + 150 saved across the three tiers.
	require.Equal(t, "200", summary.QuantityDiscount.String())
}

func TestComputeSkipsNonPositiveQuantities(t *testing.T) {
	summary := Compute([]Line{{Quantity: 0, UnitPrice: decimal.NewFromInt(10)}})
	require.True(t, summary.Subtotal.IsZero())
	require.True(t, summary.QuantityDiscount.IsZero())
}
