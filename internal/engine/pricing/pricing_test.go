package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"launchcontrol/internal/engine"
	"launchcontrol/internal/engine/fixedpoint"
)

func TestParseDiscountMode(t *testing.T) {
	for s, want := range map[string]DiscountMode{
		"none": DiscountNone, "": DiscountNone,
		"grows": DiscountGrows, "shrinks": DiscountShrinks,
	} {
		m, err := ParseDiscountMode(s)
		require.NoError(t, err)
		assert.Equal(t, want, m)
	}

	_, err := ParseDiscountMode("3")
	assert.ErrorIs(t, err, engine.ErrInvalidConfiguration)
}

func TestTimedBondCurrentPrice(t *testing.T) {
	bond := TimedBond{
		MinPrice:        1 * fixedpoint.Accuracy,
		MaxPrice:        2 * fixedpoint.Accuracy,
		StartTime:       0,
		EndTime:         1000,
		SoldAmount:      0,
		TotalSaleAmount: 1_000_000,
	}

	t.Run("ramps from max to min", func(t *testing.T) {
		price, err := bond.CurrentPrice(0)
		require.NoError(t, err)
		assert.Equal(t, bond.MaxPrice, price)

		price, err = bond.CurrentPrice(500)
		require.NoError(t, err)
		assert.Equal(t, uint64(1_500_000_000), price)

		price, err = bond.CurrentPrice(1000)
		require.NoError(t, err)
		assert.Equal(t, bond.MinPrice, price)
	})

	t.Run("demand keeps the price up", func(t *testing.T) {
		sold := bond
		sold.SoldAmount = 1_800_000_000 // implies a price above the ramp
		sold.TotalSaleAmount = 1_000_000_000

		price, err := sold.CurrentPrice(1000)
		require.NoError(t, err)
		// sold/total = 1.8, timed price at the end is 1.0
		assert.Equal(t, uint64(1_800_000_000), price)
	})

	t.Run("never below the cumulative-sales price", func(t *testing.T) {
		sold := bond
		sold.TotalSaleAmount = 1_000_000_000
		for _, soldAmount := range []uint64{0, 500_000_000, 1_200_000_000, 2_500_000_000} {
			sold.SoldAmount = soldAmount
			for _, now := range []int64{0, 250, 500, 750, 1000} {
				price, err := sold.CurrentPrice(now)
				require.NoError(t, err)
				demand, err := fixedpoint.MulDiv(soldAmount, fixedpoint.Accuracy, sold.TotalSaleAmount)
				require.NoError(t, err)
				assert.GreaterOrEqual(t, price, demand)
				assert.GreaterOrEqual(t, price, sold.MinPrice)
			}
		}
	})

	t.Run("quotes outside the window are clamped", func(t *testing.T) {
		price, err := bond.CurrentPrice(-50)
		require.NoError(t, err)
		assert.Equal(t, bond.MaxPrice, price)

		price, err = bond.CurrentPrice(9999)
		require.NoError(t, err)
		assert.Equal(t, bond.MinPrice, price)
	})

	t.Run("degenerate window rejected", func(t *testing.T) {
		bad := bond
		bad.EndTime = bad.StartTime
		_, err := bad.CurrentPrice(0)
		assert.ErrorIs(t, err, engine.ErrInvalidConfiguration)
	})
}

func TestTimedBondQuote(t *testing.T) {
	bond := TimedBond{
		MinPrice:        1 * fixedpoint.Accuracy,
		MaxPrice:        2 * fixedpoint.Accuracy,
		StartTime:       0,
		EndTime:         1000,
		SoldAmount:      0,
		TotalSaleAmount: 1_000_000,
	}

	t.Run("allocation at the floor price", func(t *testing.T) {
		price, allocation, err := bond.Quote(1000, 5000)
		require.NoError(t, err)
		assert.Equal(t, bond.MinPrice, price)
		assert.Equal(t, uint64(5000), allocation)
	})

	t.Run("decimal rescale", func(t *testing.T) {
		scaled := bond
		scaled.SaleDecimals = 9
		scaled.PaymentDecimals = 6
		_, allocation, err := scaled.Quote(1000, 5000)
		require.NoError(t, err)
		assert.Equal(t, uint64(5_000_000), allocation)
	})

	t.Run("oversell rejected whole", func(t *testing.T) {
		small := bond
		small.TotalSaleAmount = 4999
		_, _, err := small.Quote(1000, 5000)
		assert.ErrorIs(t, err, engine.ErrCapacityExceeded)
	})

	t.Run("remaining capacity still sells", func(t *testing.T) {
		nearly := bond
		nearly.SoldAmount = nearly.TotalSaleAmount - 5000
		_, allocation, err := nearly.Quote(1000, 5000)
		require.NoError(t, err)
		assert.Equal(t, uint64(5000), allocation)
	})
}

func TestDiscountBond(t *testing.T) {
	base := DiscountBond{
		BasePrice:       1 * fixedpoint.Accuracy,
		MinDiscount:     0,
		MaxDiscount:     1000, // 10%
		VestedAmount:    0,
		TotalSaleAmount: 1_000_000,
	}

	t.Run("mode none", func(t *testing.T) {
		b := base
		b.Mode = DiscountNone
		price, err := b.EffectivePrice()
		require.NoError(t, err)
		assert.Equal(t, b.BasePrice, price)
	})

	t.Run("grows reaches max when fully sold", func(t *testing.T) {
		b := base
		b.Mode = DiscountGrows
		b.VestedAmount = b.TotalSaleAmount

		discount, err := b.Discount()
		require.NoError(t, err)
		assert.Equal(t, uint64(1000), discount)

		price, err := b.EffectivePrice()
		require.NoError(t, err)
		assert.Equal(t, uint64(900_000_000), price, "effective price is base * 0.9")
	})

	t.Run("grows starts at min", func(t *testing.T) {
		b := base
		b.Mode = DiscountGrows
		discount, err := b.Discount()
		require.NoError(t, err)
		assert.Equal(t, b.MinDiscount, discount)
	})

	t.Run("shrinks starts at max", func(t *testing.T) {
		b := base
		b.Mode = DiscountShrinks
		discount, err := b.Discount()
		require.NoError(t, err)
		assert.Equal(t, b.MaxDiscount, discount)

		b.VestedAmount = b.TotalSaleAmount
		discount, err = b.Discount()
		require.NoError(t, err)
		assert.Equal(t, b.MinDiscount, discount)
	})

	t.Run("quote at discounted price", func(t *testing.T) {
		b := base
		b.Mode = DiscountGrows
		b.VestedAmount = b.TotalSaleAmount / 2 // 5% discount

		price, allocation, err := b.Quote(9500)
		require.NoError(t, err)
		assert.Equal(t, uint64(950_000_000), price)
		assert.Equal(t, uint64(10_000), allocation)
	})

	t.Run("oversell rejected", func(t *testing.T) {
		b := base
		b.Mode = DiscountNone
		b.VestedAmount = b.TotalSaleAmount - 1
		_, _, err := b.Quote(5000)
		assert.ErrorIs(t, err, engine.ErrCapacityExceeded)
	})
}

func TestDecayAuction(t *testing.T) {
	auction := DecayAuction{
		CeilPrice:       100,
		FloorPrice:      10,
		DecayBase:       1_000_050_000_000,
		StartTime:       0,
		SoldAmount:      0,
		TotalSaleAmount: 1_000_000,
		SaleDecimals:    0,
	}

	t.Run("price starts at the ceiling", func(t *testing.T) {
		price, err := auction.CurrentPrice(0)
		require.NoError(t, err)
		assert.Equal(t, auction.CeilPrice, price)
	})

	t.Run("price decays and holds the floor", func(t *testing.T) {
		prev := auction.CeilPrice
		for _, now := range []int64{3600, 7200, 14400, 28800, 57600} {
			price, err := auction.CurrentPrice(now)
			require.NoError(t, err)
			assert.LessOrEqual(t, price, prev)
			assert.GreaterOrEqual(t, price, auction.FloorPrice)
			prev = price
		}

		// ~1.00005^129_000 is well past ceil/floor = 10x decay.
		price, err := auction.CurrentPrice(129_000)
		require.NoError(t, err)
		assert.Equal(t, auction.FloorPrice, price)
	})

	t.Run("purchase at elapsed zero", func(t *testing.T) {
		price, payment, err := auction.Quote(0, 1000)
		require.NoError(t, err)
		assert.Equal(t, uint64(100), price)
		assert.Equal(t, uint64(100_000), payment)
		assert.NoError(t, CheckSlippage(payment, 100_000, 0))
	})

	t.Run("fractional price charges at full precision", func(t *testing.T) {
		// One second in, the precise price is 100/1.00005 = 99.995...;
		// the payment must come from the 1e12-scaled value, not from
		// the truncated display price of 99.
		price, payment, err := auction.Quote(1, 1000)
		require.NoError(t, err)
		assert.Equal(t, uint64(99), price)
		assert.Equal(t, uint64(99_996), payment, "ceil(1000 * 100e12 / 1.00005e12)")
	})

	t.Run("payment held at the floor", func(t *testing.T) {
		price, payment, err := auction.Quote(129_000, 1000)
		require.NoError(t, err)
		assert.Equal(t, auction.FloorPrice, price)
		assert.Equal(t, uint64(10_000), payment)
	})

	t.Run("payment rounds up", func(t *testing.T) {
		frac := auction
		frac.SaleDecimals = 3 // price is per 1000 base units
		_, payment, err := frac.Quote(0, 1001)
		require.NoError(t, err)
		assert.Equal(t, uint64(101), payment, "ceil(1001 * 100 / 1000)")
	})

	t.Run("oversell rejected", func(t *testing.T) {
		full := auction
		full.SoldAmount = full.TotalSaleAmount - 999
		_, _, err := full.Quote(0, 1000)
		assert.ErrorIs(t, err, engine.ErrCapacityExceeded)
	})
}

func TestCheckSlippage(t *testing.T) {
	t.Run("payment at or below expectation always passes", func(t *testing.T) {
		assert.NoError(t, CheckSlippage(1000, 1000, 0))
		assert.NoError(t, CheckSlippage(999, 1000, 0))
	})

	t.Run("tolerance window", func(t *testing.T) {
		// 1% tolerance on 1000 allows up to 1010.
		assert.NoError(t, CheckSlippage(1010, 1000, 10))
		assert.ErrorIs(t, CheckSlippage(1011, 1000, 10), engine.ErrSlippageExceeded)
	})

	t.Run("zero tolerance rejects any excess", func(t *testing.T) {
		assert.ErrorIs(t, CheckSlippage(1001, 1000, 0), engine.ErrSlippageExceeded)
	})
}
