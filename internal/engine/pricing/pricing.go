// Package pricing computes the clearing price and allocation for the
// three sale variants: the time-weighted linear bond, the discount-curve
// bond and the exponential-decay descending auction. All functions are
// pure; callers gate them behind the lifecycle state checks and persist
// the results.
package pricing

import (
	"fmt"

	"github.com/holiman/uint256"

	"launchcontrol/internal/engine"
	"launchcontrol/internal/engine/fixedpoint"
)

// DiscountMode selects how the discount-curve bond moves its discount
// with the cumulative vested fraction.
type DiscountMode int

const (
	DiscountNone DiscountMode = iota
	DiscountGrows
	DiscountShrinks
)

func (m DiscountMode) String() string {
	switch m {
	case DiscountNone:
		return "none"
	case DiscountGrows:
		return "grows"
	case DiscountShrinks:
		return "shrinks"
	default:
		return "unknown"
	}
}

// ParseDiscountMode maps the stored encoding to a mode. An unrecognized
// encoding is a configuration error, never a silent zero discount.
func ParseDiscountMode(s string) (DiscountMode, error) {
	switch s {
	case "none", "":
		return DiscountNone, nil
	case "grows":
		return DiscountGrows, nil
	case "shrinks":
		return DiscountShrinks, nil
	default:
		return DiscountNone, fmt.Errorf("%w: unknown discount mode %q", engine.ErrInvalidConfiguration, s)
	}
}

// TimedBond is the single continuous sale whose price ramps linearly
// from MaxPrice down to MinPrice over the auction window, floored by the
// price the cumulative sales have already established.
type TimedBond struct {
	MinPrice        uint64
	MaxPrice        uint64
	StartTime       int64
	EndTime         int64
	SoldAmount      uint64
	TotalSaleAmount uint64
	SaleDecimals    uint8
	PaymentDecimals uint8
}

// CurrentPrice returns the clearing price (scaled by Accuracy) at now.
// The time component is clamped to the auction window so quotes before
// start and after end stay well defined.
func (b TimedBond) CurrentPrice(now int64) (uint64, error) {
	if b.EndTime <= b.StartTime {
		return 0, fmt.Errorf("%w: end_time must be after start_time", engine.ErrInvalidConfiguration)
	}
	if now < b.StartTime {
		now = b.StartTime
	}
	if now > b.EndTime {
		now = b.EndTime
	}

	ramp, err := fixedpoint.MulDiv(b.MaxPrice-b.MinPrice, uint64(b.EndTime-now), uint64(b.EndTime-b.StartTime))
	if err != nil {
		return 0, err
	}
	timedPrice := b.MinPrice + ramp

	demandPrice, err := fixedpoint.MulDiv(b.SoldAmount, fixedpoint.Accuracy, b.TotalSaleAmount)
	if err != nil {
		return 0, err
	}

	// Demand never lets the price fall below what was already paid for.
	if demandPrice > timedPrice {
		return demandPrice, nil
	}
	return timedPrice, nil
}

// Quote converts a payment amount into a sale-token allocation at the
// current price. Fails with ErrCapacityExceeded when the allocation
// would push cumulative sales past the fixed supply.
func (b TimedBond) Quote(now int64, paymentAmount uint64) (price, allocation uint64, err error) {
	price, err = b.CurrentPrice(now)
	if err != nil {
		return 0, 0, err
	}
	allocation, err = allocationFor(paymentAmount, price, b.SaleDecimals, b.PaymentDecimals)
	if err != nil {
		return 0, 0, err
	}
	if err := checkCapacity(b.SoldAmount, allocation, b.TotalSaleAmount); err != nil {
		return 0, 0, err
	}
	return price, allocation, nil
}

// DiscountBond is the fixed-base-price sale with a per-purchase discount
// (in basis points) that moves with the cumulative vested fraction.
type DiscountBond struct {
	BasePrice       uint64
	Mode            DiscountMode
	MinDiscount     uint64 // bips
	MaxDiscount     uint64 // bips
	VestedAmount    uint64
	TotalSaleAmount uint64
	SaleDecimals    uint8
	PaymentDecimals uint8
}

// Discount returns the active discount in basis points.
func (b DiscountBond) Discount() (uint64, error) {
	switch b.Mode {
	case DiscountNone:
		return 0, nil
	case DiscountGrows:
		step, err := fixedpoint.MulDiv(b.MaxDiscount-b.MinDiscount, b.VestedAmount, b.TotalSaleAmount)
		if err != nil {
			return 0, err
		}
		return b.MinDiscount + step, nil
	case DiscountShrinks:
		step, err := fixedpoint.MulDiv(b.MaxDiscount-b.MinDiscount, b.VestedAmount, b.TotalSaleAmount)
		if err != nil {
			return 0, err
		}
		return b.MaxDiscount - step, nil
	default:
		return 0, fmt.Errorf("%w: unknown discount mode", engine.ErrInvalidConfiguration)
	}
}

// EffectivePrice applies the active discount to the base price.
func (b DiscountBond) EffectivePrice() (uint64, error) {
	discount, err := b.Discount()
	if err != nil {
		return 0, err
	}
	if discount > fixedpoint.BasisPointMax {
		return 0, fmt.Errorf("%w: discount %d exceeds %d bips", engine.ErrInvalidConfiguration, discount, fixedpoint.BasisPointMax)
	}
	return fixedpoint.MulDiv(b.BasePrice, fixedpoint.BasisPointMax-discount, fixedpoint.BasisPointMax)
}

// Quote converts a payment amount into a sale-token allocation at the
// discounted price, with the same capacity rule as the timed bond.
func (b DiscountBond) Quote(paymentAmount uint64) (price, allocation uint64, err error) {
	price, err = b.EffectivePrice()
	if err != nil {
		return 0, 0, err
	}
	allocation, err = allocationFor(paymentAmount, price, b.SaleDecimals, b.PaymentDecimals)
	if err != nil {
		return 0, 0, err
	}
	if err := checkCapacity(b.VestedAmount, allocation, b.TotalSaleAmount); err != nil {
		return 0, 0, err
	}
	return price, allocation, nil
}

// DecayAuction is the descending auction: the price decays exponentially
// from CeilPrice toward FloorPrice as seconds elapse.
type DecayAuction struct {
	CeilPrice       uint64
	FloorPrice      uint64
	DecayBase       uint64 // scaled by DecayOne, must be > DecayOne
	StartTime       int64
	SoldAmount      uint64
	TotalSaleAmount uint64
	SaleDecimals    uint8
}

// CurrentPrice returns the clearing price (payment units per whole sale
// token) at now, never below the floor.
func (a DecayAuction) CurrentPrice(now int64) (uint64, error) {
	elapsed := now - a.StartTime
	if elapsed < 0 {
		elapsed = 0
	}

	decay, err := fixedpoint.DecayPow(a.DecayBase, uint64(elapsed))
	if err != nil {
		return 0, err
	}
	if decay.IsZero() {
		return 0, engine.ErrDivisionByZero
	}

	price := new(uint256.Int).Mul(uint256.NewInt(a.CeilPrice), uint256.NewInt(fixedpoint.DecayOne))
	price.Div(price, decay)
	if !price.IsUint64() {
		return 0, engine.ErrArithmeticOverflow
	}
	if price.Uint64() < a.FloorPrice {
		// Decayed past the floor: hold there.
		return a.FloorPrice, nil
	}
	return price.Uint64(), nil
}

// Quote returns the clearing price and the least payment that suffices
// for purchaseAmount sale-token base units. The payment carries the
// decayed price at full DecayOne precision through the multiplication
// and rounds up only once at the end; truncating the price to a whole
// payment unit first would undercharge every purchase made at a
// fractional price. The returned price is the truncated display value.
func (a DecayAuction) Quote(now int64, purchaseAmount uint64) (price, payment uint64, err error) {
	price, err = a.CurrentPrice(now)
	if err != nil {
		return 0, 0, err
	}

	elapsed := now - a.StartTime
	if elapsed < 0 {
		elapsed = 0
	}
	decay, err := fixedpoint.DecayPow(a.DecayBase, uint64(elapsed))
	if err != nil {
		return 0, 0, err
	}
	if decay.IsZero() {
		return 0, 0, engine.ErrDivisionByZero
	}

	unit := fixedpoint.Pow10(a.SaleDecimals)
	num := new(uint256.Int).Mul(uint256.NewInt(purchaseAmount), uint256.NewInt(a.CeilPrice))
	num.Mul(num, uint256.NewInt(fixedpoint.DecayOne))
	den := new(uint256.Int).Mul(decay, uint256.NewInt(unit))
	payment, err = ceilDiv(num, den)
	if err != nil {
		return 0, 0, err
	}

	// Held at the floor once the decay passes it.
	floorPayment, err := fixedpoint.MulDivCeil(purchaseAmount, a.FloorPrice, unit)
	if err != nil {
		return 0, 0, err
	}
	if payment < floorPayment {
		payment = floorPayment
	}

	if err := checkCapacity(a.SoldAmount, purchaseAmount, a.TotalSaleAmount); err != nil {
		return 0, 0, err
	}
	return price, payment, nil
}

// ceilDiv divides two 256-bit values rounding up, failing when the
// quotient does not fit back into u64.
func ceilDiv(num, den *uint256.Int) (uint64, error) {
	if den.IsZero() {
		return 0, engine.ErrDivisionByZero
	}
	quot, rem := new(uint256.Int).DivMod(num, den, new(uint256.Int))
	if !rem.IsZero() {
		quot.AddUint64(quot, 1)
	}
	if !quot.IsUint64() {
		return 0, engine.ErrArithmeticOverflow
	}
	return quot.Uint64(), nil
}

// CheckSlippage accepts a payment above the buyer's expectation only
// within the tolerance, expressed in permille.
func CheckSlippage(payment, expectedPayment, tolerancePermille uint64) error {
	if payment <= expectedPayment {
		return nil
	}
	limit, err := fixedpoint.MulDiv(expectedPayment, 1000+tolerancePermille, 1000)
	if err != nil {
		return err
	}
	if payment > limit {
		return fmt.Errorf("%w: payment %d exceeds expected %d with tolerance %d permille",
			engine.ErrSlippageExceeded, payment, expectedPayment, tolerancePermille)
	}
	return nil
}

// allocationFor computes paymentAmount * Accuracy / price rescaled by
// the token decimal difference, over a 256-bit intermediate.
func allocationFor(paymentAmount, price uint64, saleDecimals, paymentDecimals uint8) (uint64, error) {
	if price == 0 {
		return 0, engine.ErrDivisionByZero
	}
	num := new(uint256.Int).Mul(uint256.NewInt(paymentAmount), uint256.NewInt(fixedpoint.Accuracy))
	num.Mul(num, uint256.NewInt(fixedpoint.Pow10(saleDecimals)))
	den := new(uint256.Int).Mul(uint256.NewInt(price), uint256.NewInt(fixedpoint.Pow10(paymentDecimals)))
	num.Div(num, den)
	if !num.IsUint64() {
		return 0, engine.ErrArithmeticOverflow
	}
	return num.Uint64(), nil
}

// checkCapacity rejects the whole purchase when it would oversell;
// there are no partial fills.
func checkCapacity(sold, add, total uint64) error {
	if add > total || sold > total-add {
		return fmt.Errorf("%w: sold %d + %d > total %d", engine.ErrCapacityExceeded, sold, add, total)
	}
	return nil
}
