package handlers

import (
	"errors"
	"math/big"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"launchcontrol/internal/engine"
	"launchcontrol/internal/engine/lifecycle"
	"launchcontrol/internal/engine/pricing"
	"launchcontrol/internal/engine/vesting"
	"launchcontrol/internal/ledger"
	"launchcontrol/internal/models"
)

// AuctionConfigResp is the auction record plus derived state. Scaled
// integer prices are authoritative; readable values are for humans.
type AuctionConfigResp struct {
	models.AuctionConfig
	State                string `json:"state"`
	CurrentPrice         uint64 `json:"current_price"`
	CurrentPriceReadable string `json:"current_price_readable"`
}

// VestingPositionResp is a position plus the amount claimable now.
type VestingPositionResp struct {
	models.VestingPosition
	Phase      string `json:"phase"`
	Unlockable uint64 `json:"unlockable"`
}

// abortWithError maps engine error kinds to HTTP statuses so clients
// always see the specific kind, never a generic failure.
func abortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrInvalidConfiguration):
		status = http.StatusBadRequest
	case errors.Is(err, engine.ErrAuthorizationDenied):
		status = http.StatusForbidden
	case errors.Is(err, engine.ErrStateViolation),
		errors.Is(err, engine.ErrCapacityExceeded):
		status = http.StatusConflict
	case errors.Is(err, engine.ErrSlippageExceeded):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrInsufficientBalance):
		status = http.StatusConflict
	case errors.Is(err, engine.ErrArithmeticOverflow),
		errors.Is(err, engine.ErrDivisionByZero):
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{"error": err.Error()})
	c.Abort()
}

// timedBondOf builds the pricing view of a timed-bond auction.
func timedBondOf(a *models.AuctionConfig) pricing.TimedBond {
	return pricing.TimedBond{
		MinPrice:        a.MinPrice,
		MaxPrice:        a.MaxPrice,
		StartTime:       a.StartTime,
		EndTime:         a.EndTime,
		SoldAmount:      a.SoldAmount,
		TotalSaleAmount: a.TotalSaleAmount,
		SaleDecimals:    a.SaleDecimals,
		PaymentDecimals: a.PaymentDecimals,
	}
}

// discountBondOf builds the pricing view of a discount-bond auction.
// The stored mode was validated at creation time.
func discountBondOf(a *models.AuctionConfig) (pricing.DiscountBond, error) {
	mode, err := pricing.ParseDiscountMode(a.DiscountMode)
	if err != nil {
		return pricing.DiscountBond{}, err
	}
	return pricing.DiscountBond{
		BasePrice:       a.BasePrice,
		Mode:            mode,
		MinDiscount:     a.MinDiscount,
		MaxDiscount:     a.MaxDiscount,
		VestedAmount:    a.SoldAmount,
		TotalSaleAmount: a.TotalSaleAmount,
		SaleDecimals:    a.SaleDecimals,
		PaymentDecimals: a.PaymentDecimals,
	}, nil
}

// decayAuctionOf builds the pricing view of a decay auction.
func decayAuctionOf(a *models.AuctionConfig) pricing.DecayAuction {
	return pricing.DecayAuction{
		CeilPrice:       a.MaxPrice,
		FloorPrice:      a.MinPrice,
		DecayBase:       a.DecayBase,
		StartTime:       a.StartTime,
		SoldAmount:      a.SoldAmount,
		TotalSaleAmount: a.TotalSaleAmount,
		SaleDecimals:    a.SaleDecimals,
	}
}

// scheduleOf extracts the vesting schedule from the auction record.
func scheduleOf(a *models.AuctionConfig) vesting.Schedule {
	return vesting.Schedule{
		LockPeriod:      a.LockPeriod,
		VestingPeriod:   a.VestingPeriod,
		ReleaseInterval: a.ReleaseInterval,
		ReleaseRate:     a.ReleaseRate,
		InitialUnlock:   a.InitialUnlock,
		InstantUnlock:   a.InstantUnlock,
	}
}

// currentPriceOf computes the clearing price of any variant at now.
func currentPriceOf(a *models.AuctionConfig, now int64) (uint64, error) {
	switch a.Variant {
	case models.VariantTimedBond:
		return timedBondOf(a).CurrentPrice(now)
	case models.VariantDiscountBond:
		bond, err := discountBondOf(a)
		if err != nil {
			return 0, err
		}
		return bond.EffectivePrice()
	case models.VariantDecayAuction:
		return decayAuctionOf(a).CurrentPrice(now)
	default:
		return 0, engine.ErrInvalidConfiguration
	}
}

// readablePrice formats a scaled price for humans. Bond prices are
// scaled by ACCURACY; decay-auction prices are payment base units per
// whole sale token.
func readablePrice(a *models.AuctionConfig, price uint64) string {
	v := decimal.NewFromBigInt(new(big.Int).SetUint64(price), 0)
	if a.Variant == models.VariantDecayAuction {
		return v.Shift(-int32(a.PaymentDecimals)).String()
	}
	return v.Shift(-9).String()
}

// buildAuctionConfigResp decorates the record with derived state. A
// price computation failure degrades to zero rather than failing a read.
func buildAuctionConfigResp(a *models.AuctionConfig, now int64) *AuctionConfigResp {
	price, err := currentPriceOf(a, now)
	if err != nil {
		price = 0
	}
	return &AuctionConfigResp{
		AuctionConfig:        *a,
		State:                lifecycle.StateOf(now, a.StartTime, a.EndTime).String(),
		CurrentPrice:         price,
		CurrentPriceReadable: readablePrice(a, price),
	}
}

// positionOf builds the vesting view of a stored position.
func positionOf(p *models.VestingPosition) vesting.Position {
	return vesting.Position{
		TotalAmount:     p.TotalAmount,
		WithdrawnAmount: p.WithdrawnAmount,
		StartTime:       p.StartTime,
	}
}

// buildVestingPositionResp decorates a position with its phase and the
// amount claimable at now.
func buildVestingPositionResp(p *models.VestingPosition, a *models.AuctionConfig, now int64) *VestingPositionResp {
	pos := positionOf(p)
	schedule := scheduleOf(a)
	unlockable, err := vesting.Unlockable(pos, schedule, now)
	if err != nil {
		unlockable = p.WithdrawnAmount
	}
	return &VestingPositionResp{
		VestingPosition: *p,
		Phase:           vesting.PhaseAt(pos, schedule, now).String(),
		Unlockable:      unlockable,
	}
}

func nowUnix() int64 {
	return time.Now().Unix()
}
