package models

import (
	"time"
)

// Variant names for AuctionConfig.Variant.
const (
	VariantTimedBond    = "timed_bond"
	VariantDiscountBond = "discount_bond"
	VariantDecayAuction = "decay_auction"
)

// DefaultDecayBase is ~1.00005 per second, scaled by 1e12.
const DefaultDecayBase uint64 = 1_000_050_000_000

// AuctionConfig is the shared sale record: immutable pricing/vesting
// configuration plus the running accumulator. Config fields may only be
// updated while the auction is pending; the accumulator fields are
// mutated by purchases and by the one-shot settlement.
type AuctionConfig struct {
	ID           uint   `gorm:"primarykey" json:"id"`
	Owner        string `gorm:"size:64;not null" json:"owner"`
	SaleToken    string `gorm:"size:64;not null" json:"sale_token"`
	PaymentToken string `gorm:"size:64;not null" json:"payment_token"`
	// Payment proceeds are credited to this ledger account.
	PaymentDestination string `gorm:"size:64;not null" json:"payment_destination"`

	Variant         string `gorm:"size:20;not null" json:"variant"`
	TotalSaleAmount uint64 `gorm:"not null" json:"total_sale_amount"`
	SaleDecimals    uint8  `gorm:"not null;default:0" json:"sale_decimals"`
	PaymentDecimals uint8  `gorm:"not null;default:0" json:"payment_decimals"`

	StartTime int64 `gorm:"not null" json:"start_time"`
	EndTime   int64 `gorm:"not null" json:"end_time"`

	// timed_bond / decay_auction price bounds (floor/ceiling), both
	// scaled by ACCURACY for the bond and raw payment units for the
	// decay auction.
	MinPrice uint64 `gorm:"default:0" json:"min_price"`
	MaxPrice uint64 `gorm:"default:0" json:"max_price"`

	// discount_bond settings; discounts in basis points.
	BasePrice    uint64 `gorm:"default:0" json:"base_price"`
	MinDiscount  uint64 `gorm:"default:0" json:"min_discount"`
	MaxDiscount  uint64 `gorm:"default:0" json:"max_discount"`
	DiscountMode string `gorm:"size:10;default:'none'" json:"discount_mode"`

	// decay_auction base, scaled by 1e12.
	DecayBase uint64 `gorm:"default:0" json:"decay_base"`

	// Vesting schedule; fractions scaled by ACCURACY.
	LockPeriod      uint64 `gorm:"default:0" json:"lock_period"`
	VestingPeriod   uint64 `gorm:"default:0" json:"vesting_period"`
	ReleaseInterval uint64 `gorm:"default:0" json:"release_interval"`
	ReleaseRate     uint64 `gorm:"default:0" json:"release_rate"`
	InitialUnlock   uint64 `gorm:"default:0" json:"initial_unlock"`
	InstantUnlock   uint64 `gorm:"default:0" json:"instant_unlock"`

	// Accumulator: cumulative sale-token units allocated, cumulative
	// payment received, and decay-auction purchase tracking.
	SoldAmount            uint64 `gorm:"default:0" json:"sold_amount"`
	BondedAmount          uint64 `gorm:"default:0" json:"bonded_amount"`
	LastPurchaseTimestamp int64  `gorm:"default:0" json:"last_purchase_timestamp"`
	LastClearingPrice     uint64 `gorm:"default:0" json:"last_clearing_price"`

	// Settlement result, written once.
	FinalPrice uint64     `gorm:"default:0" json:"final_price"`
	IsSuccess  bool       `gorm:"default:false" json:"is_success"`
	SettledAt  *time.Time `json:"settled_at"`

	// Set when the owner closes out the auction; a closed auction
	// accepts no further purchases.
	ClosedAt *time.Time `json:"closed_at"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (AuctionConfig) TableName() string {
	return "auction_config"
}

// Settled reports whether the one-shot settlement has been recorded.
func (a *AuctionConfig) Settled() bool {
	return a.SettledAt != nil
}

// Closed reports whether the owner has closed out the auction.
func (a *AuctionConfig) Closed() bool {
	return a.ClosedAt != nil
}
