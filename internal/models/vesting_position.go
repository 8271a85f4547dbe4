package models

import "time"

// VestingPosition is one buyer's claim from one purchase event. A buyer
// accumulates one position per purchase, indexed by Seq, so withdrawals
// always target one position explicitly.
type VestingPosition struct {
	ID        uint   `gorm:"primarykey" json:"id"`
	AuctionID uint   `gorm:"not null;index;uniqueIndex:idx_auction_buyer_seq" json:"auction_id"`
	Buyer     string `gorm:"size:64;not null;index;uniqueIndex:idx_auction_buyer_seq" json:"buyer"`
	Seq       uint64 `gorm:"not null;uniqueIndex:idx_auction_buyer_seq" json:"seq"`

	TotalAmount     uint64 `gorm:"not null" json:"total_amount"`
	WithdrawnAmount uint64 `gorm:"not null;default:0" json:"withdrawn_amount"`
	StartTime       int64  `gorm:"not null" json:"start_time"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (VestingPosition) TableName() string {
	return "vesting_position"
}
