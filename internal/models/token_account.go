package models

import "time"

// TokenAccount is one balance row of the internal ledger: (mint,
// address) -> base units held. Custody accounts use synthetic vault
// addresses derived from the auction id.
type TokenAccount struct {
	ID      uint   `gorm:"primarykey" json:"id"`
	Mint    string `gorm:"size:64;not null;uniqueIndex:idx_mint_address" json:"mint"`
	Address string `gorm:"size:80;not null;uniqueIndex:idx_mint_address" json:"address"`
	Balance uint64 `gorm:"not null;default:0" json:"balance"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (TokenAccount) TableName() string {
	return "token_account"
}

// TransferRecord is the audit trail of every ledger move. One row per
// completed transfer; a failed transfer writes nothing.
type TransferRecord struct {
	ID          uint   `gorm:"primarykey" json:"id"`
	Mint        string `gorm:"size:64;not null" json:"mint"`
	FromAddress string `gorm:"size:80;not null;index" json:"from_address"`
	ToAddress   string `gorm:"size:80;not null;index" json:"to_address"`
	Amount      uint64 `gorm:"not null" json:"amount"`
	Memo        string `gorm:"size:64" json:"memo"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (TransferRecord) TableName() string {
	return "transfer_record"
}
