// Package ledger is the atomic value-transfer primitive: move N base
// units of one mint from account A to account B, all-or-nothing. Every
// move runs inside the caller's gorm transaction so a failed purchase
// or withdrawal leaves no partial state behind.
package ledger

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"launchcontrol/internal/models"
)

// ErrInsufficientBalance is returned when the source account cannot
// cover the transfer.
var ErrInsufficientBalance = errors.New("insufficient ledger balance")

// EnsureAccount returns the (mint, address) account, creating it with a
// zero balance when missing.
func EnsureAccount(tx *gorm.DB, mint, address string) (*models.TokenAccount, error) {
	var account models.TokenAccount
	err := tx.Where("mint = ? AND address = ?", mint, address).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		account = models.TokenAccount{Mint: mint, Address: address}
		if err := tx.Create(&account).Error; err != nil {
			return nil, fmt.Errorf("create ledger account: %w", err)
		}
		return &account, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// Deposit credits amount to the (mint, address) account, creating it if
// needed. Used to fund external accounts in tests and admin tooling.
func Deposit(tx *gorm.DB, mint, address string, amount uint64) error {
	account, err := EnsureAccount(tx, mint, address)
	if err != nil {
		return err
	}
	return tx.Model(&models.TokenAccount{}).
		Where("id = ?", account.ID).
		UpdateColumn("balance", gorm.Expr("balance + ?", amount)).Error
}

// Balance returns the current balance of the (mint, address) account; a
// missing account reads as zero.
func Balance(db *gorm.DB, mint, address string) (uint64, error) {
	var account models.TokenAccount
	err := db.Where("mint = ? AND address = ?", mint, address).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return account.Balance, nil
}

// Transfer moves amount base units of mint from one address to another
// inside tx. Both rows are locked FOR UPDATE, source first by address
// order to keep lock acquisition deterministic. A zero amount writes
// nothing and succeeds.
func Transfer(tx *gorm.DB, mint, from, to string, amount uint64, memo string) error {
	if amount == 0 {
		return nil
	}
	if from == to {
		return fmt.Errorf("ledger transfer: from and to are the same account %q", from)
	}

	first, second := from, to
	if second < first {
		first, second = second, first
	}
	for _, address := range []string{first, second} {
		if _, err := EnsureAccount(tx, mint, address); err != nil {
			return err
		}
		var locked models.TokenAccount
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("mint = ? AND address = ?", mint, address).
			First(&locked).Error; err != nil {
			return fmt.Errorf("lock ledger account %s: %w", address, err)
		}
	}

	var source models.TokenAccount
	if err := tx.Where("mint = ? AND address = ?", mint, from).First(&source).Error; err != nil {
		return err
	}
	if source.Balance < amount {
		return fmt.Errorf("%w: %s holds %d of %s, need %d", ErrInsufficientBalance, from, source.Balance, mint, amount)
	}

	if err := tx.Model(&models.TokenAccount{}).
		Where("mint = ? AND address = ?", mint, from).
		UpdateColumn("balance", gorm.Expr("balance - ?", amount)).Error; err != nil {
		return err
	}
	if err := tx.Model(&models.TokenAccount{}).
		Where("mint = ? AND address = ?", mint, to).
		UpdateColumn("balance", gorm.Expr("balance + ?", amount)).Error; err != nil {
		return err
	}

	record := models.TransferRecord{
		Mint:        mint,
		FromAddress: from,
		ToAddress:   to,
		Amount:      amount,
		Memo:        memo,
	}
	return tx.Create(&record).Error
}

// VaultAddress derives the custody account address for an auction.
func VaultAddress(auctionID uint) string {
	return fmt.Sprintf("vault-%d", auctionID)
}
