package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"launchcontrol/internal/ledger"
	"launchcontrol/internal/models"
	dbconfig "launchcontrol/pkg/config"
)

// ListTokenAccounts returns ledger balances, optionally filtered by
// mint and/or address.
func ListTokenAccounts(c *gin.Context) {
	query := dbconfig.DB.Model(&models.TokenAccount{})
	if mint := c.Query("mint"); mint != "" {
		query = query.Where("mint = ?", mint)
	}
	if address := c.Query("address"); address != "" {
		query = query.Where("address = ?", address)
	}

	var accounts []models.TokenAccount
	if err := query.Order("mint, address").Find(&accounts).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, accounts)
}

// FundRequest credits an external account. Admin tooling for seeding
// buyer and owner balances; vault accounts are funded through the
// auction endpoints instead.
type FundRequest struct {
	Mint    string `json:"mint" binding:"required"`
	Address string `json:"address" binding:"required"`
	Amount  uint64 `json:"amount" binding:"required"`
}

// FundTokenAccount deposits base units into a ledger account.
func FundTokenAccount(c *gin.Context) {
	var request FundRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := ledger.Deposit(dbconfig.DB, request.Mint, request.Address, request.Amount); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	balance, err := ledger.Balance(dbconfig.DB, request.Mint, request.Address)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"mint":    request.Mint,
		"address": request.Address,
		"balance": balance,
	})
}

// ListTransferRecords returns the transfer audit trail, newest first,
// optionally filtered by address (either side) or mint.
func ListTransferRecords(c *gin.Context) {
	query := dbconfig.DB.Model(&models.TransferRecord{})
	if mint := c.Query("mint"); mint != "" {
		query = query.Where("mint = ?", mint)
	}
	if address := c.Query("address"); address != "" {
		query = query.Where("from_address = ? OR to_address = ?", address, address)
	}

	var records []models.TransferRecord
	if err := query.Order("id DESC").Limit(200).Find(&records).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, records)
}
