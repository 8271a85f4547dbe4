package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"launchcontrol/internal/engine"
	"launchcontrol/internal/engine/vesting"
	"launchcontrol/internal/ledger"
	"launchcontrol/internal/models"
	dbconfig "launchcontrol/pkg/config"
)

// ListVestingPositions returns positions, optionally filtered by
// auction_id and/or buyer query params.
func ListVestingPositions(c *gin.Context) {
	query := dbconfig.DB.Model(&models.VestingPosition{})
	if auctionID := c.Query("auction_id"); auctionID != "" {
		query = query.Where("auction_id = ?", auctionID)
	}
	if buyer := c.Query("buyer"); buyer != "" {
		query = query.Where("buyer = ?", buyer)
	}

	var positions []models.VestingPosition
	if err := query.Order("auction_id, buyer, seq").Find(&positions).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	now := nowUnix()
	auctions := make(map[uint]*models.AuctionConfig)
	respList := make([]VestingPositionResp, 0, len(positions))
	for i := range positions {
		auction, ok := auctions[positions[i].AuctionID]
		if !ok {
			auction = new(models.AuctionConfig)
			if err := dbconfig.DB.First(auction, positions[i].AuctionID).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			auctions[positions[i].AuctionID] = auction
		}
		respList = append(respList, *buildVestingPositionResp(&positions[i], auction, now))
	}
	c.JSON(http.StatusOK, respList)
}

// GetVestingPosition returns one position with its current phase and
// claimable amount.
func GetVestingPosition(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return
	}

	var position models.VestingPosition
	if err := dbconfig.DB.First(&position, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}
	var auction models.AuctionConfig
	if err := dbconfig.DB.First(&auction, position.AuctionID).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, buildVestingPositionResp(&position, &auction, nowUnix()))
}

// WithdrawRequest identifies the caller claiming from a position.
type WithdrawRequest struct {
	Buyer string `json:"buyer" binding:"required"`
}

// WithdrawVesting claims everything currently unlockable on a position
// and delivers it from the auction vault. A position with nothing new
// to release succeeds with a zero transfer, so callers can poll.
func WithdrawVesting(c *gin.Context) {
	var request WithdrawRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return
	}

	var transferred uint64
	var position models.VestingPosition
	err = dbconfig.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&position, id).Error; err != nil {
			return err
		}
		if request.Buyer != position.Buyer {
			return fmt.Errorf("%w: caller %q does not own position %d",
				engine.ErrAuthorizationDenied, request.Buyer, position.ID)
		}

		var auction models.AuctionConfig
		if err := tx.First(&auction, position.AuctionID).Error; err != nil {
			return err
		}

		schedule := scheduleOf(&auction)
		now := nowUnix()
		delta, err := vesting.WithdrawableDelta(positionOf(&position), schedule, now)
		if err != nil {
			return err
		}
		if delta == 0 {
			return nil
		}

		if err := ledger.Transfer(tx, auction.SaleToken,
			ledger.VaultAddress(auction.ID), position.Buyer, delta,
			fmt.Sprintf("position %d vesting release", position.ID)); err != nil {
			return err
		}

		transferred = delta
		position.WithdrawnAmount += delta
		return tx.Save(&position).Error
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	if transferred > 0 {
		log.WithFields(log.Fields{
			"position_id": position.ID,
			"buyer":       position.Buyer,
			"amount":      transferred,
		}).Info("vesting withdrawal")
	}

	c.JSON(http.StatusOK, gin.H{
		"position_id":        position.ID,
		"amount_transferred": transferred,
		"withdrawn_amount":   position.WithdrawnAmount,
		"total_amount":       position.TotalAmount,
	})
}
