package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"launchcontrol/internal/engine"
	"launchcontrol/internal/engine/lifecycle"
	"launchcontrol/internal/engine/pricing"
	"launchcontrol/internal/ledger"
	"launchcontrol/internal/models"
	dbconfig "launchcontrol/pkg/config"
)

// PurchaseRequest carries one buy order. Bond variants size the order
// by PaymentAmount; the decay auction sizes it by PurchaseAmount and
// protects the buyer with an expected payment plus tolerance.
type PurchaseRequest struct {
	AuctionID uint   `json:"auction_id" binding:"required"`
	Buyer     string `json:"buyer" binding:"required"`

	PaymentAmount uint64 `json:"payment_amount"`

	PurchaseAmount            uint64 `json:"purchase_amount"`
	ExpectedPayment           uint64 `json:"expected_payment"`
	SlippageTolerancePermille uint64 `json:"slippage_tolerance_permille"`
}

// PurchaseResp reports what the order settled at.
type PurchaseResp struct {
	AuctionID     uint   `json:"auction_id"`
	Buyer         string `json:"buyer"`
	Price         uint64 `json:"price"`
	Allocation    uint64 `json:"allocation"`
	PaymentAmount uint64 `json:"payment_amount"`
	PositionID    uint   `json:"position_id,omitempty"`
	Seq           uint64 `json:"seq,omitempty"`
}

// Purchase executes a buy against an in-progress auction. The auction
// row is locked for the duration so concurrent orders serialize and the
// capacity check sees the true running total.
func Purchase(c *gin.Context) {
	var request PurchaseRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var resp PurchaseResp
	err := dbconfig.DB.Transaction(func(tx *gorm.DB) error {
		auction, err := lockAuction(tx, request.AuctionID)
		if err != nil {
			return err
		}

		now := nowUnix()
		if auction.Closed() {
			return fmt.Errorf("%w: auction %d is closed", engine.ErrStateViolation, auction.ID)
		}
		if err := lifecycle.Require(lifecycle.InProgress, now, auction.StartTime, auction.EndTime); err != nil {
			return err
		}

		switch auction.Variant {
		case models.VariantTimedBond, models.VariantDiscountBond:
			resp, err = executeBondPurchase(tx, auction, &request, now)
		case models.VariantDecayAuction:
			resp, err = executeDecayPurchase(tx, auction, &request, now)
		default:
			err = fmt.Errorf("%w: unknown variant %q", engine.ErrInvalidConfiguration, auction.Variant)
		}
		if err != nil {
			return err
		}

		auction.SoldAmount += resp.Allocation
		auction.BondedAmount += resp.PaymentAmount
		auction.LastPurchaseTimestamp = now
		auction.LastClearingPrice = resp.Price
		return tx.Save(auction).Error
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	log.WithFields(log.Fields{
		"auction_id": resp.AuctionID,
		"buyer":      resp.Buyer,
		"price":      resp.Price,
		"allocation": resp.Allocation,
		"payment":    resp.PaymentAmount,
	}).Info("purchase executed")

	c.JSON(http.StatusOK, resp)
}

// executeBondPurchase quotes the configured bond variant, collects the
// payment and opens a vesting position for the allocation. Sale tokens
// stay in the vault until the position unlocks.
func executeBondPurchase(tx *gorm.DB, auction *models.AuctionConfig, request *PurchaseRequest, now int64) (PurchaseResp, error) {
	if request.PaymentAmount == 0 {
		return PurchaseResp{}, fmt.Errorf("%w: payment_amount must be positive", engine.ErrInvalidConfiguration)
	}

	var price, allocation uint64
	var err error
	if auction.Variant == models.VariantTimedBond {
		price, allocation, err = timedBondOf(auction).Quote(now, request.PaymentAmount)
	} else {
		var bond pricing.DiscountBond
		bond, err = discountBondOf(auction)
		if err == nil {
			price, allocation, err = bond.Quote(request.PaymentAmount)
		}
	}
	if err != nil {
		return PurchaseResp{}, err
	}
	if allocation == 0 {
		return PurchaseResp{}, fmt.Errorf("%w: payment too small for one base unit", engine.ErrInvalidConfiguration)
	}

	if err := ledger.Transfer(tx, auction.PaymentToken, request.Buyer,
		auction.PaymentDestination, request.PaymentAmount,
		fmt.Sprintf("auction %d bond payment", auction.ID)); err != nil {
		return PurchaseResp{}, err
	}

	seq, err := nextPositionSeq(tx, auction.ID, request.Buyer)
	if err != nil {
		return PurchaseResp{}, err
	}
	position := models.VestingPosition{
		AuctionID:   auction.ID,
		Buyer:       request.Buyer,
		Seq:         seq,
		TotalAmount: allocation,
		StartTime:   now,
	}
	if err := tx.Create(&position).Error; err != nil {
		return PurchaseResp{}, err
	}

	return PurchaseResp{
		AuctionID:     auction.ID,
		Buyer:         request.Buyer,
		Price:         price,
		Allocation:    allocation,
		PaymentAmount: request.PaymentAmount,
		PositionID:    position.ID,
		Seq:           seq,
	}, nil
}

// executeDecayPurchase quotes the descending auction, enforces the
// buyer's slippage bound and delivers the sale tokens immediately.
func executeDecayPurchase(tx *gorm.DB, auction *models.AuctionConfig, request *PurchaseRequest, now int64) (PurchaseResp, error) {
	if request.PurchaseAmount == 0 {
		return PurchaseResp{}, fmt.Errorf("%w: purchase_amount must be positive", engine.ErrInvalidConfiguration)
	}

	price, payment, err := decayAuctionOf(auction).Quote(now, request.PurchaseAmount)
	if err != nil {
		return PurchaseResp{}, err
	}
	if err := pricing.CheckSlippage(payment, request.ExpectedPayment, request.SlippageTolerancePermille); err != nil {
		return PurchaseResp{}, err
	}

	if err := ledger.Transfer(tx, auction.PaymentToken, request.Buyer,
		auction.PaymentDestination, payment,
		fmt.Sprintf("auction %d decay payment", auction.ID)); err != nil {
		return PurchaseResp{}, err
	}
	if err := ledger.Transfer(tx, auction.SaleToken, ledger.VaultAddress(auction.ID),
		request.Buyer, request.PurchaseAmount,
		fmt.Sprintf("auction %d decay delivery", auction.ID)); err != nil {
		return PurchaseResp{}, err
	}

	return PurchaseResp{
		AuctionID:     auction.ID,
		Buyer:         request.Buyer,
		Price:         price,
		Allocation:    request.PurchaseAmount,
		PaymentAmount: payment,
	}, nil
}

// nextPositionSeq returns the next per-buyer sequence number within one
// auction. Runs under the auction row lock so it cannot race.
func nextPositionSeq(tx *gorm.DB, auctionID uint, buyer string) (uint64, error) {
	var max uint64
	err := tx.Model(&models.VestingPosition{}).
		Where("auction_id = ? AND buyer = ?", auctionID, buyer).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}

// QuotePurchase prices an order without executing it. Query params
// mirror the purchase body: payment_amount for the bonds,
// purchase_amount for the decay auction.
func QuotePurchase(c *gin.Context) {
	auctionID, err := strconv.Atoi(c.Query("auction_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid auction_id"})
		return
	}

	var auction models.AuctionConfig
	if err := dbconfig.DB.First(&auction, auctionID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}

	now := nowUnix()
	switch auction.Variant {
	case models.VariantTimedBond, models.VariantDiscountBond:
		paymentAmount, err := strconv.ParseUint(c.Query("payment_amount"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payment_amount"})
			return
		}
		var price, allocation uint64
		if auction.Variant == models.VariantTimedBond {
			price, allocation, err = timedBondOf(&auction).Quote(now, paymentAmount)
		} else {
			var bond pricing.DiscountBond
			bond, err = discountBondOf(&auction)
			if err == nil {
				price, allocation, err = bond.Quote(paymentAmount)
			}
		}
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"auction_id":     auction.ID,
			"price":          price,
			"price_readable": readablePrice(&auction, price),
			"allocation":     allocation,
			"payment_amount": paymentAmount,
		})
	case models.VariantDecayAuction:
		purchaseAmount, err := strconv.ParseUint(c.Query("purchase_amount"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid purchase_amount"})
			return
		}
		price, payment, err := decayAuctionOf(&auction).Quote(now, purchaseAmount)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"auction_id":      auction.ID,
			"price":           price,
			"price_readable":  readablePrice(&auction, price),
			"purchase_amount": purchaseAmount,
			"payment_amount":  payment,
		})
	default:
		abortWithError(c, fmt.Errorf("%w: unknown variant %q", engine.ErrInvalidConfiguration, auction.Variant))
	}
}
