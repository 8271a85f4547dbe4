package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"launchcontrol/internal/engine"
	"launchcontrol/internal/engine/fixedpoint"
	"launchcontrol/internal/engine/lifecycle"
	"launchcontrol/internal/engine/pricing"
	"launchcontrol/internal/ledger"
	"launchcontrol/internal/models"
	dbconfig "launchcontrol/pkg/config"
)

// AuctionConfigRequest is the create/update body. Pointer fields let
// updates patch a subset; create fills defaults for what is omitted.
type AuctionConfigRequest struct {
	Owner              *string `json:"owner"`
	SaleToken          *string `json:"sale_token"`
	PaymentToken       *string `json:"payment_token"`
	PaymentDestination *string `json:"payment_destination"`

	Variant         *string `json:"variant"`
	TotalSaleAmount *uint64 `json:"total_sale_amount"`
	SaleDecimals    *uint8  `json:"sale_decimals"`
	PaymentDecimals *uint8  `json:"payment_decimals"`

	StartTime *int64 `json:"start_time"`
	EndTime   *int64 `json:"end_time"`

	MinPrice *uint64 `json:"min_price"`
	MaxPrice *uint64 `json:"max_price"`

	BasePrice    *uint64 `json:"base_price"`
	MinDiscount  *uint64 `json:"min_discount"`
	MaxDiscount  *uint64 `json:"max_discount"`
	DiscountMode *string `json:"discount_mode"`

	DecayBase *uint64 `json:"decay_base"`

	LockPeriod      *uint64 `json:"lock_period"`
	VestingPeriod   *uint64 `json:"vesting_period"`
	ReleaseInterval *uint64 `json:"release_interval"`
	ReleaseRate     *uint64 `json:"release_rate"`
	InitialUnlock   *uint64 `json:"initial_unlock"`
	InstantUnlock   *uint64 `json:"instant_unlock"`
}

func (r *AuctionConfigRequest) apply(a *models.AuctionConfig) {
	if r.Owner != nil {
		a.Owner = *r.Owner
	}
	if r.SaleToken != nil {
		a.SaleToken = *r.SaleToken
	}
	if r.PaymentToken != nil {
		a.PaymentToken = *r.PaymentToken
	}
	if r.PaymentDestination != nil {
		a.PaymentDestination = *r.PaymentDestination
	}
	if r.Variant != nil {
		a.Variant = *r.Variant
	}
	if r.TotalSaleAmount != nil {
		a.TotalSaleAmount = *r.TotalSaleAmount
	}
	if r.SaleDecimals != nil {
		a.SaleDecimals = *r.SaleDecimals
	}
	if r.PaymentDecimals != nil {
		a.PaymentDecimals = *r.PaymentDecimals
	}
	if r.StartTime != nil {
		a.StartTime = *r.StartTime
	}
	if r.EndTime != nil {
		a.EndTime = *r.EndTime
	}
	if r.MinPrice != nil {
		a.MinPrice = *r.MinPrice
	}
	if r.MaxPrice != nil {
		a.MaxPrice = *r.MaxPrice
	}
	if r.BasePrice != nil {
		a.BasePrice = *r.BasePrice
	}
	if r.MinDiscount != nil {
		a.MinDiscount = *r.MinDiscount
	}
	if r.MaxDiscount != nil {
		a.MaxDiscount = *r.MaxDiscount
	}
	if r.DiscountMode != nil {
		a.DiscountMode = *r.DiscountMode
	}
	if r.DecayBase != nil {
		a.DecayBase = *r.DecayBase
	}
	if r.LockPeriod != nil {
		a.LockPeriod = *r.LockPeriod
	}
	if r.VestingPeriod != nil {
		a.VestingPeriod = *r.VestingPeriod
	}
	if r.ReleaseInterval != nil {
		a.ReleaseInterval = *r.ReleaseInterval
	}
	if r.ReleaseRate != nil {
		a.ReleaseRate = *r.ReleaseRate
	}
	if r.InitialUnlock != nil {
		a.InitialUnlock = *r.InitialUnlock
	}
	if r.InstantUnlock != nil {
		a.InstantUnlock = *r.InstantUnlock
	}
}

// validateAuctionConfig checks the full record before it is persisted
// or patched. Violations map to InvalidConfiguration.
func validateAuctionConfig(a *models.AuctionConfig) error {
	for field, value := range map[string]string{
		"owner":               a.Owner,
		"sale_token":          a.SaleToken,
		"payment_token":       a.PaymentToken,
		"payment_destination": a.PaymentDestination,
	} {
		if _, err := solana.PublicKeyFromBase58(value); err != nil {
			return fmt.Errorf("%w: %s is not a valid base58 public key: %v",
				engine.ErrInvalidConfiguration, field, err)
		}
	}
	if a.TotalSaleAmount == 0 {
		return fmt.Errorf("%w: total_sale_amount must be positive", engine.ErrInvalidConfiguration)
	}
	if a.StartTime >= a.EndTime {
		return fmt.Errorf("%w: start_time %d must be before end_time %d",
			engine.ErrInvalidConfiguration, a.StartTime, a.EndTime)
	}

	switch a.Variant {
	case models.VariantTimedBond:
		if a.MinPrice == 0 {
			return fmt.Errorf("%w: min_price must be positive", engine.ErrInvalidConfiguration)
		}
		if a.MinPrice >= a.MaxPrice {
			return fmt.Errorf("%w: min_price %d must be below max_price %d",
				engine.ErrInvalidConfiguration, a.MinPrice, a.MaxPrice)
		}
	case models.VariantDiscountBond:
		if a.BasePrice == 0 {
			return fmt.Errorf("%w: base_price must be positive", engine.ErrInvalidConfiguration)
		}
		if _, err := pricing.ParseDiscountMode(a.DiscountMode); err != nil {
			return err
		}
		if a.MaxDiscount >= fixedpoint.BasisPointMax {
			return fmt.Errorf("%w: max_discount %d exceeds basis point range",
				engine.ErrInvalidConfiguration, a.MaxDiscount)
		}
		if a.MinDiscount > a.MaxDiscount {
			return fmt.Errorf("%w: min_discount %d above max_discount %d",
				engine.ErrInvalidConfiguration, a.MinDiscount, a.MaxDiscount)
		}
	case models.VariantDecayAuction:
		if a.DecayBase == 0 {
			a.DecayBase = models.DefaultDecayBase
		}
		if a.DecayBase < fixedpoint.DecayOne {
			return fmt.Errorf("%w: decay_base %d is below the 1e12 identity",
				engine.ErrInvalidConfiguration, a.DecayBase)
		}
		if a.MinPrice == 0 {
			return fmt.Errorf("%w: floor price must be positive", engine.ErrInvalidConfiguration)
		}
		if a.MinPrice >= a.MaxPrice {
			return fmt.Errorf("%w: floor price %d must be below ceiling %d",
				engine.ErrInvalidConfiguration, a.MinPrice, a.MaxPrice)
		}
	default:
		return fmt.Errorf("%w: unknown variant %q", engine.ErrInvalidConfiguration, a.Variant)
	}

	if a.ReleaseInterval == 0 && a.VestingPeriod > 0 {
		return fmt.Errorf("%w: release_interval must be positive when vesting is enabled",
			engine.ErrInvalidConfiguration)
	}
	if a.InitialUnlock > fixedpoint.Accuracy || a.InstantUnlock > fixedpoint.Accuracy ||
		a.ReleaseRate > fixedpoint.Accuracy {
		return fmt.Errorf("%w: unlock fractions must not exceed the 1e9 scale",
			engine.ErrInvalidConfiguration)
	}
	return nil
}

// CreateAuctionConfig initializes an auction and moves the full sale
// allocation from the owner account into the auction vault.
func CreateAuctionConfig(c *gin.Context) {
	var request AuctionConfigRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var auction models.AuctionConfig
	auction.DiscountMode = pricing.DiscountNone.String()
	request.apply(&auction)

	if err := validateAuctionConfig(&auction); err != nil {
		abortWithError(c, err)
		return
	}

	err := dbconfig.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&auction).Error; err != nil {
			return err
		}
		return ledger.Transfer(tx, auction.SaleToken, auction.Owner,
			ledger.VaultAddress(auction.ID), auction.TotalSaleAmount,
			fmt.Sprintf("auction %d funding", auction.ID))
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	log.WithFields(log.Fields{
		"auction_id": auction.ID,
		"variant":    auction.Variant,
		"total":      auction.TotalSaleAmount,
	}).Info("auction config created")

	c.JSON(http.StatusCreated, buildAuctionConfigResp(&auction, nowUnix()))
}

// ListAuctionConfigs returns all auctions with their derived state.
func ListAuctionConfigs(c *gin.Context) {
	var auctions []models.AuctionConfig
	if err := dbconfig.DB.Find(&auctions).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	now := nowUnix()
	respList := make([]AuctionConfigResp, 0, len(auctions))
	for i := range auctions {
		respList = append(respList, *buildAuctionConfigResp(&auctions[i], now))
	}
	c.JSON(http.StatusOK, respList)
}

// GetAuctionConfig returns one auction by ID.
func GetAuctionConfig(c *gin.Context) {
	auction, ok := loadAuction(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, buildAuctionConfigResp(auction, nowUnix()))
}

// GetAuctionState returns the lifecycle state plus the current price in
// both scaled and human-readable form.
func GetAuctionState(c *gin.Context) {
	auction, ok := loadAuction(c)
	if !ok {
		return
	}

	now := nowUnix()
	state := lifecycle.StateOf(now, auction.StartTime, auction.EndTime)

	resp := gin.H{
		"auction_id": auction.ID,
		"state":      state.String(),
		"settled":    auction.Settled(),
		"closed":     auction.Closed(),
		"sold":       auction.SoldAmount,
		"bonded":     auction.BondedAmount,
	}
	if price, err := currentPriceOf(auction, now); err == nil {
		resp["current_price"] = price
		resp["current_price_readable"] = readablePrice(auction, price)
	}
	if auction.Settled() {
		resp["final_price"] = auction.FinalPrice
		resp["is_success"] = auction.IsSuccess
	}
	c.JSON(http.StatusOK, resp)
}

// UpdateAuctionConfig patches config fields. Legal only while Pending
// and only for the configured owner; the accumulator and settlement
// fields are never writable from here.
func UpdateAuctionConfig(c *gin.Context) {
	var request AuctionConfigRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return
	}

	caller := c.GetHeader("X-Owner")

	var updated *models.AuctionConfig
	err = dbconfig.DB.Transaction(func(tx *gorm.DB) error {
		auction, err := lockAuction(tx, uint(id))
		if err != nil {
			return err
		}
		if caller != auction.Owner {
			return fmt.Errorf("%w: caller %q is not the auction owner",
				engine.ErrAuthorizationDenied, caller)
		}
		if err := requireOpenAndPending(auction); err != nil {
			return err
		}

		// Identity, custody size and variant are fixed at creation;
		// ownership moves through the authority endpoint.
		request.Owner = nil
		request.SaleToken = nil
		request.PaymentToken = nil
		request.Variant = nil
		request.TotalSaleAmount = nil
		request.apply(auction)

		if err := validateAuctionConfig(auction); err != nil {
			return err
		}
		if err := tx.Save(auction).Error; err != nil {
			return err
		}
		updated = auction
		return nil
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildAuctionConfigResp(updated, nowUnix()))
}

// AuthorityRequest names the new owner of an auction.
type AuthorityRequest struct {
	NewOwner string `json:"new_owner" binding:"required"`
}

// TransferAuctionAuthority hands the auction to a new owner. Legal only
// while Pending; the current owner must sign off via X-Owner.
func TransferAuctionAuthority(c *gin.Context) {
	var request AuthorityRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return
	}
	if _, err := solana.PublicKeyFromBase58(request.NewOwner); err != nil {
		abortWithError(c, fmt.Errorf("%w: new_owner is not a valid base58 public key: %v",
			engine.ErrInvalidConfiguration, err))
		return
	}

	caller := c.GetHeader("X-Owner")

	var updated *models.AuctionConfig
	err = dbconfig.DB.Transaction(func(tx *gorm.DB) error {
		auction, err := lockAuction(tx, uint(id))
		if err != nil {
			return err
		}
		if caller != auction.Owner {
			return fmt.Errorf("%w: caller %q is not the auction owner",
				engine.ErrAuthorizationDenied, caller)
		}
		if err := requireOpenAndPending(auction); err != nil {
			return err
		}

		auction.Owner = request.NewOwner
		if err := tx.Save(auction).Error; err != nil {
			return err
		}
		updated = auction
		return nil
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	log.WithFields(log.Fields{
		"auction_id": updated.ID,
		"new_owner":  updated.Owner,
	}).Info("auction authority transferred")

	c.JSON(http.StatusOK, buildAuctionConfigResp(updated, nowUnix()))
}

// DepositRequest tops up the auction vault.
type DepositRequest struct {
	Amount uint64 `json:"amount" binding:"required"`
}

// DepositToVault moves additional sale tokens from the owner into the
// auction vault while the auction is still Pending. The vault balance
// grows; total_sale_amount is fixed at creation and stays untouched, so
// the pricing denominators never move under a live config.
func DepositToVault(c *gin.Context) {
	var request DepositRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return
	}

	caller := c.GetHeader("X-Owner")

	var funded *models.AuctionConfig
	err = dbconfig.DB.Transaction(func(tx *gorm.DB) error {
		auction, err := lockAuction(tx, uint(id))
		if err != nil {
			return err
		}
		if caller != auction.Owner {
			return fmt.Errorf("%w: caller %q is not the auction owner",
				engine.ErrAuthorizationDenied, caller)
		}
		if err := requireOpenAndPending(auction); err != nil {
			return err
		}
		if err := ledger.Transfer(tx, auction.SaleToken, auction.Owner,
			ledger.VaultAddress(auction.ID), request.Amount,
			fmt.Sprintf("auction %d deposit", auction.ID)); err != nil {
			return err
		}
		funded = auction
		return nil
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildAuctionConfigResp(funded, nowUnix()))
}

// CloseAuction records the close and refunds the unsold vault balance
// to the owner. Closing is refused mid-sale and is one-shot; a closed
// auction accepts no further purchases even if its window later opens.
func CloseAuction(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return
	}

	caller := c.GetHeader("X-Owner")

	var refunded uint64
	err = dbconfig.DB.Transaction(func(tx *gorm.DB) error {
		auction, err := lockAuction(tx, uint(id))
		if err != nil {
			return err
		}
		if caller != auction.Owner {
			return fmt.Errorf("%w: caller %q is not the auction owner",
				engine.ErrAuthorizationDenied, caller)
		}
		if auction.Closed() {
			return fmt.Errorf("%w: auction %d already closed", engine.ErrStateViolation, auction.ID)
		}
		if err := lifecycle.RequireNotInProgress(nowUnix(), auction.StartTime, auction.EndTime); err != nil {
			return err
		}

		closedAt := time.Unix(nowUnix(), 0).UTC()
		auction.ClosedAt = &closedAt
		if err := tx.Save(auction).Error; err != nil {
			return err
		}

		vault := ledger.VaultAddress(auction.ID)
		balance, err := ledger.Balance(tx, auction.SaleToken, vault)
		if err != nil {
			return err
		}
		// Vested allocations stay in custody until buyers withdraw.
		var reserved uint64
		row := tx.Model(&models.VestingPosition{}).
			Where("auction_id = ?", auction.ID).
			Select("COALESCE(SUM(total_amount - withdrawn_amount), 0)")
		if err := row.Scan(&reserved).Error; err != nil {
			return err
		}
		if balance > reserved {
			refunded = balance - reserved
			if err := ledger.Transfer(tx, auction.SaleToken, vault, auction.Owner,
				refunded, fmt.Sprintf("auction %d close refund", auction.ID)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	log.WithFields(log.Fields{"auction_id": id, "refunded": refunded}).Info("auction closed")
	c.JSON(http.StatusOK, gin.H{"auction_id": id, "refunded": refunded})
}

// requireOpenAndPending guards owner mutations: the auction must not be
// closed and must not have started.
func requireOpenAndPending(a *models.AuctionConfig) error {
	if a.Closed() {
		return fmt.Errorf("%w: auction %d is closed", engine.ErrStateViolation, a.ID)
	}
	return lifecycle.Require(lifecycle.Pending, nowUnix(), a.StartTime, a.EndTime)
}

// loadAuction reads :id and fetches the record, writing the error
// response itself when it fails.
func loadAuction(c *gin.Context) (*models.AuctionConfig, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return nil, false
	}
	var auction models.AuctionConfig
	if err := dbconfig.DB.First(&auction, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return nil, false
	}
	return &auction, true
}

// lockAuction fetches the auction row FOR UPDATE inside tx. All
// accumulator mutations go through this lock.
func lockAuction(tx *gorm.DB, id uint) (*models.AuctionConfig, error) {
	var auction models.AuctionConfig
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&auction, id).Error; err != nil {
		return nil, err
	}
	return &auction, nil
}
