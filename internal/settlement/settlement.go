// Package settlement finalizes ended auctions. The same logic backs the
// HTTP settle endpoint, the worker's periodic sweep and the queue
// consumer, so all three paths share the one-shot guarantee.
package settlement

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"launchcontrol/internal/engine"
	"launchcontrol/internal/engine/fixedpoint"
	"launchcontrol/internal/engine/lifecycle"
	"launchcontrol/internal/models"
	"launchcontrol/pkg/config"
)

// Event is published to the settlement queue once an auction settles.
type Event struct {
	AuctionID  uint   `json:"auction_id"`
	FinalPrice uint64 `json:"final_price"`
	IsSuccess  bool   `json:"is_success"`
	SettledAt  int64  `json:"settled_at"`
}

// Settle finalizes one auction: requires Ended and unsettled, fixes the
// final clearing price from realized demand and records the outcome.
// Repeat calls are a state violation, never a recomputation.
func Settle(db *gorm.DB, auctionID uint, now int64) (*models.AuctionConfig, error) {
	var auction models.AuctionConfig
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&auction, auctionID).Error; err != nil {
			return err
		}
		if auction.Settled() {
			return fmt.Errorf("%w: auction %d already settled", engine.ErrStateViolation, auction.ID)
		}
		if err := lifecycle.Require(lifecycle.Ended, now, auction.StartTime, auction.EndTime); err != nil {
			return err
		}

		finalPrice, err := fixedpoint.MulDiv(auction.SoldAmount, fixedpoint.Accuracy, auction.TotalSaleAmount)
		if err != nil {
			return err
		}

		settledAt := time.Unix(now, 0).UTC()
		auction.FinalPrice = finalPrice
		auction.IsSuccess = finalPrice >= auction.MinPrice
		auction.SettledAt = &settledAt
		return tx.Save(&auction).Error
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"auction_id":  auction.ID,
		"final_price": auction.FinalPrice,
		"is_success":  auction.IsSuccess,
	}).Info("auction settled")

	publishEvent(&auction, now)
	return &auction, nil
}

// publishEvent emits the settlement event. Delivery is best effort; the
// database row is the source of truth.
func publishEvent(auction *models.AuctionConfig, now int64) {
	if config.RabbitMQ == nil {
		return
	}
	publisher, err := config.NewPublisher()
	if err != nil {
		log.WithError(err).Warn("settlement event publisher unavailable")
		return
	}
	defer publisher.Close()

	event := Event{
		AuctionID:  auction.ID,
		FinalPrice: auction.FinalPrice,
		IsSuccess:  auction.IsSuccess,
		SettledAt:  now,
	}
	if err := publisher.Publish(config.SettlementEventQueue, event); err != nil {
		log.WithError(err).WithField("auction_id", auction.ID).
			Warn("settlement event publish failed")
	}
}

// SweepDue settles every ended, unsettled auction. The worker runs this
// on a schedule so an auction nobody touches still settles.
func SweepDue(db *gorm.DB, now int64) error {
	var due []models.AuctionConfig
	err := db.Where("end_time <= ? AND settled_at IS NULL", now).Find(&due).Error
	if err != nil {
		return err
	}
	for i := range due {
		if _, err := Settle(db, due[i].ID, now); err != nil {
			// Lost races with the HTTP path are expected.
			log.WithError(err).WithField("auction_id", due[i].ID).
				Warn("sweep settle failed")
		}
	}
	return nil
}
