package main

import (
	"encoding/json"
	"time"

	"github.com/robfig/cron/v3"
	logrus "github.com/sirupsen/logrus"

	"launchcontrol/internal/settlement"
	"launchcontrol/pkg/config"
)

// settleRequest asks the worker to settle one auction now instead of
// waiting for the next sweep.
type settleRequest struct {
	AuctionID uint `json:"auction_id"`
}

func main() {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)

	config.InitDB()
	config.InitRabbitMQ()
	defer config.RabbitMQ.Close()

	// Periodic sweep: every ended, unsettled auction settles within a
	// minute even if nobody calls the settle endpoint.
	scheduler := cron.New()
	_, err := scheduler.AddFunc("@every 1m", func() {
		if err := settlement.SweepDue(config.DB, time.Now().Unix()); err != nil {
			logrus.Errorf("Settlement sweep failed: %v", err)
		}
	})
	if err != nil {
		logrus.Fatal("Failed to schedule settlement sweep: ", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	msgConsumer, err := config.NewConsumer(config.SettlementQueue)
	if err != nil {
		logrus.Fatal("Failed to create consumer: ", err)
	}
	defer msgConsumer.Close()

	logrus.Info("Settlement worker started, waiting for messages...")

	err = msgConsumer.Consume(func(msg []byte) error {
		var request settleRequest
		if err := json.Unmarshal(msg, &request); err != nil {
			logrus.Errorf("Failed to unmarshal message: %v", err)
			return err
		}
		logrus.Infof("Received settle request for auction %d", request.AuctionID)
		if _, err := settlement.Settle(config.DB, request.AuctionID, time.Now().Unix()); err != nil {
			logrus.Warnf("Settle auction %d failed: %v", request.AuctionID, err)
		}
		return nil
	})
	if err != nil {
		logrus.Fatal("Failed to start consumer: ", err)
	}
}
