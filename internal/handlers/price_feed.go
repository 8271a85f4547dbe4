package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"launchcontrol/internal/engine/lifecycle"
	"launchcontrol/internal/models"
	dbconfig "launchcontrol/pkg/config"
)

var priceFeedUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The feed is public read-only data.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// priceTick is one frame of the feed.
type priceTick struct {
	AuctionID     uint   `json:"auction_id"`
	State         string `json:"state"`
	Price         uint64 `json:"price"`
	PriceReadable string `json:"price_readable"`
	SoldAmount    uint64 `json:"sold_amount"`
	Timestamp     int64  `json:"timestamp"`
}

// PriceFeed streams the current clearing price over a websocket once a
// second. The stream closes itself when the auction ends.
func PriceFeed(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return
	}

	var auction models.AuctionConfig
	if err := dbconfig.DB.First(&auction, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}

	conn, err := priceFeedUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WithError(err).Warn("price feed upgrade failed")
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		if err := dbconfig.DB.First(&auction, id).Error; err != nil {
			return
		}

		now := nowUnix()
		state := lifecycle.StateOf(now, auction.StartTime, auction.EndTime)
		tick := priceTick{
			AuctionID:  auction.ID,
			State:      state.String(),
			SoldAmount: auction.SoldAmount,
			Timestamp:  now,
		}
		if price, err := currentPriceOf(&auction, now); err == nil {
			tick.Price = price
			tick.PriceReadable = readablePrice(&auction, price)
		}

		if err := conn.WriteJSON(tick); err != nil {
			return
		}
		if state == lifecycle.Ended {
			return
		}

		select {
		case <-ticker.C:
		case <-c.Request.Context().Done():
			return
		}
	}
}
