package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"launchcontrol/internal/settlement"
	dbconfig "launchcontrol/pkg/config"
)

// SettleAuction finalizes an ended auction once. The heavy lifting
// lives in the settlement package, shared with the worker.
func SettleAuction(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return
	}

	auction, err := settlement.Settle(dbconfig.DB, uint(id), nowUnix())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildAuctionConfigResp(auction, nowUnix()))
}
