package routes

import (
	"launchcontrol/internal/handlers"
	"launchcontrol/internal/middleware"

	"github.com/gin-gonic/gin"
)

// SetupAuctionConfigRoutes sets up all routes related to auction config management
func SetupAuctionConfigRoutes(r *gin.Engine) {
	auction := r.Group("/auction-config")
	{
		auction.GET("", handlers.ListAuctionConfigs)
		auction.GET("/:id", handlers.GetAuctionConfig)
		auction.GET("/:id/state", handlers.GetAuctionState)
		auction.POST("", handlers.CreateAuctionConfig)
		auction.PUT("/:id", handlers.UpdateAuctionConfig)
		auction.PUT("/:id/authority", handlers.TransferAuctionAuthority)
		auction.POST("/:id/deposit", handlers.DepositToVault)
		auction.POST("/:id/close", handlers.CloseAuction)
		auction.POST("/:id/settle", handlers.SettleAuction)
	}

	r.GET("/price-feed/:id", handlers.PriceFeed)
}

// SetupPurchaseRoutes sets up the order path. Purchases are rate
// limited per client IP.
func SetupPurchaseRoutes(r *gin.Engine) {
	limiter := middleware.RateLimiterMiddleware(middleware.RateLimiterConfig{
		RequestsPerSecond: 10,
		Burst:             20,
	})

	purchase := r.Group("/purchase")
	{
		purchase.POST("", limiter, handlers.Purchase)
		purchase.GET("/quote", handlers.QuotePurchase)
	}
}

// SetupVestingPositionRoutes sets up all routes related to vesting positions
func SetupVestingPositionRoutes(r *gin.Engine) {
	position := r.Group("/vesting-position")
	{
		position.GET("", handlers.ListVestingPositions)
		position.GET("/:id", handlers.GetVestingPosition)
		position.POST("/:id/withdraw", handlers.WithdrawVesting)
	}
}

// SetupTokenAccountRoutes sets up the ledger admin routes
func SetupTokenAccountRoutes(r *gin.Engine) {
	account := r.Group("/token-account")
	{
		account.GET("", handlers.ListTokenAccounts)
		account.POST("/fund", handlers.FundTokenAccount)
		account.GET("/transfers", handlers.ListTransferRecords)
	}
}
