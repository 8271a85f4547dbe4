package routes

import (
	"os"
	"strings"

	"github.com/gin-gonic/gin"
)

// SetupRouter initializes and returns the Gin router with all routes configured
func SetupRouter() *gin.Engine {
	r := gin.Default()

	r.Any("/health", func(c *gin.Context) {
		c.String(200, "ok")
	})

	// CORS: allowed origins come from the environment as a
	// comma-separated list.
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		allowedOriginsStr := os.Getenv("ALLOWED_ORIGINS")
		var allowedOrigins []string
		if allowedOriginsStr != "" {
			for _, o := range strings.Split(allowedOriginsStr, ",") {
				if trimmed := strings.TrimSpace(o); trimmed != "" {
					allowedOrigins = append(allowedOrigins, trimmed)
				}
			}
		}

		for _, allowedOrigin := range allowedOrigins {
			if origin == allowedOrigin {
				c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
				break
			}
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, Origin, Cache-Control, X-Requested-With, X-Owner")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	SetupAuctionConfigRoutes(r)
	SetupPurchaseRoutes(r)
	SetupVestingPositionRoutes(r)
	SetupTokenAccountRoutes(r)

	return r
}
