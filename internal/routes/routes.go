package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/01moynul/creator-commerce/internal/handlers"
	"github.com/01moynul/creator-commerce/internal/metrics"
	"github.com/01moynul/creator-commerce/internal/middleware"
)

// CORSMiddleware lets the browser frontend at origin call the API.
func CORSMiddleware(origin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. Allow only the configured frontend
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)

		// 2. Allow standard security credentials
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")

		// 3. Allow the headers we actually use ("Authorization" for JWT tokens)
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")

		// 4. Allow the HTTP methods we use in our API
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		// 5. Handle the "Preflight" OPTIONS request
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Options carries what the router needs besides the handlers.
type Options struct {
	Tokens     middleware.TokenValidator
	Limiter    *middleware.RateLimiter
	CORSOrigin string
}

func SetupRouter(h *handlers.Handlers, opts Options) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), metrics.GinMiddleware())

	// --- APPLY THE CORS GUARD ---
	// Engine-level so preflights for unregistered OPTIONS routes still see it.
	router.Use(CORSMiddleware(opts.CORSOrigin))

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := router.Group("/v1")
	{
		// --- Gateway Webhook (Public, signature checked) ---
		v1.POST("/webhooks/paypal", h.HandlePayPalWebhook)

		// --- Ping Route (Public) ---
		v1.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"message": "pong!"})
		})

		// --- Public Catalogue Routes ---
		v1.GET("/subscriptions/plans", h.GetSubscriptionPlans)
		v1.GET("/checkout/credit-packs", h.GetCreditPacks)

		// --- Protected Routes (Login Required) ---
		checkout := v1.Group("/checkout")
		checkout.Use(middleware.AuthMiddleware(opts.Tokens))
		if opts.Limiter != nil {
			checkout.Use(opts.Limiter.Handler())
		}
		{
			checkout.POST("/orders", h.CreateCheckoutOrder)
			checkout.POST("/orders/:id/capture", h.CaptureCheckoutOrder)
			checkout.POST("/subscriptions", h.CreateSubscriptionCheckout)
		}
	}

	return router
}
