package routes

import (
	"github.com/NewtonMutugi/ict-innovations-africa-backend/common/middleware"
	"github.com/NewtonMutugi/ict-innovations-africa-backend/controllers"
	"github.com/gin-gonic/gin"
)

// RegisterPaymentRoutes sets up the Paystack flow and the payment listing.
// A nil limiter leaves initialize unthrottled.
func RegisterPaymentRoutes(r *gin.Engine, pc *controllers.PaymentController, limiter *middleware.RateLimiter, jwtSecret []byte) {
	r.GET("/", pc.Root)

	paystack := r.Group("/api/paystack")

	// Public: the browser starts checkout here
	initialize := []gin.HandlerFunc{pc.Initialize}
	if limiter != nil {
		initialize = append([]gin.HandlerFunc{limiter.Middleware()}, initialize...)
	}
	paystack.POST("/initialize", initialize...)

	// Public: GET aliases serve the gateway's redirect with ?reference=&trxref=
	paystack.POST("/verify", pc.Verify)
	paystack.GET("/verify", pc.Verify)
	paystack.POST("/callback", pc.Callback)
	paystack.GET("/callback", pc.Callback)

	// Protected (admin)
	payments := r.Group("/api/payments")
	payments.Use(middleware.RequireRole(jwtSecret, "admin"))
	payments.GET("", pc.ListPayments)
}
