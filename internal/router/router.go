package router

import (
	"net/http"
	"strings"

	"digi-merch/internal/handler"
	"digi-merch/internal/middleware"

	"github.com/rs/zerolog"
)

// New creates a new HTTP router with all routes and middleware configured.
func New(
	orderHandler *handler.OrderHandler,
	adminHandler *handler.AdminHandler,
	downloadHandler *handler.DownloadHandler,
	webhookHandler *handler.WebhookHandler,
	jwtSecret string,
	allowList []string,
	logger zerolog.Logger,
) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint (no authentication required)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	})

	// Public intake routes
	mux.HandleFunc("/api/orders", orderHandler.Submit)
	mux.HandleFunc("/api/checkout", orderHandler.Checkout)

	// Buyer delivery routes (authenticated by the signed access token)
	mux.HandleFunc("/api/delivery", downloadHandler.Delivery)
	mux.HandleFunc("/api/download", downloadHandler.Redeem)

	// Gateway callback (authenticated by the webhook signature)
	mux.HandleFunc("/api/webhooks/payment", webhookHandler.HandlePayment)

	// Admin inbox routes behind the reviewer allow-list
	adminMux := http.NewServeMux()
	adminRouteHandler := func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/admin/orders" || r.URL.Path == "/api/admin/orders/" {
			adminHandler.List(w, r)
			return
		}
		if strings.HasSuffix(r.URL.Path, "/review") {
			adminHandler.Review(w, r)
			return
		}
		if strings.HasSuffix(r.URL.Path, "/archive") {
			adminHandler.Archive(w, r)
			return
		}
		if r.Method == http.MethodGet {
			adminHandler.GetBySerial(w, r)
			return
		}
		http.Error(w, "not found", http.StatusNotFound)
	}
	adminMux.HandleFunc("/api/admin/orders", adminRouteHandler)
	adminMux.HandleFunc("/api/admin/orders/", adminRouteHandler)
	mux.Handle("/api/admin/", middleware.AdminAuth(jwtSecret, allowList, logger)(adminMux))

	// Apply middleware in order: Recovery -> Logging -> CORS
	var h http.Handler = mux
	h = middleware.CORS(h)
	h = middleware.Logging(logger)(h)
	h = middleware.Recovery(logger)(h)

	return h
}
