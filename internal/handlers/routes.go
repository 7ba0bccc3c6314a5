package handlers

import (
	"net/http"
	"time"

	"github.com/alextreichler/qrmenu/internal/auth"
	"github.com/alextreichler/qrmenu/internal/menu"
	"github.com/alextreichler/qrmenu/internal/orders"
	"github.com/alextreichler/qrmenu/internal/realtime"
	"github.com/gorilla/sessions"
)

const loginRateWindow = time.Second

type Deps struct {
	Menu     *menu.Service
	Orders   *orders.Service
	Auth     *auth.Service
	Sessions sessions.Store
	Store    Pinger

	// Hub feeds /api/ws; the route is omitted when nil.
	Hub            *realtime.Hub
	AllowedOrigins []string

	UploadDir string
	MenuURL   string
	// RateWindow is the minimum gap between orders from one IP. Zero
	// disables rate limiting.
	RateWindow time.Duration
}

// NewRouter registers every API route. Session, CORS and CSRF middleware
// are applied by the caller.
func NewRouter(d Deps) *http.ServeMux {
	menuHandler := &MenuHandler{Menu: d.Menu}
	orderHandler := &OrderHandler{Orders: d.Orders}
	authHandler := &AuthHandler{Auth: d.Auth, SessionStore: d.Sessions}

	limitOrders, limitLogin := noLimit, noLimit
	if d.RateWindow > 0 {
		limitOrders = NewRateLimiter(d.RateWindow).Middleware
		limitLogin = NewRateLimiter(loginRateWindow).Middleware
	}
	protect, admin := authHandler.Protect, authHandler.Admin

	mux := http.NewServeMux()

	// Menu
	mux.HandleFunc("GET /api/menu", menuHandler.List)
	mux.HandleFunc("GET /api/menu/categories", menuHandler.Categories)
	mux.Handle("GET /api/menu/qr", &QRHandler{MenuURL: d.MenuURL})
	mux.HandleFunc("GET /api/menu/{id}", menuHandler.Get)
	mux.HandleFunc("POST /api/menu", admin(menuHandler.Create))
	mux.HandleFunc("PUT /api/menu/{id}", admin(menuHandler.Update))
	mux.HandleFunc("DELETE /api/menu/{id}", admin(menuHandler.Delete))

	// Orders
	mux.HandleFunc("POST /api/orders", limitOrders(orderHandler.Create))
	mux.HandleFunc("GET /api/orders", admin(orderHandler.List))
	mux.HandleFunc("GET /api/orders/stats", admin(orderHandler.Stats))
	mux.HandleFunc("GET /api/orders/mine", protect(orderHandler.Mine))
	mux.HandleFunc("GET /api/orders/{id}", orderHandler.Get)
	mux.HandleFunc("PUT /api/orders/{id}/status", admin(orderHandler.UpdateStatus))
	mux.HandleFunc("PATCH /api/orders/{id}/status", admin(orderHandler.UpdateStatus))

	// Auth
	mux.HandleFunc("POST /api/auth/register", limitLogin(authHandler.Register))
	mux.HandleFunc("POST /api/auth/login", limitLogin(authHandler.Login))
	mux.HandleFunc("POST /api/auth/logout", authHandler.Logout)
	mux.HandleFunc("GET /api/auth/me", protect(authHandler.Me))
	mux.HandleFunc("GET /api/auth/csrf", authHandler.CSRFToken)

	if d.Hub != nil {
		mux.Handle("GET /api/ws", realtime.NewWSHandler(d.Hub, d.AllowedOrigins))
	}

	if d.UploadDir != "" {
		fileServer := http.FileServer(http.Dir(d.UploadDir))
		mux.Handle("GET /uploads/", http.StripPrefix("/uploads", fileServer))
	}
	mux.Handle("GET /healthz", &HealthHandler{Store: d.Store})

	return mux
}

func noLimit(next http.HandlerFunc) http.HandlerFunc { return next }
