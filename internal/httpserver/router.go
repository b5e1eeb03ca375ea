package httpserver

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"swiftx/internal/accounts"
	"swiftx/internal/admin"
	"swiftx/internal/auth"
	"swiftx/internal/health"
	"swiftx/internal/httputil"
	"swiftx/internal/ledger"
	"swiftx/internal/marketdata"
	"swiftx/internal/sessions"
	"swiftx/internal/support"
	"swiftx/internal/types"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type RouterDeps struct {
	Sessions        *sessions.Manager
	AuthHandler     *auth.Handler
	AccountsHandler *accounts.Handler
	LedgerHandler   *ledger.Handler
	AdminHandler    *admin.Handler
	SupportHandler  *support.Handler
	MarketHandler   *marketdata.Handler
	HealthHandler   *health.Handler
	RateLimiter     *RateLimiter
	FrontendOrigin  string
	StaticDir       string
	Log             *zap.Logger
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(AccessLog(d.Log))
	r.Use(middleware.Recoverer)
	r.Use(CORS(d.FrontendOrigin))
	r.Use(SecurityHeaders)
	if d.RateLimiter != nil {
		r.Use(d.RateLimiter.Middleware)
	}

	r.Get("/health", d.HealthHandler.Get)
	r.Get("/health/live", d.HealthHandler.Live)

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", d.AuthHandler.Register)
		r.Post("/verify-email", d.AuthHandler.VerifyEmail)
		r.Post("/login", d.AuthHandler.Login)
		r.Post("/admin-login", d.AuthHandler.AdminLogin)
		r.Get("/verify-admin-access", d.AdminHandler.VerifyAccess)

		r.Get("/kb", d.SupportHandler.ListArticles)
		r.Get("/kb/{slug}", d.SupportHandler.GetArticle)

		r.Route("/market", func(r chi.Router) {
			r.Get("/sources", d.MarketHandler.Sources)
			r.Get("/candles", d.MarketHandler.Candles)
			r.Get("/quote", d.MarketHandler.Quote)
			r.Get("/forex", d.MarketHandler.Forex)
			r.Get("/ws", d.MarketHandler.WS.ServeHTTP)
		})

		r.Group(func(r chi.Router) {
			r.Use(RequireSession(d.Sessions, d.Log))
			r.Post("/logout", bind(d.AuthHandler.Logout))
			r.Get("/profile", bind(d.AuthHandler.Profile))
			r.Put("/profile", bind(d.AuthHandler.UpdateProfile))
			r.Put("/change-password", bind(d.AuthHandler.ChangePassword))

			r.Get("/dashboard", bind(d.AccountsHandler.Dashboard))
			r.Get("/current-account-type", bind(d.AccountsHandler.CurrentAccountType))
			r.Post("/switch-account-type", bind(d.AccountsHandler.SwitchAccountType))
			r.Get("/accounts", bind(d.AccountsHandler.List))

			r.Post("/trade", bind(d.LedgerHandler.Trade))
			r.Post("/deposit", bind(d.LedgerHandler.Deposit))
			r.Post("/withdraw", bind(d.LedgerHandler.Withdraw))
			r.Get("/trades", bind(d.LedgerHandler.Trades))
			r.Get("/deposits", bind(d.LedgerHandler.Deposits))
			r.Get("/withdrawals", bind(d.LedgerHandler.Withdrawals))
			r.Get("/history", bind(d.LedgerHandler.History))

			r.Route("/support/tickets", func(r chi.Router) {
				r.Post("/", bind(d.SupportHandler.CreateTicket))
				r.Get("/", bind(d.SupportHandler.ListTickets))
				r.Get("/{id}", bind(d.SupportHandler.GetTicket))
				r.Post("/{id}/messages", bind(d.SupportHandler.Reply))
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireAdmin(d.Sessions, d.Log))
			r.Get("/users", bind(d.AdminHandler.Users))
			r.Get("/dashboard-stats", bind(d.AdminHandler.DashboardStats))
			r.Post("/update-balance", bind(d.AdminHandler.UpdateBalance))
			r.Post("/update-deposit-status", bind(d.AdminHandler.UpdateDepositStatus))
			r.Post("/update-withdrawal-status", bind(d.AdminHandler.UpdateWithdrawalStatus))
			r.Post("/update-user-status", bind(d.AdminHandler.UpdateUserStatus))

			r.Get("/trades", bind(d.AdminHandler.Trades))
			r.Get("/deposits", bind(d.AdminHandler.Deposits))
			r.Get("/withdrawals", bind(d.AdminHandler.Withdrawals))
			r.Post("/deposits/{id}/approve", bind(d.AdminHandler.DepositStatusTo(types.StatusCompleted)))
			r.Post("/deposits/{id}/reject", bind(d.AdminHandler.DepositStatusTo(types.StatusFailed)))
			r.Post("/withdrawals/{id}/approve", bind(d.AdminHandler.WithdrawalStatusTo(types.StatusCompleted)))
			r.Post("/withdrawals/{id}/reject", bind(d.AdminHandler.WithdrawalStatusTo(types.StatusFailed)))

			r.Get("/tickets", bind(d.SupportHandler.AdminListTickets))
			r.Get("/tickets/{id}", bind(d.SupportHandler.AdminGetTicket))
			r.Post("/tickets/{id}/reply", bind(d.SupportHandler.AdminReply))
			r.Post("/tickets/{id}/status", bind(d.SupportHandler.AdminSetStatus))
			r.Post("/kb", bind(d.SupportHandler.AdminCreateArticle))
		})

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			httputil.Fail(w, http.StatusNotFound, "Not found")
		})
	})

	if d.StaticDir != "" {
		r.NotFound(staticHandler(d.StaticDir).ServeHTTP)
	}
	return r
}

// staticHandler serves the frontend bundle; unknown paths fall back to index.html.
func staticHandler(dir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			httputil.Fail(w, http.StatusNotFound, "Not found")
			return
		}
		path := r.URL.Path
		if path == "/" {
			path = "/index.html"
		}
		full := filepath.Join(dir, filepath.Clean("/"+path))
		if info, err := os.Stat(full); err == nil && !info.IsDir() {
			http.ServeFile(w, r, full)
			return
		}
		index := filepath.Join(dir, "index.html")
		if _, err := os.Stat(index); err != nil {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, index)
	})
}
