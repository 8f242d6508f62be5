package handler

import (
	"net/http"
	"time"

	"github.com/carteira-app/carteira-bfa-go/internal/infra/observability"
	"github.com/carteira-app/carteira-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
// Routes follow the API contract defined for the Carteira frontend.
func NewRouter(
	portfolioSvc *service.PortfolioService,
	userSvc *service.UserService,
	noteSvc *service.NoteService,
	eventSvc *service.EventService,
	rebalanceSvc *service.RebalanceService,
	metrics *observability.Metrics,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(requestCounterMiddleware(metrics))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler())
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// =============================================
		// 1. 🔐 Autenticação
		// =============================================
		r.Route("/auth", func(r chi.Router) {
			// Public routes
			r.Post("/register", authRegisterHandler(userSvc, logger))
			r.Post("/login", authLoginHandler(userSvc, logger))
			r.Post("/refresh", authRefreshHandler(userSvc, logger))

			// Protected routes
			r.Group(func(r chi.Router) {
				r.Use(JWTAuthMiddleware(userSvc, logger))
				r.Post("/logout", authLogoutHandler(userSvc, logger))
			})
		})

		// =============================================
		// 2. 👤 Usuários
		// POST /v1/users (public, registration alias)
		// =============================================
		r.Post("/users", createUserHandler(userSvc, logger))

		// =============================================
		// 3. 📊 Métricas de serviço
		// GET /v1/metrics/portfolio
		// =============================================
		r.Get("/metrics/portfolio", portfolioMetricsHandler(metrics))

		// Everything under /users/{userId} requires a valid token whose
		// subject matches the path parameter.
		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(userSvc, logger))

			r.Get("/users/{userId}", getUserHandler(userSvc, logger))
			r.Put("/users/{userId}/profile", updateProfileHandler(userSvc, logger))

			// =============================================
			// 4. 💼 Posições
			// =============================================
			r.Get("/users/{userId}/positions", getPositionsHandler(portfolioSvc, logger))
			r.Get("/users/{userId}/positions/fixed-income", getFixedIncomeHandler(portfolioSvc, logger))
			r.Get("/users/{userId}/positions/crypto", getCryptoHandler(portfolioSvc, logger))

			// =============================================
			// 5. 📄 Notas de corretagem
			// =============================================
			r.Post("/users/{userId}/notes", uploadNoteHandler(noteSvc, logger))
			r.Get("/users/{userId}/notes", listNotesHandler(noteSvc, logger))

			// =============================================
			// 6. 🏢 Eventos corporativos
			// =============================================
			r.Get("/users/{userId}/events", listEventsHandler(eventSvc, logger))
			r.Post("/users/{userId}/events", applyEventHandler(eventSvc, logger))

			// =============================================
			// 7. ⚖️ Rebalanceamento
			// =============================================
			r.Get("/users/{userId}/rebalance", getRebalanceHandler(rebalanceSvc, logger))
		})
	})

	return r
}

// requestCounterMiddleware feeds the carteira_requests_total counter that
// backs the portfolio metrics snapshot.
func requestCounterMiddleware(metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			if ww.Status() >= 500 {
				metrics.IncrRequest("error")
			} else {
				metrics.IncrRequest("success")
			}
		})
	}
}

// ============================================================
// Health & Métricas
// ============================================================

func healthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "healthy",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func portfolioMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot := metrics.GetPortfolioSnapshot()
		writeJSON(w, http.StatusOK, snapshot)
	}
}
