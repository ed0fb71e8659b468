// Package handler exposes the HTTP API: the chi router, the auth
// middleware and one handler file per functional area.
package handler

import (
	"net/http"
	"time"

	"github.com/naywayne90/sygfp-go/internal/domain"
	"github.com/naywayne90/sygfp-go/internal/infra/observability"
	"github.com/naywayne90/sygfp-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Config carries the router knobs resolved from the environment.
type Config struct {
	DefaultExercice int
	DevTokens       bool
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(
	dossiers *service.DossierService,
	budgets *service.BudgetService,
	chain *service.ChainService,
	auth *service.AuthService,
	metrics *observability.Metrics,
	logger *zap.Logger,
	cfg Config,
) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(requestCounterMiddleware(metrics))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(budgets, cfg.DefaultExercice, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// Dev token endpoint: mint a role-scoped access token without an
		// identity provider. Disabled in production.
		if cfg.DevTokens {
			r.Post("/auth/token", mintTokenHandler(auth, logger))
		}

		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(auth, logger))

			// =============================================
			// Dossiers (spending cases)
			// =============================================
			r.Post("/dossiers", createDossierHandler(dossiers, cfg.DefaultExercice, logger))
			r.Get("/dossiers", listDossiersHandler(dossiers, cfg.DefaultExercice, logger))
			r.Get("/dossiers/{dossierId}", getDossierHandler(dossiers, logger))
			r.Get("/dossiers/{dossierId}/transitions", dossierTransitionsHandler(dossiers, logger))
			r.Post("/dossiers/{dossierId}/transition", dossierTransitionHandler(dossiers, logger))
			r.Post("/dossiers/{dossierId}/steps/{stage}/status", dossierStepStatusHandler(dossiers, logger))

			// =============================================
			// Budget: lines, availability, transfers
			// =============================================
			r.Route("/budget", func(r chi.Router) {
				r.Post("/lines", createBudgetLineHandler(budgets, logger))
				r.Get("/lines", listBudgetLinesHandler(budgets, cfg.DefaultExercice, logger))
				r.Get("/lines/{ligneId}", getBudgetLineHandler(budgets, logger))
				r.Get("/lines/{ligneId}/availability", lineAvailabilityHandler(budgets, cfg.DefaultExercice, logger))
				r.Get("/lines/{ligneId}/check", checkEngagementHandler(budgets, cfg.DefaultExercice, logger))
				r.Get("/availability", availabilityHandler(budgets, cfg.DefaultExercice, logger))
				r.Get("/summary", budgetSummaryHandler(budgets, cfg.DefaultExercice, logger))
				r.Get("/tree", budgetTreeHandler(budgets, cfg.DefaultExercice, logger))

				r.Post("/transfers", createTransferHandler(budgets, logger))
				r.Get("/transfers", listTransfersHandler(budgets, cfg.DefaultExercice, logger))
				r.Get("/transfers/{transferId}", getTransferHandler(budgets, logger))
				r.Post("/transfers/{transferId}/approve", approveTransferHandler(budgets, logger))
				r.Post("/transfers/{transferId}/execute", executeTransferHandler(budgets, logger))
				r.Post("/transfers/{transferId}/reject", rejectTransferHandler(budgets, logger))
			})

			// =============================================
			// Chain: engagements → liquidations →
			// ordonnancements → règlements
			// =============================================
			r.Route("/engagements", func(r chi.Router) {
				r.Post("/", createEngagementHandler(chain, logger))
				r.Get("/", listEngagementsHandler(chain, cfg.DefaultExercice, logger))
				r.Get("/{entityId}", getEngagementHandler(chain, logger))
				r.Get("/{entityId}/actions", engagementActionsHandler(chain, logger))
				r.Post("/{entityId}/action", engagementActionHandler(chain, "", logger))
				r.Post("/{entityId}/visa", engagementActionHandler(chain, domain.ActionVisa, logger))
				r.Post("/{entityId}/validate", engagementActionHandler(chain, domain.ActionValidate, logger))
				r.Post("/{entityId}/reject", engagementActionHandler(chain, domain.ActionReject, logger))
			})

			r.Route("/liquidations", func(r chi.Router) {
				r.Post("/", createLiquidationHandler(chain, logger))
				r.Get("/", listLiquidationsHandler(chain, cfg.DefaultExercice, logger))
				r.Get("/{entityId}", getLiquidationHandler(chain, logger))
				r.Post("/{entityId}/action", liquidationActionHandler(chain, "", logger))
				r.Post("/{entityId}/forward-dg", liquidationActionHandler(chain, domain.ActionForwardDG, logger))
				r.Post("/{entityId}/validate", liquidationActionHandler(chain, domain.ActionValidate, logger))
			})

			r.Route("/ordonnancements", func(r chi.Router) {
				r.Post("/", createOrdonnancementHandler(chain, logger))
				r.Get("/", listOrdonnancementsHandler(chain, cfg.DefaultExercice, logger))
				r.Get("/{entityId}", getOrdonnancementHandler(chain, logger))
				r.Post("/{entityId}/action", ordonnancementActionHandler(chain, "", logger))
				r.Post("/{entityId}/sign", ordonnancementActionHandler(chain, domain.ActionSign, logger))
			})

			r.Route("/reglements", func(r chi.Router) {
				r.Post("/", createReglementHandler(chain, logger))
				r.Get("/", listReglementsHandler(chain, cfg.DefaultExercice, logger))
				r.Get("/{entityId}", getReglementHandler(chain, logger))
				r.Post("/{entityId}/action", reglementActionHandler(chain, "", logger))
				r.Post("/{entityId}/pay", reglementActionHandler(chain, domain.ActionPay, logger))
				r.Post("/{entityId}/close", reglementActionHandler(chain, domain.ActionClose, logger))
			})
		})
	})

	return r
}

// ============================================================
// Operational handlers
// ============================================================

func healthzHandler(budgets *service.BudgetService, exercice int, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "sygfp-api", Status: "healthy", LatencyMs: 0, LastChecked: now},
		}

		if budgets != nil {
			start := time.Now()
			_, err := budgets.ListLines(ctx, exercice)
			latency := time.Since(start).Milliseconds()
			status := "healthy"
			if err != nil {
				status = "degraded"
				logger.Warn("healthz: supabase check failed", zap.Error(err))
			}
			services = append(services, domain.ServiceHealth{
				Name: "supabase", Status: status, LatencyMs: latency, LastChecked: now,
			})
		}

		overall := "healthy"
		for _, s := range services {
			if s.Status != "healthy" {
				overall = "degraded"
			}
		}
		writeJSON(w, http.StatusOK, domain.HealthStatus{Status: overall, Services: services})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
