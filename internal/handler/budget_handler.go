package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/naywayne90/sygfp-go/internal/domain"
	"github.com/naywayne90/sygfp-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// createBudgetLineHandler — POST /v1/budget/lines
func createBudgetLineHandler(svc *service.BudgetService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/budget/lines")
		defer span.End()

		var req domain.CreateBudgetLineRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		created, err := svc.CreateLine(ctx, ActorFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

// listBudgetLinesHandler — GET /v1/budget/lines
func listBudgetLinesHandler(svc *service.BudgetService, defaultExercice int, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/budget/lines")
		defer span.End()

		exercice := parseExercice(r, defaultExercice)
		span.SetAttributes(attribute.Int("exercice", exercice))

		lines, err := svc.ListLines(ctx, exercice)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"exercice": exercice, "lignes": lines})
	}
}

// getBudgetLineHandler — GET /v1/budget/lines/{ligneId}
func getBudgetLineHandler(svc *service.BudgetService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/budget/lines/{ligneId}")
		defer span.End()

		line, err := svc.GetLine(ctx, chi.URLParam(r, "ligneId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, line)
	}
}

// availabilityHandler — GET /v1/budget/availability
func availabilityHandler(svc *service.BudgetService, defaultExercice int, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/budget/availability")
		defer span.End()

		exercice := parseExercice(r, defaultExercice)
		span.SetAttributes(attribute.Int("exercice", exercice))

		all, err := svc.Availability(ctx, exercice)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"exercice": exercice, "lignes": all})
	}
}

// lineAvailabilityHandler — GET /v1/budget/lines/{ligneId}/availability
func lineAvailabilityHandler(svc *service.BudgetService, defaultExercice int, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/budget/lines/{ligneId}/availability")
		defer span.End()

		exercice := parseExercice(r, defaultExercice)
		a, err := svc.LineAvailability(ctx, exercice, chi.URLParam(r, "ligneId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

// checkEngagementHandler — GET /v1/budget/lines/{ligneId}/check?montant=
func checkEngagementHandler(svc *service.BudgetService, defaultExercice int, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/budget/lines/{ligneId}/check")
		defer span.End()

		montant, err := strconv.ParseFloat(r.URL.Query().Get("montant"), 64)
		if err != nil || montant <= 0 {
			writeError(w, http.StatusBadRequest, "paramètre montant invalide")
			return
		}

		exercice := parseExercice(r, defaultExercice)
		check, err := svc.CheckEngagement(ctx, exercice, chi.URLParam(r, "ligneId"), montant)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, check)
	}
}

// budgetSummaryHandler — GET /v1/budget/summary
func budgetSummaryHandler(svc *service.BudgetService, defaultExercice int, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/budget/summary")
		defer span.End()

		summary, err := svc.Summary(ctx, parseExercice(r, defaultExercice))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

// budgetTreeHandler — GET /v1/budget/tree
func budgetTreeHandler(svc *service.BudgetService, defaultExercice int, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/budget/tree")
		defer span.End()

		exercice := parseExercice(r, defaultExercice)
		tree, err := svc.Tree(ctx, exercice)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"exercice": exercice, "arbre": tree})
	}
}

// createTransferHandler — POST /v1/budget/transfers
func createTransferHandler(svc *service.BudgetService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/budget/transfers")
		defer span.End()

		var req domain.CreateTransferRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		created, err := svc.CreateTransfer(ctx, ActorFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

// listTransfersHandler — GET /v1/budget/transfers
func listTransfersHandler(svc *service.BudgetService, defaultExercice int, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/budget/transfers")
		defer span.End()

		exercice := parseExercice(r, defaultExercice)
		transfers, err := svc.ListTransfers(ctx, exercice)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"exercice": exercice, "virements": transfers})
	}
}

// getTransferHandler — GET /v1/budget/transfers/{transferId}
func getTransferHandler(svc *service.BudgetService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/budget/transfers/{transferId}")
		defer span.End()

		t, err := svc.GetTransfer(ctx, chi.URLParam(r, "transferId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

// approveTransferHandler — POST /v1/budget/transfers/{transferId}/approve
func approveTransferHandler(svc *service.BudgetService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/budget/transfers/{transferId}/approve")
		defer span.End()

		t, err := svc.ApproveTransfer(ctx, ActorFromContext(ctx), chi.URLParam(r, "transferId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

// executeTransferHandler — POST /v1/budget/transfers/{transferId}/execute
func executeTransferHandler(svc *service.BudgetService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/budget/transfers/{transferId}/execute")
		defer span.End()

		t, err := svc.ExecuteTransfer(ctx, ActorFromContext(ctx), chi.URLParam(r, "transferId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

// rejectTransferHandler — POST /v1/budget/transfers/{transferId}/reject
func rejectTransferHandler(svc *service.BudgetService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/budget/transfers/{transferId}/reject")
		defer span.End()

		var req domain.TransferDecisionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		t, err := svc.RejectTransfer(ctx, ActorFromContext(ctx), chi.URLParam(r, "transferId"), req.Motif)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}
