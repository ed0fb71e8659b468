package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/naywayne90/sygfp-go/internal/domain"
	"github.com/naywayne90/sygfp-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// decodeActionRequest reads the action payload. Alias routes pin the
// action and may come with an empty body (motif only when needed).
func decodeActionRequest(r *http.Request, fixed domain.Action) (*domain.TransitionActionRequest, error) {
	var req domain.TransitionActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		return nil, err
	}
	if fixed != "" {
		req.Action = fixed
	}
	return &req, nil
}

// ============================================================
// Engagements
// ============================================================

// createEngagementHandler — POST /v1/engagements
func createEngagementHandler(svc *service.ChainService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/engagements")
		defer span.End()

		var req domain.CreateEngagementRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		created, err := svc.CreateEngagement(ctx, ActorFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

// listEngagementsHandler — GET /v1/engagements
func listEngagementsHandler(svc *service.ChainService, defaultExercice int, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/engagements")
		defer span.End()

		exercice := parseExercice(r, defaultExercice)
		page, pageSize := parsePagination(r)
		out, err := svc.ListEngagements(ctx, exercice, page, pageSize)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.ListResponse[domain.Engagement]{
			Data: out, Total: len(out), Page: page, PageSize: pageSize, HasMore: len(out) == pageSize,
		})
	}
}

// getEngagementHandler — GET /v1/engagements/{entityId}
func getEngagementHandler(svc *service.ChainService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/engagements/{entityId}")
		defer span.End()

		e, err := svc.GetEngagement(ctx, chi.URLParam(r, "entityId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

// engagementActionsHandler — GET /v1/engagements/{entityId}/actions
func engagementActionsHandler(svc *service.ChainService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/engagements/{entityId}/actions")
		defer span.End()

		rules, err := svc.EngagementActions(ctx, ActorFromContext(ctx), chi.URLParam(r, "entityId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		type actionView struct {
			Action domain.Action `json:"action"`
			Label  string        `json:"label"`
			To     domain.Statut `json:"statut_cible"`
		}
		out := make([]actionView, 0, len(rules))
		for _, rule := range rules {
			out = append(out, actionView{Action: rule.Action, Label: rule.Label, To: rule.To})
		}
		writeJSON(w, http.StatusOK, map[string]any{"actions": out})
	}
}

// engagementActionHandler — POST /v1/engagements/{entityId}/action (and
// the pinned /visa, /validate, /reject aliases)
func engagementActionHandler(svc *service.ChainService, fixed domain.Action, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/engagements/{entityId}/action")
		defer span.End()

		id := chi.URLParam(r, "entityId")
		req, err := decodeActionRequest(r, fixed)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		span.SetAttributes(
			attribute.String("entity.id", id),
			attribute.String("action", string(req.Action)),
		)

		e, err := svc.EngagementAction(ctx, ActorFromContext(ctx), id, req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

// ============================================================
// Liquidations
// ============================================================

// createLiquidationHandler — POST /v1/liquidations
func createLiquidationHandler(svc *service.ChainService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/liquidations")
		defer span.End()

		var req domain.CreateLiquidationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		created, err := svc.CreateLiquidation(ctx, ActorFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

// listLiquidationsHandler — GET /v1/liquidations
func listLiquidationsHandler(svc *service.ChainService, defaultExercice int, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/liquidations")
		defer span.End()

		exercice := parseExercice(r, defaultExercice)
		page, pageSize := parsePagination(r)
		out, err := svc.ListLiquidations(ctx, exercice, page, pageSize)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.ListResponse[domain.Liquidation]{
			Data: out, Total: len(out), Page: page, PageSize: pageSize, HasMore: len(out) == pageSize,
		})
	}
}

// getLiquidationHandler — GET /v1/liquidations/{entityId}
func getLiquidationHandler(svc *service.ChainService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/liquidations/{entityId}")
		defer span.End()

		l, err := svc.GetLiquidation(ctx, chi.URLParam(r, "entityId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, l)
	}
}

// liquidationActionHandler — POST /v1/liquidations/{entityId}/action
// (and the pinned /forward-dg, /validate aliases)
func liquidationActionHandler(svc *service.ChainService, fixed domain.Action, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/liquidations/{entityId}/action")
		defer span.End()

		id := chi.URLParam(r, "entityId")
		req, err := decodeActionRequest(r, fixed)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		l, err := svc.LiquidationAction(ctx, ActorFromContext(ctx), id, req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, l)
	}
}

// ============================================================
// Ordonnancements
// ============================================================

// createOrdonnancementHandler — POST /v1/ordonnancements
func createOrdonnancementHandler(svc *service.ChainService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/ordonnancements")
		defer span.End()

		var req domain.CreateOrdonnancementRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		created, err := svc.CreateOrdonnancement(ctx, ActorFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

// listOrdonnancementsHandler — GET /v1/ordonnancements
func listOrdonnancementsHandler(svc *service.ChainService, defaultExercice int, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/ordonnancements")
		defer span.End()

		exercice := parseExercice(r, defaultExercice)
		page, pageSize := parsePagination(r)
		out, err := svc.ListOrdonnancements(ctx, exercice, page, pageSize)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.ListResponse[domain.Ordonnancement]{
			Data: out, Total: len(out), Page: page, PageSize: pageSize, HasMore: len(out) == pageSize,
		})
	}
}

// getOrdonnancementHandler — GET /v1/ordonnancements/{entityId}
func getOrdonnancementHandler(svc *service.ChainService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/ordonnancements/{entityId}")
		defer span.End()

		o, err := svc.GetOrdonnancement(ctx, chi.URLParam(r, "entityId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, o)
	}
}

// ordonnancementActionHandler — POST /v1/ordonnancements/{entityId}/action
// (and the pinned /sign alias)
func ordonnancementActionHandler(svc *service.ChainService, fixed domain.Action, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/ordonnancements/{entityId}/action")
		defer span.End()

		id := chi.URLParam(r, "entityId")
		req, err := decodeActionRequest(r, fixed)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		o, err := svc.OrdonnancementAction(ctx, ActorFromContext(ctx), id, req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, o)
	}
}

// ============================================================
// Règlements
// ============================================================

// createReglementHandler — POST /v1/reglements
func createReglementHandler(svc *service.ChainService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/reglements")
		defer span.End()

		var req domain.CreateReglementRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		created, err := svc.CreateReglement(ctx, ActorFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

// listReglementsHandler — GET /v1/reglements
func listReglementsHandler(svc *service.ChainService, defaultExercice int, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/reglements")
		defer span.End()

		exercice := parseExercice(r, defaultExercice)
		page, pageSize := parsePagination(r)
		out, err := svc.ListReglements(ctx, exercice, page, pageSize)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.ListResponse[domain.Reglement]{
			Data: out, Total: len(out), Page: page, PageSize: pageSize, HasMore: len(out) == pageSize,
		})
	}
}

// getReglementHandler — GET /v1/reglements/{entityId}
func getReglementHandler(svc *service.ChainService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/reglements/{entityId}")
		defer span.End()

		reg, err := svc.GetReglement(ctx, chi.URLParam(r, "entityId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, reg)
	}
}

// reglementActionHandler — POST /v1/reglements/{entityId}/action (and
// the pinned /pay, /close aliases)
func reglementActionHandler(svc *service.ChainService, fixed domain.Action, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/reglements/{entityId}/action")
		defer span.End()

		id := chi.URLParam(r, "entityId")
		req, err := decodeActionRequest(r, fixed)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		reg, err := svc.ReglementAction(ctx, ActorFromContext(ctx), id, req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, reg)
	}
}
