package handler

import (
	"encoding/json"
	"net/http"

	"github.com/naywayne90/sygfp-go/internal/domain"
	"github.com/naywayne90/sygfp-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// createDossierHandler — POST /v1/dossiers
func createDossierHandler(svc *service.DossierService, defaultExercice int, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/dossiers")
		defer span.End()

		var req domain.CreateDossierRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Exercice == 0 {
			req.Exercice = defaultExercice
		}

		created, err := svc.Create(ctx, ActorFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

// listDossiersHandler — GET /v1/dossiers
func listDossiersHandler(svc *service.DossierService, defaultExercice int, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/dossiers")
		defer span.End()

		exercice := parseExercice(r, defaultExercice)
		page, pageSize := parsePagination(r)
		span.SetAttributes(attribute.Int("exercice", exercice))

		dossiers, err := svc.List(ctx, exercice, page, pageSize)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.ListResponse[domain.Dossier]{
			Data:     dossiers,
			Total:    len(dossiers),
			Page:     page,
			PageSize: pageSize,
			HasMore:  len(dossiers) == pageSize,
		})
	}
}

// getDossierHandler — GET /v1/dossiers/{dossierId}
func getDossierHandler(svc *service.DossierService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/dossiers/{dossierId}")
		defer span.End()

		id := chi.URLParam(r, "dossierId")
		span.SetAttributes(attribute.String("dossier.id", id))

		detail, err := svc.Get(ctx, id)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, detail)
	}
}

// dossierTransitionsHandler — GET /v1/dossiers/{dossierId}/transitions
func dossierTransitionsHandler(svc *service.DossierService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/dossiers/{dossierId}/transitions")
		defer span.End()

		id := chi.URLParam(r, "dossierId")
		checks, err := svc.Transitions(ctx, id, ActorFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"transitions": checks})
	}
}

// dossierTransitionHandler — POST /v1/dossiers/{dossierId}/transition
func dossierTransitionHandler(svc *service.DossierService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/dossiers/{dossierId}/transition")
		defer span.End()

		id := chi.URLParam(r, "dossierId")
		var req domain.TransitionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		span.SetAttributes(
			attribute.String("dossier.id", id),
			attribute.String("target", string(req.Target)),
		)

		detail, err := svc.Transition(ctx, id, ActorFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, detail)
	}
}

// dossierStepStatusHandler — POST /v1/dossiers/{dossierId}/steps/{stage}/status
func dossierStepStatusHandler(svc *service.DossierService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/dossiers/{dossierId}/steps/{stage}/status")
		defer span.End()

		id := chi.URLParam(r, "dossierId")
		stage := domain.Stage(chi.URLParam(r, "stage"))
		var req domain.StepStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		detail, err := svc.UpdateStepStatus(ctx, id, stage, ActorFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, detail)
	}
}
