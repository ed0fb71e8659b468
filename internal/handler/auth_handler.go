package handler

import (
	"encoding/json"
	"net/http"

	"github.com/naywayne90/sygfp-go/internal/domain"
	"github.com/naywayne90/sygfp-go/internal/service"

	"go.uber.org/zap"
)

// mintTokenHandler — POST /v1/auth/token
func mintTokenHandler(auth *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "POST /v1/auth/token")
		defer span.End()

		var req domain.TokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		resp, err := auth.MintToken(&req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
