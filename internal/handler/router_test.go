package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/naywayne90/sygfp-go/internal/domain"
	"github.com/naywayne90/sygfp-go/internal/handler"
	"github.com/naywayne90/sygfp-go/internal/infra/observability"
	"github.com/naywayne90/sygfp-go/internal/service"

	"go.uber.org/zap"
)

// stubDossierStore returns empty data for every read.
type stubDossierStore struct{}

func (stubDossierStore) CreateDossier(_ context.Context, d *domain.Dossier) (*domain.Dossier, error) {
	out := *d
	return &out, nil
}
func (stubDossierStore) GetDossier(_ context.Context, id string) (*domain.Dossier, error) {
	return nil, &domain.ErrNotFound{Resource: "dossier", ID: id}
}
func (stubDossierStore) ListDossiers(_ context.Context, _, _, _ int) ([]domain.Dossier, error) {
	return []domain.Dossier{}, nil
}
func (stubDossierStore) UpdateDossier(_ context.Context, _ string, _ map[string]any) error {
	return nil
}
func (stubDossierStore) ListEtapes(_ context.Context, _ string) ([]domain.Etape, error) {
	return []domain.Etape{}, nil
}
func (stubDossierStore) UpsertEtape(_ context.Context, e *domain.Etape) (*domain.Etape, error) {
	out := *e
	return &out, nil
}
func (stubDossierStore) DeleteEtape(_ context.Context, _ string) error { return nil }

type stubSequencer struct{}

func (stubSequencer) NextNumber(_ context.Context, _ string, exercice int, _ string) (string, error) {
	return "ARTI/2026/GEN/0001", nil
}

type stubAudit struct{}

func (stubAudit) Record(_ context.Context, _ *domain.AuditEntry) {}

func newTestRouter() http.Handler {
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	auth := service.NewAuthService("test-secret", 15*time.Minute, logger)
	dossiers := service.NewDossierService(stubDossierStore{}, stubSequencer{}, stubAudit{}, metrics, logger)

	return handler.NewRouter(dossiers, nil, nil, auth, metrics, logger, handler.Config{
		DefaultExercice: 2026,
		DevTokens:       true,
	})
}

func mintToken(t *testing.T, router http.Handler, roles ...domain.Role) string {
	t.Helper()
	body, _ := json.Marshal(domain.TokenRequest{UserID: "user-1", Roles: roles})
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/token", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("mint token: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var resp domain.TokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode token response: %v", err)
	}
	return resp.AccessToken
}

func TestHealthz(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestReadyz(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestProtectedRouteRequiresToken(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/v1/dossiers", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestProtectedRouteRejectsBadToken(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/v1/dossiers", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestListDossiersWithToken(t *testing.T) {
	router := newTestRouter()
	token := mintToken(t, router, domain.RoleDG)

	req := httptest.NewRequest(http.MethodGet, "/v1/dossiers?exercice=2026", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var resp domain.ListResponse[domain.Dossier]
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	if resp.Page != 1 {
		t.Errorf("expected page 1, got %d", resp.Page)
	}
}

func TestCreateDossierWithToken(t *testing.T) {
	router := newTestRouter()
	token := mintToken(t, router, domain.RoleAgent)

	body, _ := json.Marshal(domain.CreateDossierRequest{
		Objet:   "Achat de fournitures",
		Montant: 2_500_000,
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/dossiers", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	var created domain.Dossier
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode dossier: %v", err)
	}
	// Exercice falls back to the configured default.
	if created.Exercice != 2026 {
		t.Errorf("expected exercice 2026, got %d", created.Exercice)
	}
	if created.CurrentStage != domain.StageNoteSEF {
		t.Errorf("expected stage note_sef, got %s", created.CurrentStage)
	}
}

func TestUnknownDossierReturns404(t *testing.T) {
	router := newTestRouter()
	token := mintToken(t, router, domain.RoleDG)

	req := httptest.NewRequest(http.MethodGet, "/v1/dossiers/nope", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestDevTokensDisabled(t *testing.T) {
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	auth := service.NewAuthService("test-secret", 15*time.Minute, logger)
	router := handler.NewRouter(nil, nil, nil, auth, metrics, logger, handler.Config{
		DefaultExercice: 2026,
		DevTokens:       false,
	})

	body, _ := json.Marshal(domain.TokenRequest{Roles: []domain.Role{domain.RoleDG}})
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/token", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code == http.StatusOK {
		t.Error("expected dev token endpoint to be unreachable")
	}
}
