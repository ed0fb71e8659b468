package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/naywayne90/sygfp-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Dossiers & etapes — CRUD via PostgREST
// ============================================================

// supabaseDossier maps the dossiers table columns to our domain.
type supabaseDossier struct {
	ID           string  `json:"id"`
	Numero       string  `json:"numero"`
	Exercice     int     `json:"exercice"`
	DirectionID  string  `json:"direction_id"`
	Objet        string  `json:"objet"`
	Montant      float64 `json:"montant_estime"`
	Engage       float64 `json:"montant_engage"`
	Liquide      float64 `json:"montant_liquide"`
	Ordonnance   float64 `json:"montant_ordonnance"`
	Paye         float64 `json:"montant_paye"`
	CurrentStage string  `json:"etape_courante"`
	Status       string  `json:"statut_global"`
	CreatedBy    string  `json:"created_by"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

func parseTS(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

// statut_global keeps the legacy vocabulary of the dossiers table; the
// API speaks the derived one.
var caseStatusFromDB = map[string]domain.CaseStatus{
	"en_cours": domain.CaseInProgress,
	"termine":  domain.CaseCompleted,
	"annule":   domain.CaseCancelled,
	"suspendu": domain.CaseBlocked,
}

var caseStatusToDB = map[domain.CaseStatus]string{
	domain.CaseInProgress: "en_cours",
	domain.CaseCompleted:  "termine",
	domain.CaseCancelled:  "annule",
	domain.CaseBlocked:    "suspendu",
}

func (row supabaseDossier) toDomain() domain.Dossier {
	status, ok := caseStatusFromDB[row.Status]
	if !ok {
		status = domain.CaseInProgress
	}
	return domain.Dossier{
		ID:           row.ID,
		Numero:       row.Numero,
		Exercice:     row.Exercice,
		DirectionID:  row.DirectionID,
		Objet:        row.Objet,
		Montant:      row.Montant,
		Engage:       row.Engage,
		Liquide:      row.Liquide,
		Ordonnance:   row.Ordonnance,
		Paye:         row.Paye,
		CurrentStage: domain.Stage(row.CurrentStage),
		Status:       status,
		CreatedBy:    row.CreatedBy,
		CreatedAt:    parseTS(row.CreatedAt),
		UpdatedAt:    parseTS(row.UpdatedAt),
	}
}

func (c *Client) CreateDossier(ctx context.Context, d *domain.Dossier) (*domain.Dossier, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateDossier")
	defer span.End()
	span.SetAttributes(attribute.String("dossier.numero", d.Numero))

	body, err := c.doPost(ctx, "dossiers", map[string]any{
		"id":             d.ID,
		"numero":         d.Numero,
		"exercice":       d.Exercice,
		"direction_id":   d.DirectionID,
		"objet":          d.Objet,
		"montant_estime": d.Montant,
		"etape_courante": string(d.CurrentStage),
		"statut_global":  caseStatusToDB[d.Status],
		"created_by":     d.CreatedBy,
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/dossiers", Err: err}
	}

	var rows []supabaseDossier
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode dossier: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("supabase returned no row for created dossier")
	}
	created := rows[0].toDomain()
	return &created, nil
}

func (c *Client) GetDossier(ctx context.Context, id string) (*domain.Dossier, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetDossier")
	defer span.End()
	span.SetAttributes(attribute.String("dossier.id", id))

	path := fmt.Sprintf("dossiers?id=eq.%s&limit=1", id)
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/dossiers", Err: err}
	}

	var rows []supabaseDossier
	if body != nil {
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("decode dossier: %w", err)
		}
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "dossier", ID: id}
	}
	d := rows[0].toDomain()
	return &d, nil
}

func (c *Client) ListDossiers(ctx context.Context, exercice, page, pageSize int) ([]domain.Dossier, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListDossiers")
	defer span.End()

	offset := (page - 1) * pageSize
	path := fmt.Sprintf("dossiers?exercice=eq.%d&order=created_at.desc&limit=%d&offset=%d", exercice, pageSize, offset)
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/dossiers", Err: err}
	}
	if body == nil {
		return []domain.Dossier{}, nil
	}

	var rows []supabaseDossier
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode dossiers: %w", err)
	}
	out := make([]domain.Dossier, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (c *Client) UpdateDossier(ctx context.Context, id string, updates map[string]any) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateDossier")
	defer span.End()
	span.SetAttributes(attribute.String("dossier.id", id))

	if s, ok := updates["statut_global"].(domain.CaseStatus); ok {
		updates["statut_global"] = caseStatusToDB[s]
	}
	if err := c.doPatch(ctx, fmt.Sprintf("dossiers?id=eq.%s", id), updates); err != nil {
		return &domain.ErrExternalService{Service: "supabase/dossiers", Err: err}
	}
	return nil
}

// --- Etapes ---

// supabaseEtape maps the dossier_etapes table columns. The table stores
// statuts in the legacy French vocabulary.
type supabaseEtape struct {
	ID          string  `json:"id"`
	DossierID   string  `json:"dossier_id"`
	Stage       string  `json:"etape"`
	Status      string  `json:"statut"`
	EntityID    string  `json:"entity_id"`
	Reference   string  `json:"reference"`
	Montant     float64 `json:"montant"`
	Validateur  string  `json:"validateur"`
	Motif       string  `json:"motif"`
	CompletedAt string  `json:"completed_at"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

var stepStatusFromDB = map[string]domain.StepStatus{
	"en_attente": domain.StepPending,
	"en_cours":   domain.StepInProgress,
	"valide":     domain.StepCompleted,
	"termine":    domain.StepCompleted,
	"rejete":     domain.StepRejected,
	"differe":    domain.StepDeferred,
	"ignore":     domain.StepSkipped,
}

var stepStatusToDB = map[domain.StepStatus]string{
	domain.StepPending:    "en_attente",
	domain.StepInProgress: "en_cours",
	domain.StepCompleted:  "termine",
	domain.StepRejected:   "rejete",
	domain.StepDeferred:   "differe",
	domain.StepSkipped:    "ignore",
}

func (row supabaseEtape) toDomain() domain.Etape {
	status, ok := stepStatusFromDB[row.Status]
	if !ok {
		status = domain.StepPending
	}
	e := domain.Etape{
		ID:         row.ID,
		DossierID:  row.DossierID,
		Stage:      domain.Stage(row.Stage),
		Status:     status,
		EntityID:   row.EntityID,
		Reference:  row.Reference,
		Montant:    row.Montant,
		Validateur: row.Validateur,
		Motif:      row.Motif,
		CreatedAt:  parseTS(row.CreatedAt),
		UpdatedAt:  parseTS(row.UpdatedAt),
	}
	if row.CompletedAt != "" {
		t := parseTS(row.CompletedAt)
		e.CompletedAt = &t
	}
	return e
}

func (c *Client) ListEtapes(ctx context.Context, dossierID string) ([]domain.Etape, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListEtapes")
	defer span.End()
	span.SetAttributes(attribute.String("dossier.id", dossierID))

	path := fmt.Sprintf("dossier_etapes?dossier_id=eq.%s&order=created_at.asc", dossierID)
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/dossier_etapes", Err: err}
	}
	if body == nil {
		return []domain.Etape{}, nil
	}

	var rows []supabaseEtape
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode etapes: %w", err)
	}
	out := make([]domain.Etape, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// UpsertEtape writes the stage record, merging on the unique
// (dossier_id, etape) pair so re-validation updates in place.
func (c *Client) UpsertEtape(ctx context.Context, e *domain.Etape) (*domain.Etape, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpsertEtape")
	defer span.End()
	span.SetAttributes(
		attribute.String("dossier.id", e.DossierID),
		attribute.String("etape", string(e.Stage)),
	)

	// The id column is left to the database: on conflict the existing
	// row keeps its id, on insert the default generates one.
	payload := map[string]any{
		"dossier_id": e.DossierID,
		"etape":      string(e.Stage),
		"statut":     stepStatusToDB[e.Status],
		"entity_id":  e.EntityID,
		"reference":  e.Reference,
		"montant":    e.Montant,
		"validateur": e.Validateur,
		"motif":      e.Motif,
	}
	if e.CompletedAt != nil {
		payload["completed_at"] = e.CompletedAt.Format(time.RFC3339)
	}

	body, err := c.doUpsert(ctx, "dossier_etapes?on_conflict=dossier_id,etape", payload)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/dossier_etapes", Err: err}
	}

	var rows []supabaseEtape
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode etape: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("supabase returned no row for upserted etape")
	}
	saved := rows[0].toDomain()
	return &saved, nil
}

// DeleteEtape removes a stage record. Used as the compensating action
// when the dossier pointer update fails after the record write.
func (c *Client) DeleteEtape(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteEtape")
	defer span.End()
	span.SetAttributes(attribute.String("etape.id", id))

	if err := c.doDelete(ctx, fmt.Sprintf("dossier_etapes?id=eq.%s", id)); err != nil {
		return &domain.ErrExternalService{Service: "supabase/dossier_etapes", Err: err}
	}
	return nil
}
