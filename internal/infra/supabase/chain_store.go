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
// Chain entities — engagements, liquidations, ordonnancements,
// règlements. Same CRUD shape for all four tables.
// ============================================================

func parseTSPtr(s string) *time.Time {
	if s == "" {
		return nil
	}
	t := parseTS(s)
	return &t
}

type supabaseEngagement struct {
	ID          string  `json:"id"`
	Numero      string  `json:"numero"`
	Exercice    int     `json:"exercice"`
	DossierID   string  `json:"dossier_id"`
	LigneID     string  `json:"ligne_id"`
	DirectionID string  `json:"direction_id"`
	Objet       string  `json:"objet"`
	Montant     float64 `json:"montant"`
	Statut      string  `json:"statut"`
	Motif       string  `json:"motif"`
	SAFUserID   string  `json:"visa_saf_user_id"`
	SAFDate     string  `json:"visa_saf_date"`
	CBUserID    string  `json:"visa_cb_user_id"`
	CBDate      string  `json:"visa_cb_date"`
	DAAFUserID  string  `json:"visa_daaf_user_id"`
	DAAFDate    string  `json:"visa_daaf_date"`
	CreatedBy   string  `json:"created_by"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

func (row supabaseEngagement) toDomain() domain.Engagement {
	return domain.Engagement{
		ID:          row.ID,
		Numero:      row.Numero,
		Exercice:    row.Exercice,
		DossierID:   row.DossierID,
		LigneID:     row.LigneID,
		DirectionID: row.DirectionID,
		Objet:       row.Objet,
		Montant:     row.Montant,
		Statut:      domain.Statut(row.Statut),
		Motif:       row.Motif,
		SAFUserID:   row.SAFUserID,
		SAFDate:     parseTSPtr(row.SAFDate),
		CBUserID:    row.CBUserID,
		CBDate:      parseTSPtr(row.CBDate),
		DAAFUserID:  row.DAAFUserID,
		DAAFDate:    parseTSPtr(row.DAAFDate),
		CreatedBy:   row.CreatedBy,
		CreatedAt:   parseTS(row.CreatedAt),
		UpdatedAt:   parseTS(row.UpdatedAt),
	}
}

func (c *Client) CreateEngagement(ctx context.Context, e *domain.Engagement) (*domain.Engagement, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateEngagement")
	defer span.End()
	span.SetAttributes(attribute.String("engagement.numero", e.Numero))

	body, err := c.doPost(ctx, "budget_engagements", map[string]any{
		"id":           e.ID,
		"numero":       e.Numero,
		"exercice":     e.Exercice,
		"dossier_id":   nullable(e.DossierID),
		"ligne_id":     e.LigneID,
		"direction_id": nullable(e.DirectionID),
		"objet":        e.Objet,
		"montant":      e.Montant,
		"statut":       string(e.Statut),
		"created_by":   e.CreatedBy,
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/budget_engagements", Err: err}
	}
	var rows []supabaseEngagement
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode engagement: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("supabase returned no row for created engagement")
	}
	created := rows[0].toDomain()
	return &created, nil
}

func (c *Client) GetEngagement(ctx context.Context, id string) (*domain.Engagement, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetEngagement")
	defer span.End()
	span.SetAttributes(attribute.String("engagement.id", id))

	body, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("budget_engagements?id=eq.%s&limit=1", id))
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/budget_engagements", Err: err}
	}
	var rows []supabaseEngagement
	if body != nil {
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("decode engagement: %w", err)
		}
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "engagement", ID: id}
	}
	e := rows[0].toDomain()
	return &e, nil
}

func (c *Client) ListEngagements(ctx context.Context, exercice, page, pageSize int) ([]domain.Engagement, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListEngagements")
	defer span.End()

	offset := (page - 1) * pageSize
	path := fmt.Sprintf("budget_engagements?exercice=eq.%d&order=created_at.desc&limit=%d&offset=%d", exercice, pageSize, offset)
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/budget_engagements", Err: err}
	}
	if body == nil {
		return []domain.Engagement{}, nil
	}
	var rows []supabaseEngagement
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode engagements: %w", err)
	}
	out := make([]domain.Engagement, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (c *Client) UpdateEngagement(ctx context.Context, id string, updates map[string]any) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateEngagement")
	defer span.End()
	span.SetAttributes(attribute.String("engagement.id", id))

	if err := c.doPatch(ctx, fmt.Sprintf("budget_engagements?id=eq.%s", id), updates); err != nil {
		return &domain.ErrExternalService{Service: "supabase/budget_engagements", Err: err}
	}
	return nil
}

// --- Liquidations ---

type supabaseLiquidation struct {
	ID           string  `json:"id"`
	Numero       string  `json:"numero"`
	Exercice     int     `json:"exercice"`
	EngagementID string  `json:"engagement_id"`
	DossierID    string  `json:"dossier_id"`
	Objet        string  `json:"objet"`
	Montant      float64 `json:"montant"`
	Statut       string  `json:"statut"`
	Motif        string  `json:"motif"`
	CreatedBy    string  `json:"created_by"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

func (row supabaseLiquidation) toDomain() domain.Liquidation {
	return domain.Liquidation{
		ID:           row.ID,
		Numero:       row.Numero,
		Exercice:     row.Exercice,
		EngagementID: row.EngagementID,
		DossierID:    row.DossierID,
		Objet:        row.Objet,
		Montant:      row.Montant,
		Statut:       domain.Statut(row.Statut),
		Motif:        row.Motif,
		CreatedBy:    row.CreatedBy,
		CreatedAt:    parseTS(row.CreatedAt),
		UpdatedAt:    parseTS(row.UpdatedAt),
	}
}

func (c *Client) CreateLiquidation(ctx context.Context, l *domain.Liquidation) (*domain.Liquidation, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateLiquidation")
	defer span.End()
	span.SetAttributes(attribute.String("liquidation.numero", l.Numero))

	body, err := c.doPost(ctx, "budget_liquidations", map[string]any{
		"id":            l.ID,
		"numero":        l.Numero,
		"exercice":      l.Exercice,
		"engagement_id": l.EngagementID,
		"dossier_id":    nullable(l.DossierID),
		"objet":         l.Objet,
		"montant":       l.Montant,
		"statut":        string(l.Statut),
		"created_by":    l.CreatedBy,
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/budget_liquidations", Err: err}
	}
	var rows []supabaseLiquidation
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode liquidation: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("supabase returned no row for created liquidation")
	}
	created := rows[0].toDomain()
	return &created, nil
}

func (c *Client) GetLiquidation(ctx context.Context, id string) (*domain.Liquidation, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetLiquidation")
	defer span.End()
	span.SetAttributes(attribute.String("liquidation.id", id))

	body, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("budget_liquidations?id=eq.%s&limit=1", id))
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/budget_liquidations", Err: err}
	}
	var rows []supabaseLiquidation
	if body != nil {
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("decode liquidation: %w", err)
		}
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "liquidation", ID: id}
	}
	l := rows[0].toDomain()
	return &l, nil
}

func (c *Client) ListLiquidations(ctx context.Context, exercice, page, pageSize int) ([]domain.Liquidation, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListLiquidations")
	defer span.End()

	offset := (page - 1) * pageSize
	path := fmt.Sprintf("budget_liquidations?exercice=eq.%d&order=created_at.desc&limit=%d&offset=%d", exercice, pageSize, offset)
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/budget_liquidations", Err: err}
	}
	if body == nil {
		return []domain.Liquidation{}, nil
	}
	var rows []supabaseLiquidation
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode liquidations: %w", err)
	}
	out := make([]domain.Liquidation, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (c *Client) UpdateLiquidation(ctx context.Context, id string, updates map[string]any) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateLiquidation")
	defer span.End()
	span.SetAttributes(attribute.String("liquidation.id", id))

	if err := c.doPatch(ctx, fmt.Sprintf("budget_liquidations?id=eq.%s", id), updates); err != nil {
		return &domain.ErrExternalService{Service: "supabase/budget_liquidations", Err: err}
	}
	return nil
}

// --- Ordonnancements ---

type supabaseOrdonnancement struct {
	ID            string  `json:"id"`
	Numero        string  `json:"numero"`
	Exercice      int     `json:"exercice"`
	LiquidationID string  `json:"liquidation_id"`
	DossierID     string  `json:"dossier_id"`
	Montant       float64 `json:"montant"`
	Statut        string  `json:"statut"`
	Motif         string  `json:"motif"`
	SignedBy      string  `json:"signataire_id"`
	SignedAt      string  `json:"date_signature"`
	CreatedBy     string  `json:"created_by"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

func (row supabaseOrdonnancement) toDomain() domain.Ordonnancement {
	return domain.Ordonnancement{
		ID:            row.ID,
		Numero:        row.Numero,
		Exercice:      row.Exercice,
		LiquidationID: row.LiquidationID,
		DossierID:     row.DossierID,
		Montant:       row.Montant,
		Statut:        domain.Statut(row.Statut),
		Motif:         row.Motif,
		SignedBy:      row.SignedBy,
		SignedAt:      parseTSPtr(row.SignedAt),
		CreatedBy:     row.CreatedBy,
		CreatedAt:     parseTS(row.CreatedAt),
		UpdatedAt:     parseTS(row.UpdatedAt),
	}
}

func (c *Client) CreateOrdonnancement(ctx context.Context, o *domain.Ordonnancement) (*domain.Ordonnancement, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateOrdonnancement")
	defer span.End()
	span.SetAttributes(attribute.String("ordonnancement.numero", o.Numero))

	body, err := c.doPost(ctx, "ordonnancements", map[string]any{
		"id":             o.ID,
		"numero":         o.Numero,
		"exercice":       o.Exercice,
		"liquidation_id": o.LiquidationID,
		"dossier_id":     nullable(o.DossierID),
		"montant":        o.Montant,
		"statut":         string(o.Statut),
		"created_by":     o.CreatedBy,
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/ordonnancements", Err: err}
	}
	var rows []supabaseOrdonnancement
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode ordonnancement: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("supabase returned no row for created ordonnancement")
	}
	created := rows[0].toDomain()
	return &created, nil
}

func (c *Client) GetOrdonnancement(ctx context.Context, id string) (*domain.Ordonnancement, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetOrdonnancement")
	defer span.End()
	span.SetAttributes(attribute.String("ordonnancement.id", id))

	body, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("ordonnancements?id=eq.%s&limit=1", id))
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/ordonnancements", Err: err}
	}
	var rows []supabaseOrdonnancement
	if body != nil {
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("decode ordonnancement: %w", err)
		}
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "ordonnancement", ID: id}
	}
	o := rows[0].toDomain()
	return &o, nil
}

func (c *Client) ListOrdonnancements(ctx context.Context, exercice, page, pageSize int) ([]domain.Ordonnancement, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListOrdonnancements")
	defer span.End()

	offset := (page - 1) * pageSize
	path := fmt.Sprintf("ordonnancements?exercice=eq.%d&order=created_at.desc&limit=%d&offset=%d", exercice, pageSize, offset)
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/ordonnancements", Err: err}
	}
	if body == nil {
		return []domain.Ordonnancement{}, nil
	}
	var rows []supabaseOrdonnancement
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode ordonnancements: %w", err)
	}
	out := make([]domain.Ordonnancement, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (c *Client) UpdateOrdonnancement(ctx context.Context, id string, updates map[string]any) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateOrdonnancement")
	defer span.End()
	span.SetAttributes(attribute.String("ordonnancement.id", id))

	if err := c.doPatch(ctx, fmt.Sprintf("ordonnancements?id=eq.%s", id), updates); err != nil {
		return &domain.ErrExternalService{Service: "supabase/ordonnancements", Err: err}
	}
	return nil
}

// --- Règlements ---

type supabaseReglement struct {
	ID               string  `json:"id"`
	Numero           string  `json:"numero"`
	Exercice         int     `json:"exercice"`
	OrdonnancementID string  `json:"ordonnancement_id"`
	DossierID        string  `json:"dossier_id"`
	Montant          float64 `json:"montant"`
	ModePaiement     string  `json:"mode_paiement"`
	Statut           string  `json:"statut"`
	Motif            string  `json:"motif"`
	PaidAt           string  `json:"date_paiement"`
	CreatedBy        string  `json:"created_by"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
}

func (row supabaseReglement) toDomain() domain.Reglement {
	return domain.Reglement{
		ID:               row.ID,
		Numero:           row.Numero,
		Exercice:         row.Exercice,
		OrdonnancementID: row.OrdonnancementID,
		DossierID:        row.DossierID,
		Montant:          row.Montant,
		ModePaiement:     row.ModePaiement,
		Statut:           domain.Statut(row.Statut),
		Motif:            row.Motif,
		PaidAt:           parseTSPtr(row.PaidAt),
		CreatedBy:        row.CreatedBy,
		CreatedAt:        parseTS(row.CreatedAt),
		UpdatedAt:        parseTS(row.UpdatedAt),
	}
}

func (c *Client) CreateReglement(ctx context.Context, r *domain.Reglement) (*domain.Reglement, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateReglement")
	defer span.End()
	span.SetAttributes(attribute.String("reglement.numero", r.Numero))

	body, err := c.doPost(ctx, "reglements", map[string]any{
		"id":                r.ID,
		"numero":            r.Numero,
		"exercice":          r.Exercice,
		"ordonnancement_id": r.OrdonnancementID,
		"dossier_id":        nullable(r.DossierID),
		"montant":           r.Montant,
		"mode_paiement":     r.ModePaiement,
		"statut":            string(r.Statut),
		"created_by":        r.CreatedBy,
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/reglements", Err: err}
	}
	var rows []supabaseReglement
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode reglement: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("supabase returned no row for created reglement")
	}
	created := rows[0].toDomain()
	return &created, nil
}

func (c *Client) GetReglement(ctx context.Context, id string) (*domain.Reglement, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetReglement")
	defer span.End()
	span.SetAttributes(attribute.String("reglement.id", id))

	body, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("reglements?id=eq.%s&limit=1", id))
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/reglements", Err: err}
	}
	var rows []supabaseReglement
	if body != nil {
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("decode reglement: %w", err)
		}
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "reglement", ID: id}
	}
	r := rows[0].toDomain()
	return &r, nil
}

func (c *Client) ListReglements(ctx context.Context, exercice, page, pageSize int) ([]domain.Reglement, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListReglements")
	defer span.End()

	offset := (page - 1) * pageSize
	path := fmt.Sprintf("reglements?exercice=eq.%d&order=created_at.desc&limit=%d&offset=%d", exercice, pageSize, offset)
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/reglements", Err: err}
	}
	if body == nil {
		return []domain.Reglement{}, nil
	}
	var rows []supabaseReglement
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode reglements: %w", err)
	}
	out := make([]domain.Reglement, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (c *Client) UpdateReglement(ctx context.Context, id string, updates map[string]any) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateReglement")
	defer span.End()
	span.SetAttributes(attribute.String("reglement.id", id))

	if err := c.doPatch(ctx, fmt.Sprintf("reglements?id=eq.%s", id), updates); err != nil {
		return &domain.ErrExternalService{Service: "supabase/reglements", Err: err}
	}
	return nil
}
