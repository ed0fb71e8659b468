package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/naywayne90/sygfp-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Budget lines & credit transfers — CRUD via PostgREST
// ============================================================

type supabaseBudgetLine struct {
	ID               string  `json:"id"`
	Code             string  `json:"code"`
	Libelle          string  `json:"libelle"`
	Exercice         int     `json:"exercice"`
	DirectionID      string  `json:"direction_id"`
	ParentID         string  `json:"parent_id"`
	Niveau           string  `json:"niveau"`
	DotationInitiale float64 `json:"dotation_initiale"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
}

func (row supabaseBudgetLine) toDomain() domain.BudgetLine {
	return domain.BudgetLine{
		ID:               row.ID,
		Code:             row.Code,
		Libelle:          row.Libelle,
		Exercice:         row.Exercice,
		DirectionID:      row.DirectionID,
		ParentID:         row.ParentID,
		Niveau:           row.Niveau,
		DotationInitiale: row.DotationInitiale,
		CreatedAt:        parseTS(row.CreatedAt),
		UpdatedAt:        parseTS(row.UpdatedAt),
	}
}

func (c *Client) CreateBudgetLine(ctx context.Context, l *domain.BudgetLine) (*domain.BudgetLine, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateBudgetLine")
	defer span.End()
	span.SetAttributes(attribute.String("ligne.code", l.Code))

	body, err := c.doPost(ctx, "budget_lines", map[string]any{
		"id":                l.ID,
		"code":              l.Code,
		"libelle":           l.Libelle,
		"exercice":          l.Exercice,
		"direction_id":      l.DirectionID,
		"parent_id":         nullable(l.ParentID),
		"niveau":            l.Niveau,
		"dotation_initiale": l.DotationInitiale,
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/budget_lines", Err: err}
	}

	var rows []supabaseBudgetLine
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode budget line: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("supabase returned no row for created budget line")
	}
	created := rows[0].toDomain()
	return &created, nil
}

func (c *Client) GetBudgetLine(ctx context.Context, id string) (*domain.BudgetLine, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetBudgetLine")
	defer span.End()
	span.SetAttributes(attribute.String("ligne.id", id))

	path := fmt.Sprintf("budget_lines?id=eq.%s&limit=1", id)
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/budget_lines", Err: err}
	}

	var rows []supabaseBudgetLine
	if body != nil {
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("decode budget line: %w", err)
		}
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "budget_line", ID: id}
	}
	l := rows[0].toDomain()
	return &l, nil
}

func (c *Client) ListBudgetLines(ctx context.Context, exercice int) ([]domain.BudgetLine, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListBudgetLines")
	defer span.End()
	span.SetAttributes(attribute.Int("exercice", exercice))

	path := fmt.Sprintf("budget_lines?exercice=eq.%d&order=code.asc", exercice)
	body, err := c.getResilient(ctx, path)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/budget_lines", Err: err}
	}
	if body == nil {
		return []domain.BudgetLine{}, nil
	}

	var rows []supabaseBudgetLine
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode budget lines: %w", err)
	}
	out := make([]domain.BudgetLine, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// --- Credit transfers ---

type supabaseTransfer struct {
	ID            string  `json:"id"`
	Exercice      int     `json:"exercice"`
	SourceLigneID string  `json:"ligne_source_id"`
	DestLigneID   string  `json:"ligne_destination_id"`
	Montant       float64 `json:"montant"`
	Motif         string  `json:"motif"`
	Status        string  `json:"statut"`
	RequestedBy   string  `json:"demandeur_id"`
	DecidedBy     string  `json:"decideur_id"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

func (row supabaseTransfer) toDomain() domain.CreditTransfer {
	return domain.CreditTransfer{
		ID:            row.ID,
		Exercice:      row.Exercice,
		SourceLigneID: row.SourceLigneID,
		DestLigneID:   row.DestLigneID,
		Montant:       row.Montant,
		Motif:         row.Motif,
		Status:        domain.TransferStatus(row.Status),
		RequestedBy:   row.RequestedBy,
		DecidedBy:     row.DecidedBy,
		CreatedAt:     parseTS(row.CreatedAt),
		UpdatedAt:     parseTS(row.UpdatedAt),
	}
}

func (c *Client) CreateTransfer(ctx context.Context, t *domain.CreditTransfer) (*domain.CreditTransfer, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateTransfer")
	defer span.End()

	body, err := c.doPost(ctx, "credit_transfers", map[string]any{
		"id":                   t.ID,
		"exercice":             t.Exercice,
		"ligne_source_id":      t.SourceLigneID,
		"ligne_destination_id": t.DestLigneID,
		"montant":              t.Montant,
		"motif":                t.Motif,
		"statut":               string(t.Status),
		"demandeur_id":         t.RequestedBy,
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/credit_transfers", Err: err}
	}

	var rows []supabaseTransfer
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode transfer: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("supabase returned no row for created transfer")
	}
	created := rows[0].toDomain()
	return &created, nil
}

func (c *Client) GetTransfer(ctx context.Context, id string) (*domain.CreditTransfer, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetTransfer")
	defer span.End()
	span.SetAttributes(attribute.String("transfer.id", id))

	path := fmt.Sprintf("credit_transfers?id=eq.%s&limit=1", id)
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/credit_transfers", Err: err}
	}

	var rows []supabaseTransfer
	if body != nil {
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("decode transfer: %w", err)
		}
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "credit_transfer", ID: id}
	}
	t := rows[0].toDomain()
	return &t, nil
}

func (c *Client) ListTransfers(ctx context.Context, exercice int) ([]domain.CreditTransfer, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListTransfers")
	defer span.End()
	span.SetAttributes(attribute.Int("exercice", exercice))

	path := fmt.Sprintf("credit_transfers?exercice=eq.%d&order=created_at.desc", exercice)
	body, err := c.getResilient(ctx, path)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/credit_transfers", Err: err}
	}
	if body == nil {
		return []domain.CreditTransfer{}, nil
	}

	var rows []supabaseTransfer
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode transfers: %w", err)
	}
	out := make([]domain.CreditTransfer, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (c *Client) UpdateTransfer(ctx context.Context, id string, updates map[string]any) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateTransfer")
	defer span.End()
	span.SetAttributes(attribute.String("transfer.id", id))

	if err := c.doPatch(ctx, fmt.Sprintf("credit_transfers?id=eq.%s", id), updates); err != nil {
		return &domain.ErrExternalService{Service: "supabase/credit_transfers", Err: err}
	}
	return nil
}

// --- Aggregation row reads ---
// Reads feeding the availability computation go through the circuit
// breaker: they fan out per request and hit the backend hardest.

func (c *Client) ListEngagementRows(ctx context.Context, exercice int) ([]domain.Engagement, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListEngagementRows")
	defer span.End()

	path := fmt.Sprintf("budget_engagements?exercice=eq.%d", exercice)
	body, err := c.getResilient(ctx, path)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/budget_engagements", Err: err}
	}
	if body == nil {
		return []domain.Engagement{}, nil
	}

	var rows []supabaseEngagement
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode engagement rows: %w", err)
	}
	out := make([]domain.Engagement, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (c *Client) ListLiquidationRows(ctx context.Context, exercice int) ([]domain.Liquidation, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListLiquidationRows")
	defer span.End()

	path := fmt.Sprintf("budget_liquidations?exercice=eq.%d", exercice)
	body, err := c.getResilient(ctx, path)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/budget_liquidations", Err: err}
	}
	if body == nil {
		return []domain.Liquidation{}, nil
	}

	var rows []supabaseLiquidation
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode liquidation rows: %w", err)
	}
	out := make([]domain.Liquidation, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (c *Client) ListOrdonnancementRows(ctx context.Context, exercice int) ([]domain.Ordonnancement, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListOrdonnancementRows")
	defer span.End()

	path := fmt.Sprintf("ordonnancements?exercice=eq.%d", exercice)
	body, err := c.getResilient(ctx, path)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/ordonnancements", Err: err}
	}
	if body == nil {
		return []domain.Ordonnancement{}, nil
	}

	var rows []supabaseOrdonnancement
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode ordonnancement rows: %w", err)
	}
	out := make([]domain.Ordonnancement, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (c *Client) ListReglementRows(ctx context.Context, exercice int) ([]domain.Reglement, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListReglementRows")
	defer span.End()

	path := fmt.Sprintf("reglements?exercice=eq.%d", exercice)
	body, err := c.getResilient(ctx, path)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/reglements", Err: err}
	}
	if body == nil {
		return []domain.Reglement{}, nil
	}

	var rows []supabaseReglement
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode reglement rows: %w", err)
	}
	out := make([]domain.Reglement, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// nullable maps "" to SQL NULL so empty foreign keys don't violate
// the references constraint.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
