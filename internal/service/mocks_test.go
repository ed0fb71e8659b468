package service_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/naywayne90/sygfp-go/internal/domain"
)

// --- Mocks: in-memory stores backing the service tests ---

type memDossierStore struct {
	dossiers   map[string]*domain.Dossier
	etapes     map[string]*domain.Etape
	nextEtape  int
	failUpdate bool
}

func newMemDossierStore() *memDossierStore {
	return &memDossierStore{
		dossiers: map[string]*domain.Dossier{},
		etapes:   map[string]*domain.Etape{},
	}
}

func (m *memDossierStore) CreateDossier(_ context.Context, d *domain.Dossier) (*domain.Dossier, error) {
	cp := *d
	m.dossiers[d.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memDossierStore) GetDossier(_ context.Context, id string) (*domain.Dossier, error) {
	d, ok := m.dossiers[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "dossier", ID: id}
	}
	out := *d
	return &out, nil
}

func (m *memDossierStore) ListDossiers(_ context.Context, exercice, _, _ int) ([]domain.Dossier, error) {
	var out []domain.Dossier
	for _, d := range m.dossiers {
		if d.Exercice == exercice {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (m *memDossierStore) UpdateDossier(_ context.Context, id string, updates map[string]any) error {
	if m.failUpdate {
		return errors.New("store unavailable")
	}
	d, ok := m.dossiers[id]
	if !ok {
		return &domain.ErrNotFound{Resource: "dossier", ID: id}
	}
	if v, ok := updates["etape_courante"].(string); ok {
		d.CurrentStage = domain.Stage(v)
	}
	if v, ok := updates["statut_global"].(domain.CaseStatus); ok {
		d.Status = v
	}
	return nil
}

func (m *memDossierStore) ListEtapes(_ context.Context, dossierID string) ([]domain.Etape, error) {
	var out []domain.Etape
	for _, e := range m.etapes {
		if e.DossierID == dossierID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *memDossierStore) UpsertEtape(_ context.Context, e *domain.Etape) (*domain.Etape, error) {
	for _, existing := range m.etapes {
		if existing.DossierID == e.DossierID && existing.Stage == e.Stage {
			id := existing.ID
			cp := *e
			cp.ID = id
			m.etapes[id] = &cp
			out := cp
			return &out, nil
		}
	}
	m.nextEtape++
	cp := *e
	cp.ID = fmt.Sprintf("etape-%d", m.nextEtape)
	m.etapes[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memDossierStore) DeleteEtape(_ context.Context, id string) error {
	delete(m.etapes, id)
	return nil
}

type memBudgetStore struct {
	lines     []domain.BudgetLine
	transfers map[string]*domain.CreditTransfer

	engagements     []domain.Engagement
	liquidations    []domain.Liquidation
	ordonnancements []domain.Ordonnancement
	reglements      []domain.Reglement

	lineReads int
}

func newMemBudgetStore() *memBudgetStore {
	return &memBudgetStore{transfers: map[string]*domain.CreditTransfer{}}
}

func (m *memBudgetStore) CreateBudgetLine(_ context.Context, l *domain.BudgetLine) (*domain.BudgetLine, error) {
	m.lines = append(m.lines, *l)
	out := *l
	return &out, nil
}

func (m *memBudgetStore) GetBudgetLine(_ context.Context, id string) (*domain.BudgetLine, error) {
	for i := range m.lines {
		if m.lines[i].ID == id {
			out := m.lines[i]
			return &out, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "ligne budgétaire", ID: id}
}

func (m *memBudgetStore) ListBudgetLines(_ context.Context, exercice int) ([]domain.BudgetLine, error) {
	m.lineReads++
	var out []domain.BudgetLine
	for _, l := range m.lines {
		if l.Exercice == exercice {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memBudgetStore) CreateTransfer(_ context.Context, t *domain.CreditTransfer) (*domain.CreditTransfer, error) {
	cp := *t
	m.transfers[t.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memBudgetStore) GetTransfer(_ context.Context, id string) (*domain.CreditTransfer, error) {
	t, ok := m.transfers[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "virement", ID: id}
	}
	out := *t
	return &out, nil
}

func (m *memBudgetStore) ListTransfers(_ context.Context, exercice int) ([]domain.CreditTransfer, error) {
	var out []domain.CreditTransfer
	for _, t := range m.transfers {
		if t.Exercice == exercice {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memBudgetStore) UpdateTransfer(_ context.Context, id string, updates map[string]any) error {
	t, ok := m.transfers[id]
	if !ok {
		return &domain.ErrNotFound{Resource: "virement", ID: id}
	}
	if v, ok := updates["statut"].(string); ok {
		t.Status = domain.TransferStatus(v)
	}
	if v, ok := updates["motif"].(string); ok {
		t.Motif = v
	}
	if v, ok := updates["decideur_id"].(string); ok {
		t.DecidedBy = v
	}
	return nil
}

func (m *memBudgetStore) ListEngagementRows(_ context.Context, exercice int) ([]domain.Engagement, error) {
	var out []domain.Engagement
	for _, e := range m.engagements {
		if e.Exercice == exercice {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memBudgetStore) ListLiquidationRows(_ context.Context, exercice int) ([]domain.Liquidation, error) {
	var out []domain.Liquidation
	for _, l := range m.liquidations {
		if l.Exercice == exercice {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memBudgetStore) ListOrdonnancementRows(_ context.Context, exercice int) ([]domain.Ordonnancement, error) {
	var out []domain.Ordonnancement
	for _, o := range m.ordonnancements {
		if o.Exercice == exercice {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memBudgetStore) ListReglementRows(_ context.Context, exercice int) ([]domain.Reglement, error) {
	var out []domain.Reglement
	for _, r := range m.reglements {
		if r.Exercice == exercice {
			out = append(out, r)
		}
	}
	return out, nil
}

// memChainStore shares the row slices with a memBudgetStore so the
// aggregation sees what the chain writes, mirroring the shared tables.
type memChainStore struct {
	rows *memBudgetStore
}

func applyTS(v any) *time.Time {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

func (m *memChainStore) CreateEngagement(_ context.Context, e *domain.Engagement) (*domain.Engagement, error) {
	m.rows.engagements = append(m.rows.engagements, *e)
	out := *e
	return &out, nil
}

func (m *memChainStore) GetEngagement(_ context.Context, id string) (*domain.Engagement, error) {
	for i := range m.rows.engagements {
		if m.rows.engagements[i].ID == id {
			out := m.rows.engagements[i]
			return &out, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "engagement", ID: id}
}

func (m *memChainStore) ListEngagements(_ context.Context, exercice, _, _ int) ([]domain.Engagement, error) {
	return m.rows.ListEngagementRows(context.Background(), exercice)
}

func (m *memChainStore) UpdateEngagement(_ context.Context, id string, updates map[string]any) error {
	for i := range m.rows.engagements {
		if m.rows.engagements[i].ID != id {
			continue
		}
		e := &m.rows.engagements[i]
		if v, ok := updates["statut"].(string); ok {
			e.Statut = domain.Statut(v)
		}
		if v, ok := updates["motif"].(string); ok {
			e.Motif = v
		}
		if v, ok := updates["visa_saf_user_id"].(string); ok {
			e.SAFUserID = v
		}
		if v, ok := updates["visa_saf_date"]; ok {
			e.SAFDate = applyTS(v)
		}
		if v, ok := updates["visa_cb_user_id"].(string); ok {
			e.CBUserID = v
		}
		if v, ok := updates["visa_cb_date"]; ok {
			e.CBDate = applyTS(v)
		}
		if v, ok := updates["visa_daaf_user_id"].(string); ok {
			e.DAAFUserID = v
		}
		if v, ok := updates["visa_daaf_date"]; ok {
			e.DAAFDate = applyTS(v)
		}
		return nil
	}
	return &domain.ErrNotFound{Resource: "engagement", ID: id}
}

func (m *memChainStore) CreateLiquidation(_ context.Context, l *domain.Liquidation) (*domain.Liquidation, error) {
	m.rows.liquidations = append(m.rows.liquidations, *l)
	out := *l
	return &out, nil
}

func (m *memChainStore) GetLiquidation(_ context.Context, id string) (*domain.Liquidation, error) {
	for i := range m.rows.liquidations {
		if m.rows.liquidations[i].ID == id {
			out := m.rows.liquidations[i]
			return &out, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "liquidation", ID: id}
}

func (m *memChainStore) ListLiquidations(_ context.Context, exercice, _, _ int) ([]domain.Liquidation, error) {
	return m.rows.ListLiquidationRows(context.Background(), exercice)
}

func (m *memChainStore) UpdateLiquidation(_ context.Context, id string, updates map[string]any) error {
	for i := range m.rows.liquidations {
		if m.rows.liquidations[i].ID != id {
			continue
		}
		l := &m.rows.liquidations[i]
		if v, ok := updates["statut"].(string); ok {
			l.Statut = domain.Statut(v)
		}
		if v, ok := updates["motif"].(string); ok {
			l.Motif = v
		}
		return nil
	}
	return &domain.ErrNotFound{Resource: "liquidation", ID: id}
}

func (m *memChainStore) CreateOrdonnancement(_ context.Context, o *domain.Ordonnancement) (*domain.Ordonnancement, error) {
	m.rows.ordonnancements = append(m.rows.ordonnancements, *o)
	out := *o
	return &out, nil
}

func (m *memChainStore) GetOrdonnancement(_ context.Context, id string) (*domain.Ordonnancement, error) {
	for i := range m.rows.ordonnancements {
		if m.rows.ordonnancements[i].ID == id {
			out := m.rows.ordonnancements[i]
			return &out, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "ordonnancement", ID: id}
}

func (m *memChainStore) ListOrdonnancements(_ context.Context, exercice, _, _ int) ([]domain.Ordonnancement, error) {
	return m.rows.ListOrdonnancementRows(context.Background(), exercice)
}

func (m *memChainStore) UpdateOrdonnancement(_ context.Context, id string, updates map[string]any) error {
	for i := range m.rows.ordonnancements {
		if m.rows.ordonnancements[i].ID != id {
			continue
		}
		o := &m.rows.ordonnancements[i]
		if v, ok := updates["statut"].(string); ok {
			o.Statut = domain.Statut(v)
		}
		if v, ok := updates["motif"].(string); ok {
			o.Motif = v
		}
		if v, ok := updates["signataire_id"].(string); ok {
			o.SignedBy = v
		}
		if v, ok := updates["date_signature"]; ok {
			o.SignedAt = applyTS(v)
		}
		return nil
	}
	return &domain.ErrNotFound{Resource: "ordonnancement", ID: id}
}

func (m *memChainStore) CreateReglement(_ context.Context, r *domain.Reglement) (*domain.Reglement, error) {
	m.rows.reglements = append(m.rows.reglements, *r)
	out := *r
	return &out, nil
}

func (m *memChainStore) GetReglement(_ context.Context, id string) (*domain.Reglement, error) {
	for i := range m.rows.reglements {
		if m.rows.reglements[i].ID == id {
			out := m.rows.reglements[i]
			return &out, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "reglement", ID: id}
}

func (m *memChainStore) ListReglements(_ context.Context, exercice, _, _ int) ([]domain.Reglement, error) {
	return m.rows.ListReglementRows(context.Background(), exercice)
}

func (m *memChainStore) UpdateReglement(_ context.Context, id string, updates map[string]any) error {
	for i := range m.rows.reglements {
		if m.rows.reglements[i].ID != id {
			continue
		}
		r := &m.rows.reglements[i]
		if v, ok := updates["statut"].(string); ok {
			r.Statut = domain.Statut(v)
		}
		if v, ok := updates["motif"].(string); ok {
			r.Motif = v
		}
		if v, ok := updates["date_paiement"]; ok {
			r.PaidAt = applyTS(v)
		}
		return nil
	}
	return &domain.ErrNotFound{Resource: "reglement", ID: id}
}

type mockSequencer struct {
	n int
}

func (m *mockSequencer) NextNumber(_ context.Context, docType string, exercice int, directionCode string) (string, error) {
	if directionCode == "" {
		directionCode = "GEN"
	}
	m.n++
	return fmt.Sprintf("ARTI/%d/%s/%04d", exercice, directionCode, m.n), nil
}

type mockAudit struct {
	entries []domain.AuditEntry
}

func (m *mockAudit) Record(_ context.Context, entry *domain.AuditEntry) {
	m.entries = append(m.entries, *entry)
}

func (m *mockAudit) last() *domain.AuditEntry {
	if len(m.entries) == 0 {
		return nil
	}
	return &m.entries[len(m.entries)-1]
}
