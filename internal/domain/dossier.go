package domain

import "time"

// ============================================================
// Spending case (dossier) — the aggregate root of the chain
// ============================================================

// Stage identifies one step of the expenditure chain.
type Stage string

const (
	StageNoteSEF          Stage = "note_sef"
	StageNoteAEF          Stage = "note_aef"
	StageImputation       Stage = "imputation"
	StageExpressionBesoin Stage = "expression_besoin"
	StagePassationMarche  Stage = "passation_marche"
	StageEngagement       Stage = "engagement"
	StageLiquidation      Stage = "liquidation"
	StageOrdonnancement   Stage = "ordonnancement"
	StageReglement        Stage = "reglement"
)

// StepStatus is the status of one stage record of a dossier.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepRejected   StepStatus = "rejected"
	StepDeferred   StepStatus = "deferred"
	StepSkipped    StepStatus = "skipped"
)

// CaseStatus is the overall status of a dossier.
type CaseStatus string

const (
	CaseInProgress CaseStatus = "in_progress"
	CaseCompleted  CaseStatus = "completed"
	CaseCancelled  CaseStatus = "cancelled"
	CaseBlocked    CaseStatus = "blocked"
)

// Dossier is one spending case moving through the 9-stage chain.
type Dossier struct {
	ID           string     `json:"id"`
	Numero       string     `json:"numero"`
	Exercice     int        `json:"exercice"`
	DirectionID  string     `json:"direction_id"`
	Objet        string     `json:"objet"`
	Montant      float64    `json:"montant_estime"`
	Engage       float64    `json:"montant_engage"`
	Liquide      float64    `json:"montant_liquide"`
	Ordonnance   float64    `json:"montant_ordonnance"`
	Paye         float64    `json:"montant_paye"`
	CurrentStage Stage      `json:"etape_courante"`
	Status       CaseStatus `json:"statut"`
	CreatedBy    string     `json:"created_by"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Etape is the persisted record of one stage of a dossier.
// At most one record exists per (dossier, stage).
type Etape struct {
	ID          string     `json:"id"`
	DossierID   string     `json:"dossier_id"`
	Stage       Stage      `json:"etape"`
	Status      StepStatus `json:"statut"`
	EntityID    string     `json:"entity_id,omitempty"`
	Reference   string     `json:"reference,omitempty"`
	Montant     float64    `json:"montant,omitempty"`
	Validateur  string     `json:"validateur,omitempty"`
	Motif       string     `json:"motif,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Step is one derived entry of a dossier's timeline: the stage record
// merged with positional information relative to the case pointer.
type Step struct {
	Stage     Stage      `json:"etape"`
	Label     string     `json:"label"`
	Status    StepStatus `json:"statut"`
	EntityID  string     `json:"entity_id,omitempty"`
	Reference string     `json:"reference,omitempty"`
	Montant   float64    `json:"montant,omitempty"`
	Motif     string     `json:"motif,omitempty"`
	Implicit  bool       `json:"implicit,omitempty"`
}

// DossierDetail is returned by GET /v1/dossiers/{id}: the case plus its
// derived timeline.
type DossierDetail struct {
	Dossier Dossier `json:"dossier"`
	Steps   []Step  `json:"etapes"`
}

// TransitionCheck is the answer to "can this caller move this dossier to
// that stage".
type TransitionCheck struct {
	Target  Stage  `json:"etape"`
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// ============================================================
// API requests
// ============================================================

// CreateDossierRequest is the payload for POST /v1/dossiers.
type CreateDossierRequest struct {
	Exercice    int     `json:"exercice"`
	DirectionID string  `json:"direction_id"`
	Objet       string  `json:"objet"`
	Montant     float64 `json:"montant_estime"`
}

// TransitionRequest is the payload for POST /v1/dossiers/{id}/transition.
type TransitionRequest struct {
	Target    Stage   `json:"etape"`
	EntityID  string  `json:"entity_id,omitempty"`
	Reference string  `json:"reference,omitempty"`
	Montant   float64 `json:"montant,omitempty"`
}

// StepStatusRequest is the payload for
// POST /v1/dossiers/{id}/steps/{stage}/status.
type StepStatusRequest struct {
	Status    StepStatus `json:"statut"`
	Motif     string     `json:"motif,omitempty"`
	EntityID  string     `json:"entity_id,omitempty"`
	Reference string     `json:"reference,omitempty"`
	Montant   float64    `json:"montant,omitempty"`
}
