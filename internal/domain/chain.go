package domain

import "time"

// ============================================================
// Chain entities: engagement → liquidation → ordonnancement →
// règlement. Each references the previous step by foreign key.
// ============================================================

// Statut is the validation status shared by all chain entities.
type Statut string

const (
	StatutBrouillon      Statut = "brouillon"
	StatutSoumis         Statut = "soumis"
	StatutAValider       Statut = "a_valider"
	StatutEnValidationDG Statut = "en_validation_dg"
	StatutValide         Statut = "valide"
	StatutRejete         Statut = "rejete"
	StatutDiffere        Statut = "differe"
	StatutImpute         Statut = "impute"
	StatutEnSignature    Statut = "en_signature"
	StatutSigne          Statut = "signe"
	StatutPaye           Statut = "paye"
	StatutCloture        Statut = "cloture"
	StatutAnnule         Statut = "annule"

	// Engagement visa chain sub-states.
	StatutVisaSAF  Statut = "visa_saf"
	StatutVisaCB   Statut = "visa_cb"
	StatutVisaDAAF Statut = "visa_daaf"
)

// Action is a workflow transition verb applied to a chain entity.
type Action string

const (
	ActionSubmit      Action = "SUBMIT"
	ActionValidate    Action = "VALIDATE"
	ActionReject      Action = "REJECT"
	ActionDefer       Action = "DEFER"
	ActionResubmit    Action = "RESUBMIT"
	ActionRevise      Action = "REVISE"
	ActionImpute      Action = "IMPUTE"
	ActionForwardDG   Action = "FORWARD_DG"
	ActionPrepareSign Action = "PREPARE_SIGN"
	ActionSign        Action = "SIGN"
	ActionPay         Action = "PAY"
	ActionClose       Action = "CLOSE"
	ActionVisa        Action = "VISA"
)

// Engagement is a budgetary commitment against a line.
type Engagement struct {
	ID          string     `json:"id"`
	Numero      string     `json:"numero"`
	Exercice    int        `json:"exercice"`
	DossierID   string     `json:"dossier_id,omitempty"`
	LigneID     string     `json:"ligne_id"`
	DirectionID string     `json:"direction_id,omitempty"`
	Objet       string     `json:"objet"`
	Montant     float64    `json:"montant"`
	Statut      Statut     `json:"statut"`
	Motif       string     `json:"motif,omitempty"`
	SAFUserID   string     `json:"visa_saf_user_id,omitempty"`
	SAFDate     *time.Time `json:"visa_saf_date,omitempty"`
	CBUserID    string     `json:"visa_cb_user_id,omitempty"`
	CBDate      *time.Time `json:"visa_cb_date,omitempty"`
	DAAFUserID  string     `json:"visa_daaf_user_id,omitempty"`
	DAAFDate    *time.Time `json:"visa_daaf_date,omitempty"`
	CreatedBy   string     `json:"created_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Liquidation certifies service rendered against an engagement.
type Liquidation struct {
	ID           string    `json:"id"`
	Numero       string    `json:"numero"`
	Exercice     int       `json:"exercice"`
	EngagementID string    `json:"engagement_id"`
	DossierID    string    `json:"dossier_id,omitempty"`
	Objet        string    `json:"objet,omitempty"`
	Montant      float64   `json:"montant"`
	Statut       Statut    `json:"statut"`
	Motif        string    `json:"motif,omitempty"`
	CreatedBy    string    `json:"created_by,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Ordonnancement is the payment order issued after liquidation.
type Ordonnancement struct {
	ID            string     `json:"id"`
	Numero        string     `json:"numero"`
	Exercice      int        `json:"exercice"`
	LiquidationID string     `json:"liquidation_id"`
	DossierID     string     `json:"dossier_id,omitempty"`
	Montant       float64    `json:"montant"`
	Statut        Statut     `json:"statut"`
	Motif         string     `json:"motif,omitempty"`
	SignedBy      string     `json:"signataire_id,omitempty"`
	SignedAt      *time.Time `json:"date_signature,omitempty"`
	CreatedBy     string     `json:"created_by,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Reglement is the actual settlement of a payment order.
type Reglement struct {
	ID               string     `json:"id"`
	Numero           string     `json:"numero"`
	Exercice         int        `json:"exercice"`
	OrdonnancementID string     `json:"ordonnancement_id"`
	DossierID        string     `json:"dossier_id,omitempty"`
	Montant          float64    `json:"montant"`
	ModePaiement     string     `json:"mode_paiement,omitempty"`
	Statut           Statut     `json:"statut"`
	Motif            string     `json:"motif,omitempty"`
	PaidAt           *time.Time `json:"date_paiement,omitempty"`
	CreatedBy        string     `json:"created_by,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// ============================================================
// API requests
// ============================================================

// CreateEngagementRequest is the payload for POST /v1/engagements.
type CreateEngagementRequest struct {
	Exercice    int     `json:"exercice"`
	DossierID   string  `json:"dossier_id,omitempty"`
	LigneID     string  `json:"ligne_id"`
	DirectionID string  `json:"direction_id,omitempty"`
	Objet       string  `json:"objet"`
	Montant     float64 `json:"montant"`
}

// CreateLiquidationRequest is the payload for POST /v1/liquidations.
type CreateLiquidationRequest struct {
	Exercice     int     `json:"exercice"`
	EngagementID string  `json:"engagement_id"`
	Objet        string  `json:"objet,omitempty"`
	Montant      float64 `json:"montant"`
}

// CreateOrdonnancementRequest is the payload for POST /v1/ordonnancements.
type CreateOrdonnancementRequest struct {
	Exercice      int     `json:"exercice"`
	LiquidationID string  `json:"liquidation_id"`
	Montant       float64 `json:"montant"`
}

// CreateReglementRequest is the payload for POST /v1/reglements.
type CreateReglementRequest struct {
	Exercice         int     `json:"exercice"`
	OrdonnancementID string  `json:"ordonnancement_id"`
	Montant          float64 `json:"montant"`
	ModePaiement     string  `json:"mode_paiement,omitempty"`
}

// TransitionActionRequest applies a workflow action to a chain entity.
type TransitionActionRequest struct {
	Action Action `json:"action"`
	Motif  string `json:"motif,omitempty"`
}
