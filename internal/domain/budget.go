package domain

import "time"

// ============================================================
// Budget lines, credit transfers, availability
// ============================================================

// BudgetLine is one line of the budget nomenclature. Lines form a tree
// (chapitre > article > paragraphe > ligne) through ParentID.
type BudgetLine struct {
	ID               string    `json:"id"`
	Code             string    `json:"code"`
	Libelle          string    `json:"libelle"`
	Exercice         int       `json:"exercice"`
	DirectionID      string    `json:"direction_id,omitempty"`
	ParentID         string    `json:"parent_id,omitempty"`
	Niveau           string    `json:"niveau,omitempty"` // chapitre, article, paragraphe, ligne
	DotationInitiale float64   `json:"dotation_initiale"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TransferStatus is the lifecycle status of a credit transfer.
type TransferStatus string

const (
	TransferPending  TransferStatus = "en_attente"
	TransferApproved TransferStatus = "approuve"
	TransferExecuted TransferStatus = "execute"
	TransferRejected TransferStatus = "rejete"
)

// CreditTransfer moves allocation between two budget lines. Only
// executed transfers count toward dotation_actuelle.
type CreditTransfer struct {
	ID            string         `json:"id"`
	Exercice      int            `json:"exercice"`
	SourceLigneID string         `json:"ligne_source_id"`
	DestLigneID   string         `json:"ligne_destination_id"`
	Montant       float64        `json:"montant"`
	Motif         string         `json:"motif,omitempty"`
	Status        TransferStatus `json:"statut"`
	RequestedBy   string         `json:"demandeur_id,omitempty"`
	DecidedBy     string         `json:"decideur_id,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// BudgetAvailability is the computed consumption state of one line for
// one exercice.
type BudgetAvailability struct {
	LigneID          string  `json:"ligne_id"`
	Code             string  `json:"code"`
	Libelle          string  `json:"libelle"`
	Exercice         int     `json:"exercice"`
	DotationInitiale float64 `json:"dotation_initiale"`
	VirementsRecus   float64 `json:"virements_recus"`
	VirementsEmis    float64 `json:"virements_emis"`
	DotationActuelle float64 `json:"dotation_actuelle"`
	Engage           float64 `json:"engage"`
	Reserve          float64 `json:"reserve"`
	Liquide          float64 `json:"liquide"`
	Ordonnance       float64 `json:"ordonnance"`
	Paye             float64 `json:"paye"`
	Disponible       float64 `json:"disponible"`
	TauxEngagement   float64 `json:"taux_engagement"`
	Depassement      bool    `json:"depassement"`
}

// BudgetSummary aggregates every line of an exercice.
type BudgetSummary struct {
	Exercice         int                  `json:"exercice"`
	DotationInitiale float64              `json:"dotation_initiale"`
	DotationActuelle float64              `json:"dotation_actuelle"`
	Engage           float64              `json:"engage"`
	Liquide          float64              `json:"liquide"`
	Ordonnance       float64              `json:"ordonnance"`
	Paye             float64              `json:"paye"`
	Disponible       float64              `json:"disponible"`
	Lignes           []BudgetAvailability `json:"lignes"`
}

// BudgetTreeNode is one node of the hierarchical budget view. Non-leaf
// amounts are recursive sums over leaf descendants.
type BudgetTreeNode struct {
	Ligne            BudgetLine       `json:"ligne"`
	DotationInitiale float64          `json:"dotation_initiale"`
	DotationActuelle float64          `json:"dotation_actuelle"`
	Engage           float64          `json:"engage"`
	Disponible       float64          `json:"disponible"`
	Children         []BudgetTreeNode `json:"children,omitempty"`
}

// AvailabilityCheck is the answer to an engagement/virement guard.
type AvailabilityCheck struct {
	Possible   bool    `json:"possible"`
	Disponible float64 `json:"disponible"`
	Ecart      float64 `json:"ecart"`
	Message    string  `json:"message,omitempty"`
}

// ============================================================
// API requests
// ============================================================

// CreateBudgetLineRequest is the payload for POST /v1/budget/lines.
type CreateBudgetLineRequest struct {
	Code             string  `json:"code"`
	Libelle          string  `json:"libelle"`
	Exercice         int     `json:"exercice"`
	DirectionID      string  `json:"direction_id,omitempty"`
	ParentID         string  `json:"parent_id,omitempty"`
	Niveau           string  `json:"niveau,omitempty"`
	DotationInitiale float64 `json:"dotation_initiale"`
}

// CreateTransferRequest is the payload for POST /v1/budget/transfers.
type CreateTransferRequest struct {
	Exercice      int     `json:"exercice"`
	SourceLigneID string  `json:"ligne_source_id"`
	DestLigneID   string  `json:"ligne_destination_id"`
	Montant       float64 `json:"montant"`
	Motif         string  `json:"motif,omitempty"`
}

// TransferDecisionRequest carries the motif for reject decisions.
type TransferDecisionRequest struct {
	Motif string `json:"motif,omitempty"`
}
