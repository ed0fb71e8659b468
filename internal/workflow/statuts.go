package workflow

import (
	"fmt"

	"github.com/naywayne90/sygfp-go/internal/domain"
)

// ============================================================
// Entity status machine: the statut lifecycle of the records
// behind each stage (notes, imputations, engagements, ...).
// ============================================================

// TransitionRule is one edge of the status machine for a module table.
type TransitionRule struct {
	From          []domain.Statut
	To            domain.Statut
	Action        domain.Action
	Label         string
	RequiredRoles []domain.Role
	RequiresMotif bool
	// MinMontant gates the edge on the entity amount (0 = no gate).
	MinMontant float64
}

// commonTransitions apply to every module table. VALIDATE role checks
// fall back to the stage's validator list when RequiredRoles is empty.
var commonTransitions = []TransitionRule{
	{From: []domain.Statut{domain.StatutBrouillon}, To: domain.StatutSoumis, Action: domain.ActionSubmit, Label: "Soumettre"},
	{From: []domain.Statut{domain.StatutSoumis}, To: domain.StatutValide, Action: domain.ActionValidate, Label: "Valider"},
	{From: []domain.Statut{domain.StatutSoumis, domain.StatutAValider}, To: domain.StatutRejete, Action: domain.ActionReject, Label: "Rejeter", RequiresMotif: true},
	{From: []domain.Statut{domain.StatutSoumis, domain.StatutAValider}, To: domain.StatutDiffere, Action: domain.ActionDefer, Label: "Différer", RequiresMotif: true},
	{From: []domain.Statut{domain.StatutDiffere}, To: domain.StatutSoumis, Action: domain.ActionResubmit, Label: "Resoumettre"},
	{From: []domain.Statut{domain.StatutRejete}, To: domain.StatutBrouillon, Action: domain.ActionRevise, Label: "Corriger"},
}

// moduleTransitions are the extra edges each module adds, keyed by the
// stage the module backs.
var moduleTransitions = map[domain.Stage][]TransitionRule{
	domain.StageNoteAEF: {
		{From: []domain.Statut{domain.StatutSoumis}, To: domain.StatutAValider, Action: "FORWARD_DIR", Label: "Transmettre au Directeur",
			RequiredRoles: []domain.Role{domain.RoleChefService}},
		{From: []domain.Statut{domain.StatutAValider}, To: domain.StatutValide, Action: domain.ActionValidate, Label: "Valider",
			RequiredRoles: []domain.Role{domain.RoleDirecteur, domain.RoleDG}},
	},
	domain.StageImputation: {
		{From: []domain.Statut{domain.StatutBrouillon}, To: domain.StatutImpute, Action: domain.ActionImpute, Label: "Imputer",
			RequiredRoles: []domain.Role{domain.RoleCB}},
	},
	domain.StageEngagement: {
		{From: []domain.Statut{domain.StatutSoumis}, To: domain.StatutVisaSAF, Action: domain.ActionVisa, Label: "Visa SAF",
			RequiredRoles: []domain.Role{domain.RoleSAF}},
		{From: []domain.Statut{domain.StatutVisaSAF}, To: domain.StatutVisaCB, Action: domain.ActionVisa, Label: "Visa CB",
			RequiredRoles: []domain.Role{domain.RoleCB}},
		{From: []domain.Statut{domain.StatutVisaCB}, To: domain.StatutVisaDAAF, Action: domain.ActionVisa, Label: "Visa DAAF",
			RequiredRoles: []domain.Role{domain.RoleDAAF}},
		{From: []domain.Statut{domain.StatutVisaDAAF}, To: domain.StatutValide, Action: domain.ActionValidate, Label: "Valider",
			RequiredRoles: []domain.Role{domain.RoleCB}},
		{From: []domain.Statut{domain.StatutVisaSAF, domain.StatutVisaCB, domain.StatutVisaDAAF}, To: domain.StatutRejete, Action: domain.ActionReject, Label: "Rejeter", RequiresMotif: true},
	},
	domain.StageLiquidation: {
		{From: []domain.Statut{domain.StatutSoumis}, To: domain.StatutEnValidationDG, Action: domain.ActionForwardDG, Label: "Transmettre au DG",
			RequiredRoles: []domain.Role{domain.RoleSDCT, domain.RoleDAAF}, MinMontant: SeuilValidationDG},
		{From: []domain.Statut{domain.StatutEnValidationDG}, To: domain.StatutValide, Action: domain.ActionValidate, Label: "Valider (DG)",
			RequiredRoles: []domain.Role{domain.RoleDG}},
		{From: []domain.Statut{domain.StatutEnValidationDG}, To: domain.StatutRejete, Action: domain.ActionReject, Label: "Rejeter", RequiresMotif: true,
			RequiredRoles: []domain.Role{domain.RoleDG}},
	},
	domain.StageOrdonnancement: {
		{From: []domain.Statut{domain.StatutSoumis}, To: domain.StatutEnSignature, Action: domain.ActionPrepareSign, Label: "Préparer signature",
			RequiredRoles: []domain.Role{domain.RoleDAAF}},
		{From: []domain.Statut{domain.StatutEnSignature}, To: domain.StatutSigne, Action: domain.ActionSign, Label: "Signer",
			RequiredRoles: []domain.Role{domain.RoleDG}},
	},
	domain.StageReglement: {
		{From: []domain.Statut{domain.StatutSoumis}, To: domain.StatutPaye, Action: domain.ActionPay, Label: "Confirmer paiement",
			RequiredRoles: []domain.Role{domain.RoleTresorerie, domain.RoleAgentComptable}},
		{From: []domain.Statut{domain.StatutPaye}, To: domain.StatutCloture, Action: domain.ActionClose, Label: "Clôturer",
			RequiredRoles: []domain.Role{domain.RoleTresorerie}},
	},
}

// IsValidatedStatus reports whether a statut counts as validated for
// prerequisite checks and budget aggregation.
func IsValidatedStatus(s domain.Statut) bool {
	switch s {
	case domain.StatutValide, domain.StatutImpute, domain.StatutSigne, domain.StatutPaye, domain.StatutCloture:
		return true
	}
	return false
}

// IsTerminalStatus reports whether no further transition exists.
func IsTerminalStatus(s domain.Statut) bool {
	return s == domain.StatutCloture || s == domain.StatutAnnule
}

// ReservedStatus reports whether a non-validated engagement statut still
// reserves credit (pending validation, not dead).
func ReservedStatus(s domain.Statut) bool {
	switch s {
	case domain.StatutSoumis, domain.StatutAValider, domain.StatutEnValidationDG,
		domain.StatutVisaSAF, domain.StatutVisaCB, domain.StatutVisaDAAF:
		return true
	}
	return false
}

func contains(statuts []domain.Statut, s domain.Statut) bool {
	for _, x := range statuts {
		if x == s {
			return true
		}
	}
	return false
}

// AvailableActions lists the edges the actor may take from the current
// statut of an entity at the given stage.
func AvailableActions(stage domain.Stage, from domain.Statut, actor domain.Actor, montant float64) []TransitionRule {
	all := append(append([]TransitionRule{}, commonTransitions...), moduleTransitions[stage]...)
	out := make([]TransitionRule, 0, len(all))
	for _, rule := range all {
		if !contains(rule.From, from) {
			continue
		}
		if rule.MinMontant > 0 && montant < rule.MinMontant {
			continue
		}
		roles := rule.RequiredRoles
		if rule.Action == domain.ActionValidate && len(roles) == 0 {
			if cfg, ok := Config(stage); ok {
				roles = cfg.Validators
			}
		}
		if len(roles) > 0 && !actor.IsAdmin() && !actor.HasAnyRole(roles...) {
			continue
		}
		out = append(out, rule)
	}
	return out
}

// ApplyAction resolves one workflow action against the status machine
// and returns the resulting statut. Motif is mandatory on edges that
// require one (rejections, deferrals).
func ApplyAction(stage domain.Stage, from domain.Statut, action domain.Action, actor domain.Actor, montant float64, motif string) (domain.Statut, error) {
	if IsTerminalStatus(from) {
		return "", &domain.ErrInvalidTransition{
			Entity: string(stage), From: string(from), Action: string(action),
			Reason: "statut terminal",
		}
	}
	for _, rule := range AvailableActions(stage, from, actor, montant) {
		if rule.Action != action {
			continue
		}
		if rule.RequiresMotif && motif == "" {
			return "", &domain.ErrMotifRequired{Action: string(action)}
		}
		return rule.To, nil
	}
	return "", &domain.ErrInvalidTransition{
		Entity: string(stage), From: string(from), Action: string(action),
		Reason: fmt.Sprintf("action non autorisée pour les rôles %v", actor.Roles),
	}
}

// CheckPrerequisites verifies that every prerequisite stage of the given
// stage holds a validated statut, honouring the documented optional
// cases: a marché is not required below SeuilMarche and a note AEF may
// exist without a validated SEF.
func CheckPrerequisites(stage domain.Stage, stageStatuts map[domain.Stage]domain.Statut, montant float64) error {
	cfg, ok := stageConfigs[stage]
	if !ok {
		return &domain.ErrValidation{Field: "etape", Message: fmt.Sprintf("étape inconnue: %s", stage)}
	}
	if len(cfg.Prereqs) == 0 {
		return nil
	}
	if cfg.PrereqOptional {
		if stage == domain.StagePassationMarche && montant > 0 && montant < cfg.SeuilDG {
			return nil
		}
		if stage == domain.StageNoteAEF {
			return nil
		}
	}
	for _, prereq := range cfg.Prereqs {
		s, ok := stageStatuts[prereq]
		if !ok || !IsValidatedStatus(s) {
			return &domain.ErrInvalidTransition{
				Entity: string(stage), From: string(s), Action: "CREATE",
				Reason: fmt.Sprintf("l'étape %s doit être validée d'abord", StageLabel(prereq)),
			}
		}
	}
	return nil
}
