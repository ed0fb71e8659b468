// Package workflow implements the expenditure-chain state machine: the
// 9-stage dossier progression and the per-entity status transitions.
// Everything in this package is pure; persistence lives in the stores.
package workflow

import (
	"github.com/naywayne90/sygfp-go/internal/domain"
)

// Montant thresholds (FCFA).
const (
	// SeuilMarche is the amount above which a procurement procedure
	// (passation de marché) is mandatory. Below it a dossier may skip
	// directly from imputation to engagement.
	SeuilMarche = 5_000_000

	// SeuilValidationDG is the amount at or above which liquidations,
	// ordonnancements and engagements require DG validation.
	SeuilValidationDG = 50_000_000
)

// StageConfig describes one stage of the chain: who may create records
// at that stage, who may validate them, and which stages must be
// validated first.
type StageConfig struct {
	Stage          domain.Stage
	Label          string
	Table          string
	Owners         []domain.Role
	Validators     []domain.Role
	Prereqs        []domain.Stage
	PrereqOptional bool
	SeuilDG        float64
}

// stageOrder is the canonical forward order of the chain.
var stageOrder = []domain.Stage{
	domain.StageNoteSEF,
	domain.StageNoteAEF,
	domain.StageImputation,
	domain.StageExpressionBesoin,
	domain.StagePassationMarche,
	domain.StageEngagement,
	domain.StageLiquidation,
	domain.StageOrdonnancement,
	domain.StageReglement,
}

// stageConfigs is the single policy table consulted for every role and
// prerequisite check.
var stageConfigs = map[domain.Stage]StageConfig{
	domain.StageNoteSEF: {
		Stage:      domain.StageNoteSEF,
		Label:      "Note Sans Engagement Financier",
		Table:      "notes_sef",
		Owners:     []domain.Role{domain.RoleAgent, domain.RoleOperateur, domain.RoleChefService, domain.RoleDirecteur},
		Validators: []domain.Role{domain.RoleDG},
	},
	domain.StageNoteAEF: {
		Stage:          domain.StageNoteAEF,
		Label:          "Note Avec Engagement Financier",
		Table:          "notes_dg",
		Owners:         []domain.Role{domain.RoleAgent, domain.RoleOperateur, domain.RoleChefService, domain.RoleDirecteur},
		Validators:     []domain.Role{domain.RoleDirecteur, domain.RoleDG},
		Prereqs:        []domain.Stage{domain.StageNoteSEF},
		PrereqOptional: true, // a note AEF may exist without a validated SEF
	},
	domain.StageImputation: {
		Stage:      domain.StageImputation,
		Label:      "Imputation Budgétaire",
		Table:      "imputations",
		Owners:     []domain.Role{domain.RoleCB},
		Validators: []domain.Role{domain.RoleCB},
		Prereqs:    []domain.Stage{domain.StageNoteAEF},
	},
	domain.StageExpressionBesoin: {
		Stage:      domain.StageExpressionBesoin,
		Label:      "Expression de Besoin",
		Table:      "expressions_besoin",
		Owners:     []domain.Role{domain.RoleAgent, domain.RoleChefService, domain.RoleDAAF},
		Validators: []domain.Role{domain.RoleChefService, domain.RoleDirecteur},
		Prereqs:    []domain.Stage{domain.StageImputation},
	},
	domain.StagePassationMarche: {
		Stage:          domain.StagePassationMarche,
		Label:          "Passation de Marché",
		Table:          "marches",
		Owners:         []domain.Role{domain.RoleDAAF, domain.RoleCommissionMarche},
		Validators:     []domain.Role{domain.RoleDG, domain.RoleCommissionMarche},
		Prereqs:        []domain.Stage{domain.StageExpressionBesoin},
		PrereqOptional: true, // marché only required above SeuilMarche
		SeuilDG:        SeuilMarche,
	},
	domain.StageEngagement: {
		Stage:      domain.StageEngagement,
		Label:      "Engagement Budgétaire",
		Table:      "budget_engagements",
		Owners:     []domain.Role{domain.RoleDAAF, domain.RoleCB},
		Validators: []domain.Role{domain.RoleCB},
		Prereqs:    []domain.Stage{domain.StageExpressionBesoin},
		SeuilDG:    SeuilValidationDG,
	},
	domain.StageLiquidation: {
		Stage:      domain.StageLiquidation,
		Label:      "Liquidation",
		Table:      "budget_liquidations",
		Owners:     []domain.Role{domain.RoleDAAF, domain.RoleSDCT},
		Validators: []domain.Role{domain.RoleSDCT, domain.RoleDAAF, domain.RoleDG},
		Prereqs:    []domain.Stage{domain.StageEngagement},
		SeuilDG:    SeuilValidationDG,
	},
	domain.StageOrdonnancement: {
		Stage:      domain.StageOrdonnancement,
		Label:      "Ordonnancement",
		Table:      "ordonnancements",
		Owners:     []domain.Role{domain.RoleDAAF},
		Validators: []domain.Role{domain.RoleDG},
		Prereqs:    []domain.Stage{domain.StageLiquidation},
		SeuilDG:    SeuilValidationDG,
	},
	domain.StageReglement: {
		Stage:      domain.StageReglement,
		Label:      "Règlement",
		Table:      "reglements",
		Owners:     []domain.Role{domain.RoleTresorerie, domain.RoleAgentComptable},
		Validators: []domain.Role{domain.RoleTresorerie, domain.RoleAgentComptable},
		Prereqs:    []domain.Stage{domain.StageOrdonnancement},
	},
}

// Stages returns the canonical stage order.
func Stages() []domain.Stage {
	out := make([]domain.Stage, len(stageOrder))
	copy(out, stageOrder)
	return out
}

// Config returns the policy entry for a stage.
func Config(stage domain.Stage) (StageConfig, bool) {
	cfg, ok := stageConfigs[stage]
	return cfg, ok
}

// StageIndex returns the position of a stage in the chain, or -1 if the
// stage is unknown.
func StageIndex(stage domain.Stage) int {
	for i, s := range stageOrder {
		if s == stage {
			return i
		}
	}
	return -1
}

// IsValidStage reports whether stage is one of the 9 canonical stages.
func IsValidStage(stage domain.Stage) bool {
	return StageIndex(stage) >= 0
}

// NextStage returns the immediate successor of a stage. The second
// return is false at the terminal stage (règlement).
func NextStage(stage domain.Stage) (domain.Stage, bool) {
	i := StageIndex(stage)
	if i < 0 || i == len(stageOrder)-1 {
		return "", false
	}
	return stageOrder[i+1], true
}

// StageLabel returns the display label for a stage, falling back to the
// raw identifier for unknown stages.
func StageLabel(stage domain.Stage) string {
	if cfg, ok := stageConfigs[stage]; ok {
		return cfg.Label
	}
	return string(stage)
}

// CanOwn reports whether the actor may create or modify records at the
// given stage. ADMIN always may.
func CanOwn(stage domain.Stage, actor domain.Actor) bool {
	if actor.IsAdmin() {
		return true
	}
	cfg, ok := stageConfigs[stage]
	if !ok {
		return false
	}
	return actor.HasAnyRole(cfg.Owners...)
}

// CanValidate reports whether the actor may validate records at the
// given stage. ADMIN always may.
func CanValidate(stage domain.Stage, actor domain.Actor) bool {
	if actor.IsAdmin() {
		return true
	}
	cfg, ok := stageConfigs[stage]
	if !ok {
		return false
	}
	return actor.HasAnyRole(cfg.Validators...)
}
