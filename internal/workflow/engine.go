package workflow

import (
	"fmt"

	"github.com/naywayne90/sygfp-go/internal/domain"
)

// ============================================================
// Dossier engine: stage completion, transition checks, timeline
// derivation. Pure functions over a dossier and its etape records.
// ============================================================

// etapeFor returns the explicit record for a stage, if any. At most one
// record exists per (dossier, stage).
func etapeFor(etapes []domain.Etape, stage domain.Stage) *domain.Etape {
	for i := range etapes {
		if etapes[i].Stage == stage {
			return &etapes[i]
		}
	}
	return nil
}

// isBlocking reports whether a step status blocks the chain.
func isBlocking(status domain.StepStatus) bool {
	return status == domain.StepRejected || status == domain.StepDeferred
}

// IsStageComplete reports whether a stage of the dossier is complete:
// either its explicit record has status completed (or skipped), or the
// stage strictly precedes the dossier's current stage with no blocking
// record. The latter is the implicit-completion rule for dossiers whose
// earlier stages were advanced without an explicit record.
func IsStageComplete(d *domain.Dossier, etapes []domain.Etape, stage domain.Stage) bool {
	if e := etapeFor(etapes, stage); e != nil {
		return e.Status == domain.StepCompleted || e.Status == domain.StepSkipped
	}
	si, ci := StageIndex(stage), StageIndex(d.CurrentStage)
	if si < 0 || ci < 0 {
		return false
	}
	return si < ci
}

// CanTransitionTo decides whether the actor may move the dossier to the
// target stage. Allowed when the actor is ADMIN, or when all of:
//   - the current stage is complete,
//   - the actor can validate the current stage,
//   - the target is the immediate successor — or the documented
//     imputation→engagement shortcut for dossiers under SeuilMarche.
//
// Any other target is refused with a human-readable reason.
func CanTransitionTo(d *domain.Dossier, etapes []domain.Etape, target domain.Stage, actor domain.Actor) domain.TransitionCheck {
	if !IsValidStage(target) {
		return domain.TransitionCheck{
			Target: target,
			Reason: fmt.Sprintf("étape inconnue: %s", target),
		}
	}

	if d.Status != domain.CaseInProgress {
		return domain.TransitionCheck{
			Target: target,
			Reason: fmt.Sprintf("dossier %s: aucune transition possible", d.Status),
		}
	}

	if actor.IsAdmin() {
		return domain.TransitionCheck{Target: target, Allowed: true}
	}

	next, hasNext := NextStage(d.CurrentStage)
	isSuccessor := hasNext && target == next
	isShortcut := d.CurrentStage == domain.StageImputation &&
		target == domain.StageEngagement &&
		d.Montant < SeuilMarche

	if !isSuccessor && !isShortcut {
		if d.CurrentStage == domain.StageImputation && target == domain.StageEngagement {
			return domain.TransitionCheck{
				Target: target,
				Reason: fmt.Sprintf("passation de marché requise (montant ≥ %d FCFA)", SeuilMarche),
			}
		}
		return domain.TransitionCheck{
			Target: target,
			Reason: fmt.Sprintf("l'étape %s n'est pas accessible depuis %s", StageLabel(target), StageLabel(d.CurrentStage)),
		}
	}

	if !IsStageComplete(d, etapes, d.CurrentStage) {
		return domain.TransitionCheck{
			Target: target,
			Reason: fmt.Sprintf("l'étape %s doit être terminée avant de continuer", StageLabel(d.CurrentStage)),
		}
	}

	if !CanValidate(d.CurrentStage, actor) {
		cfg, _ := Config(d.CurrentStage)
		return domain.TransitionCheck{
			Target: target,
			Reason: fmt.Sprintf("rôle requis pour valider %s: %v", StageLabel(d.CurrentStage), cfg.Validators),
		}
	}

	return domain.TransitionCheck{Target: target, Allowed: true}
}

// AvailableTransitions lists every stage with the verdict for this
// actor, in chain order. Convenience for the transitions endpoint.
func AvailableTransitions(d *domain.Dossier, etapes []domain.Etape, actor domain.Actor) []domain.TransitionCheck {
	out := make([]domain.TransitionCheck, 0, len(stageOrder))
	for _, s := range stageOrder {
		out = append(out, CanTransitionTo(d, etapes, s, actor))
	}
	return out
}

// SkippedStages returns the stages jumped over when moving from the
// current stage to target via the shortcut edge (empty for the normal
// successor edge).
func SkippedStages(from, target domain.Stage) []domain.Stage {
	fi, ti := StageIndex(from), StageIndex(target)
	if fi < 0 || ti < 0 || ti-fi <= 1 {
		return nil
	}
	return stageOrder[fi+1 : ti]
}

// DeriveSteps computes the dossier's timeline: one entry per canonical
// stage, merging explicit records with positional derivation. Stages
// before the pointer with no record derive completed (implicit), the
// pointed stage derives in_progress, later stages derive pending.
func DeriveSteps(d *domain.Dossier, etapes []domain.Etape) []domain.Step {
	ci := StageIndex(d.CurrentStage)
	steps := make([]domain.Step, 0, len(stageOrder))
	for i, s := range stageOrder {
		step := domain.Step{Stage: s, Label: StageLabel(s)}
		if e := etapeFor(etapes, s); e != nil {
			step.Status = e.Status
			step.EntityID = e.EntityID
			step.Reference = e.Reference
			step.Montant = e.Montant
			step.Motif = e.Motif
		} else {
			switch {
			case i < ci:
				step.Status = domain.StepCompleted
				step.Implicit = true
			case i == ci && d.Status == domain.CaseInProgress:
				step.Status = domain.StepInProgress
			case i == ci && d.Status == domain.CaseCompleted:
				step.Status = domain.StepCompleted
				step.Implicit = true
			default:
				step.Status = domain.StepPending
			}
		}
		steps = append(steps, step)
	}
	return steps
}

// StepOutcome is the pure result of applying a step-status change: the
// new pointer and case status the dossier should take.
type StepOutcome struct {
	CurrentStage domain.Stage
	CaseStatus   domain.CaseStatus
	CaseDone     bool
}

// ApplyStepStatus validates a step-status change and computes its effect
// on the dossier. A completed step advances the pointer to the stage's
// successor, or completes the case at the terminal stage. A rejected or
// deferred step requires a motif and leaves the pointer in place: prior
// stage records are never rolled back.
func ApplyStepStatus(d *domain.Dossier, stage domain.Stage, status domain.StepStatus, motif string) (StepOutcome, error) {
	if !IsValidStage(stage) {
		return StepOutcome{}, &domain.ErrValidation{Field: "etape", Message: fmt.Sprintf("étape inconnue: %s", stage)}
	}
	switch status {
	case domain.StepPending, domain.StepInProgress, domain.StepCompleted,
		domain.StepRejected, domain.StepDeferred, domain.StepSkipped:
	default:
		return StepOutcome{}, &domain.ErrValidation{Field: "statut", Message: fmt.Sprintf("statut inconnu: %s", status)}
	}
	if isBlocking(status) && motif == "" {
		return StepOutcome{}, &domain.ErrMotifRequired{Action: string(status)}
	}

	out := StepOutcome{CurrentStage: d.CurrentStage, CaseStatus: d.Status}
	if status != domain.StepCompleted {
		return out, nil
	}

	if next, ok := NextStage(stage); ok {
		// Never move the pointer backwards when an earlier stage is
		// re-completed after the dossier has advanced past it.
		if StageIndex(next) > StageIndex(d.CurrentStage) {
			out.CurrentStage = next
		}
		return out, nil
	}

	// Terminal stage completed: the whole case is done.
	out.CaseStatus = domain.CaseCompleted
	out.CaseDone = true
	return out, nil
}
