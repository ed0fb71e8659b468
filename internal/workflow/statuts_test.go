package workflow

import (
	"errors"
	"testing"

	"github.com/naywayne90/sygfp-go/internal/domain"
)

func TestApplyActionCommon(t *testing.T) {
	t.Run("submit from brouillon", func(t *testing.T) {
		got, err := ApplyAction(domain.StageNoteSEF, domain.StatutBrouillon, domain.ActionSubmit, chainActor(domain.RoleAgent), 0, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != domain.StatutSoumis {
			t.Errorf("got %s, want soumis", got)
		}
	})

	t.Run("validate requires stage validator", func(t *testing.T) {
		if _, err := ApplyAction(domain.StageNoteSEF, domain.StatutSoumis, domain.ActionValidate, chainActor(domain.RoleAgent), 0, ""); err == nil {
			t.Fatal("expected AGENT refused to validate note_sef")
		}
		got, err := ApplyAction(domain.StageNoteSEF, domain.StatutSoumis, domain.ActionValidate, chainActor(domain.RoleDG), 0, "")
		if err != nil {
			t.Fatalf("unexpected error for DG: %v", err)
		}
		if got != domain.StatutValide {
			t.Errorf("got %s, want valide", got)
		}
	})

	t.Run("reject requires motif", func(t *testing.T) {
		_, err := ApplyAction(domain.StageNoteSEF, domain.StatutSoumis, domain.ActionReject, chainActor(domain.RoleDG), 0, "")
		var motifErr *domain.ErrMotifRequired
		if !errors.As(err, &motifErr) {
			t.Fatalf("expected ErrMotifRequired, got %v", err)
		}
		got, err := ApplyAction(domain.StageNoteSEF, domain.StatutSoumis, domain.ActionReject, chainActor(domain.RoleDG), 0, "hors budget")
		if err != nil {
			t.Fatalf("unexpected error with motif: %v", err)
		}
		if got != domain.StatutRejete {
			t.Errorf("got %s, want rejete", got)
		}
	})

	t.Run("terminal status frozen", func(t *testing.T) {
		_, err := ApplyAction(domain.StageReglement, domain.StatutCloture, domain.ActionPay, chainActor(domain.RoleAdmin), 0, "")
		var transErr *domain.ErrInvalidTransition
		if !errors.As(err, &transErr) {
			t.Fatalf("expected ErrInvalidTransition, got %v", err)
		}
	})

	t.Run("revise after rejection", func(t *testing.T) {
		got, err := ApplyAction(domain.StageNoteAEF, domain.StatutRejete, domain.ActionRevise, chainActor(domain.RoleAgent), 0, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != domain.StatutBrouillon {
			t.Errorf("got %s, want brouillon", got)
		}
	})
}

func TestEngagementVisaChain(t *testing.T) {
	steps := []struct {
		from domain.Statut
		to   domain.Statut
		role domain.Role
		act  domain.Action
	}{
		{domain.StatutSoumis, domain.StatutVisaSAF, domain.RoleSAF, domain.ActionVisa},
		{domain.StatutVisaSAF, domain.StatutVisaCB, domain.RoleCB, domain.ActionVisa},
		{domain.StatutVisaCB, domain.StatutVisaDAAF, domain.RoleDAAF, domain.ActionVisa},
		{domain.StatutVisaDAAF, domain.StatutValide, domain.RoleCB, domain.ActionValidate},
	}

	for _, step := range steps {
		got, err := ApplyAction(domain.StageEngagement, step.from, step.act, chainActor(step.role), 0, "")
		if err != nil {
			t.Fatalf("visa %s→%s by %s: %v", step.from, step.to, step.role, err)
		}
		if got != step.to {
			t.Errorf("visa from %s: got %s, want %s", step.from, got, step.to)
		}
	}

	// Wrong role anywhere in the chain is refused.
	if _, err := ApplyAction(domain.StageEngagement, domain.StatutVisaSAF, domain.ActionVisa, chainActor(domain.RoleSAF), 0, ""); err == nil {
		t.Error("expected SAF refused to stamp the CB visa")
	}

	// Mid-chain rejection is possible with a motif.
	got, err := ApplyAction(domain.StageEngagement, domain.StatutVisaCB, domain.ActionReject, chainActor(domain.RoleCB), 0, "crédit indisponible")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != domain.StatutRejete {
		t.Errorf("got %s, want rejete", got)
	}
}

func TestLiquidationForwardDG(t *testing.T) {
	t.Run("above threshold forwards", func(t *testing.T) {
		got, err := ApplyAction(domain.StageLiquidation, domain.StatutSoumis, domain.ActionForwardDG, chainActor(domain.RoleSDCT), 60_000_000, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != domain.StatutEnValidationDG {
			t.Errorf("got %s, want en_validation_dg", got)
		}
	})

	t.Run("below threshold refused", func(t *testing.T) {
		if _, err := ApplyAction(domain.StageLiquidation, domain.StatutSoumis, domain.ActionForwardDG, chainActor(domain.RoleSDCT), 10_000_000, ""); err == nil {
			t.Fatal("expected FORWARD_DG refused under 50M")
		}
	})

	t.Run("only DG validates after forward", func(t *testing.T) {
		if _, err := ApplyAction(domain.StageLiquidation, domain.StatutEnValidationDG, domain.ActionValidate, chainActor(domain.RoleSDCT), 60_000_000, ""); err == nil {
			t.Fatal("expected SDCT refused after forward to DG")
		}
		got, err := ApplyAction(domain.StageLiquidation, domain.StatutEnValidationDG, domain.ActionValidate, chainActor(domain.RoleDG), 60_000_000, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != domain.StatutValide {
			t.Errorf("got %s, want valide", got)
		}
	})
}

func TestOrdonnancementSignature(t *testing.T) {
	got, err := ApplyAction(domain.StageOrdonnancement, domain.StatutSoumis, domain.ActionPrepareSign, chainActor(domain.RoleDAAF), 0, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != domain.StatutEnSignature {
		t.Errorf("got %s, want en_signature", got)
	}

	got, err = ApplyAction(domain.StageOrdonnancement, domain.StatutEnSignature, domain.ActionSign, chainActor(domain.RoleDG), 0, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != domain.StatutSigne {
		t.Errorf("got %s, want signe", got)
	}
}

func TestReglementPayClose(t *testing.T) {
	got, err := ApplyAction(domain.StageReglement, domain.StatutSoumis, domain.ActionPay, chainActor(domain.RoleTresorerie), 0, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != domain.StatutPaye {
		t.Errorf("got %s, want paye", got)
	}

	if _, err := ApplyAction(domain.StageReglement, domain.StatutPaye, domain.ActionClose, chainActor(domain.RoleAgentComptable), 0, ""); err == nil {
		t.Error("expected AGENT_COMPTABLE refused to close")
	}

	got, err = ApplyAction(domain.StageReglement, domain.StatutPaye, domain.ActionClose, chainActor(domain.RoleTresorerie), 0, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != domain.StatutCloture {
		t.Errorf("got %s, want cloture", got)
	}
}

func TestCheckPrerequisites(t *testing.T) {
	t.Run("no prerequisites for note_sef", func(t *testing.T) {
		if err := CheckPrerequisites(domain.StageNoteSEF, nil, 0); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("engagement requires validated expression de besoin", func(t *testing.T) {
		err := CheckPrerequisites(domain.StageEngagement, map[domain.Stage]domain.Statut{}, 3_000_000)
		if err == nil {
			t.Fatal("expected prerequisite error")
		}
		ok := map[domain.Stage]domain.Statut{domain.StageExpressionBesoin: domain.StatutValide}
		if err := CheckPrerequisites(domain.StageEngagement, ok, 3_000_000); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("marche optional below threshold", func(t *testing.T) {
		if err := CheckPrerequisites(domain.StagePassationMarche, nil, 3_000_000); err != nil {
			t.Errorf("unexpected error below threshold: %v", err)
		}
		if err := CheckPrerequisites(domain.StagePassationMarche, nil, 8_000_000); err == nil {
			t.Error("expected prerequisite error above threshold")
		}
	})

	t.Run("note aef without validated sef", func(t *testing.T) {
		if err := CheckPrerequisites(domain.StageNoteAEF, nil, 0); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestStatusClassifiers(t *testing.T) {
	validated := []domain.Statut{domain.StatutValide, domain.StatutImpute, domain.StatutSigne, domain.StatutPaye, domain.StatutCloture}
	for _, s := range validated {
		if !IsValidatedStatus(s) {
			t.Errorf("IsValidatedStatus(%s) = false, want true", s)
		}
	}
	for _, s := range []domain.Statut{domain.StatutBrouillon, domain.StatutSoumis, domain.StatutRejete, domain.StatutAnnule} {
		if IsValidatedStatus(s) {
			t.Errorf("IsValidatedStatus(%s) = true, want false", s)
		}
	}

	if !IsTerminalStatus(domain.StatutCloture) || !IsTerminalStatus(domain.StatutAnnule) {
		t.Error("cloture and annule must be terminal")
	}
	if IsTerminalStatus(domain.StatutValide) {
		t.Error("valide must not be terminal")
	}

	if !ReservedStatus(domain.StatutSoumis) || !ReservedStatus(domain.StatutVisaCB) {
		t.Error("pending validation statuts must reserve credit")
	}
	if ReservedStatus(domain.StatutRejete) || ReservedStatus(domain.StatutValide) {
		t.Error("rejete and valide must not count as reserved")
	}
}
