// Package budget computes budget-line consumption: dotation adjusted by
// executed credit transfers, amounts engaged/liquidated/ordered/paid
// summed from validated chain records, and the hierarchical roll-up over
// the nomenclature tree. Pure functions over already-fetched rows.
package budget

import (
	"fmt"
	"sort"

	"github.com/naywayne90/sygfp-go/internal/domain"
	"github.com/naywayne90/sygfp-go/internal/workflow"
)

// Input carries every row set needed for one aggregation pass. Rows are
// expected to be pre-filtered to a single exercice by the store.
type Input struct {
	Lines           []domain.BudgetLine
	Transfers       []domain.CreditTransfer
	Engagements     []domain.Engagement
	Liquidations    []domain.Liquidation
	Ordonnancements []domain.Ordonnancement
	Reglements      []domain.Reglement
}

// Compute aggregates consumption per budget line for the exercice.
// Lines with no activity report disponible = dotation_actuelle; a
// negative disponible is a surfaced overrun, never an error.
func Compute(exercice int, in Input) []domain.BudgetAvailability {
	byLine := make(map[string]*domain.BudgetAvailability, len(in.Lines))
	order := make([]string, 0, len(in.Lines))
	for _, l := range in.Lines {
		byLine[l.ID] = &domain.BudgetAvailability{
			LigneID:          l.ID,
			Code:             l.Code,
			Libelle:          l.Libelle,
			Exercice:         exercice,
			DotationInitiale: l.DotationInitiale,
		}
		order = append(order, l.ID)
	}

	// Only executed transfers move allocation.
	for _, t := range in.Transfers {
		if t.Status != domain.TransferExecuted {
			continue
		}
		if dst, ok := byLine[t.DestLigneID]; ok {
			dst.VirementsRecus += t.Montant
		}
		if src, ok := byLine[t.SourceLigneID]; ok {
			src.VirementsEmis += t.Montant
		}
	}
	for _, a := range byLine {
		a.DotationActuelle = a.DotationInitiale + a.VirementsRecus - a.VirementsEmis
	}

	// Engagements attach directly to a line. Validated ones consume,
	// pending ones only reserve; rejected/cancelled/draft count nowhere.
	engLine := make(map[string]string, len(in.Engagements))
	engValid := make(map[string]bool, len(in.Engagements))
	for _, e := range in.Engagements {
		engLine[e.ID] = e.LigneID
		a, ok := byLine[e.LigneID]
		if !ok {
			continue
		}
		switch {
		case workflow.IsValidatedStatus(e.Statut):
			a.Engage += e.Montant
			engValid[e.ID] = true
		case workflow.ReservedStatus(e.Statut):
			a.Reserve += e.Montant
		}
	}

	// Liquidations join through their engagement.
	liqLine := make(map[string]string, len(in.Liquidations))
	for _, l := range in.Liquidations {
		ligneID := engLine[l.EngagementID]
		liqLine[l.ID] = ligneID
		if !workflow.IsValidatedStatus(l.Statut) {
			continue
		}
		if a, ok := byLine[ligneID]; ok {
			a.Liquide += l.Montant
		}
	}

	// Ordonnancements join through liquidation → engagement.
	ordoLine := make(map[string]string, len(in.Ordonnancements))
	for _, o := range in.Ordonnancements {
		ligneID := liqLine[o.LiquidationID]
		ordoLine[o.ID] = ligneID
		if !workflow.IsValidatedStatus(o.Statut) {
			continue
		}
		if a, ok := byLine[ligneID]; ok {
			a.Ordonnance += o.Montant
		}
	}

	// Règlements join through ordonnancement → liquidation → engagement.
	// Only actually paid (or closed) settlements count.
	for _, r := range in.Reglements {
		if r.Statut != domain.StatutPaye && r.Statut != domain.StatutCloture {
			continue
		}
		if a, ok := byLine[ordoLine[r.OrdonnancementID]]; ok {
			a.Paye += r.Montant
		}
	}

	out := make([]domain.BudgetAvailability, 0, len(order))
	for _, id := range order {
		a := byLine[id]
		a.Disponible = a.DotationActuelle - a.Engage
		a.Depassement = a.Disponible < 0
		if a.DotationActuelle > 0 {
			a.TauxEngagement = a.Engage / a.DotationActuelle * 100
		}
		out = append(out, *a)
	}
	return out
}

// Summarize totals every line of an exercice.
func Summarize(exercice int, lignes []domain.BudgetAvailability) domain.BudgetSummary {
	s := domain.BudgetSummary{Exercice: exercice, Lignes: lignes}
	for _, a := range lignes {
		s.DotationInitiale += a.DotationInitiale
		s.DotationActuelle += a.DotationActuelle
		s.Engage += a.Engage
		s.Liquide += a.Liquide
		s.Ordonnance += a.Ordonnance
		s.Paye += a.Paye
	}
	s.Disponible = s.DotationActuelle - s.Engage
	return s
}

// used when a line has no computed availability row
func zeroAvail(l domain.BudgetLine) domain.BudgetAvailability {
	return domain.BudgetAvailability{
		LigneID:          l.ID,
		Code:             l.Code,
		Libelle:          l.Libelle,
		DotationInitiale: l.DotationInitiale,
		DotationActuelle: l.DotationInitiale,
		Disponible:       l.DotationInitiale,
	}
}

// Tree builds the hierarchical view of the nomenclature. A non-leaf
// node's amounts are the recursive sums over its leaf descendants, so
// nothing is double counted; a leaf reports its own availability.
// Recursion is memoized per node id.
func Tree(lines []domain.BudgetLine, availability []domain.BudgetAvailability) []domain.BudgetTreeNode {
	availByID := make(map[string]domain.BudgetAvailability, len(availability))
	for _, a := range availability {
		availByID[a.LigneID] = a
	}

	children := make(map[string][]domain.BudgetLine)
	var roots []domain.BudgetLine
	byID := make(map[string]domain.BudgetLine, len(lines))
	for _, l := range lines {
		byID[l.ID] = l
	}
	for _, l := range lines {
		if l.ParentID == "" || byID[l.ParentID].ID == "" {
			roots = append(roots, l)
			continue
		}
		children[l.ParentID] = append(children[l.ParentID], l)
	}

	memo := make(map[string]domain.BudgetTreeNode, len(lines))

	var build func(l domain.BudgetLine) domain.BudgetTreeNode
	build = func(l domain.BudgetLine) domain.BudgetTreeNode {
		if n, ok := memo[l.ID]; ok {
			return n
		}
		node := domain.BudgetTreeNode{Ligne: l}
		kids := children[l.ID]
		if len(kids) == 0 {
			a, ok := availByID[l.ID]
			if !ok {
				a = zeroAvail(l)
			}
			node.DotationInitiale = a.DotationInitiale
			node.DotationActuelle = a.DotationActuelle
			node.Engage = a.Engage
			node.Disponible = a.Disponible
		} else {
			sort.Slice(kids, func(i, j int) bool { return kids[i].Code < kids[j].Code })
			for _, k := range kids {
				child := build(k)
				node.Children = append(node.Children, child)
				node.DotationInitiale += child.DotationInitiale
				node.DotationActuelle += child.DotationActuelle
				node.Engage += child.Engage
				node.Disponible += child.Disponible
			}
		}
		memo[l.ID] = node
		return node
	}

	sort.Slice(roots, func(i, j int) bool { return roots[i].Code < roots[j].Code })
	out := make([]domain.BudgetTreeNode, 0, len(roots))
	for _, r := range roots {
		out = append(out, build(r))
	}
	return out
}

// CheckEngagement answers "can this amount be engaged on this line"
// with the blocking message shown to the user when it cannot.
func CheckEngagement(a domain.BudgetAvailability, montant float64) domain.AvailabilityCheck {
	if montant <= 0 {
		return domain.AvailabilityCheck{Message: "montant invalide"}
	}
	if montant > a.Disponible {
		return domain.AvailabilityCheck{
			Disponible: a.Disponible,
			Ecart:      montant - a.Disponible,
			Message: fmt.Sprintf("crédit insuffisant sur %s: disponible %.0f FCFA, écart %.0f FCFA",
				a.Code, a.Disponible, montant-a.Disponible),
		}
	}
	return domain.AvailabilityCheck{Possible: true, Disponible: a.Disponible}
}

// CheckVirement answers "can this amount leave this source line".
// A transfer may not dig into already-engaged credit.
func CheckVirement(source domain.BudgetAvailability, montant float64) domain.AvailabilityCheck {
	if montant <= 0 {
		return domain.AvailabilityCheck{Message: "montant invalide"}
	}
	if montant > source.Disponible {
		return domain.AvailabilityCheck{
			Disponible: source.Disponible,
			Ecart:      montant - source.Disponible,
			Message: fmt.Sprintf("virement impossible depuis %s: disponible %.0f FCFA, écart %.0f FCFA",
				source.Code, source.Disponible, montant-source.Disponible),
		}
	}
	return domain.AvailabilityCheck{Possible: true, Disponible: source.Disponible}
}
