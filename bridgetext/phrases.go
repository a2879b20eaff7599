package bridgetext

import (
	"fmt"

	"github.com/projectqai/brovakt/etafmt"
)

// DefaultMessage is emitted when no vessel is tracked at all.
const DefaultMessage = "Inga båtar är i närheten av Klaffbron eller Stridsbergsbron"

// FallbackMessage is emitted when vessels exist but none produced a usable
// phrase.
const FallbackMessage = "Båtar upptäckta men tid kan ej beräknas"

// etaClause renders ", beräknad broöppning <phrase>" or "" when eta is
// unavailable.
func etaClause(hasETA bool, eta float64) string {
	if !hasETA || !etafmt.IsValid(eta) {
		return ""
	}
	return ", beräknad broöppning " + etafmt.Format(eta)
}

func approachingTarget(target string, hasETA bool, eta float64) string {
	return fmt.Sprintf("En båt närmar sig %s%s", target, etaClause(hasETA, eta))
}

func waitingAtTarget(target string) string {
	return fmt.Sprintf("En båt inväntar broöppning vid %s", target)
}

func underTarget(target string) string {
	return fmt.Sprintf("Broöppning pågår vid %s", target)
}

func underIntermediate(x, target string, hasETA bool, eta float64) string {
	s := fmt.Sprintf("Broöppning pågår vid %s, beräknad broöppning av %s", x, target)
	if hasETA && etafmt.IsValid(eta) {
		s += " " + etafmt.Format(eta)
	}
	return s
}

func waitingAtIntermediate(x, target string, hasETA bool, eta float64) string {
	return fmt.Sprintf("En båt inväntar broöppning av %s på väg mot %s%s", x, target, etaClause(hasETA, eta))
}

func stallbackaApproach(target string, hasETA bool, eta float64) string {
	return fmt.Sprintf("En båt närmar sig Stallbackabron på väg mot %s%s", target, etaClause(hasETA, eta))
}

func stallbackaClose(target string, hasETA bool, eta float64) string {
	return fmt.Sprintf("En båt åker strax under Stallbackabron på väg mot %s%s", target, etaClause(hasETA, eta))
}

func stallbackaUnder(target string, hasETA bool, eta float64) string {
	return fmt.Sprintf("En båt passerar Stallbackabron på väg mot %s%s", target, etaClause(hasETA, eta))
}

func recentlyPassed(x, target string, hasETA bool, eta float64) string {
	return fmt.Sprintf("En båt har precis passerat %s på väg mot %s%s", x, target, etaClause(hasETA, eta))
}

func enRoute(target string, hasETA bool, eta float64) string {
	return fmt.Sprintf("En båt är på väg mot %s%s", target, etaClause(hasETA, eta))
}

func intermediateApproaching(x, target string, hasETA bool, eta float64) string {
	return fmt.Sprintf("En båt vid %s närmar sig %s%s", x, target, etaClause(hasETA, eta))
}

// withMultiSuffix augments a leading phrase with the "K more boats" clause;
// k is the count of additional vessels beyond the leader.
func withMultiSuffix(phrase string, k int) string {
	if k <= 0 {
		return phrase
	}
	noun := "båtar"
	if k == 1 {
		noun = "båt"
	}
	return fmt.Sprintf("%s, ytterligare %d %s på väg", phrase, k, noun)
}
