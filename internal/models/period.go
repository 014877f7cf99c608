package models

import (
	"fmt"
	"strings"
	"time"
)

// Trimester identifies the academic scheduling unit.
type Trimester string

const (
	TrimesterFall   Trimester = "fall"
	TrimesterWinter Trimester = "winter"
	TrimesterSpring Trimester = "spring"
)

// Trimesters lists all trimesters in canonical order. Fall is scanned first,
// so a duplicate registration ID resolves to its fall row.
var Trimesters = []Trimester{TrimesterFall, TrimesterWinter, TrimesterSpring}

// ParseTrimester normalises free-text trimester names.
func ParseTrimester(raw string) (Trimester, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "fall":
		return TrimesterFall, nil
	case "winter":
		return TrimesterWinter, nil
	case "spring":
		return TrimesterSpring, nil
	}
	return "", fmt.Errorf("invalid trimester %q", raw)
}

// Valid reports whether the trimester is one of fall/winter/spring.
func (t Trimester) Valid() bool {
	return t == TrimesterFall || t == TrimesterWinter || t == TrimesterSpring
}

// Ordinal returns the scan position of the trimester (fall first).
func (t Trimester) Ordinal() int {
	switch t {
	case TrimesterFall:
		return 0
	case TrimesterWinter:
		return 1
	case TrimesterSpring:
		return 2
	}
	return -1
}

// Next returns the trimester following this one, wrapping spring to fall.
func (t Trimester) Next() Trimester {
	switch t {
	case TrimesterFall:
		return TrimesterWinter
	case TrimesterWinter:
		return TrimesterSpring
	default:
		return TrimesterFall
	}
}

// Previous returns the trimester preceding this one, wrapping fall to spring.
func (t Trimester) Previous() Trimester {
	switch t {
	case TrimesterFall:
		return TrimesterSpring
	case TrimesterWinter:
		return TrimesterFall
	default:
		return TrimesterWinter
	}
}

// PeriodPhase identifies the enrollment phase active within a trimester.
type PeriodPhase string

const (
	PhaseIntent             PeriodPhase = "intent"
	PhasePriorityEnrollment PeriodPhase = "priorityEnrollment"
	PhaseOpenEnrollment     PeriodPhase = "openEnrollment"
	PhaseRegistration       PeriodPhase = "registration"
)

// Period is an admin-toggled record identifying the active enrollment phase.
// Exactly one row should carry is_current = true.
type Period struct {
	ID        string      `db:"id" json:"id"`
	Trimester Trimester   `db:"trimester" json:"trimester"`
	Phase     PeriodPhase `db:"phase" json:"phase"`
	IsCurrent bool        `db:"is_current" json:"is_current"`
	StartDate time.Time   `db:"start_date" json:"start_date"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt time.Time   `db:"updated_at" json:"updated_at"`
}

// phaseStep pairs a trimester with a phase inside the canonical sequence.
type phaseStep struct {
	Trimester Trimester
	Phase     PeriodPhase
}

// Fall skips the intent and priority phases because there is no prior
// trimester in the academic year to reenroll from.
var phaseSequence = []phaseStep{
	{TrimesterFall, PhaseOpenEnrollment},
	{TrimesterFall, PhaseRegistration},
	{TrimesterWinter, PhaseIntent},
	{TrimesterWinter, PhasePriorityEnrollment},
	{TrimesterWinter, PhaseOpenEnrollment},
	{TrimesterWinter, PhaseRegistration},
	{TrimesterSpring, PhaseIntent},
	{TrimesterSpring, PhasePriorityEnrollment},
	{TrimesterSpring, PhaseOpenEnrollment},
	{TrimesterSpring, PhaseRegistration},
}

// NextStep returns the trimester and phase following the given position in the
// canonical sequence, wrapping the end of spring back to fall.
func NextStep(trimester Trimester, phase PeriodPhase) (Trimester, PeriodPhase) {
	for i, step := range phaseSequence {
		if step.Trimester == trimester && step.Phase == phase {
			next := phaseSequence[(i+1)%len(phaseSequence)]
			return next.Trimester, next.Phase
		}
	}
	first := phaseSequence[0]
	return first.Trimester, first.Phase
}

// VisibleTrimesters returns which trimesters a caller may operate on during
// the given phase: intent exposes the previous and current trimester, every
// enrollment phase exposes the current and next one.
func VisibleTrimesters(trimester Trimester, phase PeriodPhase) []Trimester {
	if phase == PhaseIntent {
		return []Trimester{trimester.Previous(), trimester}
	}
	return []Trimester{trimester, trimester.Next()}
}

// PeriodContext is the per-request resolution of the current period. It is
// computed once and passed into operations that need it rather than
// re-queried by every collaborator.
type PeriodContext struct {
	Current          Period      `json:"current"`
	NextTrimester    Trimester   `json:"next_trimester"`
	NextPhase        PeriodPhase `json:"next_phase"`
	Visible          []Trimester `json:"visible_trimesters"`
	CurrentTrimester Trimester   `json:"current_trimester"`
}

// Allows reports whether the context permits writes targeting the trimester.
func (pc PeriodContext) Allows(trimester Trimester) bool {
	for _, t := range pc.Visible {
		if t == trimester {
			return true
		}
	}
	return false
}
