package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTrimester(t *testing.T) {
	got, err := ParseTrimester(" Fall ")
	require.NoError(t, err)
	assert.Equal(t, TrimesterFall, got)

	_, err = ParseTrimester("summer")
	assert.Error(t, err)
}

func TestTrimesterOrdinalOrder(t *testing.T) {
	assert.Equal(t, 0, TrimesterFall.Ordinal())
	assert.Equal(t, 1, TrimesterWinter.Ordinal())
	assert.Equal(t, 2, TrimesterSpring.Ordinal())
}

func TestNextStepSequence(t *testing.T) {
	tr, ph := NextStep(TrimesterFall, PhaseOpenEnrollment)
	assert.Equal(t, TrimesterFall, tr)
	assert.Equal(t, PhaseRegistration, ph)

	// fall registration rolls into the winter intent window
	tr, ph = NextStep(TrimesterFall, PhaseRegistration)
	assert.Equal(t, TrimesterWinter, tr)
	assert.Equal(t, PhaseIntent, ph)

	// spring registration wraps back to fall open enrollment
	tr, ph = NextStep(TrimesterSpring, PhaseRegistration)
	assert.Equal(t, TrimesterFall, tr)
	assert.Equal(t, PhaseOpenEnrollment, ph)
}

func TestVisibleTrimesters(t *testing.T) {
	// intent phase exposes previous and current
	visible := VisibleTrimesters(TrimesterWinter, PhaseIntent)
	assert.Equal(t, []Trimester{TrimesterFall, TrimesterWinter}, visible)

	// enrollment phases expose current and next
	visible = VisibleTrimesters(TrimesterWinter, PhaseOpenEnrollment)
	assert.Equal(t, []Trimester{TrimesterWinter, TrimesterSpring}, visible)

	visible = VisibleTrimesters(TrimesterFall, PhaseRegistration)
	assert.Equal(t, []Trimester{TrimesterFall, TrimesterWinter}, visible)
}

func TestPeriodContextAllows(t *testing.T) {
	pc := PeriodContext{Visible: []Trimester{TrimesterFall, TrimesterWinter}}
	assert.True(t, pc.Allows(TrimesterFall))
	assert.False(t, pc.Allows(TrimesterSpring))
}
