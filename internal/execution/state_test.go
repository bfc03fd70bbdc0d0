package execution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	legal := [][2]Phase{
		{PhaseIdle, PhasePreparing},
		{PhasePreparing, PhaseSigning},
		{PhasePreparing, PhaseError},
		{PhaseSigning, PhaseSubmitting},
		{PhaseSigning, PhaseError},
		{PhaseSubmitting, PhasePreparing},
		{PhaseSubmitting, PhaseSuccess},
		{PhaseSubmitting, PhaseError},
	}

	isLegal := func(from, to Phase) bool {
		for _, edge := range legal {
			if edge[0] == from && edge[1] == to {
				return true
			}
		}
		return false
	}

	all := []Phase{PhaseIdle, PhasePreparing, PhaseSigning, PhaseSubmitting, PhaseSuccess, PhaseError}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, isLegal(from, to), CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestSession_IllegalTransition(t *testing.T) {
	session := NewSession(orderRequest())

	err := session.transition(PhaseSubmitting, nil)
	require.ErrorIs(t, err, ErrIllegalTransition)
	assert.Equal(t, PhaseIdle, session.State().Phase)

	require.NoError(t, session.transition(PhasePreparing, nil))
	require.NoError(t, session.transition(PhaseError, nil))

	// Terminal phases have no way out.
	assert.ErrorIs(t, session.transition(PhasePreparing, nil), ErrIllegalTransition)
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "submitting", PhaseSubmitting.String())
	assert.True(t, PhaseSuccess.Terminal())
	assert.False(t, PhaseSigning.Terminal())
}
