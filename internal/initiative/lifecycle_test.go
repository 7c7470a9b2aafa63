package initiative

import (
	"testing"

	"github.com/stretchr/testify/assert"
	apperrors "github.com/wfunc/initiative-tracker/internal/errors"
	"github.com/wfunc/initiative-tracker/internal/models"
)

func TestStateOf(t *testing.T) {
	assert.Equal(t, StateNone, StateOf(nil))
	assert.Equal(t, StateActive, StateOf(&models.InitiativeSession{IsActive: true}))
	assert.Equal(t, StateEnded, StateOf(&models.InitiativeSession{IsActive: false}))
}

func TestTransition(t *testing.T) {
	tests := []struct {
		from    State
		ev      Event
		to      State
		errCode apperrors.ErrorCode
	}{
		{StateNone, EventStart, StateActive, 0},
		{StateEnded, EventStart, StateActive, 0},
		{StateActive, EventEnd, StateEnded, 0},
		{StateActive, EventMutate, StateActive, 0},
		{StateActive, EventStart, StateActive, apperrors.ErrSessionAlreadyActive},
		{StateNone, EventEnd, StateNone, apperrors.ErrNoActiveSession},
		{StateEnded, EventEnd, StateEnded, apperrors.ErrNoActiveSession},
		{StateNone, EventMutate, StateNone, apperrors.ErrNoActiveSession},
		{StateEnded, EventMutate, StateEnded, apperrors.ErrSessionNotActive},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"_"+string(tt.ev), func(t *testing.T) {
			to, err := Transition(tt.from, tt.ev)
			assert.Equal(t, tt.to, to)
			if tt.errCode == 0 {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.errCode, apperrors.GetCode(err))
			assert.True(t, apperrors.IsStateError(err))
		})
	}
}
