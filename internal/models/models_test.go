package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidTransition(t *testing.T) {
	tests := []struct {
		name        string
		action      string
		from        PartyState
		shouldAllow bool
	}{
		{"notify from queued", ActionNotify, StateQueued, true},
		{"notify from notified", ActionNotify, StateNotified, false},
		{"on the way from queued", ActionOnTheWay, StateQueued, true},
		{"on the way from notified", ActionOnTheWay, StateNotified, true},
		{"on the way from on the way", ActionOnTheWay, StateOnTheWay, false},
		{"seat from queued", ActionSeat, StateQueued, true},
		{"seat from notified", ActionSeat, StateNotified, true},
		{"seat from on the way", ActionSeat, StateOnTheWay, true},
		{"no show from on the way", ActionNoShow, StateOnTheWay, true},
		{"cancel from queued", ActionCancel, StateQueued, true},
		{"cancel from on the way", ActionCancel, StateOnTheWay, true},
		{"unknown action", "transfer", StateQueued, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.shouldAllow, ValidTransition(tt.action, tt.from))
		})
	}
}

func TestTerminalStatesAbsorbing(t *testing.T) {
	actions := []string{ActionNotify, ActionOnTheWay, ActionSeat, ActionNoShow, ActionCancel}
	for _, terminal := range []PartyState{StateSeated, StateNoShow, StateCanceled} {
		assert.True(t, IsTerminal(terminal))
		for _, action := range actions {
			assert.Falsef(t, ValidTransition(action, terminal),
				"action %s must not fire from %s", action, terminal)
		}
	}
	for _, live := range []PartyState{StateQueued, StateNotified, StateOnTheWay} {
		assert.False(t, IsTerminal(live))
	}
}

func TestTransitionTarget(t *testing.T) {
	assert.Equal(t, StateNotified, TransitionTarget(ActionNotify))
	assert.Equal(t, StateSeated, TransitionTarget(ActionSeat))
	assert.Equal(t, StateCanceled, TransitionTarget(ActionCancel))
	assert.Equal(t, PartyState(""), TransitionTarget("recall"))
}

func TestValidation(t *testing.T) {
	t.Run("Name", func(t *testing.T) {
		assert.NoError(t, ValidatePartyName("Ana Garcia"))
		assert.Error(t, ValidatePartyName("   "))
		assert.Error(t, ValidatePartyName(strings.Repeat("a", MaxNameLength+1)))
	})

	t.Run("Size", func(t *testing.T) {
		assert.Error(t, ValidatePartySize(0))
		assert.NoError(t, ValidatePartySize(1))
		assert.NoError(t, ValidatePartySize(12))
		assert.Error(t, ValidatePartySize(13))
	})

	t.Run("ETA", func(t *testing.T) {
		assert.NoError(t, ValidateETAMinutes(nil))
		for eta, ok := range map[int]bool{4: false, 5: true, 120: true, 121: false} {
			eta := eta
			err := ValidateETAMinutes(&eta)
			if ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		}
	})
}

func TestPhoneVerificationExpired(t *testing.T) {
	now := time.Now()
	v := &PhoneVerification{ExpiresAt: now.Add(10 * time.Minute)}
	assert.False(t, v.Expired(now))
	assert.True(t, v.Expired(now.Add(10*time.Minute)))
	assert.True(t, v.Expired(now.Add(11*time.Minute)))
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "la-parrilla-de-nico", Slugify("La Parrilla de Nico"))
	assert.Equal(t, "don-julio-2024", Slugify("  Don Julio 2024!  "))
	assert.Equal(t, "", Slugify("!!!"))
}
