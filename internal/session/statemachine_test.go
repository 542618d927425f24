package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{"active to resolved", StatusActive, StatusResolved, true},
		{"active to needs_more_help", StatusActive, StatusNeedsMoreHelp, true},
		{"active to refer_to_teacher", StatusActive, StatusReferToTeacher, true},
		{"active to abandoned", StatusActive, StatusAbandoned, true},
		{"active to active", StatusActive, StatusActive, false},
		{"resolved is absorbing", StatusResolved, StatusActive, false},
		{"resolved to abandoned", StatusResolved, StatusAbandoned, false},
		{"abandoned is absorbing", StatusAbandoned, StatusResolved, false},
		{"needs_more_help is absorbing", StatusNeedsMoreHelp, StatusReferToTeacher, false},
		{"unknown status has no edges", Status("bogus"), StatusResolved, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestTerminal(t *testing.T) {
	assert.False(t, Terminal(StatusActive))
	assert.True(t, Terminal(StatusResolved))
	assert.True(t, Terminal(StatusNeedsMoreHelp))
	assert.True(t, Terminal(StatusReferToTeacher))
	assert.True(t, Terminal(StatusAbandoned))
	assert.False(t, Terminal(Status("bogus")))
}

func TestValidRole(t *testing.T) {
	assert.True(t, ValidRole(RoleInitiator))
	assert.True(t, ValidRole(RoleResponder))
	assert.False(t, ValidRole("observer"))
	assert.False(t, ValidRole(""))
}
