package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		allowed bool
	}{
		{"new to active", StatusNew, StatusActive, true},
		{"new to archived", StatusNew, StatusArchived, true},
		{"active to archived", StatusActive, StatusArchived, true},
		{"active to new", StatusActive, StatusNew, false},
		{"archived to active", StatusArchived, StatusActive, false},
		{"archived to new", StatusArchived, StatusNew, false},
		{"new self", StatusNew, StatusNew, true},
		{"active self", StatusActive, StatusActive, true},
		{"archived self", StatusArchived, StatusArchived, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}
