package seasondomain

import (
	"strings"
	"time"

	"github.com/gosimple/slug"
)

// ResetConfirmation is the literal token HardReset requires.
const ResetConfirmation = "RESET"

// State is the lifecycle state of a season.
type State string

const (
	StatePending State = "pending"
	StateActive  State = "active"
	StateEnded   State = "ended"
)

// StateOf derives a season's state from its stored flags.
func StateOf(isActive bool, endDate *time.Time) State {
	switch {
	case isActive:
		return StateActive
	case endDate != nil:
		return StateEnded
	default:
		return StatePending
	}
}

// CanEnd reports whether a season in state s can be ended. Only the active season can be ended.
func CanEnd(s State) bool {
	return s == StateActive
}

// Slug derives a URL-safe identifier from a season name.
func Slug(name string) string {
	s := slug.Make(strings.TrimSpace(name))
	if s == "" {
		return "season"
	}
	return s
}

// TopStandingsLimit is how many players Stats reports.
const TopStandingsLimit = 20
