package neomapper

import (
	"fmt"
	"strings"
)

// Direction tells which way a relationship is traversed relative to the
// caller's reference endpoint.
type Direction int

const (
	// Undirected means the caller expressed no preference.
	Undirected Direction = iota
	// Out points from the start endpoint to the end endpoint.
	Out
	// In points from the end endpoint to the start endpoint.
	In
)

func (d Direction) String() string {
	switch d {
	case Out:
		return "out"
	case In:
		return "in"
	case Undirected:
		return "any"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// Reverse swaps Out and In; Undirected is its own reverse.
func (d Direction) Reverse() Direction {
	switch d {
	case Out:
		return In
	case In:
		return Out
	default:
		return d
	}
}

// ParseDirection converts a textual direction token into a Direction.
// "out" and "in" map to Out and In; "any", "all", "both", "undirected" and the
// empty string map to Undirected. Any other token is an *UnknownDirectionError.
func ParseDirection(token string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "out":
		return Out, nil
	case "in":
		return In, nil
	case "", "any", "all", "both", "undirected":
		return Undirected, nil
	default:
		return Undirected, &UnknownDirectionError{Token: token}
	}
}

func (d Direction) valid() bool {
	return d == Undirected || d == Out || d == In
}

// renderPattern draws the relationship r of the given type between the nodes
// a and b, with an optional inline property map. Every statement touching a
// relationship goes through here so that create, update, delete and fetch
// agree on what a direction means.
func renderPattern(direction Direction, typ, inline string) string {
	rel := "[r"
	if typ != "" {
		rel += ":" + typ
	}
	rel += inline + "]"

	switch direction {
	case Out:
		return "(a)-" + rel + "->(b)"
	case In:
		return "(a)<-" + rel + "-(b)"
	default:
		return "(a)-" + rel + "-(b)"
	}
}
