package todo

import "strings"

// Kind classifies a document line by its leading marker.
type Kind string

const (
	KindProject   Kind = "project"
	KindGoal      Kind = "goal"
	KindAvailable Kind = "available"
	KindBlocked   Kind = "blocked"
	KindCompleted Kind = "completed"
	KindOther     Kind = "other"
)

// ParseKind maps a kind name to a Kind. ok is false for unknown names.
func ParseKind(name string) (Kind, bool) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(name))); k {
	case KindProject, KindGoal, KindAvailable, KindBlocked, KindCompleted, KindOther:
		return k, true
	}
	return "", false
}

// LineKind classifies line. Top-level "*" items are projects and nested ones
// are goals.
func LineKind(line string) Kind {
	body := strings.TrimLeft(line, " \t")
	indented := len(body) < len(line)
	switch {
	case strings.HasPrefix(body, "* "), body == "*":
		if indented {
			return KindGoal
		}
		return KindProject
	case strings.HasPrefix(body, "- [ ]"):
		return KindAvailable
	case strings.HasPrefix(body, "- [x]"), strings.HasPrefix(body, "- [X]"):
		return KindCompleted
	case strings.HasPrefix(body, "- "):
		return KindBlocked
	default:
		return KindOther
	}
}

// Counts tallies lines by kind.
func Counts(lines []string) map[Kind]int {
	counts := make(map[Kind]int)
	for _, line := range lines {
		counts[LineKind(line)]++
	}
	return counts
}

// Filter returns the 1-based rows whose kind is k.
func Filter(lines []string, k Kind) []int {
	var rows []int
	for i, line := range lines {
		if LineKind(line) == k {
			rows = append(rows, i+1)
		}
	}
	return rows
}
