package deps

import (
	"fmt"
	"strings"
)

// MissingDependencyError is the fatal outcome of an unresolvable mandatory dependency
type MissingDependencyError struct {
	// ID of the dependency that could not be resolved
	ID string
	// Chain of plugin ids from the verified plugin to the one declaring ID
	Chain  []string
	Reason string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("mandatory dependency %s of %s cannot be resolved: %s",
		e.ID, strings.Join(e.Chain, " → "), e.Reason)
}

// CycleError is returned under FailOnCycle
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return "dependency cycle: " + FormatCycle(e.Path)
}

// FormatCycle renders a cycle path as "P1 → P2 → P3 → P1"
func FormatCycle(path []string) string {
	return strings.Join(path, " → ")
}
