// Package stage defines the pipeline stages and their pure routing function.
//
// Routing is deliberately isolated from I/O: gating stages branch on a single
// boolean computed from that stage's own output, every other stage advances
// linearly, and the two terminal stages never advance.
package stage

// Stage identifies one node of the pipeline state machine.
type Stage string

// Pipeline stages in execution order. Stop and Complete are terminal.
const (
	Prefilter Stage = "prefilter"
	Classify  Stage = "classify"
	Ideate    Stage = "ideate"
	RiskScore Stage = "risk"
	Build     Stage = "build"
	Media     Stage = "media"
	Publish   Stage = "publish"
	Stop      Stage = "stop"
	Complete  Stage = "complete"
)

// Output is the routing-relevant slice of a stage's result. Passed is only
// consulted for gating stages.
type Output struct {
	Passed bool
}

// IsTerminal reports whether no further transitions occur after s.
func (s Stage) IsTerminal() bool {
	return s == Stop || s == Complete
}

// Next returns the stage following current given the stage's own output.
// Only Prefilter and Classify branch; all other non-terminal stages have a
// single successor.
func Next(current Stage, out Output) Stage {
	switch current {
	case Prefilter:
		if !out.Passed {
			return Stop
		}
		return Classify
	case Classify:
		if !out.Passed {
			return Stop
		}
		return Ideate
	case Ideate:
		return RiskScore
	case RiskScore:
		return Build
	case Build:
		return Media
	case Media:
		return Publish
	case Publish:
		return Complete
	default:
		// Terminal stages route to themselves.
		return current
	}
}
