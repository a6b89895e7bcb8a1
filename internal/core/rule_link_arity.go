package core

import (
	"context"
	"fmt"
)

// NewLinkArityRule returns the in-transaction rule that flags biologically
// implausible track topology: more than two next tracks (a cell divides into
// at most two daughters) or more than one previous track (cells do not
// merge). Severity is configurable; the default engine warns, the strict
// engine blocks.
func NewLinkArityRule(severity Severity) Rule {
	return linkArityRule{severity: severity}
}

type linkArityRule struct {
	severity Severity
}

func (linkArityRule) Name() string { return "link_arity" }

func (r linkArityRule) Evaluate(_ context.Context, view RuleView, changes []Change) (Result, error) {
	res := Result{}
	seen := make(map[string]struct{})
	for _, change := range changes {
		if change.Entity != EntityExperiment || change.Action == ActionDelete {
			continue
		}
		summary, ok := change.After.(ExperimentSummary)
		if !ok {
			continue
		}
		if _, dup := seen[summary.Name]; dup {
			continue
		}
		seen[summary.Name] = struct{}{}

		exp, ok := view.FindExperiment(summary.Name)
		if !ok || exp.Graph == nil {
			continue
		}
		r.checkGraph(&res, exp.Name, exp.Graph)
	}
	return res, nil
}

func (r linkArityRule) checkGraph(res *Result, experiment string, g *Graph) {
	for id, track := range g.Tracks() {
		if n := len(g.NextTracks(track)); n > 2 {
			res.Violations = append(res.Violations, r.violation(experiment,
				fmt.Sprintf("track %d divides into %d tracks after %s", id, n, track.LastPosition())))
		}
		if n := len(g.PreviousTracks(track)); n > 1 {
			res.Violations = append(res.Violations, r.violation(experiment,
				fmt.Sprintf("track %d merges %d tracks before %s", id, n, track.FirstPosition())))
		}
	}
}

func (r linkArityRule) violation(experiment, message string) Violation {
	return Violation{
		Rule:     "link_arity",
		Severity: r.severity,
		Message:  message,
		Entity:   EntityExperiment,
		EntityID: experiment,
	}
}
