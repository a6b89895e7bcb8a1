package lineage

import "time"

// Experiment is a named tracking session: one lineage graph plus bookkeeping
// timestamps. Experiments are the unit of persistence and rule evaluation.
type Experiment struct {
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
	Graph     *Graph
}

// Clone returns a deep copy of the experiment. The graph is copied with
// Graph.Copy, so attribute values are shared by reference as documented there.
func (e Experiment) Clone() Experiment {
	if e.Graph != nil {
		e.Graph = e.Graph.Copy()
	}
	return e
}

// Summary condenses an experiment into the lightweight payload recorded in
// change sets. Link counts are omitted because computing them walks every
// track slot.
type ExperimentSummary struct {
	Name      string    `json:"name"`
	Positions int       `json:"positions"`
	Tracks    int       `json:"tracks"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Summary returns the change-set payload for the experiment.
func (e Experiment) Summary() ExperimentSummary {
	s := ExperimentSummary{Name: e.Name, UpdatedAt: e.UpdatedAt}
	if e.Graph != nil {
		s.Positions = e.Graph.PositionCount()
		s.Tracks = e.Graph.TrackCount()
	}
	return s
}

// EntityType labels the kind of entity referenced by changes and violations.
type EntityType string

// EntityExperiment is the only persisted entity kind.
const EntityExperiment EntityType = "experiment"

// Change captures a single modification applied within a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Severity grades rule violations.
type Severity string

const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Violation describes a rule infraction discovered during evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
