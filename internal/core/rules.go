package core

import "lineagecore/pkg/lineage"

// NewRulesEngine constructs an empty engine instance.
func NewRulesEngine() *RulesEngine {
	return lineage.NewRulesEngine()
}

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
// Link arity findings are reported at warn severity so unusual divisions and
// merges surface without blocking curation work.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(NewLinkArityRule(SeverityWarn))
	return engine
}

// NewStrictRulesEngine escalates link arity findings to blocking severity,
// for consumers that want malformed topology rejected at commit time.
func NewStrictRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(NewLinkArityRule(SeverityBlock))
	return engine
}
