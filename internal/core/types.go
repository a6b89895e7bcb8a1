package core

import "lineagecore/pkg/lineage"

type (
	EntityType         = lineage.EntityType
	Action             = lineage.Action
	Severity           = lineage.Severity
	Experiment         = lineage.Experiment
	ExperimentSummary  = lineage.ExperimentSummary
	Position           = lineage.Position
	Graph              = lineage.Graph
	Change             = lineage.Change
	Violation          = lineage.Violation
	Result             = lineage.Result
	RuleViolationError = lineage.RuleViolationError
	Rule               = lineage.Rule
	RuleView           = lineage.RuleView
	RulesEngine        = lineage.RulesEngine
	Logger             = lineage.Logger
)

const (
	EntityExperiment = lineage.EntityExperiment
)

const (
	SeverityBlock = lineage.SeverityBlock
	SeverityWarn  = lineage.SeverityWarn
	SeverityLog   = lineage.SeverityLog
)

const (
	ActionCreate = lineage.ActionCreate
	ActionUpdate = lineage.ActionUpdate
	ActionDelete = lineage.ActionDelete
)
