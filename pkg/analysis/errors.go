// Package analysis provides the consumers of the linking graph: marker
// bookkeeping, the lineage error taxonomy with its automated checker, and
// division queries. Everything here works through the public graph API and
// stores its findings in position attributes so they travel with the
// tracking files.
package analysis

import "fmt"

// Severity grades lineage errors: warnings are worth a look, errors are
// almost certainly tracking mistakes.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "warning"
}

// Error enumerates the known lineage problems. The numeric values are the
// wire format: they are what lands in the "error" and "suppressed_error"
// attributes, so they must never be renumbered.
type Error int

const (
	ErrorNoFuturePosition           Error = 1
	ErrorPotentiallyNotAMother      Error = 2
	ErrorPotentiallyShouldBeAMother Error = 3
	ErrorTooManyDaughterCells       Error = 4
	ErrorNoPastPosition             Error = 5
	ErrorCellMerge                  Error = 6
	ErrorPotentiallyWrongDaughters  Error = 7
	ErrorYoungMother                Error = 8
	ErrorLowMotherScore             Error = 9
	ErrorShrunkALot                 Error = 10
	ErrorMovedTooFast               Error = 11
	ErrorFailedShape                Error = 12
	ErrorUncertainPosition          Error = 13
	ErrorLowLinkScore               Error = 14
)

type errorInfo struct {
	severity Severity
	message  string
}

var errorTable = map[Error]errorInfo{
	ErrorNoFuturePosition:           {SeverityWarning, "This cell has no links to the future. Please check if this is correct."},
	ErrorPotentiallyNotAMother:      {SeverityWarning, "This division is maybe wrong; nearby cell has similar likeliness."},
	ErrorPotentiallyShouldBeAMother: {SeverityWarning, "A division was probably missed here; found a high division score."},
	ErrorTooManyDaughterCells:       {SeverityError, "This cell has more than two daughter cells."},
	ErrorNoPastPosition:             {SeverityError, "This cell popped up out of nothing."},
	ErrorCellMerge:                  {SeverityError, "Two cells merged together into this cell."},
	ErrorPotentiallyWrongDaughters:  {SeverityWarning, "One of the two daughter cells is maybe wrong."},
	ErrorYoungMother:                {SeverityError, "This division appeared very quickly after the previous. One of those is likely wrong."},
	ErrorLowMotherScore:             {SeverityWarning, "This division is maybe wrong; division score is low."},
	ErrorShrunkALot:                 {SeverityWarning, "This cell just shrank a lot in size. Maybe a division was missed, or the shape detection failed."},
	ErrorMovedTooFast:               {SeverityWarning, "This cell just moved very quickly. The link coming from the past may be wrong."},
	ErrorFailedShape:                {SeverityWarning, "This cell has an irregular shape. Maybe it was a misdetection, or it should be a mother cell."},
	ErrorUncertainPosition:          {SeverityWarning, "Uncertain if there actually is a cell here."},
	ErrorLowLinkScore:               {SeverityWarning, "This is probably not a correct link; the link score is low."},
}

// Severity returns how serious the error is. Unknown codes are treated as
// full errors.
func (e Error) Severity() Severity {
	if info, ok := errorTable[e]; ok {
		return info.severity
	}
	return SeverityError
}

// Message returns the user-facing explanation.
func (e Error) Message() string {
	if info, ok := errorTable[e]; ok {
		return info.message
	}
	return fmt.Sprintf("Unknown error code %d", int(e))
}

// Known reports whether the code is part of the taxonomy.
func (e Error) Known() bool {
	_, ok := errorTable[e]
	return ok
}
