package analysis

import (
	"testing"

	"lineagecore/pkg/lineage"
)

func wantCounts(t *testing.T, g *lineage.Graph, limits Limits, res Resolution, errored, unlinked int) {
	t.Helper()
	gotErrored, gotUnlinked := Check(g, limits, res)
	if gotErrored != errored || gotUnlinked != unlinked {
		t.Fatalf("Check = (%d, %d), want (%d, %d)", gotErrored, gotUnlinked, errored, unlinked)
	}
}

func TestCheckCleanChain(t *testing.T) {
	g := lineage.NewGraph()
	a := cell(0, 0, 0, 0)
	b := cell(1, 0, 0, 1)
	c := cell(2, 0, 0, 2)
	chain(t, g, a, b, c)

	wantCounts(t, g, DefaultLimits(), DefaultResolution(), 0, 0)
	for _, p := range []lineage.Position{a, b, c} {
		wantNoMarker(t, g, p)
	}
}

func TestCheckEmptyGraph(t *testing.T) {
	wantCounts(t, lineage.NewGraph(), DefaultLimits(), DefaultResolution(), 0, 0)
}

func TestCheckWithoutLinksIsQuiet(t *testing.T) {
	g := lineage.NewGraph()
	p := cell(1, 1, 1, 0)
	q := cell(2, 2, 2, 5)
	if err := SetErrorMarker(g, p, ErrorCellMerge); err != nil {
		t.Fatal(err)
	}
	if err := SetErrorMarker(g, q, ErrorNoPastPosition); err != nil {
		t.Fatal(err)
	}

	// No linking data: nothing to check, stale markers are wiped.
	wantCounts(t, g, DefaultLimits(), DefaultResolution(), 0, 0)
	wantNoMarker(t, g, p)
	wantNoMarker(t, g, q)
}

func TestCheckUncertainPosition(t *testing.T) {
	g := lineage.NewGraph()
	a := cell(0, 0, 0, 0)
	b := cell(1, 0, 0, 1)
	c := cell(2, 0, 0, 2)
	chain(t, g, a, b, c)
	if err := MarkUncertain(g, b, true); err != nil {
		t.Fatal(err)
	}

	wantCounts(t, g, DefaultLimits(), DefaultResolution(), 1, 0)
	wantMarker(t, g, b, ErrorUncertainPosition)
}

func TestCheckUncertainWithoutLinks(t *testing.T) {
	g := lineage.NewGraph()
	r := cell(1, 1, 1, 0)
	if err := MarkUncertain(g, r, true); err != nil {
		t.Fatal(err)
	}

	// The uncertainty check runs even when there is no linking data.
	wantCounts(t, g, DefaultLimits(), DefaultResolution(), 0, 1)
	wantMarker(t, g, r, ErrorUncertainPosition)
}

func TestCheckDeadEnd(t *testing.T) {
	g := lineage.NewGraph()
	chain(t, g, cell(0, 0, 0, 0), cell(0, 1, 0, 1), cell(0, 2, 0, 2))
	b0 := cell(5, 5, 0, 0)
	b1 := cell(5, 6, 0, 1)
	chain(t, g, b0, b1)

	wantCounts(t, g, DefaultLimits(), DefaultResolution(), 1, 0)
	wantMarker(t, g, b1, ErrorNoFuturePosition)

	// Explaining the end silences the warning.
	if err := SetEndMarker(g, b1, EndDead); err != nil {
		t.Fatal(err)
	}
	wantCounts(t, g, DefaultLimits(), DefaultResolution(), 0, 0)
	wantNoMarker(t, g, b1)
}

func TestCheckAppearance(t *testing.T) {
	g := lineage.NewGraph()
	chain(t, g, cell(0, 0, 0, 0), cell(0, 1, 0, 1), cell(0, 2, 0, 2))
	c1 := cell(7, 7, 0, 1)
	c2 := cell(7, 8, 0, 2)
	chain(t, g, c1, c2)

	wantCounts(t, g, DefaultLimits(), DefaultResolution(), 1, 0)
	wantMarker(t, g, c1, ErrorNoPastPosition)

	if err := SetStartMarker(g, c1, StartGoesIntoView); err != nil {
		t.Fatal(err)
	}
	wantCounts(t, g, DefaultLimits(), DefaultResolution(), 0, 0)
	wantNoMarker(t, g, c1)
}

func TestCheckCellMerge(t *testing.T) {
	g := lineage.NewGraph()
	a := cell(0, 0, 0, 0)
	b := cell(2, 0, 0, 0)
	m := cell(1, 1, 0, 1)
	chain(t, g, a, m)
	chain(t, g, b, m)

	wantCounts(t, g, DefaultLimits(), DefaultResolution(), 1, 0)
	wantMarker(t, g, m, ErrorCellMerge)
}

func TestCheckTooManyDaughters(t *testing.T) {
	g := lineage.NewGraph()
	m := cell(1, 1, 0, 0)
	for _, d := range []lineage.Position{cell(0, 2, 0, 1), cell(1, 2, 0, 1), cell(2, 2, 0, 1)} {
		chain(t, g, m, d)
	}

	wantCounts(t, g, DefaultLimits(), DefaultResolution(), 1, 0)
	wantMarker(t, g, m, ErrorTooManyDaughterCells)
}

func TestCheckYoungMother(t *testing.T) {
	g := lineage.NewGraph()
	gm := cell(1, 1, 0, 0)
	a1 := cell(0, 1, 0, 1)
	a2 := cell(0, 1, 0, 2)
	b1 := cell(2, 1, 0, 1)
	chain(t, g, gm, a1, a2, cell(0, 0, 0, 3))
	chain(t, g, a2, cell(0, 2, 0, 3))
	chain(t, g, gm, b1, cell(2, 1, 0, 2), cell(2, 1, 0, 3))

	// a2 divides one time point after being born from gm's division.
	// gm itself has no known birth, so she is exempt.
	wantCounts(t, g, DefaultLimits(), DefaultResolution(), 1, 0)
	wantMarker(t, g, a2, ErrorYoungMother)
	wantNoMarker(t, g, gm)
}

func TestCheckPositionHealsYoungMother(t *testing.T) {
	g := lineage.NewGraph()
	gm := cell(1, 1, 0, 0)
	a1 := cell(0, 1, 0, 1)
	a2 := cell(0, 1, 0, 2)
	b1 := cell(2, 1, 0, 1)
	chain(t, g, gm, a1, a2, cell(0, 0, 0, 3))
	chain(t, g, a2, cell(0, 2, 0, 3))
	chain(t, g, gm, b1, cell(2, 1, 0, 2), cell(2, 1, 0, 3))

	wantCounts(t, g, DefaultLimits(), DefaultResolution(), 1, 0)
	wantMarker(t, g, a2, ErrorYoungMother)

	// Removing gm's division merges her with a2's track, so a2 is no
	// longer a young mother. a2 is not linked to either edited position;
	// only the dividing-cell sweep can reach her.
	g.RemoveLink(gm, b1)
	CheckPosition(g, DefaultLimits(), DefaultResolution(), gm, b1)
	wantNoMarker(t, g, a2)
	wantMarker(t, g, b1, ErrorNoPastPosition)
}

func TestCheckLowMotherScore(t *testing.T) {
	g := lineage.NewGraph()
	m := cell(1, 1, 0, 0)
	chain(t, g, m, cell(0, 2, 0, 1))
	chain(t, g, m, cell(2, 2, 0, 1))
	mustSetAttr(t, g, m, "division_probability", 0.05)

	wantCounts(t, g, DefaultLimits(), DefaultResolution(), 1, 0)
	wantMarker(t, g, m, ErrorLowMotherScore)
}

func TestCheckConfidentMotherIsClean(t *testing.T) {
	g := lineage.NewGraph()
	m := cell(1, 1, 0, 0)
	chain(t, g, m, cell(0, 2, 0, 1))
	chain(t, g, m, cell(2, 2, 0, 1))
	mustSetAttr(t, g, m, "division_probability", 0.8)

	wantCounts(t, g, DefaultLimits(), DefaultResolution(), 0, 0)
	wantNoMarker(t, g, m)
}

func TestCheckMissedDivision(t *testing.T) {
	g := lineage.NewGraph()
	a := cell(0, 0, 0, 0)
	b := cell(0, 1, 0, 1)
	c := cell(0, 2, 0, 2)
	d := cell(0, 3, 0, 3)
	chain(t, g, a, b, c, d)
	mustSetAttr(t, g, b, "division_probability", 0.95)

	wantCounts(t, g, DefaultLimits(), DefaultResolution(), 1, 0)
	wantMarker(t, g, b, ErrorPotentiallyShouldBeAMother)
}

func TestCheckMissedDivisionFlagsLastHighScore(t *testing.T) {
	g := lineage.NewGraph()
	a := cell(0, 0, 0, 0)
	b := cell(0, 1, 0, 1)
	c := cell(0, 2, 0, 2)
	d := cell(0, 3, 0, 3)
	chain(t, g, a, b, c, d)
	mustSetAttr(t, g, b, "division_probability", 0.95)
	mustSetAttr(t, g, c, "division_probability", 0.95)

	// Consecutive high scores produce one warning, on the last of them.
	wantCounts(t, g, DefaultLimits(), DefaultResolution(), 1, 0)
	wantNoMarker(t, g, b)
	wantMarker(t, g, c, ErrorPotentiallyShouldBeAMother)
}

func TestCheckRealDivisionSilencesMissedDivision(t *testing.T) {
	g := lineage.NewGraph()
	a := cell(0, 0, 0, 0)
	b := cell(0, 1, 0, 1)
	c := cell(0, 2, 0, 2)
	chain(t, g, a, b, c, cell(0, 1, 0, 3))
	chain(t, g, c, cell(0, 3, 0, 3))
	mustSetAttr(t, g, b, "division_probability", 0.95)

	wantCounts(t, g, DefaultLimits(), DefaultResolution(), 0, 0)
	wantNoMarker(t, g, b)
}

func TestCheckMovedTooFast(t *testing.T) {
	g := lineage.NewGraph()
	a := cell(0, 0, 0, 0)
	b := cell(20, 0, 0, 1)
	chain(t, g, a, b)

	// 20 um in one minute, over the 10 um/min limit.
	wantCounts(t, g, DefaultLimits(), DefaultResolution(), 1, 0)
	wantMarker(t, g, b, ErrorMovedTooFast)
}

func TestCheckDyingCellMayMoveFast(t *testing.T) {
	g := lineage.NewGraph()
	a := cell(0, 0, 0, 0)
	b := cell(20, 0, 0, 1)
	chain(t, g, a, b)
	if err := SetEndMarker(g, b, EndDead); err != nil {
		t.Fatal(err)
	}

	wantCounts(t, g, DefaultLimits(), DefaultResolution(), 0, 0)
	wantNoMarker(t, g, b)
}

func TestCheckSpeedAccountsForResolution(t *testing.T) {
	g := lineage.NewGraph()
	a := cell(0, 0, 0, 0)
	b := cell(20, 0, 0, 1)
	chain(t, g, a, b)

	// Same jump, but with three minutes between frames: under 7 um/min.
	res := DefaultResolution()
	res.TimePointIntervalM = 3
	wantCounts(t, g, DefaultLimits(), res, 0, 0)
	wantNoMarker(t, g, b)
}

func TestCheckSpeedSpansGaps(t *testing.T) {
	g := lineage.NewGraph()
	a := cell(0, 0, 0, 0)
	b := cell(20, 0, 0, 2)
	chain(t, g, a, b)

	// The link skips a time point: 20 um over two minutes is within the
	// limit.
	wantCounts(t, g, DefaultLimits(), DefaultResolution(), 0, 0)
	wantNoMarker(t, g, b)
}

func TestCheckLowLinkScore(t *testing.T) {
	g := lineage.NewGraph()
	a := cell(0, 0, 0, 0)
	b := cell(1, 0, 0, 1)
	chain(t, g, a, b)
	mustSetAttr(t, g, b, "link_probability", 0.05)

	wantCounts(t, g, DefaultLimits(), DefaultResolution(), 1, 0)
	wantMarker(t, g, b, ErrorLowLinkScore)
}

func TestCheckLowLinkScoreIgnoresDeadCells(t *testing.T) {
	g := lineage.NewGraph()
	a := cell(0, 0, 0, 0)
	b := cell(1, 0, 0, 1)
	chain(t, g, a, b)
	mustSetAttr(t, g, b, "link_probability", 0.05)
	if err := SetEndMarker(g, b, EndDead); err != nil {
		t.Fatal(err)
	}

	wantCounts(t, g, DefaultLimits(), DefaultResolution(), 0, 0)
	wantNoMarker(t, g, b)
}

func TestCheckCountsUnlinkedSeparately(t *testing.T) {
	g := lineage.NewGraph()
	chain(t, g, cell(0, 0, 0, 0), cell(0, 1, 0, 1), cell(0, 2, 0, 2))
	q := cell(9, 9, 9, 1)
	mustSetAttr(t, g, q, "intensity", 42.0)

	wantCounts(t, g, DefaultLimits(), DefaultResolution(), 0, 1)
	wantMarker(t, g, q, ErrorNoFuturePosition)
}

func TestCheckWindowCoversAttributeOnlyPositions(t *testing.T) {
	g := lineage.NewGraph()
	a0 := cell(0, 0, 0, 0)
	a1 := cell(0, 1, 0, 1)
	chain(t, g, a0, a1)
	q := cell(9, 9, 9, 2)
	mustSetAttr(t, g, q, "intensity", 42.0)

	// q extends the movie to time point 2, so the tracked chain now ends
	// early, and q itself appears out of nothing.
	wantCounts(t, g, DefaultLimits(), DefaultResolution(), 1, 1)
	wantMarker(t, g, a1, ErrorNoFuturePosition)
	wantMarker(t, g, q, ErrorNoPastPosition)
}

func TestCheckClearsStaleMarkers(t *testing.T) {
	g := lineage.NewGraph()
	chain(t, g, cell(0, 0, 0, 0), cell(0, 1, 0, 1), cell(0, 2, 0, 2))
	q := cell(9, 9, 9, 1)
	if err := SetStartMarker(g, q, StartGoesIntoView); err != nil {
		t.Fatal(err)
	}
	if err := SetEndMarker(g, q, EndOutOfView); err != nil {
		t.Fatal(err)
	}
	if err := SetErrorMarker(g, q, ErrorCellMerge); err != nil {
		t.Fatal(err)
	}

	// A cell that passes through the view: both ends explained, so the
	// stale marker goes away.
	wantCounts(t, g, DefaultLimits(), DefaultResolution(), 0, 0)
	wantNoMarker(t, g, q)
}

func TestCheckPositionOnlyTouchesNeighborhood(t *testing.T) {
	g := lineage.NewGraph()
	chain(t, g, cell(0, 0, 0, 0), cell(0, 1, 0, 1), cell(0, 2, 0, 2))
	b0 := cell(3, 0, 0, 0)
	b1 := cell(3, 1, 0, 1)
	chain(t, g, b0, b1)
	c0 := cell(6, 0, 0, 0)
	c1 := cell(6, 1, 0, 1)
	chain(t, g, c0, c1)

	wantCounts(t, g, DefaultLimits(), DefaultResolution(), 2, 0)
	wantMarker(t, g, b1, ErrorNoFuturePosition)
	wantMarker(t, g, c1, ErrorNoFuturePosition)

	// Fixing one dead end and rechecking it leaves the other alone.
	b2 := cell(3, 2, 0, 2)
	chain(t, g, b1, b2)
	CheckPosition(g, DefaultLimits(), DefaultResolution(), b1, b2)
	wantNoMarker(t, g, b1)
	wantMarker(t, g, c1, ErrorNoFuturePosition)
}
