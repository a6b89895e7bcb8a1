// Command lineage-check loads tracking data and reports consistency
// problems, rule violations and likely tracking errors.
//
// Data comes either from a file (-file, with -format selecting the codec)
// or from a stored experiment (-experiment, using the configured storage
// driver). The exit status is 0 when the data passes, 1 when the check
// fails and 2 on usage or I/O errors.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/joho/godotenv"

	"lineagecore/internal/core"
	"lineagecore/internal/imports"
	"lineagecore/pkg/analysis"
	"lineagecore/pkg/lineage"
	"lineagecore/pkg/nodelink"
)

var exitFunc = os.Exit

func main() {
	exitFunc(cli(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	file       string
	format     string
	experiment string
	limitsPath string
	minTime    int
	maxTime    int
	strict     bool
	verbose    bool
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("lineage-check", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts options
	fs.StringVar(&opts.file, "file", "", "tracking file to check")
	fs.StringVar(&opts.format, "format", "nodelink", "file format: nodelink, ctc or tracklist")
	fs.StringVar(&opts.experiment, "experiment", "", "stored experiment to check instead of a file")
	fs.StringVar(&opts.limitsPath, "limits", "", "YAML file with error finder limits")
	fs.IntVar(&opts.minTime, "min", math.MinInt, "first time point of the window to check")
	fs.IntVar(&opts.maxTime, "max", math.MaxInt, "last time point of the window to check")
	fs.BoolVar(&opts.strict, "strict", false, "treat rule violations as blocking and fail on them")
	fs.BoolVar(&opts.verbose, "v", false, "list every violation and flagged position")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	rep, err := run(opts)
	if err != nil {
		fmt.Fprintf(stderr, "lineage-check: %v\n", err)
		return 2
	}
	rep.print(stdout, opts.verbose)
	if rep.failed(opts.strict) {
		return 1
	}
	return 0
}

func run(opts options) (report, error) {
	if (opts.file == "") == (opts.experiment == "") {
		return report{}, fmt.Errorf("exactly one of -file or -experiment is required")
	}

	engine := core.NewDefaultRulesEngine()
	if opts.strict {
		engine = core.NewStrictRulesEngine()
	}

	var exp lineage.Experiment
	if opts.experiment != "" {
		loaded, err := loadExperiment(opts.experiment, engine)
		if err != nil {
			return report{}, err
		}
		exp = loaded
	} else {
		g, err := loadFile(opts.file, opts.format, opts.minTime, opts.maxTime)
		if err != nil {
			return report{}, err
		}
		exp = lineage.Experiment{Name: filepath.Base(opts.file), Graph: g}
	}
	if exp.Graph == nil {
		exp.Graph = lineage.NewGraph()
	}
	g := exp.Graph

	rep := report{
		name:      exp.Name,
		tracks:    g.TrackCount(),
		positions: g.PositionCount(),
		links:     g.LinkCount(),
		sanity:    g.DebugSanityCheck(),
	}
	for _, track := range g.Tracks() {
		if track.WillDivide() {
			rep.divisions++
		}
	}

	result, err := engine.Evaluate(context.Background(), singleView{exp}, []lineage.Change{{
		Entity: lineage.EntityExperiment,
		Action: lineage.ActionUpdate,
		After:  exp.Summary(),
	}})
	if err != nil {
		return report{}, fmt.Errorf("evaluate rules: %w", err)
	}
	rep.violations = result.Violations

	limits, resolution := analysis.DefaultLimits(), analysis.DefaultResolution()
	if opts.limitsPath != "" {
		limits, resolution, err = analysis.LoadLimits(opts.limitsPath)
		if err != nil {
			return report{}, err
		}
	}
	rep.errored, rep.unlinked = analysis.Check(g, limits, resolution)
	for _, p := range analysis.ErroredPositions(g, opts.minTime, opts.maxTime) {
		if code, ok := analysis.ErrorMarkerOf(g, p); ok {
			rep.flagged = append(rep.flagged, flaggedPosition{pos: p, code: code})
		}
	}
	sort.Slice(rep.flagged, func(i, j int) bool {
		return lessPosition(rep.flagged[i].pos, rep.flagged[j].pos)
	})
	return rep, nil
}

// loadExperiment reads one experiment from the configured storage backend.
// A .env file in the working directory supplies the driver settings when
// the environment does not.
func loadExperiment(name string, engine *core.RulesEngine) (lineage.Experiment, error) {
	_ = godotenv.Load()
	store, err := core.OpenPersistentStore(engine)
	if err != nil {
		return lineage.Experiment{}, fmt.Errorf("open store: %w", err)
	}
	if provider, ok := store.(interface{ DB() *sql.DB }); ok {
		defer provider.DB().Close()
	}
	exp, ok := store.GetExperiment(name)
	if !ok {
		return lineage.Experiment{}, fmt.Errorf("experiment %q not found", name)
	}
	return exp, nil
}

func loadFile(path, format string, minTime, maxTime int) (*lineage.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch format {
	case "nodelink":
		doc, err := nodelink.Read(f)
		if err != nil {
			return nil, err
		}
		return nodelink.DecodeRange(doc, minTime, maxTime)
	case "ctc":
		return imports.ReadCTC(f)
	case "tracklist":
		return imports.ReadTrackList(f)
	default:
		return nil, fmt.Errorf("unknown format %q (want nodelink, ctc or tracklist)", format)
	}
}

// singleView exposes one experiment to the rules engine, standing in for a
// store snapshot when checking data loaded from a file.
type singleView struct {
	exp lineage.Experiment
}

func (v singleView) ListExperiments() []lineage.Experiment { return []lineage.Experiment{v.exp} }

func (v singleView) FindExperiment(name string) (lineage.Experiment, bool) {
	if name != v.exp.Name {
		return lineage.Experiment{}, false
	}
	return v.exp, true
}

type flaggedPosition struct {
	pos  lineage.Position
	code analysis.Error
}

type report struct {
	name       string
	tracks     int
	positions  int
	links      int
	divisions  int
	sanity     error
	violations []lineage.Violation
	errored    int
	unlinked   int
	flagged    []flaggedPosition
}

func (r report) blocking() int {
	n := 0
	for _, v := range r.violations {
		if v.Severity == lineage.SeverityBlock {
			n++
		}
	}
	return n
}

func (r report) failed(strict bool) bool {
	if r.sanity != nil {
		return true
	}
	return strict && r.blocking() > 0
}

func (r report) print(w io.Writer, verbose bool) {
	fmt.Fprintf(w, "%s: %d tracks, %d positions, %d links, %d divisions\n",
		r.name, r.tracks, r.positions, r.links, r.divisions)
	if r.sanity != nil {
		fmt.Fprintf(w, "consistency: %v\n", r.sanity)
	} else {
		fmt.Fprintln(w, "consistency: ok")
	}

	fmt.Fprintf(w, "rule violations: %d (%d blocking)\n", len(r.violations), r.blocking())
	if verbose {
		for _, v := range r.violations {
			fmt.Fprintf(w, "  [%s] %s: %s\n", v.Severity, v.Rule, v.Message)
		}
	}

	fmt.Fprintf(w, "tracking errors: %d on tracked cells, %d unlinked detections\n",
		r.errored, r.unlinked)
	counts := make(map[analysis.Error]int)
	for _, f := range r.flagged {
		counts[f.code]++
	}
	codes := make([]analysis.Error, 0, len(counts))
	for code := range counts {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool {
		if counts[codes[i]] != counts[codes[j]] {
			return counts[codes[i]] > counts[codes[j]]
		}
		return codes[i] < codes[j]
	})
	for _, code := range codes {
		fmt.Fprintf(w, "  %dx %s\n", counts[code], code.Message())
	}
	if verbose {
		for _, f := range r.flagged {
			fmt.Fprintf(w, "  %s: %s\n", f.pos, f.code.Message())
		}
	}
}

func lessPosition(a, b lineage.Position) bool {
	switch {
	case a.T != b.T:
		return a.T < b.T
	case a.X != b.X:
		return a.X < b.X
	case a.Y != b.Y:
		return a.Y < b.Y
	default:
		return a.Z < b.Z
	}
}
