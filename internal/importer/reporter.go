package importer

import (
	"fmt" // fmt is used to print human-readable output to the terminal
	"io"  // io lets tests capture the console output

	"github.com/fatih/color" // color paints good rows green and failures red

	"github.com/rotor-head/udm-import-update/internal/udm"
)

// Reporter prints per-row status and the final summary for a person watching
// the import.
type Reporter struct {
	out  io.Writer
	good *color.Color
	bad  *color.Color
}

// NewReporter writes to out. Colors follow color.NoColor, which is set when
// out is not a terminal.
func NewReporter(out io.Writer) *Reporter {
	return &Reporter{
		out:  out,
		good: color.New(color.FgGreen),
		bad:  color.New(color.FgRed),
	}
}

// DisableColor turns colored output off for this reporter.
func (r *Reporter) DisableColor() {
	r.good.DisableColor()
	r.bad.DisableColor()
}

///////////////////////////////////////////////////////////////////////////////
// Console lines
///////////////////////////////////////////////////////////////////////////////

// labels returns the progressive and past tense of verb.
func labels(verb udm.Verb) (string, string) {
	switch verb {
	case udm.VerbModify:
		return "Modifying", "Modified"
	default:
		return "Creating", "Created"
	}
}

// Start announces the run.
func (r *Reporter) Start(verb udm.Verb, objectType string) {
	doing, _ := labels(verb)
	fmt.Fprintf(r.out, "%s %s objects\n", doing, objectType)
}

// RowDone reports an applied row.
func (r *Reporter) RowDone(verb udm.Verb, line int, name string) {
	_, done := labels(verb)
	if name == "" {
		r.good.Fprintf(r.out, "%s line %d\n", done, line)
		return
	}
	r.good.Fprintf(r.out, "%s line %d: %s\n", done, line, name)
}

// RowFailed reports a row that was skipped.
func (r *Reporter) RowFailed(line int, err error) {
	r.bad.Fprintf(r.out, "Failed line %d: %v\n", line, err)
}

// Finish prints the summary line, red if any row failed.
func (r *Reporter) Finish(verb udm.Verb, objectType string, s *Summary) {
	_, done := labels(verb)
	c := r.good
	if !s.OK() {
		c = r.bad
	}
	c.Fprintf(r.out, "%s %d %s objects. %d errors.\n", done, s.Succeeded, objectType, s.Failed)
}
