// Package importer applies every row of a CSV file to the directory, one row
// at a time.
package importer

import (
	"context" // context stops the row loop when the run is cancelled
	"errors"  // errors sorts row failures from fatal errors
	"fmt"     // fmt is used to create readable error messages
	"io"      // io marks the end of the CSV file

	"cdr.dev/slog/v3" // slog is the structured logger

	"github.com/rotor-head/udm-import-update/internal/csvinput"
	"github.com/rotor-head/udm-import-update/internal/udm"
)

var (
	// ErrRowsFailed is returned by callers that turn a Summary with failed
	// rows into an error.
	ErrRowsFailed = errors.New("one or more rows failed")
	// ErrPrecondition is returned when the header does not suit the verb.
	ErrPrecondition = errors.New("precondition failed")
)

///////////////////////////////////////////////////////////////////////////////
// Configuration
///////////////////////////////////////////////////////////////////////////////

// RunConfig describes one import run.
type RunConfig struct {
	Verb       udm.Verb            // Verb applied to every row
	ObjectType string              // ObjectType is passed through, e.g. "users/user"
	Path       string              // Path of the CSV file
	CSV        *csvinput.Options   // CSV controls delimiter and encoding
	Policy     udm.ExtraFlagPolicy // Policy picks the rows that get the extra flags
	IDColumn   string              // IDColumn identifies objects to modify; empty derives it from ObjectType
}

// NewRunConfig returns a config with the defaults used by the CLI.
func NewRunConfig() *RunConfig {
	return &RunConfig{
		Verb:   udm.VerbCreate,
		CSV:    csvinput.NewOptions(),
		Policy: udm.ExtraFlagsAll,
	}
}

// IdentifyingColumn returns IDColumn, or the identifying property of
// ObjectType when IDColumn is empty.
func (cfg *RunConfig) IdentifyingColumn() string {
	if cfg.IDColumn != "" {
		return cfg.IDColumn
	}
	return udm.IdentifyingProperty(cfg.ObjectType)
}

func (cfg *RunConfig) validate() error {
	if _, err := udm.ParseVerb(string(cfg.Verb)); err != nil {
		return err
	}
	if cfg.ObjectType == "" {
		return fmt.Errorf("object type must not be empty")
	}
	if cfg.Path == "" {
		return fmt.Errorf("CSV path must not be empty")
	}
	if _, err := udm.ParseExtraFlagPolicy(string(cfg.Policy)); err != nil {
		return err
	}
	return nil
}

///////////////////////////////////////////////////////////////////////////////
// Results
///////////////////////////////////////////////////////////////////////////////

// Applier sends one change to the directory. Errors matching
// udm.ErrRowFailed fail only that row; anything else stops the run.
type Applier interface {
	Apply(ctx context.Context, change udm.Change) error
}

// Failure records why a row was not applied.
type Failure struct {
	Line   int
	Reason string
}

// NewFailure is an initializer function for Failure.
func NewFailure(line int, err error) Failure {
	return Failure{Line: line, Reason: err.Error()}
}

// Summary is the tally of a finished run.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Failures  []Failure
}

// NewSummary returns an empty tally.
func NewSummary() *Summary {
	return &Summary{}
}

// OK reports whether every row was applied.
func (s *Summary) OK() bool {
	return s.Failed == 0
}

// Err returns ErrRowsFailed when any row failed.
func (s *Summary) Err() error {
	if s.OK() {
		return nil
	}
	return fmt.Errorf("%w: %d of %d", ErrRowsFailed, s.Failed, s.Total)
}

func (s *Summary) fail(line int, err error) {
	s.Total++
	s.Failed++
	s.Failures = append(s.Failures, NewFailure(line, err))
}

///////////////////////////////////////////////////////////////////////////////
// Runner
///////////////////////////////////////////////////////////////////////////////

// Importer runs imports with a fixed applier and reporter.
type Importer struct {
	Applier  Applier
	Reporter *Reporter
	Logger   slog.Logger
}

// New returns an Importer. A nil reporter discards console output.
func New(applier Applier, reporter *Reporter, logger slog.Logger) *Importer {
	if reporter == nil {
		reporter = NewReporter(io.Discard)
	}
	return &Importer{
		Applier:  applier,
		Reporter: reporter,
		Logger:   logger.Named("importer"),
	}
}

// Run reads cfg.Path and applies its rows in file order, each one finished
// before the next is read. Input errors and applier errors that are not row
// failures abort the run and are returned; row failures are only counted.
func (im *Importer) Run(ctx context.Context, cfg *RunConfig) (*Summary, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	reader, err := csvinput.Open(cfg.Path, cfg.CSV)
	if err != nil {
		return nil, err
	}
	im.Logger.Info(ctx, "reading CSV file",
		slog.F("path", cfg.Path),
		slog.F("encoding", reader.Encoding()),
		slog.F("columns", reader.Header()),
	)

	if err := checkPreconditions(cfg, reader); err != nil {
		return nil, err
	}

	im.Reporter.Start(cfg.Verb, cfg.ObjectType)
	summary := NewSummary()
	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		row, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		var rowErr *csvinput.RowError
		if errors.As(err, &rowErr) {
			summary.fail(rowErr.Line, rowErr)
			im.Reporter.RowFailed(rowErr.Line, rowErr.Err)
			continue
		}
		if err != nil {
			return summary, err
		}

		change := udm.NewChange(cfg.Verb, cfg.ObjectType, cfg.Policy, row)
		err = im.Applier.Apply(ctx, change)
		switch {
		case err == nil:
			summary.Total++
			summary.Succeeded++
			im.Reporter.RowDone(cfg.Verb, row.Line, describe(cfg, row))
		case errors.Is(err, udm.ErrRowFailed):
			summary.fail(row.Line, err)
			im.Reporter.RowFailed(row.Line, err)
		default:
			return summary, fmt.Errorf("line %d: %w", row.Line, err)
		}
	}

	im.Reporter.Finish(cfg.Verb, cfg.ObjectType, summary)
	im.Logger.Info(ctx, "import finished",
		slog.F("total", summary.Total),
		slog.F("succeeded", summary.Succeeded),
		slog.F("failed", summary.Failed),
	)
	return summary, nil
}

// checkPreconditions rejects headers that cannot work for the verb before
// any row is applied.
func checkPreconditions(cfg *RunConfig, reader *csvinput.Reader) error {
	switch cfg.Verb {
	case udm.VerbCreate:
		if reader.HasColumn(udm.ColumnDN) {
			return fmt.Errorf("%w: column %q not allowed with operation %q", ErrPrecondition, udm.ColumnDN, cfg.Verb)
		}
	case udm.VerbModify:
		id := cfg.IdentifyingColumn()
		if !reader.HasColumn(id) && !reader.HasColumn(udm.ColumnDN) {
			return fmt.Errorf("%w: column %q or %q required with operation %q on %s", ErrPrecondition, id, udm.ColumnDN, cfg.Verb, cfg.ObjectType)
		}
	}
	return nil
}

// describe names a row for console output.
func describe(cfg *RunConfig, row *csvinput.Row) string {
	if dn := row.Get(udm.ColumnDN); dn != "" {
		return dn
	}
	return row.Get(cfg.IdentifyingColumn())
}
