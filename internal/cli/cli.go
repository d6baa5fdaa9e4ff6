package cli

import (
	"context"       // context carries cancellation into the row loop
	"encoding/json" // json is used to decode JSON template files
	"errors"        // errors maps run results to exit codes
	"fmt"           // fmt is used to create readable error messages
	"io"            // io lets tests capture output
	"os"            // os is used to open files from disk
	"unicode/utf8"  // utf8 validates the delimiter flag

	"cdr.dev/slog/v3"                    // slog is the structured logger
	"cdr.dev/slog/v3/sloggers/sloghuman" // sloghuman renders logs for a terminal
	"github.com/alecthomas/kong"         // kong is the library we use to parse command-line flags

	"github.com/rotor-head/udm-import-update/internal/csvinput"
	"github.com/rotor-head/udm-import-update/internal/generator"
	"github.com/rotor-head/udm-import-update/internal/importer"
	"github.com/rotor-head/udm-import-update/internal/ldifexport"
	"github.com/rotor-head/udm-import-update/internal/udm"
)

// Exit codes returned by ExitCode.
const (
	ExitOK         = 0 // every row was applied
	ExitRowsFailed = 1 // the run finished but some rows failed
	ExitFatal      = 2 // input or invocation error, the run was aborted
)

// Config files read for default flag values, in order.
var configPaths = []string{"/etc/udm_import.json", "~/.udm_import.json"}

///////////////////////////////////////////////////////////////////////////////
// CLI configuration
///////////////////////////////////////////////////////////////////////////////

// CLIConfig is the command tree. Kong uses the struct tags to know which
// commands, arguments and flags exist.
type CLIConfig struct {
	Globals `embed:""`

	Create   CreateCmd   `cmd:"" help:"Create one directory object per CSV row."`
	Modify   ModifyCmd   `cmd:"" help:"Modify one directory object per CSV row and set networkAccess and PasswordRecoveryEmailVerified."`
	Generate GenerateCmd `cmd:"" help:"Write a CSV (or LDIF) file with fake users for trying out imports."`
}

// Globals are flags accepted by every command.
type Globals struct {
	Config  kong.ConfigFlag `help:"JSON file with default flag values." placeholder:"FILE"`
	Verbose bool            `short:"v" help:"Log debug output, including every command line, to stderr."`
	NoColor bool            `name:"no-color" help:"Do not color console output."`
}

// ImportFlags are shared by create and modify.
type ImportFlags struct {
	ObjectType string `arg:"" name:"object_type" help:"UDM module of the objects, e.g. users/user."`
	CSVPath    string `arg:"" name:"csv_path" help:"CSV file; the header row names the properties."`

	Tool       string `help:"Directory management tool to run for every row." default:"udm" env:"UDM_IMPORT_TOOL"`
	ArgStyle   string `name:"arg-style" help:"Argument layout: 'plain' (<verb> <object_type> name=value ...) or 'udm' (<object_type> <verb> --set name=value ...)." enum:"plain,udm" default:"plain"`
	ExtraFlags string `name:"extra-flags" help:"Modified rows that get networkAccess=true and PasswordRecoveryEmailVerified=true: all, none or with-email. A row that sets one of these columns itself keeps its own value." enum:"all,none,with-email" default:"all"`
	IDColumn   string `name:"id-column" help:"Column identifying objects to modify when there is no dn column. Defaults to the module's identifying property: username for users, name for other modules."`
	Delimiter  string `help:"Field delimiter; 'tab' for tab separated files." default:","`
	Encoding   string `help:"Input encoding: auto, utf-8, latin1 or windows-1252." enum:"auto,utf-8,latin1,windows-1252" default:"auto"`
	DryRun     bool   `name:"dry-run" help:"Print the commands instead of running them."`

	LDIFFile string `name:"ldif-file" help:"Write a preview of the changes to this LDIF file instead of running the tool. Attribute names are UDM properties and passwords are left out, so the file is for review, not for ldapadd." type:"path"`
	BaseDN   string `name:"base-dn" help:"Parent DN of objects without a position column (LDIF output)."`
	RDNAttr  string `name:"rdn-attr" help:"Attribute of the relative DN built from the id column (LDIF output). Defaults to uid for users and cn otherwise."`
}

// CreateCmd is "create <object_type> <csv_path>".
type CreateCmd struct {
	ImportFlags `embed:""`
}

// ModifyCmd is "modify <object_type> <csv_path>".
type ModifyCmd struct {
	ImportFlags `embed:""`
}

// GenerateCmd is "generate".
type GenerateCmd struct {
	Count      int    `help:"Number of fake users to generate." default:"10"`
	Seed       int64  `help:"Seed for the fake data; 0 picks a random one." default:"0"`
	Format     string `help:"Output format: 'csv' for an import file, 'ldif' for seeding a test directory." enum:"csv,ldif" default:"csv"`
	Output     string `short:"o" help:"Output file, '-' for stdout." default:"users.csv"`
	MailDomain string `name:"mail-domain" help:"Domain of the generated mailPrimaryAddress values." default:"example.com"`
	SuffixDN   string `name:"suffix-dn" help:"Parent DN of LDIF entries." default:"cn=users,dc=example,dc=com"`
	InputFile  string `name:"input-file" help:"Optional JSON file with fixed column values; missing or empty fields are filled with fake data." type:"existingfile"`
}

// NewCLIConfig is an initializer function for CLIConfig. Defaults live in
// the struct tags and are filled in by kong while parsing.
func NewCLIConfig() *CLIConfig {
	return &CLIConfig{}
}

///////////////////////////////////////////////////////////////////////////////
// Environment
///////////////////////////////////////////////////////////////////////////////

// Env is everything a run touches outside its arguments. Tests replace the
// writers and the runner factory.
type Env struct {
	Stdout    io.Writer
	Stderr    io.Writer
	Exit      func(int)
	NewRunner func(tool string) (udm.Runner, error)
}

// NewEnv is an initializer function for Env that talks to the real process.
func NewEnv() *Env {
	return &Env{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Exit:   os.Exit,
		NewRunner: func(tool string) (udm.Runner, error) {
			return udm.NewExecRunner(tool)
		},
	}
}

// runContext is bound into the command Run methods by kong.
type runContext struct {
	ctx     context.Context
	env     *Env
	globals *Globals
}

func (rc *runContext) logger() slog.Logger {
	logger := slog.Make(sloghuman.Sink(rc.env.Stderr))
	if rc.globals.Verbose {
		return logger.Leveled(slog.LevelDebug)
	}
	return logger.Leveled(slog.LevelInfo)
}

///////////////////////////////////////////////////////////////////////////////
// Commands
///////////////////////////////////////////////////////////////////////////////

// Run creates one object per row.
func (c *CreateCmd) Run(rc *runContext) error {
	return runImport(rc, udm.VerbCreate, &c.ImportFlags)
}

// Run modifies one object per row.
func (c *ModifyCmd) Run(rc *runContext) error {
	return runImport(rc, udm.VerbModify, &c.ImportFlags)
}

// runConfig turns the flags into an importer.RunConfig.
func (f *ImportFlags) runConfig(verb udm.Verb) (*importer.RunConfig, error) {
	cfg := importer.NewRunConfig()
	cfg.Verb = verb
	cfg.ObjectType = f.ObjectType
	cfg.Path = f.CSVPath
	cfg.IDColumn = f.idColumn()

	policy, err := udm.ParseExtraFlagPolicy(f.ExtraFlags)
	if err != nil {
		return nil, err
	}
	cfg.Policy = policy

	delim, err := parseDelimiter(f.Delimiter)
	if err != nil {
		return nil, err
	}
	cfg.CSV.Delimiter = delim

	enc, err := csvinput.ParseEncoding(f.Encoding)
	if err != nil {
		return nil, err
	}
	cfg.CSV.Encoding = enc
	return cfg, nil
}

// idColumn is --id-column or the identifying property of the object type.
func (f *ImportFlags) idColumn() string {
	if f.IDColumn != "" {
		return f.IDColumn
	}
	return udm.IdentifyingProperty(f.ObjectType)
}

func parseDelimiter(s string) (rune, error) {
	switch s {
	case "tab", `\t`:
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || size != len(s) || r == '"' || r == '\n' || r == '\r' {
		return 0, fmt.Errorf("invalid delimiter %q", s)
	}
	return r, nil
}

// applier picks the backend for a run. The returned close function is nil
// unless the backend needs flushing.
func (f *ImportFlags) applier(rc *runContext, logger slog.Logger) (importer.Applier, func() error, error) {
	if f.LDIFFile != "" {
		if f.DryRun {
			return nil, nil, fmt.Errorf("--dry-run and --ldif-file cannot be combined")
		}
		cfg := ldifexport.NewConfig()
		cfg.Path = f.LDIFFile
		cfg.BaseDN = f.BaseDN
		cfg.IDColumn = f.idColumn()
		cfg.RDNAttr = f.RDNAttr
		if cfg.RDNAttr == "" {
			cfg.RDNAttr = udm.RDNAttribute(f.ObjectType)
		}
		w, err := ldifexport.NewWriter(cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info(rc.ctx, "writing LDIF preview, the directory tool is not run",
			slog.F("path", f.LDIFFile),
			slog.F("ignored_tool", f.Tool),
			slog.F("ignored_arg_style", f.ArgStyle),
		)
		return w, w.Close, nil
	}

	style, err := udm.ParseArgStyle(f.ArgStyle)
	if err != nil {
		return nil, nil, err
	}
	builder := udm.NewCommandBuilder()
	builder.Style = style
	builder.IDColumn = f.idColumn()

	var runner udm.Runner
	if f.DryRun {
		runner = udm.NewDryRunRunner(f.Tool, rc.env.Stdout)
	} else {
		runner, err = rc.env.NewRunner(f.Tool)
		if err != nil {
			return nil, nil, err
		}
	}
	return udm.NewExecutor(f.Tool, runner, builder, logger), nil, nil
}

func runImport(rc *runContext, verb udm.Verb, f *ImportFlags) error {
	logger := rc.logger()

	cfg, err := f.runConfig(verb)
	if err != nil {
		return err
	}
	applier, closeFn, err := f.applier(rc, logger)
	if err != nil {
		return err
	}

	reporter := importer.NewReporter(rc.env.Stdout)
	if rc.globals.NoColor {
		reporter.DisableColor()
	}

	summary, err := importer.New(applier, reporter, logger).Run(rc.ctx, cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		if err := closeFn(); err != nil {
			return err
		}
	}
	return summary.Err()
}

// loadTemplateFromFile reads a JSON file at the provided path and decodes it
// into a generator.AttributeTemplate.
//
// The JSON file might look like:
//
//	{
//	  "username": "student",
//	  "password": "univention",
//	  "PasswordRecoveryEmail": "helpdesk@example.com"
//	}
func loadTemplateFromFile(path string) (*generator.AttributeTemplate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file %q: %w", path, err)
	}
	defer f.Close()

	tmpl := generator.NewAttributeTemplate()
	if err := json.NewDecoder(f).Decode(tmpl); err != nil {
		return nil, fmt.Errorf("failed to parse JSON in %q: %w", path, err)
	}
	return tmpl, nil
}

// Run writes the sample file.
func (c *GenerateCmd) Run(rc *runContext) error {
	runCfg := generator.NewRunConfig()
	runCfg.Count = c.Count
	runCfg.Seed = c.Seed
	runCfg.Format = c.Format
	runCfg.OutputFile = c.Output
	runCfg.MailDomain = c.MailDomain
	runCfg.SuffixDN = c.SuffixDN

	if c.InputFile != "" {
		tmpl, err := loadTemplateFromFile(c.InputFile)
		if err != nil {
			return err
		}
		runCfg.Template = tmpl
	}

	if err := generator.Run(runCfg, rc.env.Stdout); err != nil {
		return err
	}
	if c.Output != "-" {
		rc.logger().Info(rc.ctx, "sample file written",
			slog.F("path", c.Output),
			slog.F("count", c.Count),
		)
	}
	return nil
}

///////////////////////////////////////////////////////////////////////////////
// Top-level CLI runner
///////////////////////////////////////////////////////////////////////////////

// Run parses args (without the program name) and runs the selected command.
// A run whose rows partly failed returns an error matching
// importer.ErrRowsFailed.
func Run(ctx context.Context, env *Env, args []string) error {
	cfg := NewCLIConfig()

	parser, err := kong.New(cfg,
		kong.Name("udm_import"),
		kong.Description("Create or modify UCS directory objects from a CSV file, one directory tool invocation per row."),
		kong.Writers(env.Stdout, env.Stderr),
		kong.Exit(env.Exit),
		kong.Configuration(kong.JSON, configPaths...),
	)
	if err != nil {
		return fmt.Errorf("failed to build command line parser: %w", err)
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	return kctx.Run(&runContext{
		ctx:     ctx,
		env:     env,
		globals: &cfg.Globals,
	})
}

// ExitCode maps the result of Run to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, importer.ErrRowsFailed):
		return ExitRowsFailed
	default:
		return ExitFatal
	}
}
