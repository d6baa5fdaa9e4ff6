// Package ldifexport writes import changes to an LDIF file instead of
// sending them to the directory, so a run can be reviewed before it is made.
//
// The records are a preview, not a loadable export: attribute names are UDM
// property names (username, lastname, networkAccess), add records carry no
// objectClass and passwords are left out. UDM maps properties to LDAP
// attributes when the real import runs.
package ldifexport

import (
	"context" // context is part of the applier interface
	"fmt"     // fmt is used to create readable error messages
	"os"      // os writes the finished file

	"cdr.dev/slog/v3"              // slog is the structured logger
	"github.com/go-ldap/ldap/v3"   // ldap/v3 provides the add/modify request types
	ldif "github.com/go-ldap/ldif" // ldif turns those requests into LDIF text

	"github.com/rotor-head/udm-import-update/internal/udm"
)

// Header is written at the top of every preview file.
const Header = "# udm_import preview: attribute names are UDM properties, passwords are omitted.\n" +
	"# Review only, this file is not meant for ldapadd or ldapmodify.\n"

// passwordProperty is never written to the preview.
const passwordProperty = "password"

///////////////////////////////////////////////////////////////////////////////
// Configuration
///////////////////////////////////////////////////////////////////////////////

// Config holds what is needed to place rows in the tree.
type Config struct {
	Path     string // Path of the LDIF file to write
	BaseDN   string // BaseDN is the parent of objects whose row has no position
	IDColumn string // IDColumn holds the value of the relative DN
	RDNAttr  string // RDNAttr is the attribute name used in the relative DN
}

// NewConfig returns the defaults for user objects: uid=<username>,<base>.
func NewConfig() *Config {
	return &Config{
		Path:     "udm_import.ldif",
		IDColumn: "username",
		RDNAttr:  "uid",
	}
}

///////////////////////////////////////////////////////////////////////////////
// Writer
///////////////////////////////////////////////////////////////////////////////

// Writer collects one LDAP request per change and writes them on Close.
type Writer struct {
	cfg      *Config
	logger   slog.Logger
	requests []interface{}
}

// NewWriter validates cfg and returns an empty Writer.
func NewWriter(cfg *Config, logger slog.Logger) (*Writer, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("LDIF file path must not be empty")
	}
	if cfg.BaseDN != "" {
		if _, err := ldap.ParseDN(cfg.BaseDN); err != nil {
			return nil, fmt.Errorf("invalid base DN %q: %w", cfg.BaseDN, err)
		}
	}
	return &Writer{
		cfg:    cfg,
		logger: logger.Named("ldif"),
	}, nil
}

// Len is the number of requests collected so far.
func (w *Writer) Len() int {
	return len(w.requests)
}

// Apply converts change into an add or modify request. A row that does not
// yield a valid DN fails on its own.
func (w *Writer) Apply(ctx context.Context, change udm.Change) error {
	dn, err := w.dnFor(change)
	if err != nil {
		return fmt.Errorf("%w: line %d: %v", udm.ErrRowFailed, change.Line, err)
	}

	switch change.Verb {
	case udm.VerbCreate:
		req := ldap.NewAddRequest(dn, nil)
		for _, a := range previewed(change.Assignments) {
			req.Attribute(a.Name, []string{a.Value})
		}
		w.requests = append(w.requests, req)
	case udm.VerbModify:
		req := ldap.NewModifyRequest(dn, nil)
		for _, a := range previewed(change.Assignments) {
			req.Replace(a.Name, []string{a.Value})
		}
		w.requests = append(w.requests, req)
	default:
		return fmt.Errorf("unsupported operation %q", change.Verb)
	}

	w.logger.Debug(ctx, "queued LDIF record",
		slog.F("line", change.Line),
		slog.F("dn", dn),
		slog.F("verb", change.Verb),
	)
	return nil
}

// previewed drops the addressing columns and the password from assignments.
func previewed(assignments []udm.Assignment) []udm.Assignment {
	out := make([]udm.Assignment, 0, len(assignments))
	for _, a := range assignments {
		if udm.IsNonProperty(a.Name) || a.Name == passwordProperty {
			continue
		}
		out = append(out, a)
	}
	return out
}

// dnFor returns the row's dn column when set, otherwise
// <RDNAttr>=<IDColumn value>,<position or BaseDN>.
func (w *Writer) dnFor(change udm.Change) (string, error) {
	if dn, ok := change.Get(udm.ColumnDN); ok {
		if _, err := ldap.ParseDN(dn); err != nil {
			return "", fmt.Errorf("invalid dn %q: %w", dn, err)
		}
		return dn, nil
	}

	id, ok := change.Get(w.cfg.IDColumn)
	if !ok {
		return "", fmt.Errorf("column %q is empty", w.cfg.IDColumn)
	}
	parent, ok := change.Get(udm.ColumnPosition)
	if !ok {
		parent = w.cfg.BaseDN
	}
	if parent == "" {
		return "", fmt.Errorf("no %q column and no base DN configured", udm.ColumnPosition)
	}

	dn := fmt.Sprintf("%s=%s,%s", w.cfg.RDNAttr, ldap.EscapeDN(id), parent)
	if _, err := ldap.ParseDN(dn); err != nil {
		return "", fmt.Errorf("invalid dn %q: %w", dn, err)
	}
	return dn, nil
}

// Close writes Header and every collected request to the file. An import
// with no successful rows still produces a file holding only the header.
func (w *Writer) Close() error {
	ldifData, err := ldif.ToLDIF(w.requests...)
	if err != nil {
		return fmt.Errorf("failed to build LDIF struct: %w", err)
	}

	ldifText, err := ldif.Marshal(ldifData)
	if err != nil {
		return fmt.Errorf("failed to marshal LDIF: %w", err)
	}

	if err := os.WriteFile(w.cfg.Path, []byte(Header+ldifText), 0o644); err != nil {
		return fmt.Errorf("failed to write LDIF file: %w", err)
	}
	return nil
}
