package udm

import (
	"fmt"     // fmt is used to create readable error messages
	"strings" // strings splits multi-valued cells
)

// ArgStyle selects how a Change is laid out on the tool's command line.
type ArgStyle string

const (
	// ArgStylePlain is "<verb> <object_type> name=value ...".
	ArgStylePlain ArgStyle = "plain"
	// ArgStyleUDM is the univention-directory-manager syntax
	// "<object_type> <verb> [--dn ...] --set name=value ...".
	ArgStyleUDM ArgStyle = "udm"
)

// ParseArgStyle validates a style name.
func ParseArgStyle(s string) (ArgStyle, error) {
	switch ArgStyle(s) {
	case ArgStylePlain, ArgStyleUDM:
		return ArgStyle(s), nil
	default:
		return "", fmt.Errorf("unknown argument style %q", s)
	}
}

///////////////////////////////////////////////////////////////////////////////
// Command lines
///////////////////////////////////////////////////////////////////////////////

// CommandBuilder converts changes to argument lists.
type CommandBuilder struct {
	Style    ArgStyle
	IDColumn string // IDColumn locates objects to modify when there is no dn column
}

// NewCommandBuilder returns a builder for the plain style keyed on
// "username". Callers importing other object types set IDColumn from
// IdentifyingProperty.
func NewCommandBuilder() *CommandBuilder {
	return &CommandBuilder{
		Style:    ArgStylePlain,
		IDColumn: "username",
	}
}

// Args returns the arguments for change, not including the tool itself.
func (b *CommandBuilder) Args(change Change) ([]string, error) {
	switch b.Style {
	case ArgStylePlain, "":
		return plainArgs(change), nil
	case ArgStyleUDM:
		return b.udmArgs(change)
	default:
		return nil, fmt.Errorf("unknown argument style %q", b.Style)
	}
}

func plainArgs(change Change) []string {
	args := make([]string, 0, len(change.Assignments)+2)
	args = append(args, string(change.Verb), change.ObjectType)
	for _, a := range change.Assignments {
		args = append(args, a.String())
	}
	return args
}

func (b *CommandBuilder) udmArgs(change Change) ([]string, error) {
	args := []string{change.ObjectType, string(change.Verb)}

	if dn, ok := change.Get(ColumnDN); ok {
		args = append(args, "--dn", dn)
	} else if change.Verb == VerbModify {
		id, ok := change.Get(b.IDColumn)
		if !ok {
			return nil, fmt.Errorf("line %d: neither %q nor %q is set", change.Line, ColumnDN, b.IDColumn)
		}
		args = append(args, "--filter", b.IDColumn+"="+id)
	}

	for _, a := range change.Assignments {
		switch a.Name {
		case ColumnDN:
		case ColumnPosition:
			args = append(args, "--position", a.Value)
		case ColumnSuperordinate:
			args = append(args, "--superordinate", a.Value)
		case ColumnOptions:
			for _, o := range splitList(a.Value, ",") {
				args = append(args, "--option", o)
			}
		case ColumnPolicies:
			for _, p := range splitList(a.Value, "|") {
				args = append(args, "--policy-reference", p)
			}
		default:
			args = append(args, "--set", a.String())
		}
	}
	return args, nil
}

// splitList splits a multi-valued cell. Policy DNs contain commas, so
// policies are separated by "|" and options by ",".
func splitList(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
