// Package udm turns CSV rows into invocations of the Univention directory
// manager command line tool.
package udm

import (
	"fmt" // fmt is used to create readable error messages

	"github.com/rotor-head/udm-import-update/internal/csvinput"
)

///////////////////////////////////////////////////////////////////////////////
// Verbs and object types
///////////////////////////////////////////////////////////////////////////////

// Verb is the directory operation applied to every row of a run.
type Verb string

const (
	VerbCreate Verb = "create"
	VerbModify Verb = "modify"
)

// ParseVerb accepts "create" and "modify" and nothing else.
func ParseVerb(s string) (Verb, error) {
	switch Verb(s) {
	case VerbCreate, VerbModify:
		return Verb(s), nil
	default:
		return "", fmt.Errorf("unsupported operation %q (want %q or %q)", s, VerbCreate, VerbModify)
	}
}

// IdentifyingProperty returns the property UDM looks objects of objectType up
// by: "username" for user modules and "name" for groups, computers, shares,
// containers and most other modules. Modules that use something else need
// an explicit id column.
func IdentifyingProperty(objectType string) string {
	switch objectType {
	case "users/user", "users/ldap":
		return "username"
	default:
		return "name"
	}
}

// RDNAttribute returns the LDAP attribute of the relative DN of objectType.
func RDNAttribute(objectType string) string {
	if IdentifyingProperty(objectType) == "username" {
		return "uid"
	}
	return "cn"
}

///////////////////////////////////////////////////////////////////////////////
// Assignments
///////////////////////////////////////////////////////////////////////////////

// Flags set on modified objects in addition to the row's own columns.
const (
	NetworkAccessProperty = "networkAccess"
	EmailVerifiedProperty = "PasswordRecoveryEmailVerified"
	RecoveryEmailProperty = "PasswordRecoveryEmail"
	extraFlagValue        = "true"
)

// Columns that address or place an object rather than set one of its
// properties.
const (
	ColumnDN            = "dn"
	ColumnOptions       = "options"
	ColumnPolicies      = "policies"
	ColumnPosition      = "position"
	ColumnSuperordinate = "superordinate"
)

// IsNonProperty reports whether column is one of the addressing columns.
func IsNonProperty(column string) bool {
	switch column {
	case ColumnDN, ColumnOptions, ColumnPolicies, ColumnPosition, ColumnSuperordinate:
		return true
	}
	return false
}

// Assignment is one name=value pair handed to the directory tool.
type Assignment struct {
	Name  string
	Value string
}

// NewAssignment is an initializer function for Assignment.
func NewAssignment(name, value string) Assignment {
	return Assignment{Name: name, Value: value}
}

// String renders the assignment as name=value.
func (a Assignment) String() string {
	return a.Name + "=" + a.Value
}

// BuildAssignments returns one assignment per non-empty value of row, in
// column order.
func BuildAssignments(row *csvinput.Row) []Assignment {
	columns := row.Columns()
	values := row.Values()
	out := make([]Assignment, 0, len(columns))
	for i, name := range columns {
		if values[i] == "" {
			continue
		}
		out = append(out, NewAssignment(name, values[i]))
	}
	return out
}

///////////////////////////////////////////////////////////////////////////////
// Extra flags
///////////////////////////////////////////////////////////////////////////////

// ExtraFlagPolicy decides which modified rows get networkAccess and
// PasswordRecoveryEmailVerified set to true.
type ExtraFlagPolicy string

const (
	ExtraFlagsAll       ExtraFlagPolicy = "all"
	ExtraFlagsNone      ExtraFlagPolicy = "none"
	ExtraFlagsWithEmail ExtraFlagPolicy = "with-email"
)

// ParseExtraFlagPolicy validates a policy name.
func ParseExtraFlagPolicy(s string) (ExtraFlagPolicy, error) {
	switch ExtraFlagPolicy(s) {
	case ExtraFlagsAll, ExtraFlagsNone, ExtraFlagsWithEmail:
		return ExtraFlagPolicy(s), nil
	default:
		return "", fmt.Errorf("unknown extra flag policy %q", s)
	}
}

// Eligible reports whether row gets the extra flags under the policy.
// Created objects never do.
func (p ExtraFlagPolicy) Eligible(verb Verb, row *csvinput.Row) bool {
	if verb != VerbModify {
		return false
	}
	switch p {
	case ExtraFlagsAll:
		return true
	case ExtraFlagsWithEmail:
		return row.Get(RecoveryEmailProperty) != ""
	default:
		return false
	}
}

// WithExtraFlags appends the two fixed flags to assignments. A flag the row
// already sets keeps the row's value.
func WithExtraFlags(assignments []Assignment) []Assignment {
	for _, name := range []string{NetworkAccessProperty, EmailVerifiedProperty} {
		if hasAssignment(assignments, name) {
			continue
		}
		assignments = append(assignments, NewAssignment(name, extraFlagValue))
	}
	return assignments
}

func hasAssignment(assignments []Assignment, name string) bool {
	for _, a := range assignments {
		if a.Name == name {
			return true
		}
	}
	return false
}

///////////////////////////////////////////////////////////////////////////////
// Changes
///////////////////////////////////////////////////////////////////////////////

// Change is a row ready to be applied to the directory.
type Change struct {
	Line        int
	Verb        Verb
	ObjectType  string
	Assignments []Assignment
}

// NewChange builds the change for row, adding the extra flags when policy
// says so.
func NewChange(verb Verb, objectType string, policy ExtraFlagPolicy, row *csvinput.Row) Change {
	assignments := BuildAssignments(row)
	if policy.Eligible(verb, row) {
		assignments = WithExtraFlags(assignments)
	}
	return Change{
		Line:        row.Line,
		Verb:        verb,
		ObjectType:  objectType,
		Assignments: assignments,
	}
}

// Get returns the value assigned to name.
func (c Change) Get(name string) (string, bool) {
	for _, a := range c.Assignments {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}
