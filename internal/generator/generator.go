package generator

import (
	"encoding/csv" // csv writes the sample import file
	"fmt"          // fmt is used to build human-readable error messages and strings
	"io"           // io lets the writers target files or buffers
	"os"           // os is used for file operations such as creating the output file
	"strings"      // strings is used to build mail addresses

	"github.com/brianvoe/gofakeit/v6" // gofakeit generates realistic-looking fake data
	"github.com/go-ldap/ldap/v3"      // ldap/v3 provides LDAP entry types
	ldif "github.com/go-ldap/ldif"    // ldif converts LDAP entries to LDIF text
)

///////////////////////////////////////////////////////////////////////////////
// Configuration types
///////////////////////////////////////////////////////////////////////////////

// Output formats understood by Run.
const (
	FormatCSV  = "csv"
	FormatLDIF = "ldif"
)

// Columns is the header of a generated CSV file. The names are users/user
// properties, so the file can be fed straight back into "create".
var Columns = []string{
	"username",
	"firstname",
	"lastname",
	"password",
	"mailPrimaryAddress",
	"PasswordRecoveryEmail",
}

// RunConfig holds all the options needed to generate a sample import file.
// It does not know about the CLI so it can be used from tests as well.
type RunConfig struct {
	Count      int                // Count is how many fake users to generate
	Seed       int64              // Seed makes runs repeatable; 0 picks a random seed
	Format     string             // Format selects "csv" or "ldif"
	OutputFile string             // OutputFile is the path to write to
	MailDomain string             // MailDomain is used for mailPrimaryAddress
	SuffixDN   string             // SuffixDN is the parent of generated entries in LDIF output
	Template   *AttributeTemplate // Template holds optional fixed values loaded from a file
}

// NewRunConfig is an initializer function for RunConfig.
// It sets safe default values so the caller only has to override
// what they care about.
func NewRunConfig() *RunConfig {
	return &RunConfig{
		Count:      10,
		Format:     FormatCSV,
		OutputFile: "users.csv",
		MailDomain: "example.com",
		SuffixDN:   "cn=users,dc=example,dc=com",
	}
}

// AttributeTemplate represents optional column values read from a
// user-provided JSON file. A non-empty field replaces the generated value in
// every row.
type AttributeTemplate struct {
	Username      string `json:"username"`
	FirstName     string `json:"firstname"`
	LastName      string `json:"lastname"`
	Password      string `json:"password"`
	Mail          string `json:"mailPrimaryAddress"`
	RecoveryEmail string `json:"PasswordRecoveryEmail"`
}

// NewAttributeTemplate is an initializer function for AttributeTemplate.
func NewAttributeTemplate() *AttributeTemplate {
	return &AttributeTemplate{}
}

///////////////////////////////////////////////////////////////////////////////
// Fake user representation
///////////////////////////////////////////////////////////////////////////////

// FakeUser is one generated row.
type FakeUser struct {
	Username      string
	FirstName     string
	LastName      string
	Password      string
	Mail          string
	RecoveryEmail string
}

// NewFakeUser builds a FakeUser from explicit values.
func NewFakeUser(username, firstName, lastName, password, mail, recoveryEmail string) *FakeUser {
	return &FakeUser{
		Username:      username,
		FirstName:     firstName,
		LastName:      lastName,
		Password:      password,
		Mail:          mail,
		RecoveryEmail: recoveryEmail,
	}
}

// NewFakeUserWithTemplate generates a user with faker, then applies the
// non-empty fields of tmpl. The index keeps usernames unique within a run
// even when the faker repeats itself.
func NewFakeUserWithTemplate(faker *gofakeit.Faker, index int, mailDomain string, tmpl *AttributeTemplate) *FakeUser {
	first := faker.FirstName()
	last := faker.LastName()
	username := strings.ToLower(fmt.Sprintf("%s.%s%d", first, last, index))
	username = strings.Map(usernameRune, username)
	password := faker.Password(true, true, true, false, false, 14)
	recovery := faker.Email()

	if tmpl != nil {
		if tmpl.Username != "" {
			username = fmt.Sprintf("%s%d", tmpl.Username, index)
		}
		if tmpl.FirstName != "" {
			first = tmpl.FirstName
		}
		if tmpl.LastName != "" {
			last = tmpl.LastName
		}
		if tmpl.Password != "" {
			password = tmpl.Password
		}
		if tmpl.RecoveryEmail != "" {
			recovery = tmpl.RecoveryEmail
		}
	}

	// The primary address follows the username unless the template pins it.
	mail := username + "@" + mailDomain
	if tmpl != nil && tmpl.Mail != "" {
		mail = tmpl.Mail
	}

	return NewFakeUser(username, first, last, password, mail, recovery)
}

// usernameRune drops characters UCS does not accept in usernames.
func usernameRune(r rune) rune {
	switch {
	case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
		return r
	default:
		return -1
	}
}

// Record returns the user's values in Columns order.
func (u *FakeUser) Record() []string {
	return []string{u.Username, u.FirstName, u.LastName, u.Password, u.Mail, u.RecoveryEmail}
}

// ToLDAPEntry converts a FakeUser into an *ldap.Entry under suffixDN.
func (u *FakeUser) ToLDAPEntry(suffixDN string) *ldap.Entry {
	attrs := map[string][]string{
		"objectClass": {"inetOrgPerson"},
		"uid":         {u.Username},
		"cn":          {u.FirstName + " " + u.LastName},
		"givenName":   {u.FirstName},
		"sn":          {u.LastName},
		"mail":        {u.Mail},
	}
	dn := fmt.Sprintf("uid=%s,%s", ldap.EscapeDN(u.Username), suffixDN)
	return ldap.NewEntry(dn, attrs)
}

///////////////////////////////////////////////////////////////////////////////
// Writers
///////////////////////////////////////////////////////////////////////////////

// WriteCSV writes the header and one record per user.
func WriteCSV(w io.Writer, users []*FakeUser) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, u := range users {
		if err := cw.Write(u.Record()); err != nil {
			return fmt.Errorf("failed to write CSV record for %s: %w", u.Username, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}

// WriteLDIF writes the users as LDIF content records, for seeding a test
// directory with the same people a CSV run would create.
func WriteLDIF(w io.Writer, suffixDN string, users []*FakeUser) error {
	entries := make([]*ldap.Entry, 0, len(users))
	for _, u := range users {
		entries = append(entries, u.ToLDAPEntry(suffixDN))
	}

	ldifData, err := ldif.ToLDIF(entries)
	if err != nil {
		return fmt.Errorf("failed to build LDIF struct: %w", err)
	}
	ldifText, err := ldif.Marshal(ldifData)
	if err != nil {
		return fmt.Errorf("failed to marshal LDIF: %w", err)
	}
	if _, err := io.WriteString(w, ldifText); err != nil {
		return fmt.Errorf("failed to write LDIF: %w", err)
	}
	return nil
}

///////////////////////////////////////////////////////////////////////////////
// Top-level runner
///////////////////////////////////////////////////////////////////////////////

// Generate returns cfg.Count users. A non-zero cfg.Seed always yields the
// same users.
func Generate(cfg *RunConfig) []*FakeUser {
	faker := gofakeit.New(cfg.Seed)
	users := make([]*FakeUser, 0, cfg.Count)
	for i := 1; i <= cfg.Count; i++ {
		users = append(users, NewFakeUserWithTemplate(faker, i, cfg.MailDomain, cfg.Template))
	}
	return users
}

// Run validates cfg, generates the users and writes them to
// cfg.OutputFile ("-" writes to out).
func Run(cfg *RunConfig, out io.Writer) error {
	if cfg.Count < 1 {
		return fmt.Errorf("Count must be at least 1")
	}
	if cfg.Format != FormatCSV && cfg.Format != FormatLDIF {
		return fmt.Errorf("Format must be either 'csv' or 'ldif'")
	}
	if cfg.MailDomain == "" {
		return fmt.Errorf("MailDomain must not be empty")
	}
	if cfg.Format == FormatLDIF {
		if cfg.SuffixDN == "" {
			return fmt.Errorf("SuffixDN must not be empty")
		}
		if _, err := ldap.ParseDN(cfg.SuffixDN); err != nil {
			return fmt.Errorf("invalid SuffixDN %q: %w", cfg.SuffixDN, err)
		}
	}

	users := Generate(cfg)

	if cfg.OutputFile == "-" {
		return write(cfg, out, users)
	}

	// Create (or truncate) the output file. The permission 0644 means the
	// owner can read and write, while group and others can only read.
	f, err := os.OpenFile(cfg.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := write(cfg, f, users); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close output file: %w", err)
	}
	return nil
}

func write(cfg *RunConfig, w io.Writer, users []*FakeUser) error {
	switch cfg.Format {
	case FormatLDIF:
		return WriteLDIF(w, cfg.SuffixDN, users)
	default:
		return WriteCSV(w, users)
	}
}
