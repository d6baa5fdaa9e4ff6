package generator

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_IsRepeatableForASeed(t *testing.T) {
	cfg := NewRunConfig()
	cfg.Count = 5
	cfg.Seed = 7

	first := Generate(cfg)
	second := Generate(cfg)
	require.Len(t, first, 5)
	assert.Equal(t, first, second)

	seen := map[string]bool{}
	for _, u := range first {
		assert.NotEmpty(t, u.Username)
		assert.False(t, seen[u.Username], "duplicate username %s", u.Username)
		seen[u.Username] = true
		assert.Equal(t, u.Username+"@example.com", u.Mail)
		assert.Len(t, u.Password, 14)
	}
}

func TestNewFakeUserWithTemplate(t *testing.T) {
	cfg := NewRunConfig()
	cfg.Count = 2
	cfg.Seed = 1
	cfg.Template = &AttributeTemplate{
		Username:      "student",
		LastName:      "Example",
		Password:      "univention",
		RecoveryEmail: "helpdesk@example.org",
	}

	users := Generate(cfg)
	require.Len(t, users, 2)
	assert.Equal(t, "student1", users[0].Username)
	assert.Equal(t, "student2", users[1].Username)
	assert.Equal(t, "student2@example.com", users[1].Mail)
	for _, u := range users {
		assert.Equal(t, "Example", u.LastName)
		assert.Equal(t, "univention", u.Password)
		assert.Equal(t, "helpdesk@example.org", u.RecoveryEmail)
		assert.NotEmpty(t, u.FirstName)
	}
}

func TestRun_CSV(t *testing.T) {
	cfg := NewRunConfig()
	cfg.Count = 3
	cfg.Seed = 3
	cfg.OutputFile = filepath.Join(t.TempDir(), "users.csv")
	require.NoError(t, Run(cfg, nil))

	f, err := os.Open(cfg.OutputFile)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, Columns, records[0])
	assert.Equal(t, Generate(cfg)[0].Record(), records[1])
}

func TestRun_LDIFToWriter(t *testing.T) {
	cfg := NewRunConfig()
	cfg.Count = 2
	cfg.Seed = 5
	cfg.Format = FormatLDIF
	cfg.OutputFile = "-"

	var buf bytes.Buffer
	require.NoError(t, Run(cfg, &buf))

	// Undo line folding so long DNs compare as one line.
	text := strings.ReplaceAll(buf.String(), "\n ", "")
	assert.Equal(t, 2, strings.Count(text, "objectClass: inetOrgPerson"))
	assert.Contains(t, text, "dn: uid="+Generate(cfg)[0].Username+",cn=users,dc=example,dc=com")
}

func TestRun_Validation(t *testing.T) {
	tests := map[string]func(*RunConfig){
		"zero count":     func(c *RunConfig) { c.Count = 0 },
		"bad format":     func(c *RunConfig) { c.Format = "xml" },
		"no mail domain": func(c *RunConfig) { c.MailDomain = "" },
		"bad suffix": func(c *RunConfig) {
			c.Format = FormatLDIF
			c.SuffixDN = "not a dn"
		},
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := NewRunConfig()
			cfg.OutputFile = filepath.Join(t.TempDir(), "out")
			mutate(cfg)
			assert.Error(t, Run(cfg, nil))
		})
	}
}
