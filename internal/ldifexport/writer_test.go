package ldifexport

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cdr.dev/slog/v3/sloggers/slogtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rotor-head/udm-import-update/internal/csvinput"
	"github.com/rotor-head/udm-import-update/internal/udm"
)

func newWriter(t *testing.T) (*Writer, string) {
	t.Helper()
	cfg := NewConfig()
	cfg.Path = filepath.Join(t.TempDir(), "out.ldif")
	cfg.BaseDN = "cn=users,dc=example,dc=com"
	w, err := NewWriter(cfg, slogtest.Make(t, nil))
	require.NoError(t, err)
	return w, cfg.Path
}

func change(verb udm.Verb, columns, values []string) udm.Change {
	return udm.NewChange(verb, "users/user", udm.ExtraFlagsAll, csvinput.NewRow(2, columns, values))
}

func TestWriter_Create(t *testing.T) {
	w, path := newWriter(t)

	err := w.Apply(context.Background(), change(udm.VerbCreate,
		[]string{"username", "lastname", "position"},
		[]string{"jdoe", "Doe", "cn=staff,dc=example,dc=com"},
	))
	require.NoError(t, err)
	err = w.Apply(context.Background(), change(udm.VerbCreate,
		[]string{"username", "lastname", "password"},
		[]string{"asmith", "Smith", "univention"},
	))
	require.NoError(t, err)
	assert.Equal(t, 2, w.Len())
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := strings.ReplaceAll(string(data), "\n ", "")
	assert.Contains(t, text, "dn: uid=jdoe,cn=staff,dc=example,dc=com")
	assert.Contains(t, text, "dn: uid=asmith,cn=users,dc=example,dc=com")
	assert.Contains(t, text, "changetype: add")
	assert.Contains(t, text, "lastname: Doe")
	assert.NotContains(t, text, "position:")
	assert.NotContains(t, text, "networkAccess")
	assert.NotContains(t, text, "password:")
	assert.NotContains(t, text, "univention")
	assert.True(t, strings.HasPrefix(text, Header))
}

func TestWriter_NonUserObjects(t *testing.T) {
	cfg := NewConfig()
	cfg.Path = filepath.Join(t.TempDir(), "out.ldif")
	cfg.BaseDN = "cn=groups,dc=example,dc=com"
	cfg.IDColumn = udm.IdentifyingProperty("groups/group")
	cfg.RDNAttr = udm.RDNAttribute("groups/group")
	w, err := NewWriter(cfg, slogtest.Make(t, nil))
	require.NoError(t, err)

	c := udm.NewChange(udm.VerbCreate, "groups/group", udm.ExtraFlagsAll,
		csvinput.NewRow(2, []string{"name", "description"}, []string{"staff", "Staff members"}))
	require.NoError(t, w.Apply(context.Background(), c))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(cfg.Path)
	require.NoError(t, err)
	assert.Contains(t, strings.ReplaceAll(string(data), "\n ", ""), "dn: cn=staff,cn=groups,dc=example,dc=com")
}

func TestWriter_EmptyRunWritesHeader(t *testing.T) {
	w, path := newWriter(t)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), Header))
}

func TestWriter_Modify(t *testing.T) {
	w, path := newWriter(t)

	err := w.Apply(context.Background(), change(udm.VerbModify,
		[]string{"dn", "description"},
		[]string{"uid=jdoe,cn=users,dc=example,dc=com", "updated"},
	))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := strings.ReplaceAll(string(data), "\n ", "")
	assert.Contains(t, text, "dn: uid=jdoe,cn=users,dc=example,dc=com")
	assert.Contains(t, text, "changetype: modify")
	assert.Contains(t, text, "replace: description")
	assert.Contains(t, text, "replace: networkAccess")
	assert.Contains(t, text, "PasswordRecoveryEmailVerified: true")
}

func TestWriter_RowErrors(t *testing.T) {
	w, _ := newWriter(t)

	err := w.Apply(context.Background(), change(udm.VerbModify,
		[]string{"dn", "description"},
		[]string{"not a dn", "x"},
	))
	assert.ErrorIs(t, err, udm.ErrRowFailed)

	err = w.Apply(context.Background(), change(udm.VerbCreate,
		[]string{"username", "lastname"},
		[]string{"", "Doe"},
	))
	assert.ErrorIs(t, err, udm.ErrRowFailed)
	assert.Equal(t, 0, w.Len())
}

func TestWriter_NoParent(t *testing.T) {
	cfg := NewConfig()
	cfg.Path = filepath.Join(t.TempDir(), "out.ldif")
	w, err := NewWriter(cfg, slogtest.Make(t, nil))
	require.NoError(t, err)

	err = w.Apply(context.Background(), change(udm.VerbCreate, []string{"username"}, []string{"jdoe"}))
	assert.ErrorIs(t, err, udm.ErrRowFailed)
}

func TestNewWriter_Validation(t *testing.T) {
	cfg := NewConfig()
	cfg.Path = ""
	_, err := NewWriter(cfg, slogtest.Make(t, nil))
	assert.Error(t, err)

	cfg = NewConfig()
	cfg.BaseDN = "this is not a dn"
	_, err = NewWriter(cfg, slogtest.Make(t, nil))
	assert.Error(t, err)
}
