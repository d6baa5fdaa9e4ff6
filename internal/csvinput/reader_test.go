package csvinput

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.csv")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func readAll(t *testing.T, r *Reader) ([]*Row, []*RowError) {
	t.Helper()
	var rows []*Row
	var rowErrs []*RowError
	for {
		row, err := r.Next()
		if errors.Is(err, io.EOF) {
			return rows, rowErrs
		}
		var rerr *RowError
		if errors.As(err, &rerr) {
			rowErrs = append(rowErrs, rerr)
			continue
		}
		require.NoError(t, err)
		rows = append(rows, row)
	}
}

func TestOpen_ReadsRowsInOrder(t *testing.T) {
	path := writeFile(t, []byte("username, email\njdoe , jdoe@example.com\nasmith,\n"))

	r, err := Open(path, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"username", "email"}, r.Header())
	assert.Equal(t, EncodingUTF8, r.Encoding())

	rows, rowErrs := readAll(t, r)
	require.Empty(t, rowErrs)
	require.Len(t, rows, 2)

	assert.Equal(t, 2, rows[0].Line)
	assert.Equal(t, "jdoe", rows[0].Get("username"))
	assert.Equal(t, "jdoe@example.com", rows[0].Get("email"))
	assert.Equal(t, 3, rows[1].Line)
	assert.Equal(t, "", rows[1].Get("email"))
	assert.True(t, rows[1].Has("email"))
}

func TestOpen_InputErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    error
	}{
		{name: "empty", content: "", want: ErrEmptyFile},
		{name: "whitespace only", content: "  \n\n", want: ErrEmptyFile},
		{name: "empty column name", content: "username,,email\n", want: ErrBadHeader},
		{name: "duplicate column", content: "username,username\n", want: ErrBadHeader},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(writeFile(t, []byte(tt.content)), nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.csv"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNext_WrongFieldCountIsRowError(t *testing.T) {
	path := writeFile(t, []byte("username,email\njdoe\nasmith,a@example.com,extra\nbwayne,b@example.com\n"))

	r, err := Open(path, nil)
	require.NoError(t, err)

	rows, rowErrs := readAll(t, r)
	require.Len(t, rowErrs, 2)
	assert.Equal(t, 2, rowErrs[0].Line)
	assert.Equal(t, 3, rowErrs[1].Line)
	require.Len(t, rows, 1)
	assert.Equal(t, "bwayne", rows[0].Get("username"))
	assert.Equal(t, 4, rows[0].Line)
}

func TestNext_SkipsBlankRecords(t *testing.T) {
	path := writeFile(t, []byte("username,email\n\n , \njdoe,j@example.com\n"))

	r, err := Open(path, nil)
	require.NoError(t, err)

	rows, rowErrs := readAll(t, r)
	require.Empty(t, rowErrs)
	require.Len(t, rows, 1)
	assert.Equal(t, 4, rows[0].Line)
}

func TestNext_QuotedFields(t *testing.T) {
	path := writeFile(t, []byte("username,description\njdoe,\"Doe, John\nsecond line\"\n"))

	r, err := Open(path, nil)
	require.NoError(t, err)

	rows, _ := readAll(t, r)
	require.Len(t, rows, 1)
	assert.Equal(t, "Doe, John\nsecond line", rows[0].Get("description"))
}

func TestOpen_Delimiter(t *testing.T) {
	path := writeFile(t, []byte("username;email\njdoe;j@example.com\n"))

	opts := NewOptions()
	opts.Delimiter = ';'
	r, err := Open(path, opts)
	require.NoError(t, err)

	rows, _ := readAll(t, r)
	require.Len(t, rows, 1)
	assert.Equal(t, "j@example.com", rows[0].Get("email"))
}

func TestOpen_Encodings(t *testing.T) {
	t.Run("utf-8 BOM is stripped", func(t *testing.T) {
		content := append([]byte{0xef, 0xbb, 0xbf}, []byte("username\njürgen\n")...)
		r, err := Open(writeFile(t, content), nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"username"}, r.Header())
		rows, _ := readAll(t, r)
		require.Len(t, rows, 1)
		assert.Equal(t, "jürgen", rows[0].Get("username"))
	})

	t.Run("auto falls back to windows-1252", func(t *testing.T) {
		// "jürgen" with ü as the single byte 0xfc.
		content := []byte("username\nj\xfcrgen\n")
		r, err := Open(writeFile(t, content), nil)
		require.NoError(t, err)
		assert.Equal(t, EncodingWindows1252, r.Encoding())
		rows, _ := readAll(t, r)
		require.Len(t, rows, 1)
		assert.Equal(t, "jürgen", rows[0].Get("username"))
	})

	t.Run("explicit latin1", func(t *testing.T) {
		opts := NewOptions()
		opts.Encoding = EncodingLatin1
		r, err := Open(writeFile(t, []byte("lastname\nM\xfcller\n")), opts)
		require.NoError(t, err)
		rows, _ := readAll(t, r)
		require.Len(t, rows, 1)
		assert.Equal(t, "Müller", rows[0].Get("lastname"))
	})
}

func TestParseEncoding(t *testing.T) {
	for in, want := range map[string]Encoding{
		"":             EncodingAuto,
		"UTF-8":        EncodingUTF8,
		"utf-8-sig":    EncodingUTF8,
		"ISO-8859-1":   EncodingLatin1,
		"cp1252":       EncodingWindows1252,
		"windows-1252": EncodingWindows1252,
	} {
		got, err := ParseEncoding(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseEncoding("ebcdic")
	assert.Error(t, err)
}

func TestRow(t *testing.T) {
	row := NewRow(7, []string{"a", "b", "c"}, []string{"1", "2"})
	assert.Equal(t, 3, row.Len())
	assert.Equal(t, []string{"1", "2", ""}, row.Values())
	v, ok := row.Lookup("c")
	assert.True(t, ok)
	assert.Equal(t, "", v)
	assert.False(t, row.Has("d"))
	assert.Equal(t, "", row.Get("d"))
}
