package csvinput

import (
	"bytes"        // bytes strips the byte order mark
	"fmt"          // fmt is used to create readable error messages
	"strings"      // strings normalizes encoding names
	"unicode/utf8" // utf8 tells UTF-8 input from legacy code pages

	"golang.org/x/text/encoding"         // encoding is the decoder interface
	"golang.org/x/text/encoding/charmap" // charmap provides latin1 and windows-1252
	"golang.org/x/text/encoding/unicode" // unicode decodes UTF-8 with a BOM
	"golang.org/x/text/transform"        // transform runs a decoder over the file
)

// Encoding names a text encoding accepted for input files.
type Encoding string

const (
	EncodingAuto        Encoding = "auto"
	EncodingUTF8        Encoding = "utf-8"
	EncodingLatin1      Encoding = "latin1"
	EncodingWindows1252 Encoding = "windows-1252"
)

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

// ParseEncoding maps a user supplied name to an Encoding.
func ParseEncoding(name string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		return EncodingAuto, nil
	case "utf-8", "utf8", "utf-8-sig":
		return EncodingUTF8, nil
	case "latin1", "latin-1", "iso-8859-1":
		return EncodingLatin1, nil
	case "windows-1252", "cp1252":
		return EncodingWindows1252, nil
	default:
		return "", fmt.Errorf("unsupported encoding %q", name)
	}
}

// decode converts raw to UTF-8. With EncodingAuto a UTF-8 file (with or
// without BOM) is taken as is and anything else is read as windows-1252,
// which is what spreadsheet exports on Windows produce.
func decode(raw []byte, enc Encoding) ([]byte, Encoding, error) {
	if enc == EncodingAuto {
		if utf8.Valid(bytes.TrimPrefix(raw, utf8BOM)) {
			enc = EncodingUTF8
		} else {
			enc = EncodingWindows1252
		}
	}

	var e encoding.Encoding
	switch enc {
	case EncodingUTF8:
		e = unicode.UTF8BOM
	case EncodingLatin1:
		e = charmap.ISO8859_1
	case EncodingWindows1252:
		e = charmap.Windows1252
	default:
		return nil, "", fmt.Errorf("unsupported encoding %q", enc)
	}

	out, _, err := transform.Bytes(e.NewDecoder(), raw)
	if err != nil {
		return nil, "", err
	}
	return out, enc, nil
}
