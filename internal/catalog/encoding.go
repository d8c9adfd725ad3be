package catalog

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DecodeText normalizes manifest bytes to UTF-8. Editors on some
// platforms save YAML as UTF-16 or with a BOM; BOMs are sniffed first,
// then valid UTF-8 passes through, and anything else falls back to a
// latin-1 reinterpretation so the parser at least sees well-formed text.
func DecodeText(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}

	if len(data) >= 3 && bytes.Equal(data[:3], []byte{0xEF, 0xBB, 0xBF}) {
		return data[3:], nil
	}

	if len(data) >= 2 {
		if bytes.Equal(data[:2], []byte{0xFF, 0xFE}) {
			return decodeWith(unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM), data)
		}
		if bytes.Equal(data[:2], []byte{0xFE, 0xFF}) {
			return decodeWith(unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM), data)
		}
	}

	if utf8.Valid(data) {
		return data, nil
	}

	return decodeWith(charmap.ISO8859_1, data)
}

func decodeWith(enc encoding.Encoding, data []byte) ([]byte, error) {
	out, _, err := transform.Bytes(enc.NewDecoder(), data)
	return out, err
}
