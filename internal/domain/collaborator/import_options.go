package collaborator

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

type Encoding string

const (
	EncodingUTF8   Encoding = "utf-8"
	EncodingLatin1 Encoding = "iso-8859-1"
)

const DefaultDelimiter = ','

var allowedDelimiters = []rune{',', ';', '|'}

type ImportOptions struct {
	Delimiter rune
	Encoding  Encoding
	HasHeader bool
}

func DefaultImportOptions() ImportOptions {
	return ImportOptions{
		Delimiter: DefaultDelimiter,
		Encoding:  EncodingUTF8,
		HasHeader: true,
	}
}

// NewImportOptions parses raw request values. Empty delimiter and encoding fall
// back to the defaults.
func NewImportOptions(delimiter, encoding string, hasHeader bool) (ImportOptions, error) {
	opts := DefaultImportOptions()
	opts.HasHeader = hasHeader

	if delimiter != "" {
		if utf8.RuneCountInString(delimiter) != 1 {
			return ImportOptions{}, fmt.Errorf("%w: delimiter must be a single character", ErrInvalidImportOptions)
		}
		r, _ := utf8.DecodeRuneInString(delimiter)
		if !isAllowedDelimiter(r) {
			return ImportOptions{}, fmt.Errorf("%w: delimiter must be one of , ; |", ErrInvalidImportOptions)
		}
		opts.Delimiter = r
	}

	if encoding != "" {
		enc, err := ParseEncoding(encoding)
		if err != nil {
			return ImportOptions{}, err
		}
		opts.Encoding = enc
	}

	return opts, nil
}

// MarshalJSON renders the delimiter as a one-character string.
func (o ImportOptions) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Delimiter string   `json:"delimiter"`
		Encoding  Encoding `json:"encoding"`
		HasHeader bool     `json:"has_header"`
	}{
		Delimiter: string(o.Delimiter),
		Encoding:  o.Encoding,
		HasHeader: o.HasHeader,
	})
}

func ParseEncoding(raw string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "utf-8", "utf8":
		return EncodingUTF8, nil
	case "iso-8859-1", "latin1", "latin-1":
		return EncodingLatin1, nil
	default:
		return "", fmt.Errorf("%w: encoding must be utf-8 or iso-8859-1", ErrInvalidImportOptions)
	}
}

func isAllowedDelimiter(r rune) bool {
	for _, d := range allowedDelimiters {
		if d == r {
			return true
		}
	}
	return false
}
