package collaborator

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strconv"
	"strings"

	domain "github.com/mohammadpnp/collaborator-import/internal/domain/collaborator"
	"github.com/mohammadpnp/collaborator-import/internal/logging"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

const utf8BOM = "\ufeff"

type CSVReaderOptions struct {
	Delimiter rune
	HasHeader bool
	Encoding  domain.Encoding
	// KeepMismatched yields rows whose field count differs from the header
	// with Err set instead of dropping them.
	KeepMismatched bool
}

func readerOptionsFor(opts domain.ImportOptions, keepMismatched bool) CSVReaderOptions {
	return CSVReaderOptions{
		Delimiter:      opts.Delimiter,
		HasHeader:      opts.HasHeader,
		Encoding:       opts.Encoding,
		KeepMismatched: keepMismatched,
	}
}

// CSVRow is one data record keyed by header name. Line is the physical line
// the record starts on.
type CSVRow struct {
	Line   int
	Values map[string]string
	Err    error
}

// CSVReader streams a delimited file as header-keyed rows. It is single-use:
// to read the rows again, open the source again.
type CSVReader struct {
	reader  *csv.Reader
	opts    CSVReaderOptions
	headers []string
	logger  *slog.Logger

	pending     []string
	pendingLine int
}

func NewCSVReader(ctx context.Context, src io.Reader, opts CSVReaderOptions) (*CSVReader, error) {
	if opts.Delimiter == 0 {
		opts.Delimiter = domain.DefaultDelimiter
	}
	if opts.Encoding == domain.EncodingLatin1 {
		src = transform.NewReader(src, charmap.ISO8859_1.NewDecoder())
	}

	reader := csv.NewReader(src)
	reader.Comma = opts.Delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	r := &CSVReader{
		reader: reader,
		opts:   opts,
		logger: logging.FromContext(ctx),
	}

	first, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read first csv record: %w", err)
	}
	if len(first) > 0 {
		first[0] = strings.TrimPrefix(first[0], utf8BOM)
	}

	if opts.HasHeader {
		r.headers = trimAll(first)
		if err := checkDuplicateHeaders(r.headers); err != nil {
			return nil, err
		}
		return r, nil
	}

	r.headers = make([]string, len(first))
	for i := range first {
		r.headers[i] = positionalHeader(i)
	}
	r.pending = first
	r.pendingLine, _ = reader.FieldPos(0)
	return r, nil
}

func positionalHeader(i int) string {
	return "field_" + strconv.Itoa(i)
}

// Headers returns the header names, or positional placeholders for files
// without a header line.
func (r *CSVReader) Headers() []string {
	return r.headers
}

// Rows yields data rows in file order. A read failure is yielded once as the
// error and ends the sequence.
func (r *CSVReader) Rows(ctx context.Context) iter.Seq2[CSVRow, error] {
	return func(yield func(CSVRow, error) bool) {
		if r.pending != nil {
			record, line := r.pending, r.pendingLine
			r.pending = nil
			if row, ok := r.buildRow(record, line); ok && !yield(row, nil) {
				return
			}
		}

		for {
			if err := ctx.Err(); err != nil {
				yield(CSVRow{}, err)
				return
			}

			record, err := r.reader.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(CSVRow{}, fmt.Errorf("read csv: %w", err))
				return
			}

			line, _ := r.reader.FieldPos(0)
			row, ok := r.buildRow(record, line)
			if !ok {
				continue
			}
			if !yield(row, nil) {
				return
			}
		}
	}
}

func (r *CSVReader) buildRow(record []string, line int) (CSVRow, bool) {
	if len(record) != len(r.headers) {
		mismatch := fmt.Errorf("%w: expected %d columns, got %d", ErrColumnCountMismatch, len(r.headers), len(record))
		if r.opts.KeepMismatched {
			return CSVRow{Line: line, Err: mismatch}, true
		}
		r.logger.Warn("csv row skipped", "line", line, "expected", len(r.headers), "got", len(record))
		return CSVRow{}, false
	}

	values := make(map[string]string, len(record))
	for i, field := range record {
		values[r.headers[i]] = strings.TrimSpace(field)
	}
	return CSVRow{Line: line, Values: values}, true
}

func trimAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.TrimSpace(v)
	}
	return out
}

// checkDuplicateHeaders rejects a header line that names a column twice, since
// rows are keyed by header name. Blank names are left to the field mapper.
func checkDuplicateHeaders(headers []string) error {
	seen := make(map[string]struct{}, len(headers))
	for _, name := range headers {
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateHeader, name)
		}
		seen[key] = struct{}{}
	}
	return nil
}
