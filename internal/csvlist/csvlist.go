// Package csvlist reads CSV lists of candidate email addresses, such as a validation report or a
// hand-maintained failures file, and cross-references them against parsed contacts.
package csvlist

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/desertthunder/pitch/internal/shared"
)

// sniffSize is how much of the input is inspected to guess the delimiter.
const sniffSize = 1024

// Delimiters are the separators [Sniff] chooses between.
var Delimiters = []rune{',', ';', '\t', '|'}

// EmailColumnKeywords mark a header as holding email addresses.
var EmailColumnKeywords = []string{"email", "e-mail", "mail", "contact", "address"}

// Record is one CSV row keyed by trimmed column name.
type Record map[string]string

// List is a parsed CSV file with its header order preserved.
type List struct {
	Header    []string
	Rows      []Record
	Delimiter rune
}

// Read opens path and parses it with [Parse].
func Read(path string) (*List, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", shared.ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to open csv: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a CSV with a header row. The delimiter is sniffed from the first KiB; keys and
// values are trimmed and short rows are padded with empty values.
func Parse(r io.Reader) (*List, error) {
	br := bufio.NewReaderSize(r, sniffSize)
	sample, err := br.Peek(sniffSize)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	delim := Sniff(sample)

	reader := csv.NewReader(br)
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return &List{Delimiter: delim}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	list := &List{Header: header, Delimiter: delim}
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv row: %w", err)
		}

		record := make(Record, len(header))
		for i, key := range header {
			if i < len(row) {
				record[key] = strings.TrimSpace(row[i])
			} else {
				record[key] = ""
			}
		}
		list.Rows = append(list.Rows, record)
	}
	return list, nil
}

// Sniff guesses the delimiter of sample: the candidate that splits every complete line into the
// same number of fields, preferring more fields. It falls back to a comma.
func Sniff(sample []byte) rune {
	lines := bytes.Split(sample, []byte("\n"))
	if len(lines) > 1 && len(sample) >= sniffSize {
		// the last line may be cut off mid-row
		lines = lines[:len(lines)-1]
	}

	best, bestCount := ',', 0
	for _, d := range Delimiters {
		count, consistent := -1, true
		for _, line := range lines {
			line = bytes.TrimSpace(line)
			if len(line) == 0 {
				continue
			}
			n := countUnquoted(line, d)
			if count == -1 {
				count = n
			} else if n != count {
				consistent = false
				break
			}
		}
		if consistent && count > bestCount {
			best, bestCount = d, count
		}
	}
	return best
}

// countUnquoted counts d in line, ignoring occurrences inside double quotes.
func countUnquoted(line []byte, d rune) int {
	n, quoted := 0, false
	for _, r := range string(line) {
		switch {
		case r == '"':
			quoted = !quoted
		case r == d && !quoted:
			n++
		}
	}
	return n
}

// EmailColumn returns the first header mentioning one of [EmailColumnKeywords], or else the first
// column with an "@" in any of the first five rows.
func (l *List) EmailColumn() (string, bool) {
	for _, col := range l.Header {
		lower := strings.ToLower(col)
		for _, kw := range EmailColumnKeywords {
			if strings.Contains(lower, kw) {
				return col, true
			}
		}
	}

	sample := l.Rows[:min(5, len(l.Rows))]
	for _, col := range l.Header {
		for _, row := range sample {
			if strings.Contains(row[col], "@") {
				return col, true
			}
		}
	}
	return "", false
}

func (l *List) resolveColumn(column string) (string, error) {
	if column != "" {
		if !slices.Contains(l.Header, column) {
			return "", fmt.Errorf("%w: %s", shared.ErrMissingColumn, column)
		}
		return column, nil
	}
	col, ok := l.EmailColumn()
	if !ok {
		return "", fmt.Errorf("%w: could not determine email column", shared.ErrMissingColumn)
	}
	return col, nil
}

// Emails returns the values of column that contain an "@". An empty column is auto-detected.
func (l *List) Emails(column string) ([]string, error) {
	if len(l.Rows) == 0 {
		return nil, nil
	}
	col, err := l.resolveColumn(column)
	if err != nil {
		return nil, err
	}

	var emails []string
	for _, row := range l.Rows {
		if v := row[col]; v != "" && strings.Contains(v, "@") {
			emails = append(emails, v)
		}
	}
	return emails, nil
}

// EmailSet returns the lowercased addresses of [List.Emails] as a set.
func (l *List) EmailSet(column string) (map[string]struct{}, error) {
	emails, err := l.Emails(column)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		set[shared.NormalizeEmail(e)] = struct{}{}
	}
	return set, nil
}

// RowByEmail finds the first row whose detected email column matches email, ignoring case.
func (l *List) RowByEmail(email string) (Record, bool) {
	col, ok := l.EmailColumn()
	if !ok {
		return nil, false
	}
	want := shared.NormalizeEmail(email)
	for _, row := range l.Rows {
		if shared.NormalizeEmail(row[col]) == want {
			return row, true
		}
	}
	return nil, false
}

// ValidatedEmails returns the lowercased addresses whose "valid" column is truthy. Lists without
// a "valid" column yield an empty set.
func (l *List) ValidatedEmails() (map[string]struct{}, error) {
	set := make(map[string]struct{})
	if !slices.Contains(l.Header, "valid") || len(l.Rows) == 0 {
		return set, nil
	}
	col, err := l.resolveColumn("")
	if err != nil {
		return nil, err
	}
	for _, row := range l.Rows {
		if isTruthy(row["valid"]) && row[col] != "" {
			set[shared.NormalizeEmail(row[col])] = struct{}{}
		}
	}
	return set, nil
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "y":
		return true
	}
	return false
}
