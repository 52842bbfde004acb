package contacts

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/desertthunder/pitch/internal/shared"
	"golang.org/x/text/unicode/norm"
)

// maxLineSize bounds a single line of extracted text.
const maxLineSize = 1 << 20

// ReadLines reads r as best-effort UTF-8: invalid bytes are dropped, each line is trimmed and
// NFC-normalized so composed and decomposed accents compare equal.
func ReadLines(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var lines []string
	for scanner.Scan() {
		line := scanner.Text()
		if !utf8.ValidString(line) {
			line = strings.ToValidUTF8(line, "")
		}
		line = norm.NFC.String(strings.TrimSpace(line))
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read lines: %w", err)
	}
	return lines, nil
}

// ReadLinesFile reads the lines of the file at path with [ReadLines].
func ReadLinesFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", shared.ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return ReadLines(f)
}

// ParseFile reads path and parses it into records.
func ParseFile(path string) ([]ContactRecord, error) {
	lines, err := ReadLinesFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(lines), nil
}

// LoadDirectory parses path and wraps the result in a [Directory].
func LoadDirectory(path string) (*Directory, error) {
	records, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	return NewDirectory(records), nil
}
