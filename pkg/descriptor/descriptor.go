// SPDX-License-Identifier: MPL-2.0

package descriptor

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/invowk/svcload/pkg/types"
)

const (
	// Dir is the directory, relative to a storage root, holding descriptor files.
	Dir = "services"

	// maxLineLength bounds a single descriptor line.
	maxLineLength = 64 * 1024
)

// ErrMalformed is the sentinel error wrapped by MalformedError.
var ErrMalformed = errors.New("malformed provider descriptor")

// MalformedError reports a syntax error in a descriptor file.
type MalformedError struct {
	// Source identifies the descriptor (usually root-relative path).
	Source string
	// Line is the 1-based line number of the offending line.
	Line int
	// Text is the offending line as read, without the line terminator.
	Text string
	// Reason describes what is wrong with the line.
	Reason string
}

// Error implements the error interface.
func (e *MalformedError) Error() string {
	return fmt.Sprintf("%s:%d: %s: %q", e.Source, e.Line, e.Reason, e.Text)
}

// Unwrap returns ErrMalformed for errors.Is() compatibility.
func (e *MalformedError) Unwrap() error { return ErrMalformed }

// Path returns the root-relative location of the descriptor for contract.
func Path(contract types.QualifiedName) string {
	return path.Join(Dir, string(contract))
}

// Parse reads a descriptor from r. source is used in error messages only.
func Parse(r io.Reader, source string) ([]types.QualifiedName, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineLength)

	var names []types.QualifiedName
	seen := make(map[types.QualifiedName]bool)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		name, err := parseLine(raw)
		if err != nil {
			return nil, &MalformedError{Source: source, Line: lineNo, Text: raw, Reason: err.Error()}
		}
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, &MalformedError{Source: source, Line: lineNo + 1, Reason: "line too long"}
		}
		return nil, fmt.Errorf("read %s: %w", source, err)
	}

	return names, nil
}

// parseLine returns the provider name on a line, or "" when the line carries none.
func parseLine(raw string) (types.QualifiedName, error) {
	if !utf8.ValidString(raw) {
		return "", errors.New("invalid UTF-8")
	}
	line := raw
	if idx := strings.IndexByte(line, '#'); idx >= 0 {
		line = line[:idx]
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", nil
	}
	if strings.ContainsAny(line, " \t") {
		return "", errors.New("illegal configuration-file syntax")
	}
	name := types.QualifiedName(line)
	if err := name.Validate(); err != nil {
		var qnErr *types.InvalidQualifiedNameError
		if errors.As(err, &qnErr) {
			return "", errors.New("illegal provider-class name: " + qnErr.Reason)
		}
		return "", err
	}
	return name, nil
}

// Read opens the descriptor for contract in fsys and parses it. found is false,
// with a nil error, when the root has no descriptor for the contract.
func Read(fsys fs.FS, contract types.QualifiedName) (names []types.QualifiedName, found bool, err error) {
	p := Path(contract)
	f, err := fsys.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("open %s: %w", p, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", p, closeErr)
		}
	}()

	names, err = Parse(f, p)
	if err != nil {
		return nil, true, err
	}
	return names, true, nil
}
