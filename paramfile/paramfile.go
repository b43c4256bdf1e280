// Package paramfile loads the architecture-parameter CSV spec.md §6
// describes: a table of named parameters with one column per
// architecture variant, the variant selected by `--config`. Unlike the
// source's file-layout-specific reader (which hard-codes a column
// index for the parameter name), this loader locates both the name
// column and the selected variant's value column by header text, so it
// tolerates a reordered or widened CSV.
package paramfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cg1sim/cg1sim/cgerr"
)

// nameColumnHeader is the header cell paramfile looks for to find the
// parameter-name column; `arch_params.csv` in the source names it
// identically.
const nameColumnHeader = "PARAM_NAME"

// Store holds one loaded parameter table, resolved to the single
// selected architecture variant's values.
type Store struct {
	arch   string
	path   string
	values map[string]string
	known  map[string]struct{} // nil: no unknown-parameter check
}

// Load reads path (auto-detecting a comma or tab delimiter) and
// resolves it against archName, the `--config` value (default
// "CG1GPU.ini"). known, if non-nil, causes any CSV row whose parameter
// name isn't in the set to fail as a fatal configuration error
// (spec.md §6: "Unknown parameters are a fatal configuration error").
func Load(path, archName string, known map[string]struct{}) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, cgerr.NewConfigError("param", "opening parameter file "+path, err)
	}
	defer f.Close()
	return parse(f, path, archName, known)
}

func parse(r io.Reader, path, archName string, known map[string]struct{}) (*Store, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	if !sc.Scan() {
		return nil, cgerr.NewConfigError("param", "empty parameter file "+path, nil)
	}
	header := sc.Text()
	delim := detectDelimiter(header)
	cols := splitRow(header, delim)

	nameCol := -1
	archCol := -1
	for i, c := range cols {
		trimmed := strings.TrimSpace(c)
		if strings.EqualFold(trimmed, nameColumnHeader) {
			nameCol = i
		}
		if trimmed == archName {
			archCol = i
		}
	}
	if nameCol == -1 {
		return nil, cgerr.NewConfigError("param", "no "+nameColumnHeader+" column in "+path, nil)
	}
	if archCol == -1 {
		return nil, cgerr.NewConfigError("param", "architecture variant "+archName+" not found in "+path, nil)
	}

	s := &Store{arch: archName, path: path, values: make(map[string]string), known: known}
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		row := splitRow(line, delim)
		if nameCol >= len(row) || archCol >= len(row) {
			continue
		}
		name := strings.TrimSpace(row[nameCol])
		if name == "" {
			continue
		}
		if known != nil {
			if _, ok := known[name]; !ok {
				return nil, cgerr.NewConfigError("param", "unknown parameter "+name+" in "+path, nil)
			}
		}
		s.values[name] = strings.TrimSpace(row[archCol])
	}
	if err := sc.Err(); err != nil {
		return nil, cgerr.NewConfigError("param", "reading "+path, err)
	}
	return s, nil
}

func detectDelimiter(header string) byte {
	if strings.Contains(header, "\t") {
		return '\t'
	}
	return ','
}

func splitRow(line string, delim byte) []string {
	return strings.Split(line, string(delim))
}

// Arch reports the selected architecture variant name.
func (s *Store) Arch() string { return s.arch }

// Path reports the loaded file's path.
func (s *Store) Path() string { return s.path }

func (s *Store) raw(name string) (string, bool) {
	v, ok := s.values[name]
	return v, ok
}

// Bool parses name per spec.md §6's bool convention: {"TRUE", "FALSE",
// "1", "0"} (case-insensitive).
func (s *Store) Bool(name string) (bool, error) {
	v, ok := s.raw(name)
	if !ok {
		return false, missing(name)
	}
	switch strings.ToUpper(v) {
	case "TRUE", "1":
		return true, nil
	case "FALSE", "0":
		return false, nil
	default:
		return false, fmt.Errorf("paramfile: %s: not a bool: %q", name, v)
	}
}

// BoolDefault returns Bool's value, or def if the parameter is missing.
func (s *Store) BoolDefault(name string, def bool) bool {
	v, err := s.Bool(name)
	if err != nil {
		return def
	}
	return v
}

// Uint32 parses name as an unsigned integer, accepting any base-0 prefix
// (0x, 0, or decimal) per spec.md §6.
func (s *Store) Uint32(name string) (uint32, error) {
	v, ok := s.raw(name)
	if !ok {
		return 0, missing(name)
	}
	n, err := strconv.ParseUint(v, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("paramfile: %s: %w", name, err)
	}
	return uint32(n), nil
}

// Uint32Default returns Uint32's value, or def if missing.
func (s *Store) Uint32Default(name string, def uint32) uint32 {
	v, err := s.Uint32(name)
	if err != nil {
		return def
	}
	return v
}

// Int32 parses name as a signed integer, base-0 prefix accepted.
func (s *Store) Int32(name string) (int32, error) {
	v, ok := s.raw(name)
	if !ok {
		return 0, missing(name)
	}
	n, err := strconv.ParseInt(v, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("paramfile: %s: %w", name, err)
	}
	return int32(n), nil
}

// Int32Default returns Int32's value, or def if missing.
func (s *Store) Int32Default(name string, def int32) int32 {
	v, err := s.Int32(name)
	if err != nil {
		return def
	}
	return v
}

// Uint64 parses name as an unsigned 64-bit integer, base-0 accepted.
func (s *Store) Uint64(name string) (uint64, error) {
	v, ok := s.raw(name)
	if !ok {
		return 0, missing(name)
	}
	n, err := strconv.ParseUint(v, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("paramfile: %s: %w", name, err)
	}
	return n, nil
}

// Uint64Default returns Uint64's value, or def if missing.
func (s *Store) Uint64Default(name string, def uint64) uint64 {
	v, err := s.Uint64(name)
	if err != nil {
		return def
	}
	return v
}

// Float64 parses name as a floating-point value.
func (s *Store) Float64(name string) (float64, error) {
	v, ok := s.raw(name)
	if !ok {
		return 0, missing(name)
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("paramfile: %s: %w", name, err)
	}
	return f, nil
}

// Float64Default returns Float64's value, or def if missing.
func (s *Store) Float64Default(name string, def float64) float64 {
	v, err := s.Float64(name)
	if err != nil {
		return def
	}
	return v
}

// String returns name's raw string value.
func (s *Store) String(name string) (string, error) {
	v, ok := s.raw(name)
	if !ok {
		return "", missing(name)
	}
	return v, nil
}

// StringDefault returns String's value, or def if missing.
func (s *Store) StringDefault(name string, def string) string {
	v, err := s.String(name)
	if err != nil {
		return def
	}
	return v
}

func missing(name string) error {
	return fmt.Errorf("paramfile: parameter %s not present for this architecture variant", name)
}
