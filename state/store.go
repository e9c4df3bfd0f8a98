// Package state persists small JSON and text files under one directory.
//
// Every write goes through a temp file and an atomic rename, so a reader
// never sees a half written file. Reads report whether the file was loaded,
// absent or corrupt instead of failing, letting callers fall back to defaults.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// File names used by the paper broker ledger.
const (
	BalanceFile     = "balance.txt"
	PositionsFile   = "positions.json"
	CooldownsFile   = "cooldowns.json"
	SymbolPnLFile   = "symbol_pnl.json"
	TradesCountFile = "trades_count.json"
	DailyPnLFile    = "daily_pnl.json"
	WhitelistFile   = "runtime_whitelist.json"
)

type LoadStatus int

const (
	Absent LoadStatus = iota
	Loaded
	Corrupt
)

func (s LoadStatus) String() string {
	switch s {
	case Loaded:
		return "loaded"
	case Corrupt:
		return "corrupt"
	default:
		return "absent"
	}
}

// Result is the outcome of LoadOrDefault. Err is set only when Status is
// Corrupt.
type Result[T any] struct {
	Value  T
	Status LoadStatus
	Err    error
}

// LoadOrDefault decodes the JSON file at path. A missing or empty file yields
// def with Status Absent; unreadable or undecodable content yields def with
// Status Corrupt.
func LoadOrDefault[T any](path string, def T) Result[T] {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result[T]{Value: def, Status: Absent}
		}
		return Result[T]{Value: def, Status: Corrupt, Err: err}
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return Result[T]{Value: def, Status: Absent}
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return Result[T]{Value: def, Status: Corrupt, Err: fmt.Errorf("decode %s: %w", filepath.Base(path), err)}
	}
	return Result[T]{Value: v, Status: Loaded}
}

// LoadFloatOrDefault reads a file holding a single number.
func LoadFloatOrDefault(path string, def float64) Result[float64] {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result[float64]{Value: def, Status: Absent}
		}
		return Result[float64]{Value: def, Status: Corrupt, Err: err}
	}
	s := strings.TrimSpace(string(data))
	if s == "" {
		return Result[float64]{Value: def, Status: Absent}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Result[float64]{Value: def, Status: Corrupt, Err: fmt.Errorf("decode %s: %w", filepath.Base(path), err)}
	}
	return Result[float64]{Value: v, Status: Loaded}
}

// WriteFileAtomic writes data to a temp file in the same directory and renames
// it over path.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// WriteJSONAtomic encodes v as indented JSON and writes it atomically.
func WriteJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return WriteFileAtomic(path, data, 0o644)
}

// Store resolves ledger files inside a single directory.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("empty state dir")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) Path(name string) string { return filepath.Join(s.dir, name) }

func (s *Store) SaveJSON(name string, v any) error {
	return WriteJSONAtomic(s.Path(name), v)
}

func (s *Store) SaveFloat(name string, v float64) error {
	return WriteFileAtomic(s.Path(name), []byte(strconv.FormatFloat(v, 'f', -1, 64)), 0o644)
}

func Load[T any](s *Store, name string, def T) Result[T] {
	return LoadOrDefault(s.Path(name), def)
}

func (s *Store) LoadFloat(name string, def float64) Result[float64] {
	return LoadFloatOrDefault(s.Path(name), def)
}
