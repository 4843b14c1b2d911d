package state

import (
	"sync"
	"time"

	"probe-go/internal/probe"
)

// DataFrame represents a loaded CSV file with its data
type DataFrame struct {
	Headers  []string
	Rows     [][]string
	FilePath string
	FileName string
}

// History is a historical project dataset ready for estimation
type History struct {
	Source       string // "csv" or "postgres"
	Name         string // file or table name
	SizeColumn   string
	EffortColumn string
	ProjectIDs   []string
	Dataset      probe.Dataset
	LoadedAt     time.Time
}

// AppState holds the server's loaded history. A zero AppState is ready to use.
type AppState struct {
	mu      sync.RWMutex
	history *History
}

// New returns an empty AppState
func New() *AppState {
	return &AppState{}
}

// SetHistory replaces the loaded history
func (s *AppState) SetHistory(h *History) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = h
}

// GetHistory returns the loaded history, or nil when nothing is loaded.
// The returned value must not be mutated.
func (s *AppState) GetHistory() *History {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.history
}

// ClearHistory drops the loaded history
func (s *AppState) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = nil
}

// GetNumericColumnIndices returns indices of numeric columns
func (df *DataFrame) GetNumericColumnIndices() map[int]bool {
	if len(df.Rows) == 0 {
		return nil
	}

	numericCols := make(map[int]bool)
	for colIdx := range df.Headers {
		isNumeric := true
		// Check first 20 rows (or all if fewer)
		checkRows := 20
		if len(df.Rows) < checkRows {
			checkRows = len(df.Rows)
		}
		for i := 0; i < checkRows; i++ {
			if colIdx >= len(df.Rows[i]) {
				isNumeric = false
				break
			}
			if !isNumericString(df.Rows[i][colIdx]) {
				isNumeric = false
				break
			}
		}
		if isNumeric {
			numericCols[colIdx] = true
		}
	}
	return numericCols
}

// ColumnIndex returns the index of the named header, or -1
func (df *DataFrame) ColumnIndex(name string) int {
	for i, h := range df.Headers {
		if h == name {
			return i
		}
	}
	return -1
}

func isNumericString(s string) bool {
	if s == "" {
		return false
	}
	dotCount := 0
	digits := 0
	for i, c := range s {
		if (c == '-' || c == '+') && i == 0 {
			continue
		}
		if c == '.' {
			dotCount++
			if dotCount > 1 {
				return false
			}
			continue
		}
		if c < '0' || c > '9' {
			return false
		}
		digits++
	}
	return digits > 0
}
