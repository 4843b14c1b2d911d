package analysis

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"probe-go/internal/probe"
	"probe-go/internal/state"
)

var (
	ErrNoHeader       = errors.New("analysis: missing header row")
	ErrNoRows         = errors.New("analysis: no data rows")
	ErrColumnNotFound = errors.New("analysis: column not found")
	ErrBadValue       = errors.New("analysis: value is not numeric")
)

// Columns names the size and effort columns of a historical dataset.
// Empty names are inferred from the data.
type Columns struct {
	Size   string
	Effort string
}

type CSVService struct {
	defaults Columns
}

// NewCSVService creates a loader that falls back to defaults when a request
// does not name its columns.
func NewCSVService(defaults Columns) *CSVService {
	return &CSVService{defaults: defaults}
}

// LoadFile reads a CSV file of historical projects
func (s *CSVService) LoadFile(filePath string, cols Columns) (*state.History, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	df, err := ParseCSV(file)
	if err != nil {
		return nil, err
	}
	df.FilePath = filePath
	df.FileName = filepath.Base(filePath)
	return s.History(df, cols)
}

// Load reads historical projects from r. name is only used for reporting.
func (s *CSVService) Load(r io.Reader, name string, cols Columns) (*state.History, error) {
	df, err := ParseCSV(r)
	if err != nil {
		return nil, err
	}
	df.FileName = name
	return s.History(df, cols)
}

// History turns a parsed frame into a dataset. Every row must carry a
// numeric size and effort; a bad row fails the whole load with its line
// number.
func (s *CSVService) History(df *state.DataFrame, cols Columns) (*state.History, error) {
	if len(df.Rows) == 0 {
		return nil, ErrNoRows
	}
	sizeIdx, effortIdx, err := s.resolveColumns(df, cols)
	if err != nil {
		return nil, err
	}
	idIdx := projectIDColumn(df, sizeIdx, effortIdx)

	sizes := make([]float64, 0, len(df.Rows))
	efforts := make([]float64, 0, len(df.Rows))
	var ids []string
	for i, row := range df.Rows {
		line := i + 2 // header is line 1
		size, err := cell(row, sizeIdx, df.Headers[sizeIdx], line)
		if err != nil {
			return nil, err
		}
		effort, err := cell(row, effortIdx, df.Headers[effortIdx], line)
		if err != nil {
			return nil, err
		}
		sizes = append(sizes, size)
		efforts = append(efforts, effort)
		if idIdx >= 0 && idIdx < len(row) {
			ids = append(ids, row[idIdx])
		}
	}

	ds, err := probe.NewDataset(sizes, efforts)
	if err != nil {
		return nil, err
	}
	return &state.History{
		Source:       "csv",
		Name:         df.FileName,
		SizeColumn:   df.Headers[sizeIdx],
		EffortColumn: df.Headers[effortIdx],
		ProjectIDs:   ids,
		Dataset:      ds,
		LoadedAt:     time.Now(),
	}, nil
}

// ParseCSV reads a header row and data rows. Comma and semicolon
// delimiters are accepted; the one that splits the header into more
// fields wins.
func ParseCSV(r io.Reader) (*state.DataFrame, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = detectDelimiter(data)
	reader.FieldsPerRecord = -1 // Allow variable fields
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err == io.EOF {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read headers: %w", err)
	}

	// Clean headers
	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
	}

	rows := [][]string{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		for i := range record {
			record[i] = strings.TrimSpace(record[i])
		}
		rows = append(rows, record)
	}

	return &state.DataFrame{
		Headers: headers,
		Rows:    rows,
	}, nil
}

func detectDelimiter(data []byte) rune {
	firstLine := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		firstLine = data[:i]
	}
	if bytes.Count(firstLine, []byte(";")) > bytes.Count(firstLine, []byte(",")) {
		return ';'
	}
	return ','
}

func (s *CSVService) resolveColumns(df *state.DataFrame, cols Columns) (int, int, error) {
	if cols.Size == "" {
		cols.Size = s.defaults.Size
	}
	if cols.Effort == "" {
		cols.Effort = s.defaults.Effort
	}

	sizeIdx, effortIdx := df.ColumnIndex(cols.Size), df.ColumnIndex(cols.Effort)
	if sizeIdx >= 0 && effortIdx >= 0 {
		return sizeIdx, effortIdx, nil
	}

	// Fall back to the first two numeric, non-identifier columns, but only
	// when the caller did not insist on a name that is missing.
	candidates := numericMeasureColumns(df)
	if sizeIdx < 0 {
		if explicit(cols.Size, s.defaults.Size) || len(candidates) < 2 {
			return -1, -1, fmt.Errorf("%w: size column %q", ErrColumnNotFound, cols.Size)
		}
		sizeIdx = candidates[0]
	}
	if effortIdx < 0 {
		if explicit(cols.Effort, s.defaults.Effort) {
			return -1, -1, fmt.Errorf("%w: effort column %q", ErrColumnNotFound, cols.Effort)
		}
		for _, c := range candidates {
			if c != sizeIdx {
				effortIdx = c
				break
			}
		}
		if effortIdx < 0 {
			return -1, -1, fmt.Errorf("%w: effort column %q", ErrColumnNotFound, cols.Effort)
		}
	}
	return sizeIdx, effortIdx, nil
}

// explicit reports whether name was requested by the caller rather than
// taken from the defaults.
func explicit(name, def string) bool {
	return name != "" && name != def
}

func numericMeasureColumns(df *state.DataFrame) []int {
	numeric := df.GetNumericColumnIndices()
	var out []int
	for i, h := range df.Headers {
		if !numeric[i] || isIdentifierName(h) {
			continue
		}
		out = append(out, i)
	}
	return out
}

func projectIDColumn(df *state.DataFrame, sizeIdx, effortIdx int) int {
	for i, h := range df.Headers {
		if i == sizeIdx || i == effortIdx {
			continue
		}
		if isIdentifierName(h) || inferColumnType(df.Rows, i) == "string" {
			return i
		}
	}
	return -1
}

func cell(row []string, idx int, column string, line int) (float64, error) {
	if idx >= len(row) {
		return 0, fmt.Errorf("%w: line %d has no %q value", ErrBadValue, line, column)
	}
	v, err := strconv.ParseFloat(row[idx], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: line %d, column %q: %q", ErrBadValue, line, column, row[idx])
	}
	return v, nil
}

func isIdentifierName(name string) bool {
	lower := strings.ToLower(name)
	return lower == "id" || containsAny(lower, []string{"proyecto", "project", "code", "codigo", "código", "key"})
}

func inferColumnType(rows [][]string, colIndex int) string {
	// Check a sample of rows
	sampleSize := 20
	if len(rows) < sampleSize {
		sampleSize = len(rows)
	}

	isInt := true
	isFloat := true
	for i := 0; i < sampleSize; i++ {
		if colIndex >= len(rows[i]) {
			continue
		}
		val := rows[i][colIndex]
		if val == "" {
			continue // Skip empties
		}

		if _, err := strconv.Atoi(val); err != nil {
			isInt = false
		}
		if _, err := strconv.ParseFloat(val, 64); err != nil {
			isFloat = false
		}
	}

	if isInt {
		return "int"
	}
	if isFloat {
		return "float"
	}
	return "string"
}

func containsAny(s string, substrings []string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
