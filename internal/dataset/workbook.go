package dataset

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Column type names as used in the generated SQLite schema.
const (
	TypeInteger = "INTEGER"
	TypeReal    = "REAL"
	TypeText    = "TEXT"
)

// Frame is a tabular dataset loaded from a spreadsheet sheet.
// Column names are sanitized to valid SQL identifiers; the original
// header text is kept for display.
type Frame struct {
	Source  string
	Sheet   string
	Columns []string   // sanitized identifiers
	Headers []string   // original header cells
	Types   []string   // inferred type per column
	Records [][]string // raw cell values, padded to len(Columns)
}

// LoadWorkbook reads one sheet of an .xlsx workbook into a Frame.
// sheetIndex is zero-based. The first row is treated as the header.
func LoadWorkbook(path string, sheetIndex int) (*Frame, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if sheetIndex < 0 || sheetIndex >= len(sheets) {
		return nil, fmt.Errorf("workbook %s has %d sheets, sheet index %d out of range", path, len(sheets), sheetIndex)
	}
	sheet := sheets[sheetIndex]

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheet)
	}

	return NewFrame(path, sheet, rows[0], rows[1:])
}

// NewFrame builds a Frame from a header row and data records.
func NewFrame(source, sheet string, headers []string, records [][]string) (*Frame, error) {
	if len(headers) == 0 {
		return nil, fmt.Errorf("dataset has no columns")
	}

	columns := sanitizeColumns(headers)

	// Pad short records so every row has one value per column
	padded := make([][]string, len(records))
	for i, rec := range records {
		row := make([]string, len(columns))
		copy(row, rec)
		padded[i] = row
	}

	frame := &Frame{
		Source:  source,
		Sheet:   sheet,
		Columns: columns,
		Headers: append([]string(nil), headers...),
		Records: padded,
	}
	frame.Types = inferTypes(frame)

	return frame, nil
}

var identifierCleaner = regexp.MustCompile(`[^a-z0-9_]+`)

// sanitizeColumns converts header cells into unique SQL identifiers
func sanitizeColumns(headers []string) []string {
	seen := make(map[string]int, len(headers))
	columns := make([]string, len(headers))

	for i, h := range headers {
		name := strings.ToLower(strings.TrimSpace(h))
		name = identifierCleaner.ReplaceAllString(name, "_")
		name = strings.Trim(name, "_")
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		if name[0] >= '0' && name[0] <= '9' {
			name = "c_" + name
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = fmt.Sprintf("%s_%d", name, n+1)
		}
		seen[name] = 1
		columns[i] = name
	}

	return columns
}

// inferTypes picks the narrowest SQLite type that fits every non-empty
// value in a column. Columns with no values default to TEXT.
func inferTypes(f *Frame) []string {
	types := make([]string, len(f.Columns))

	for col := range f.Columns {
		allInt, allReal, hasValue := true, true, false
		for _, rec := range f.Records {
			v := strings.TrimSpace(rec[col])
			if v == "" {
				continue
			}
			hasValue = true
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				allInt = false
			}
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				allReal = false
				break
			}
		}

		switch {
		case !hasValue:
			types[col] = TypeText
		case allInt:
			types[col] = TypeInteger
		case allReal:
			types[col] = TypeReal
		default:
			types[col] = TypeText
		}
	}

	return types
}
