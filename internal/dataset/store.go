package dataset

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"propmatch/internal/model"
)

// TableName is the SQL table the agent queries.
const TableName = "listings"

// Store holds the dataset in an in-memory SQLite database and executes
// read-only queries against it on behalf of the agent.
type Store struct {
	db      *sqlx.DB
	frame   *Frame
	maxRows int
}

// NewStore materializes a Frame into an in-memory SQLite table.
// maxRows caps the number of rows returned per query.
func NewStore(frame *Frame, maxRows int) (*Store, error) {
	db, err := sqlx.Connect("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	// An in-memory database exists per connection; keep exactly one
	db.SetMaxOpenConns(1)

	if maxRows <= 0 {
		maxRows = 50
	}

	s := &Store{db: db, frame: frame, maxRows: maxRows}
	if err := s.createTable(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.insertRecords(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) createTable() error {
	cols := make([]string, len(s.frame.Columns))
	for i, c := range s.frame.Columns {
		cols[i] = fmt.Sprintf("%q %s", c, s.frame.Types[i])
	}
	ddl := fmt.Sprintf("CREATE TABLE %s (%s)", TableName, strings.Join(cols, ", "))
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

func (s *Store) insertRecords() error {
	if len(s.frame.Records) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(s.frame.Columns)), ",")
	query := fmt.Sprintf("INSERT INTO %s VALUES (%s)", TableName, placeholders)

	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	stmt, err := tx.Preparex(query)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range s.frame.Records {
		args := make([]interface{}, len(rec))
		for i, v := range rec {
			args[i] = s.coerce(i, v)
		}
		if _, err := stmt.Exec(args...); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert record: %w", err)
		}
	}

	return tx.Commit()
}

// coerce converts a raw cell to the column's inferred type.
// Empty cells become NULL; unparseable cells fall back to text.
func (s *Store) coerce(col int, value string) interface{} {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil
	}
	switch s.frame.Types[col] {
	case TypeInteger:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	case TypeReal:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return v
}

// RowCount returns the number of data rows in the dataset.
func (s *Store) RowCount() int {
	return len(s.frame.Records)
}

// Schema describes the table for the agent preamble and the schema endpoint.
func (s *Store) Schema() model.SchemaResponse {
	columns := make([]model.Column, len(s.frame.Columns))
	for i, c := range s.frame.Columns {
		columns[i] = model.Column{Name: c, Type: s.frame.Types[i]}
	}
	return model.SchemaResponse{
		Source:  s.frame.Source,
		Sheet:   s.frame.Sheet,
		Rows:    len(s.frame.Records),
		Columns: columns,
	}
}

// Head renders the first n rows as a plain-text table.
func (s *Store) Head(n int) string {
	if n > len(s.frame.Records) {
		n = len(s.frame.Records)
	}
	rows := make([][]string, 0, n)
	for _, rec := range s.frame.Records[:n] {
		rows = append(rows, rec)
	}
	return renderTable(s.frame.Columns, rows, false)
}

// Query executes a read-only SQL query and renders the result for the model.
// Only SELECT (or WITH ... SELECT) statements are allowed; results are
// truncated at maxRows.
func (s *Store) Query(ctx context.Context, query string) (string, error) {
	q := strings.TrimSpace(query)
	q = strings.TrimSuffix(q, ";")
	if strings.Contains(q, ";") {
		return "", fmt.Errorf("only a single statement is allowed")
	}
	upper := strings.ToUpper(q)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return "", fmt.Errorf("only SELECT queries are allowed")
	}

	rows, err := s.db.QueryxContext(ctx, q)
	if err != nil {
		return "", fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return "", fmt.Errorf("failed to read columns: %w", err)
	}

	var records [][]string
	truncated := false
	for rows.Next() {
		if len(records) >= s.maxRows {
			truncated = true
			break
		}
		values, err := rows.SliceScan()
		if err != nil {
			return "", fmt.Errorf("failed to scan row: %w", err)
		}
		rec := make([]string, len(values))
		for i, v := range values {
			rec[i] = formatValue(v)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("failed to read rows: %w", err)
	}

	return renderTable(columns, records, truncated), nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// renderTable formats rows as pipe-separated text with a header line
func renderTable(columns []string, records [][]string, truncated bool) string {
	var b strings.Builder
	b.WriteString(strings.Join(columns, " | "))
	b.WriteString("\n")
	for _, rec := range records {
		b.WriteString(strings.Join(rec, " | "))
		b.WriteString("\n")
	}
	if len(records) == 0 {
		b.WriteString("(no rows)\n")
	}
	if truncated {
		b.WriteString(fmt.Sprintf("(truncated to first %d rows)\n", len(records)))
	}
	return b.String()
}
