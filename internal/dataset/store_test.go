package dataset

import (
	"context"
	"strings"
	"testing"
)

func newTestFrame(t *testing.T) *Frame {
	t.Helper()
	frame, err := NewFrame("test.xlsx", "Listings",
		[]string{"Ref No", "Location/Building Name", "No of Bedrooms", "Price", "Status"},
		[][]string{
			{"R101", "Marina Towers", "3", "1200000", "Active"},
			{"R102", "Central Heights", "2", "850000.50", "Active"},
			{"R103", "Palm Villas", "4", "2400000", "Sold"},
		})
	if err != nil {
		t.Fatalf("NewFrame failed: %v", err)
	}
	return frame
}

func TestSanitizeColumns(t *testing.T) {
	tests := []struct {
		name    string
		headers []string
		want    []string
	}{
		{
			name:    "spaces and punctuation",
			headers: []string{"Ref No", "Location/Building Name", "Price (SGD)"},
			want:    []string{"ref_no", "location_building_name", "price_sgd"},
		},
		{
			name:    "empty and duplicate headers",
			headers: []string{"", "Size", "Size"},
			want:    []string{"column_1", "size", "size_2"},
		},
		{
			name:    "leading digit",
			headers: []string{"24h Security"},
			want:    []string{"c_24h_security"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizeColumns(tt.headers)
			if len(got) != len(tt.want) {
				t.Fatalf("Got %d columns, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Column %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestTypeInference(t *testing.T) {
	frame := newTestFrame(t)

	want := map[string]string{
		"ref_no":                 TypeText,
		"location_building_name": TypeText,
		"no_of_bedrooms":         TypeInteger,
		"price":                  TypeReal, // one value has a decimal point
		"status":                 TypeText,
	}

	for i, col := range frame.Columns {
		if frame.Types[i] != want[col] {
			t.Errorf("Column %s inferred as %s, want %s", col, frame.Types[i], want[col])
		}
	}
}

func TestTypeInference_EmptyCells(t *testing.T) {
	frame, err := NewFrame("t.xlsx", "S",
		[]string{"a", "b"},
		[][]string{{"1", ""}, {"", ""}, {"3", ""}})
	if err != nil {
		t.Fatalf("NewFrame failed: %v", err)
	}
	if frame.Types[0] != TypeInteger {
		t.Errorf("Column with empty cells should still infer INTEGER, got %s", frame.Types[0])
	}
	if frame.Types[1] != TypeText {
		t.Errorf("All-empty column should default to TEXT, got %s", frame.Types[1])
	}
}

func TestStore_Query(t *testing.T) {
	store, err := NewStore(newTestFrame(t), 50)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	result, err := store.Query(ctx, "SELECT ref_no, price FROM listings WHERE no_of_bedrooms = 3")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if !strings.Contains(result, "R101") || !strings.Contains(result, "1200000") {
		t.Errorf("Expected matching row in result, got:\n%s", result)
	}
	if strings.Contains(result, "R102") {
		t.Errorf("Filtered row leaked into result:\n%s", result)
	}
}

func TestStore_QueryNoRows(t *testing.T) {
	store, err := NewStore(newTestFrame(t), 50)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer store.Close()

	result, err := store.Query(context.Background(), "SELECT * FROM listings WHERE no_of_bedrooms = 99")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if !strings.Contains(result, "(no rows)") {
		t.Errorf("Expected empty-result marker, got:\n%s", result)
	}
}

func TestStore_QueryRowCap(t *testing.T) {
	store, err := NewStore(newTestFrame(t), 2)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer store.Close()

	result, err := store.Query(context.Background(), "SELECT * FROM listings")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if !strings.Contains(result, "truncated to first 2 rows") {
		t.Errorf("Expected truncation marker, got:\n%s", result)
	}
}

func TestStore_RejectsNonSelect(t *testing.T) {
	store, err := NewStore(newTestFrame(t), 50)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer store.Close()

	tests := []struct {
		name  string
		query string
	}{
		{"update", "UPDATE listings SET price = 0"},
		{"delete", "DELETE FROM listings"},
		{"drop", "DROP TABLE listings"},
		{"multiple statements", "SELECT 1; DROP TABLE listings"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := store.Query(context.Background(), tt.query); err == nil {
				t.Errorf("Query %q should have been rejected", tt.query)
			}
		})
	}
}

func TestStore_AllowsWithClause(t *testing.T) {
	store, err := NewStore(newTestFrame(t), 50)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer store.Close()

	result, err := store.Query(context.Background(),
		"WITH active AS (SELECT * FROM listings WHERE status = 'Active') SELECT COUNT(*) AS n FROM active;")
	if err != nil {
		t.Fatalf("WITH query failed: %v", err)
	}
	if !strings.Contains(result, "2") {
		t.Errorf("Expected count of 2 active listings, got:\n%s", result)
	}
}

func TestStore_SchemaAndHead(t *testing.T) {
	store, err := NewStore(newTestFrame(t), 50)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer store.Close()

	schema := store.Schema()
	if schema.Rows != 3 {
		t.Errorf("Schema rows = %d, want 3", schema.Rows)
	}
	if len(schema.Columns) != 5 {
		t.Errorf("Schema columns = %d, want 5", len(schema.Columns))
	}
	if schema.Sheet != "Listings" {
		t.Errorf("Schema sheet = %q, want Listings", schema.Sheet)
	}

	head := store.Head(2)
	if !strings.Contains(head, "ref_no") || !strings.Contains(head, "R101") || !strings.Contains(head, "R102") {
		t.Errorf("Head missing expected content:\n%s", head)
	}
	if strings.Contains(head, "R103") {
		t.Errorf("Head(2) should not include the third row:\n%s", head)
	}
}

func TestNewFrame_ShortRecordsPadded(t *testing.T) {
	frame, err := NewFrame("t.xlsx", "S",
		[]string{"a", "b", "c"},
		[][]string{{"1"}, {"2", "x"}})
	if err != nil {
		t.Fatalf("NewFrame failed: %v", err)
	}
	for i, rec := range frame.Records {
		if len(rec) != 3 {
			t.Errorf("Record %d has %d cells, want 3", i, len(rec))
		}
	}

	// Padded frames must still load into a store
	store, err := NewStore(frame, 50)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	store.Close()
}

func TestNewFrame_NoColumns(t *testing.T) {
	if _, err := NewFrame("t.xlsx", "S", nil, nil); err == nil {
		t.Error("Expected error for a frame without columns")
	}
}
