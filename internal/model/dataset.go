package model

// Column describes one column of the loaded dataset
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"` // INTEGER, REAL or TEXT
}

// SchemaResponse describes the loaded dataset for the UI and the agent
type SchemaResponse struct {
	Source  string   `json:"source"`
	Sheet   string   `json:"sheet"`
	Rows    int      `json:"rows"`
	Columns []Column `json:"columns"`
}
