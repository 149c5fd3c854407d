package athenaq

// Column describes one result field as reported by Athena.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// CellValue holds one of string, int64, float64, json.Number (decimal), bool, or nil for SQL NULL.
type CellValue = interface{}

// QueryResult is the full, in-order result of a query. RowCount always equals len(Rows)
// and every row has one cell per column.
type QueryResult struct {
	Columns  []Column      `json:"columns"`
	Rows     [][]CellValue `json:"rows"`
	RowCount int           `json:"row_count"`
}

// NewQueryResult builds a QueryResult, keeping RowCount in step with rows.
func NewQueryResult(columns []Column, rows [][]CellValue) *QueryResult {
	if columns == nil {
		columns = []Column{}
	}
	if rows == nil {
		rows = [][]CellValue{}
	}
	return &QueryResult{Columns: columns, Rows: rows, RowCount: len(rows)}
}

// ColumnNames returns the column names in result order.
func (r *QueryResult) ColumnNames() []string {
	names := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		names[i] = c.Name
	}
	return names
}

// ExecutionState is the lifecycle state of a remote query.
type ExecutionState string

const (
	StateSubmitted ExecutionState = "SUBMITTED"
	StateRunning   ExecutionState = "RUNNING"
	StateSucceeded ExecutionState = "SUCCEEDED"
	StateFailed    ExecutionState = "FAILED"
	StateCancelled ExecutionState = "CANCELLED"
)

// Terminal reports whether the query will not transition further.
func (s ExecutionState) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateCancelled:
		return true
	}
	return false
}

// ExecutionStatus is one observation of a remote query.
type ExecutionStatus struct {
	State ExecutionState

	// Reason is the service's own explanation for a FAILED or CANCELLED state.
	Reason string

	// ResultLocation is the output location the service reported, if any.
	ResultLocation string
}
