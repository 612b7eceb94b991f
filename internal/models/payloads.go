package models

// These structs define the JSON payloads returned by the HTTP functions.

// ReportResponse describes a generated catalog report when the caller asks for
// JSON instead of the spreadsheet bytes.
type ReportResponse struct {
	Status       string   `json:"status"`
	RunID        string   `json:"runId"`
	OutputName   string   `json:"outputName"`
	OutputURI    string   `json:"outputUri"`
	ProgramCount int      `json:"programCount"`
	Reused       bool     `json:"reused,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
}

// CompareResponse is the output of the compare-reports function.
type CompareResponse struct {
	Status     string        `json:"status"`
	Diagnostic string        `json:"diagnostic,omitempty"`
	Added      []string      `json:"added"`
	Removed    []string      `json:"removed"`
	Changed    []ChangedItem `json:"changed"`
}

// ChangedItem lists the columns that differ for one program.
type ChangedItem struct {
	ProgramName string       `json:"programName"`
	Columns     []ColumnDiff `json:"columns"`
}

// ColumnDiff is one differing cell.
type ColumnDiff struct {
	Column string `json:"column"`
	Old    string `json:"old"`
	New    string `json:"new"`
}

// GCSEvent is the payload of a GCS object-finalized event.
type GCSEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}
