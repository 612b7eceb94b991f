package models

import "time"

// Run statuses, in the order a report run moves through them.
const (
	RunValidating  = "VALIDATING"
	RunExtracting  = "EXTRACTING"
	RunReconciling = "RECONCILING"
	RunComplete    = "COMPLETE"
	RunFailed      = "FAILED"
)

// Run kinds.
const (
	RunKindReport  = "report"
	RunKindExtract = "extract"
	RunKindCompare = "compare"
)

// RunDocument is the ledger record for one report generation.
// It tracks the overall status and the inputs that produced the output.
// FileHash digests every input hash, so one value identifies the input set.
type RunDocument struct {
	RunID        string            `firestore:"runId,omitempty"`
	Kind         string            `firestore:"kind,omitempty"`
	Status       string            `firestore:"status,omitempty"`
	FileHash     string            `firestore:"fileHash,omitempty"`
	InputHashes  map[string]string `firestore:"inputHashes,omitempty"`
	OutputName   string            `firestore:"outputName,omitempty"`
	OutputHash   string            `firestore:"outputHash,omitempty"`
	ProgramCount int               `firestore:"programCount,omitempty"`
	Summary      map[string]int    `firestore:"summary,omitempty"`
	ErrorDetails string            `firestore:"errorDetails,omitempty"`
	CreatedAt    time.Time         `firestore:"createdAt,omitempty"`
}

// RunOutcome is what a completed run produced.
type RunOutcome struct {
	OutputName string
	// OutputHash is the sha256 of the bytes saved under OutputName.
	OutputHash   string
	ProgramCount int
	// Summary counts report rows per approval outcome. Extract runs leave it
	// empty.
	Summary map[string]int
}
