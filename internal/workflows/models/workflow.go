// Package models defines ingestion workflow state. A workflow carries a record
// draft through validation, merging and upload, halting whenever a curator or
// an external system has to answer back.
package models

import (
	"encoding/json"

	"github.com/google/uuid"

	recmodels "bibflow/internal/records/models"
)

// Status is the coarse lifecycle state of a workflow.
type Status string

const (
	StatusRunning   Status = "running"
	StatusWaiting   Status = "waiting"
	StatusHalted    Status = "halted"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Stage names why a non-running workflow stopped where it did.
type Stage string

const (
	StageUploadPending    Stage = "upload_pending"
	StageIndexPending     Stage = "index_pending"
	StageConflictHalted   Stage = "conflict_halted"
	StageValidationHalted Stage = "validation_halted"
	StageError            Stage = "error"
)

// Conflict is one unresolved divergence between the stored record and an
// incoming update, addressed by the path into the document.
type Conflict struct {
	Path   []string `json:"path"`
	Stored any      `json:"stored"`
	Update any      `json:"update"`
}

// ExtraData is the workflow's side-channel state: everything callbacks read
// and write that is not record metadata itself.
type ExtraData struct {
	CallbackURL      string          `json:"callback_url,omitempty"`
	Conflicts        []Conflict      `json:"conflicts,omitempty"`
	MergerRoot       map[string]any  `json:"merger_root,omitempty"`
	IsUpdate         bool            `json:"is-update,omitempty"`
	RecID            int64           `json:"recid,omitempty"`
	URL              string          `json:"url,omitempty"`
	CallbackResult   json.RawMessage `json:"callback_result,omitempty"`
	ErrorMessage     string          `json:"_error_msg,omitempty"`
	ValidationErrors []any           `json:"validation_errors,omitempty"`
	Source           string          `json:"source,omitempty"`
	Approved         bool            `json:"approved,omitempty"`
	Merged           bool            `json:"merged,omitempty"`
}

// Workflow is one ingestion run.
type Workflow struct {
	ID     uuid.UUID
	Status Status
	Stage  Stage
	Data   *recmodels.Record
	Extra  ExtraData
}

// Halted reports whether the workflow sits waiting for an external answer.
func (w *Workflow) Halted() bool {
	return w.Status == StatusHalted || w.Status == StatusWaiting
}
