package handler

import (
	"strconv"

	"bibflow/internal/workflows/service"
)

// BatchResponse maps each recid to its outcome. JSON object keys are strings,
// so recids are formatted at the boundary.
type BatchResponse map[string]service.Outcome

func batchResponse(outcomes map[int64]service.Outcome) BatchResponse {
	out := make(BatchResponse, len(outcomes))
	for recid, outcome := range outcomes {
		out[strconv.FormatInt(recid, 10)] = outcome
	}
	return out
}

// MessageResponse is the success body of the resolution callbacks.
type MessageResponse struct {
	Message string `json:"message"`
}

// CallbackErrorResponse is the protocol error envelope. Workflow carries the
// re-halted state on validation failures so the caller can correct and
// resubmit.
type CallbackErrorResponse struct {
	ErrorCode string         `json:"error_code"`
	Message   string         `json:"message"`
	Workflow  map[string]any `json:"workflow,omitempty"`
}
