package service

import "net/http"

// ErrorCode is the stable machine-readable code returned to callback callers.
type ErrorCode string

const (
	ErrorCodeMalformed        ErrorCode = "MALFORMED"
	ErrorCodeWorkflowNotFound ErrorCode = "WORKFLOW_NOT_FOUND"
	ErrorCodeValidation       ErrorCode = "VALIDATION_ERROR"
)

// CallbackError is a protocol-level failure of one callback request. Workflow
// may carry the re-halted workflow state so the caller can correct and
// resubmit.
type CallbackError struct {
	Code     ErrorCode
	Message  string
	Workflow map[string]any
}

func (e *CallbackError) Error() string {
	return string(e.Code) + ": " + e.Message
}

// HTTPStatus maps the code to its response status.
func (e *CallbackError) HTTPStatus() int {
	switch e.Code {
	case ErrorCodeWorkflowNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}
