package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"bibflow/pkg/platform/audit"
	"bibflow/pkg/platform/sentinel"

	"bibflow/internal/workflows/models"
	"bibflow/internal/workflows/pending"
)

// UploadResult is one record's outcome inside an upload-result callback batch.
type UploadResult struct {
	RecID        int64  `json:"recid"`
	Success      bool   `json:"success"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// HandleUploadResults processes one upload-result batch for the workflow the
// token correlates. Results are independent: a failing result moves the
// workflow to error without aborting its siblings, and duplicate recids after
// the first are logged and skipped. The returned map is keyed by recid.
func (s *Service) HandleUploadResults(ctx context.Context, token uuid.UUID, results []UploadResult) (map[int64]Outcome, error) {
	if _, err := s.getWorkflow(ctx, token); err != nil {
		return nil, err
	}

	outcomes := make(map[int64]Outcome, len(results))
	seen := make(map[int64]struct{}, len(results))

	for _, result := range results {
		if _, dup := seen[result.RecID]; dup {
			s.logger.WarnContext(ctx, "duplicate recid in upload callback batch",
				slog.String("workflow_id", token.String()),
				slog.Int64("recid", result.RecID))
			continue
		}
		seen[result.RecID] = struct{}{}

		var resumeID uuid.UUID
		err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
			outcome, id, err := s.processUploadResult(ctx, token, result)
			if err != nil {
				return err
			}
			outcomes[result.RecID] = outcome
			resumeID = id
			return nil
		})
		if err != nil {
			s.metrics.IncCallback("upload-result", "error")
			s.logger.ErrorContext(ctx, "upload result processing failed",
				slog.String("workflow_id", token.String()),
				slog.Int64("recid", result.RecID),
				slog.String("error", err.Error()))
			outcomes[result.RecID] = Outcome{Success: false, Message: "internal error"}
			continue
		}
		s.metrics.IncCallback("upload-result", "ok")
		if resumeID != uuid.Nil {
			s.signalContinue(ctx, resumeID)
		}
	}
	return outcomes, nil
}

// processUploadResult classifies one result and mutates the workflow inside
// the ambient transaction. It returns the workflow ID to continue after
// commit, or uuid.Nil when the workflow went to error.
func (s *Service) processUploadResult(ctx context.Context, token uuid.UUID, result UploadResult) (Outcome, uuid.UUID, error) {
	workflow, err := s.getWorkflow(ctx, token)
	if err != nil {
		return Outcome{}, uuid.Nil, err
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return Outcome{}, uuid.Nil, err
	}
	workflow.Extra.CallbackResult = payload

	if !result.Success || result.RecID <= 0 {
		message := result.ErrorMessage
		if message == "" {
			message = "upload failed"
		}
		if err := s.failWorkflow(ctx, workflow, message); err != nil {
			return Outcome{}, uuid.Nil, err
		}
		return Outcome{Success: false, Message: message}, uuid.Nil, nil
	}

	if !workflow.Extra.IsUpdate {
		err := s.ledger.Add(ctx, pending.Entry{RecordID: result.RecID, WorkflowID: workflow.ID})
		if errors.Is(err, sentinel.ErrConflict) {
			message := fmt.Sprintf("record %d is already waiting for index confirmation", result.RecID)
			if err := s.failWorkflow(ctx, workflow, message); err != nil {
				return Outcome{}, uuid.Nil, err
			}
			return Outcome{Success: false, Message: message}, uuid.Nil, nil
		}
		if err != nil {
			return Outcome{}, uuid.Nil, err
		}
		workflow.Stage = models.StageIndexPending
	} else {
		workflow.Stage = ""
	}

	workflow.Status = models.StatusRunning
	workflow.Extra.RecID = result.RecID
	workflow.Extra.URL = s.cfg.RecordURL(result.RecID)
	if workflow.Data != nil && workflow.Data.ControlNumber == 0 {
		workflow.Data.ControlNumber = result.RecID
	}

	if err := s.engine.Save(ctx, workflow); err != nil {
		return Outcome{}, uuid.Nil, err
	}
	if err := s.audit.Emit(ctx, audit.Event{
		ID:         uuid.New(),
		Action:     audit.ActionWorkflowResumed,
		RecordID:   fmt.Sprintf("%d", result.RecID),
		WorkflowID: workflow.ID.String(),
		Subject:    "upload-result",
	}); err != nil {
		return Outcome{}, uuid.Nil, err
	}
	return Outcome{Success: true, Message: "workflow resumed"}, workflow.ID, nil
}

// ConfirmIndexed consumes pending-completion entries for the given recids and
// resumes their workflows. A recid with no outstanding entry reports a
// non-fatal "not found" outcome.
func (s *Service) ConfirmIndexed(ctx context.Context, recids []int64) map[int64]Outcome {
	outcomes := make(map[int64]Outcome, len(recids))

	for _, recid := range recids {
		var resumeID uuid.UUID
		err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
			entry, err := s.ledger.FindByRecord(ctx, recid)
			if errors.Is(err, sentinel.ErrNotFound) {
				outcomes[recid] = Outcome{Success: false, Message: "not found"}
				return nil
			}
			if err != nil {
				return err
			}

			workflow, err := s.getWorkflow(ctx, entry.WorkflowID)
			if err != nil {
				// The entry is stale; consume it so it cannot block a re-ingest.
				_ = s.ledger.Delete(ctx, recid)
				outcomes[recid] = Outcome{Success: false, Message: "workflow not found"}
				return nil
			}

			workflow.Status = models.StatusRunning
			workflow.Stage = ""
			// Re-attach the record location on resume. The upload result
			// already set these, but a workflow parked before that change
			// reached it would otherwise resume without its record link.
			workflow.Extra.RecID = recid
			workflow.Extra.URL = s.cfg.RecordURL(recid)
			if workflow.Data != nil && workflow.Data.ControlNumber == 0 {
				workflow.Data.ControlNumber = recid
			}
			if err := s.engine.Save(ctx, workflow); err != nil {
				return err
			}
			if err := s.ledger.Delete(ctx, recid); err != nil {
				return err
			}
			if err := s.audit.Emit(ctx, audit.Event{
				ID:         uuid.New(),
				Action:     audit.ActionWorkflowResumed,
				RecordID:   fmt.Sprintf("%d", recid),
				WorkflowID: workflow.ID.String(),
				Subject:    "index-confirmed",
			}); err != nil {
				return err
			}
			outcomes[recid] = Outcome{Success: true, Message: "workflow resumed"}
			resumeID = workflow.ID
			return nil
		})
		if err != nil {
			s.metrics.IncCallback("index-confirmed", "error")
			s.logger.ErrorContext(ctx, "index confirmation failed",
				slog.Int64("recid", recid),
				slog.String("error", err.Error()))
			outcomes[recid] = Outcome{Success: false, Message: "internal error"}
			continue
		}
		s.metrics.IncCallback("index-confirmed", "ok")
		if resumeID != uuid.Nil {
			s.signalContinue(ctx, resumeID)
		}
	}
	return outcomes
}

func (s *Service) getWorkflow(ctx context.Context, id uuid.UUID) (*models.Workflow, error) {
	workflow, err := s.engine.Get(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, &CallbackError{
			Code:    ErrorCodeWorkflowNotFound,
			Message: fmt.Sprintf("workflow with id %s not found", id),
		}
	}
	return workflow, err
}

func (s *Service) failWorkflow(ctx context.Context, workflow *models.Workflow, message string) error {
	workflow.Status = models.StatusError
	workflow.Stage = models.StageError
	workflow.Extra.ErrorMessage = message
	if err := s.engine.Save(ctx, workflow); err != nil {
		return err
	}
	s.metrics.IncErrored()
	return s.audit.Emit(ctx, audit.Event{
		ID:         uuid.New(),
		Action:     audit.ActionWorkflowErrored,
		WorkflowID: workflow.ID.String(),
		Message:    message,
	})
}

// signalContinue hands the committed workflow to the engine's async
// continuation. Failures are logged; the workflow state is already durable.
func (s *Service) signalContinue(ctx context.Context, id uuid.UUID) {
	if err := s.engine.ContinueAsync(ctx, id); err != nil {
		s.logger.ErrorContext(ctx, "failed to signal workflow continuation",
			slog.String("workflow_id", id.String()),
			slog.String("error", err.Error()))
		return
	}
	s.metrics.IncResumed()
}
