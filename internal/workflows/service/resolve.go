package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"bibflow/pkg/platform/audit"
	"bibflow/pkg/platform/sentinel"

	recmodels "bibflow/internal/records/models"
	"bibflow/internal/records/validator"
	"bibflow/internal/workflows/models"
	"bibflow/internal/workflows/sources"
)

const literatureSchema = "hep"

// ResolveValidation installs curator-corrected metadata on a halted workflow.
// Metadata that still fails validation re-halts the workflow with fresh
// diagnostics and a new resolve URL; the re-halt is durable even though the
// request fails.
func (s *Service) ResolveValidation(ctx context.Context, id uuid.UUID, metadata *recmodels.Record, extra models.ExtraData) (string, error) {
	var rehalt *CallbackError

	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		workflow, err := s.getWorkflow(ctx, id)
		if err != nil {
			return err
		}

		workflow.Data = metadata
		workflow.Extra = extra

		if issues := s.validator.Validate(literatureSchema, metadata); len(issues) > 0 {
			workflow.Extra.ValidationErrors = validationDetails(issues)
			workflow.Extra.CallbackURL = s.cfg.ResolveValidationURL()
			workflow.Status = models.StatusHalted
			workflow.Stage = models.StageValidationHalted
			if err := s.engine.Save(ctx, workflow); err != nil {
				return err
			}
			s.metrics.IncHalted()
			rehalt = &CallbackError{
				Code:     ErrorCodeValidation,
				Message:  "validation error on workflow",
				Workflow: workflowPayload(workflow),
			}
			return nil
		}

		workflow.Extra.ValidationErrors = nil
		workflow.Extra.CallbackURL = ""
		if workflow.Status != models.StatusCompleted {
			workflow.Status = models.StatusRunning
			workflow.Stage = ""
		}
		if err := s.engine.Save(ctx, workflow); err != nil {
			return err
		}
		return s.audit.Emit(ctx, audit.Event{
			ID:         uuid.New(),
			Action:     audit.ActionWorkflowResumed,
			WorkflowID: workflow.ID.String(),
			Subject:    "resolve-validation",
		})
	})
	if err != nil {
		s.metrics.IncCallback("resolve-validation", "error")
		return "", err
	}
	if rehalt != nil {
		s.metrics.IncCallback("resolve-validation", "validation_error")
		return "", rehalt
	}

	s.metrics.IncCallback("resolve-validation", "ok")
	s.signalContinue(ctx, id)
	return "Workflow validated and resumed", nil
}

// ResolveMergeConflicts installs a curator's conflict resolution. A payload
// that still lists conflicts is saved halted for a later session; a clean one
// commits the merged record, moves the source snapshot forward, reconciles
// identifiers and resumes the workflow.
func (s *Service) ResolveMergeConflicts(ctx context.Context, id uuid.UUID, metadata *recmodels.Record, extra models.ExtraData) (string, error) {
	savedWithConflicts := false

	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		workflow, err := s.getWorkflow(ctx, id)
		if err != nil {
			return err
		}

		workflow.Data = metadata
		workflow.Extra = extra

		if len(extra.Conflicts) > 0 {
			workflow.Extra.CallbackURL = s.cfg.ResolveMergeConflictsURL()
			workflow.Status = models.StatusHalted
			workflow.Stage = models.StageConflictHalted
			savedWithConflicts = true
			return s.engine.Save(ctx, workflow)
		}

		source := workflow.Extra.Source
		if source == "" {
			source = metadata.Source()
		}

		recordID, _, err := s.records.FindByControlNumber(ctx, metadata.ControlNumber)
		if errors.Is(err, sentinel.ErrNotFound) {
			return &CallbackError{
				Code:    ErrorCodeMalformed,
				Message: fmt.Sprintf("no record with control number %d", metadata.ControlNumber),
			}
		}
		if err != nil {
			return err
		}

		if err := s.minter.Reconcile(ctx, recordID, metadata); err != nil {
			return err
		}

		raw, err := json.Marshal(metadata)
		if err != nil {
			return err
		}
		if err := s.snapshots.Write(ctx, sources.Snapshot{
			RecordID: recordID,
			Source:   source,
			JSON:     raw,
		}); err != nil {
			return err
		}

		workflow.Data = metadata
		workflow.Extra.Conflicts = nil
		workflow.Extra.MergerRoot = nil
		workflow.Extra.CallbackURL = ""
		workflow.Extra.Approved = true
		workflow.Extra.Merged = true
		workflow.Status = models.StatusRunning
		workflow.Stage = ""
		if err := s.engine.Save(ctx, workflow); err != nil {
			return err
		}
		return s.audit.Emit(ctx, audit.Event{
			ID:         uuid.New(),
			Action:     audit.ActionWorkflowResumed,
			RecordID:   recordID.String(),
			WorkflowID: workflow.ID.String(),
			Subject:    "resolve-merge-conflicts",
		})
	})
	if err != nil {
		s.metrics.IncCallback("resolve-merge-conflicts", "error")
		return "", err
	}
	if savedWithConflicts {
		s.metrics.IncCallback("resolve-merge-conflicts", "saved")
		return "Workflow saved with conflicts", nil
	}

	s.metrics.IncCallback("resolve-merge-conflicts", "ok")
	s.signalContinue(ctx, id)
	return "Workflow resumed", nil
}

func validationDetails(issues []validator.Issue) []any {
	details := make([]any, 0, len(issues))
	for _, issue := range issues {
		details = append(details, issue)
	}
	return details
}

// workflowPayload is the re-halted state echoed back to the caller so they can
// correct and resubmit.
func workflowPayload(workflow *models.Workflow) map[string]any {
	return map[string]any{
		"id":          workflow.ID.String(),
		"metadata":    workflow.Data,
		"_extra_data": workflow.Extra,
	}
}
