package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	dErrors "bibflow/pkg/domain-errors"
	"bibflow/pkg/platform/audit"
	"bibflow/pkg/platform/sentinel"

	recmodels "bibflow/internal/records/models"
	"bibflow/internal/workflows/merge"
	"bibflow/internal/workflows/models"
	"bibflow/internal/workflows/sources"
)

// Ingest starts an ingestion workflow for a brand-new record: the record is
// created, its identifiers reconciled, and the workflow parked waiting for the
// external upload side effect whose callback will resume it.
func (s *Service) Ingest(ctx context.Context, record *recmodels.Record) (*models.Workflow, error) {
	if issues := s.validator.Validate(literatureSchema, record); len(issues) > 0 {
		return nil, dErrors.Newf(dErrors.CodeValidation, "record failed validation: %v", issues[0].Message)
	}

	workflow := &models.Workflow{
		ID:     uuid.New(),
		Status: models.StatusWaiting,
		Stage:  models.StageUploadPending,
		Extra:  models.ExtraData{Source: record.Source()},
	}

	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		recordID, err := s.records.Create(ctx, record)
		if err != nil {
			return err
		}
		if err := s.minter.Reconcile(ctx, recordID, record); err != nil {
			return err
		}

		raw, err := json.Marshal(record)
		if err != nil {
			return err
		}
		if source := record.Source(); source != "" {
			if err := s.snapshots.Write(ctx, sources.Snapshot{
				RecordID: recordID,
				Source:   source,
				JSON:     raw,
			}); err != nil {
				return err
			}
		}

		workflow.Data = record
		return s.engine.Save(ctx, workflow)
	})
	if err != nil {
		return nil, err
	}
	return workflow, nil
}

// ApplyUpdate runs the update path for a record that already exists: a
// three-way merge of the update against the stored record and the source's
// last snapshot. Conflict-free merges commit immediately; conflicts halt the
// workflow with the proposal attached and leave the snapshot untouched, so a
// second update against the same stale baseline sees the same conflicts.
func (s *Service) ApplyUpdate(ctx context.Context, update *recmodels.Record) (*models.Workflow, error) {
	if update.ControlNumber == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "update requires a control number")
	}

	workflow := &models.Workflow{
		ID:     uuid.New(),
		Status: models.StatusRunning,
		Extra:  models.ExtraData{IsUpdate: true, Source: update.Source()},
	}

	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		recordID, stored, err := s.records.FindByControlNumber(ctx, update.ControlNumber)
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Newf(dErrors.CodeNotFound, "no record with control number %d", update.ControlNumber)
		}
		if err != nil {
			return err
		}

		source := update.Source()
		base := map[string]any{}
		snapshot, err := s.snapshots.Read(ctx, recordID, source)
		switch {
		case err == nil:
			if err := json.Unmarshal(snapshot.JSON, &base); err != nil {
				return fmt.Errorf("decoding source snapshot: %w", err)
			}
		case errors.Is(err, sentinel.ErrNotFound):
			// First contribution from this source merges against nothing.
		default:
			return err
		}

		storedDoc, err := stored.ToMap()
		if err != nil {
			return err
		}
		updateDoc, err := update.ToMap()
		if err != nil {
			return err
		}

		result := merge.ThreeWay(base, storedDoc, updateDoc, s.cfg.FiltersFor(source))
		if !result.Clean() {
			workflow.Status = models.StatusHalted
			workflow.Stage = models.StageConflictHalted
			workflow.Data = update
			workflow.Extra.Conflicts = result.Conflicts
			workflow.Extra.MergerRoot = result.Merged
			workflow.Extra.CallbackURL = s.cfg.ResolveMergeConflictsURL()
			workflow.Extra.RecID = update.ControlNumber
			if err := s.engine.Save(ctx, workflow); err != nil {
				return err
			}
			s.metrics.IncHalted()
			return s.audit.Emit(ctx, audit.Event{
				ID:         uuid.New(),
				Action:     audit.ActionWorkflowHalted,
				RecordID:   recordID.String(),
				WorkflowID: workflow.ID.String(),
				Message:    fmt.Sprintf("%d merge conflicts", len(result.Conflicts)),
			})
		}

		merged, err := recordFromDoc(result.Merged)
		if err != nil {
			return err
		}
		if err := s.records.Commit(ctx, recordID, merged); err != nil {
			return err
		}
		if err := s.minter.Reconcile(ctx, recordID, merged); err != nil {
			return err
		}

		raw, err := json.Marshal(merged)
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

		workflow.Status = models.StatusCompleted
		workflow.Data = merged
		workflow.Extra.Merged = true
		workflow.Extra.RecID = update.ControlNumber
		return s.engine.Save(ctx, workflow)
	})
	if err != nil {
		return nil, err
	}
	return workflow, nil
}

func recordFromDoc(doc map[string]any) (*recmodels.Record, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var record recmodels.Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, err
	}
	return &record, nil
}
