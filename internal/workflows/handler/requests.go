package handler

import (
	"encoding/json"

	"github.com/google/uuid"

	dErrors "bibflow/pkg/domain-errors"

	recmodels "bibflow/internal/records/models"
	"bibflow/internal/workflows/models"
	"bibflow/internal/workflows/service"
)

// UploadResultRequest is the body of POST /callback/upload-result. The nonce
// correlates the batch with the workflow that dispatched the upload.
type UploadResultRequest struct {
	Nonce   string                 `json:"nonce"`
	Results []service.UploadResult `json:"results"`
}

func (r *UploadResultRequest) Validate() error {
	if r.Nonce == "" {
		return dErrors.New(dErrors.CodeBadRequest, "nonce is required")
	}
	if _, err := uuid.Parse(r.Nonce); err != nil {
		return dErrors.New(dErrors.CodeBadRequest, "nonce must be a workflow id")
	}
	if len(r.Results) == 0 {
		return dErrors.New(dErrors.CodeBadRequest, "results must not be empty")
	}
	return nil
}

// WorkflowID returns the parsed correlation token.
func (r *UploadResultRequest) WorkflowID() uuid.UUID {
	id, _ := uuid.Parse(r.Nonce)
	return id
}

// IndexConfirmedRequest is the body of POST /callback/index-confirmed.
type IndexConfirmedRequest struct {
	Recids []int64 `json:"recids"`
}

func (r *IndexConfirmedRequest) Validate() error {
	if len(r.Recids) == 0 {
		return dErrors.New(dErrors.CodeBadRequest, "recids must not be empty")
	}
	return nil
}

// ResolveRequest is the body of the two PUT resolution callbacks. Fields stay
// raw so a missing key is distinguishable from an empty value; the protocol
// requires all three.
type ResolveRequest struct {
	ID        json.RawMessage `json:"id"`
	Metadata  json.RawMessage `json:"metadata"`
	ExtraData json.RawMessage `json:"_extra_data"`
}

// MissingKeys lists the required keys absent from the payload.
func (r *ResolveRequest) MissingKeys() []string {
	var missing []string
	if len(r.ID) == 0 {
		missing = append(missing, "id")
	}
	if len(r.Metadata) == 0 {
		missing = append(missing, "metadata")
	}
	if len(r.ExtraData) == 0 {
		missing = append(missing, "_extra_data")
	}
	return missing
}

// Parse decodes the raw fields into their domain types.
func (r *ResolveRequest) Parse() (uuid.UUID, *recmodels.Record, models.ExtraData, error) {
	var rawID string
	if err := json.Unmarshal(r.ID, &rawID); err != nil {
		return uuid.Nil, nil, models.ExtraData{}, err
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return uuid.Nil, nil, models.ExtraData{}, err
	}

	var metadata recmodels.Record
	if err := json.Unmarshal(r.Metadata, &metadata); err != nil {
		return uuid.Nil, nil, models.ExtraData{}, err
	}

	var extra models.ExtraData
	if err := json.Unmarshal(r.ExtraData, &extra); err != nil {
		return uuid.Nil, nil, models.ExtraData{}, err
	}
	return id, &metadata, extra, nil
}
