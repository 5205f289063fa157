// Package handler exposes the callback endpoints external systems report into
// and the ingestion endpoints feeders submit to.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	dErrors "bibflow/pkg/domain-errors"
	"bibflow/pkg/platform/httputil"

	recmodels "bibflow/internal/records/models"
	"bibflow/internal/workflows/models"
	"bibflow/internal/workflows/service"
)

// Service defines the callback and ingestion operations the handler exposes.
type Service interface {
	HandleUploadResults(ctx context.Context, token uuid.UUID, results []service.UploadResult) (map[int64]service.Outcome, error)
	ConfirmIndexed(ctx context.Context, recids []int64) map[int64]service.Outcome
	ResolveValidation(ctx context.Context, id uuid.UUID, metadata *recmodels.Record, extra models.ExtraData) (string, error)
	ResolveMergeConflicts(ctx context.Context, id uuid.UUID, metadata *recmodels.Record, extra models.ExtraData) (string, error)
	Ingest(ctx context.Context, record *recmodels.Record) (*models.Workflow, error)
	ApplyUpdate(ctx context.Context, update *recmodels.Record) (*models.Workflow, error)
}

// Handler wires the workflow endpoints to the service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a workflow handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/workflows", h.HandleIngest)
	r.Post("/workflows/update", h.HandleUpdate)
	r.Post("/callback/upload-result", h.HandleUploadResult)
	r.Post("/callback/index-confirmed", h.HandleIndexConfirmed)
	r.Put("/callback/resolve-validation", h.HandleResolveValidation)
	r.Put("/callback/resolve-merge-conflicts", h.HandleResolveMergeConflicts)
}

// HandleIngest handles POST /workflows requests.
func (h *Handler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var record recmodels.Record
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}

	workflow, err := h.service.Ingest(ctx, &record)
	if err != nil {
		h.logger.ErrorContext(ctx, "ingestion failed",
			"request_id", middleware.GetReqID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, map[string]any{
		"workflow_id":    workflow.ID.String(),
		"status":         workflow.Status,
		"control_number": workflow.Data.ControlNumber,
	})
}

// HandleUpdate handles POST /workflows/update requests.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var update recmodels.Record
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}

	workflow, err := h.service.ApplyUpdate(ctx, &update)
	if err != nil {
		h.logger.ErrorContext(ctx, "update ingestion failed",
			"request_id", middleware.GetReqID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	body := map[string]any{
		"workflow_id": workflow.ID.String(),
		"status":      workflow.Status,
	}
	if len(workflow.Extra.Conflicts) > 0 {
		body["conflicts"] = workflow.Extra.Conflicts
		body["callback_url"] = workflow.Extra.CallbackURL
	}
	httputil.WriteJSON(w, http.StatusOK, body)
}

// HandleUploadResult handles POST /callback/upload-result requests.
func (h *Handler) HandleUploadResult(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetReqID(ctx)

	req, ok := httputil.DecodeAndPrepare[UploadResultRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	outcomes, err := h.service.HandleUploadResults(ctx, req.WorkflowID(), req.Results)
	if err != nil {
		h.writeCallbackError(w, ctx, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, batchResponse(outcomes))
}

// HandleIndexConfirmed handles POST /callback/index-confirmed requests.
func (h *Handler) HandleIndexConfirmed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetReqID(ctx)

	req, ok := httputil.DecodeAndPrepare[IndexConfirmedRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	outcomes := h.service.ConfirmIndexed(ctx, req.Recids)
	httputil.WriteJSON(w, http.StatusOK, batchResponse(outcomes))
}

// HandleResolveValidation handles PUT /callback/resolve-validation requests.
func (h *Handler) HandleResolveValidation(w http.ResponseWriter, r *http.Request) {
	h.handleResolve(w, r, h.service.ResolveValidation)
}

// HandleResolveMergeConflicts handles PUT /callback/resolve-merge-conflicts
// requests.
func (h *Handler) HandleResolveMergeConflicts(w http.ResponseWriter, r *http.Request) {
	h.handleResolve(w, r, h.service.ResolveMergeConflicts)
}

type resolveFunc func(ctx context.Context, id uuid.UUID, metadata *recmodels.Record, extra models.ExtraData) (string, error)

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request, resolve resolveFunc) {
	ctx := r.Context()

	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeCallbackError(w, ctx, &service.CallbackError{
			Code:    service.ErrorCodeMalformed,
			Message: "The workflow request is malformed.",
		})
		return
	}
	if missing := req.MissingKeys(); len(missing) > 0 {
		h.writeCallbackError(w, ctx, &service.CallbackError{
			Code:    service.ErrorCodeMalformed,
			Message: "The workflow request is malformed: missing " + strings.Join(missing, ", "),
		})
		return
	}

	id, metadata, extra, err := req.Parse()
	if err != nil {
		h.writeCallbackError(w, ctx, &service.CallbackError{
			Code:    service.ErrorCodeMalformed,
			Message: "The workflow request is malformed.",
		})
		return
	}

	message, err := resolve(ctx, id, metadata, extra)
	if err != nil {
		h.writeCallbackError(w, ctx, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, MessageResponse{Message: message})
}

// writeCallbackError maps protocol errors to the callback error envelope;
// anything else falls back to the generic domain error mapping.
func (h *Handler) writeCallbackError(w http.ResponseWriter, ctx context.Context, err error) {
	var callbackErr *service.CallbackError
	if errors.As(err, &callbackErr) {
		httputil.WriteJSON(w, callbackErr.HTTPStatus(), CallbackErrorResponse{
			ErrorCode: string(callbackErr.Code),
			Message:   callbackErr.Message,
			Workflow:  callbackErr.Workflow,
		})
		return
	}
	h.logger.ErrorContext(ctx, "callback processing failed",
		"request_id", middleware.GetReqID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}
