package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	txcontext "bibflow/pkg/platform/tx"

	"bibflow/internal/pidstore/minter"
	pidstore "bibflow/internal/pidstore/store"
	"bibflow/internal/platform/config"
	recmodels "bibflow/internal/records/models"
	recstore "bibflow/internal/records/store"
	"bibflow/internal/records/validator"
	"bibflow/internal/workflows/engine"
	"bibflow/internal/workflows/models"
	"bibflow/internal/workflows/pending"
	"bibflow/internal/workflows/service"
	"bibflow/internal/workflows/sources"
)

// HandlerSuite wires the handler over real in-memory components.
type HandlerSuite struct {
	suite.Suite
	router http.Handler
	engine *engine.InMemory
	cfg    *config.Config
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.cfg = &config.Config{
		BaseURL:         "http://inspirehep.local",
		CallbackBaseURL: "http://inspirehep.local",
		ConflictFilters: map[string][]string{
			"arxiv": {"acquisition_source.source"},
		},
	}
	s.engine = engine.NewInMemory()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	records := recstore.NewInMemory()
	m := minter.New(pidstore.NewInMemory(), records, nil, logger, nil)
	svc := service.New(
		s.cfg,
		s.engine,
		pending.NewInMemory(),
		sources.NewInMemory(),
		records,
		m,
		validator.NewLiterature(),
		nil,
		txcontext.NewRunner(nil),
		logger,
		nil,
	)

	r := chi.NewRouter()
	New(svc, logger).Register(r)
	s.router = r
}

func (s *HandlerSuite) request(method, path string, body any) *httptest.ResponseRecorder {
	raw, err := json.Marshal(body)
	s.Require().NoError(err)
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) uploadPendingWorkflow() *models.Workflow {
	workflow := &models.Workflow{
		ID:     uuid.New(),
		Status: models.StatusWaiting,
		Stage:  models.StageUploadPending,
		Data: &recmodels.Record{
			Schema:       "hep",
			Titles:       []recmodels.Title{{Title: "A search"}},
			DocumentType: []string{"article"},
		},
	}
	s.Require().NoError(s.engine.Save(context.Background(), workflow))
	return workflow
}

func (s *HandlerSuite) TestUploadResult_Success() {
	workflow := s.uploadPendingWorkflow()

	rec := s.request(http.MethodPost, "/callback/upload-result", map[string]any{
		"nonce": workflow.ID.String(),
		"results": []map[string]any{
			{"recid": 1000001, "success": true},
		},
	})

	s.Equal(http.StatusOK, rec.Code)
	var body map[string]service.Outcome
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.True(body["1000001"].Success)
}

func (s *HandlerSuite) TestUploadResult_UnknownWorkflow() {
	rec := s.request(http.MethodPost, "/callback/upload-result", map[string]any{
		"nonce": uuid.NewString(),
		"results": []map[string]any{
			{"recid": 1000001, "success": true},
		},
	})

	s.Equal(http.StatusNotFound, rec.Code)
	var body map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.Equal("WORKFLOW_NOT_FOUND", body["error_code"])
}

func (s *HandlerSuite) TestUploadResult_MissingNonce() {
	rec := s.request(http.MethodPost, "/callback/upload-result", map[string]any{
		"results": []map[string]any{
			{"recid": 1000001, "success": true},
		},
	})

	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestIndexConfirmed_NotFoundIsPerReference() {
	rec := s.request(http.MethodPost, "/callback/index-confirmed", map[string]any{
		"recids": []int64{77},
	})

	s.Equal(http.StatusOK, rec.Code)
	var body map[string]service.Outcome
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.False(body["77"].Success)
	s.Equal("not found", body["77"].Message)
}

func (s *HandlerSuite) TestResolveValidation_MissingKeyIsMalformed() {
	rec := s.request(http.MethodPut, "/callback/resolve-validation", map[string]any{
		"id":       uuid.NewString(),
		"metadata": map[string]any{},
	})

	s.Equal(http.StatusBadRequest, rec.Code)
	var body map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.Equal("MALFORMED", body["error_code"])
}

func (s *HandlerSuite) TestResolveValidation_UnknownWorkflowIs404() {
	rec := s.request(http.MethodPut, "/callback/resolve-validation", map[string]any{
		"id":          uuid.NewString(),
		"metadata":    map[string]any{"$schema": "hep"},
		"_extra_data": map[string]any{},
	})

	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *HandlerSuite) TestResolveValidation_RehaltEchoesWorkflow() {
	workflow := s.uploadPendingWorkflow()

	rec := s.request(http.MethodPut, "/callback/resolve-validation", map[string]any{
		"id":          workflow.ID.String(),
		"metadata":    map[string]any{"$schema": "hep"},
		"_extra_data": map[string]any{},
	})

	s.Equal(http.StatusBadRequest, rec.Code)
	var body map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.Equal("VALIDATION_ERROR", body["error_code"])
	s.NotNil(body["workflow"])
}

func (s *HandlerSuite) TestResolveValidation_Success() {
	workflow := s.uploadPendingWorkflow()

	rec := s.request(http.MethodPut, "/callback/resolve-validation", map[string]any{
		"id": workflow.ID.String(),
		"metadata": map[string]any{
			"$schema":       "hep",
			"titles":        []map[string]any{{"title": "Corrected"}},
			"document_type": []string{"article"},
		},
		"_extra_data": map[string]any{},
	})

	s.Equal(http.StatusOK, rec.Code)
	var body map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.Equal("Workflow validated and resumed", body["message"])
}

func (s *HandlerSuite) TestIngest_CreatesWorkflow() {
	rec := s.request(http.MethodPost, "/workflows", map[string]any{
		"$schema":       "hep",
		"titles":        []map[string]any{{"title": "A search"}},
		"document_type": []string{"article"},
		"authors":       []map[string]any{{"full_name": "Jones, Sarah"}},
		"preprint_date": "2001-03-14",
	})

	s.Equal(http.StatusCreated, rec.Code)
	var body map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.NotEmpty(body["workflow_id"])
	s.NotZero(body["control_number"])
}

func (s *HandlerSuite) TestIngest_InvalidRecordRejected() {
	rec := s.request(http.MethodPost, "/workflows", map[string]any{
		"$schema": "hep",
	})

	s.Equal(http.StatusBadRequest, rec.Code)
}
