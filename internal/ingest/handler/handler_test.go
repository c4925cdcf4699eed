package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"consentlake/internal/ingest"
	"consentlake/internal/ingest/handler/mocks"
	dErrors "consentlake/pkg/domain-errors"
	"consentlake/pkg/platform/validation"
)

type IngestHandlerSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	ingestor *mocks.MockService
	router   chi.Router
}

func TestIngestHandlerSuite(t *testing.T) {
	suite.Run(t, new(IngestHandlerSuite))
}

func (s *IngestHandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.ingestor = mocks.NewMockService(s.ctrl)
	s.router = chi.NewRouter()
	New(s.ingestor, nil).Register(s.router)
}

func (s *IngestHandlerSuite) do(method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func (s *IngestHandlerSuite) TestLog() {
	s.Run("accepted entries return 202", func() {
		s.ingestor.EXPECT().Log(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ any, raw map[string]any, opts ingest.LogOptions) error {
				s.Equal("chat-bot", raw["service"])
				s.Equal("web", opts.CustomFields["channel"])
				s.False(opts.SkipValidation)
				s.False(opts.DisablePII)
				return nil
			})
		rec, body := s.do(http.MethodPost, "/v1/logs",
			`{"entry":{"service":"chat-bot","prompt":"Hi"},"custom_fields":{"channel":"web"}}`)
		s.Equal(http.StatusAccepted, rec.Code)
		s.Equal(float64(1), body["accepted"])
	})

	s.Run("missing entry is a validation error", func() {
		rec, body := s.do(http.MethodPost, "/v1/logs", `{"custom_fields":{}}`)
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Equal("validation_error", body["error"])
	})

	s.Run("invalid entry surfaces the ingestor's validation error", func() {
		s.ingestor.EXPECT().Log(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(dErrors.New(dErrors.CodeValidation, "prompt is required"))
		rec, body := s.do(http.MethodPost, "/v1/logs", `{"entry":{"service":"chat-bot"}}`)
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Equal("prompt is required", body["error_description"])
	})

	s.Run("storage failure maps to 503", func() {
		s.ingestor.EXPECT().Log(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(dErrors.New(dErrors.CodeLogError, "log chat-bot entry: lake unavailable"))
		rec, body := s.do(http.MethodPost, "/v1/logs", `{"entry":{"service":"chat-bot"}}`)
		s.Equal(http.StatusServiceUnavailable, rec.Code)
		s.Equal("log_error", body["error"])
	})
}

func (s *IngestHandlerSuite) TestLogBatch() {
	s.Run("accepts every entry", func() {
		s.ingestor.EXPECT().LogBatch(gomock.Any(), gomock.Len(2), gomock.Any()).Return(nil)
		rec, body := s.do(http.MethodPost, "/v1/logs/batch",
			`{"entries":[{"service":"ai-service","model":"m"},{"service":"ai-service","model":"n"}]}`)
		s.Equal(http.StatusAccepted, rec.Code)
		s.Equal(float64(2), body["accepted"])
	})

	s.Run("empty batch is rejected", func() {
		rec, body := s.do(http.MethodPost, "/v1/logs/batch", `{"entries":[]}`)
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Equal("validation_error", body["error"])
	})

	s.Run("malformed body is rejected", func() {
		rec, body := s.do(http.MethodPost, "/v1/logs/batch", `{"entries":`)
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Equal("bad_request", body["error"])
	})

	s.Run("oversized batch is rejected", func() {
		entries := strings.Repeat(`{"service":"chat-bot"},`, validation.MaxBatchEntries)
		rec, body := s.do(http.MethodPost, "/v1/logs/batch", `{"entries":[`+entries+`{"service":"chat-bot"}]}`)
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Equal("validation_error", body["error"])
	})

	s.Run("long custom field name is rejected", func() {
		long := strings.Repeat("k", validation.MaxFieldNameLength+1)
		rec, body := s.do(http.MethodPost, "/v1/logs/batch",
			`{"entries":[{"service":"chat-bot"}],"custom_fields":{"`+long+`":1}}`)
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Equal("validation_error", body["error"])
	})
}

func (s *IngestHandlerSuite) TestFlush() {
	s.ingestor.EXPECT().Flush(gomock.Any()).Return(nil)
	s.ingestor.EXPECT().BufferStatus().Return(ingest.BufferStatus{MaxSize: 100, Cap: 1000})
	rec, body := s.do(http.MethodPost, "/v1/logs/flush", "")
	s.Equal(http.StatusOK, rec.Code)
	s.Equal(float64(0), body["size"])

	s.ingestor.EXPECT().Flush(gomock.Any()).Return(errors.New("upload raw/chat-bot after 3 attempts"))
	rec, body = s.do(http.MethodPost, "/v1/logs/flush", "")
	s.Equal(http.StatusServiceUnavailable, rec.Code)
	s.Equal("log_error", body["error"])
}

func (s *IngestHandlerSuite) TestBufferStatus() {
	s.ingestor.EXPECT().BufferStatus().Return(ingest.BufferStatus{Size: 7, MaxSize: 100, Cap: 1000, BreakerOpen: true})
	rec, body := s.do(http.MethodGet, "/v1/logs/buffer", "")
	s.Equal(http.StatusOK, rec.Code)
	s.Equal(float64(7), body["size"])
	s.Equal(float64(1000), body["cap"])
	s.Equal(true, body["breaker_open"])
}

func (s *IngestHandlerSuite) TestHealth() {
	s.ingestor.EXPECT().HealthCheck(gomock.Any()).Return(ingest.Health{Status: ingest.StatusHealthy})
	rec, body := s.do(http.MethodGet, "/v1/logs/health", "")
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("healthy", body["status"])

	s.ingestor.EXPECT().HealthCheck(gomock.Any()).Return(ingest.Health{
		Status:  ingest.StatusUnhealthy,
		Details: map[string]any{"error": "access denied"},
	})
	rec, body = s.do(http.MethodGet, "/v1/logs/health", "")
	s.Equal(http.StatusServiceUnavailable, rec.Code)
	s.Equal("unhealthy", body["status"])
}
