package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type HealthSuite struct {
	suite.Suite
	handler *Handler
	router  chi.Router
}

func TestHealthSuite(t *testing.T) {
	suite.Run(t, new(HealthSuite))
}

func (s *HealthSuite) SetupTest() {
	s.handler = New("test", "HUB")
	s.router = chi.NewRouter()
	s.handler.Register(s.router)
}

func (s *HealthSuite) get(path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func (s *HealthSuite) TestLiveness() {
	rr := s.get("/health/live")
	s.Equal(http.StatusOK, rr.Code)
	s.Contains(rr.Body.String(), `"alive"`)
}

func (s *HealthSuite) TestStatusIncludesMode() {
	rr := s.get("/health")
	s.Equal(http.StatusOK, rr.Code)

	var resp StatusResponse
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &resp))
	s.Equal("HUB", resp.Mode)
	s.Equal("test", resp.Environment)
}

func (s *HealthSuite) TestReadiness() {
	s.Run("ready with passing checks", func() {
		s.handler.RegisterCheck("postgres", func(context.Context) error { return nil })
		rr := s.get("/health/ready")
		s.Equal(http.StatusOK, rr.Code)
	})

	s.Run("not ready when a check fails", func() {
		s.handler.RegisterCheck("redis", func(context.Context) error { return errors.New("connection refused") })
		rr := s.get("/health/ready")
		s.Equal(http.StatusServiceUnavailable, rr.Code)

		var resp ReadinessResponse
		s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &resp))
		s.Equal("not_ready", resp.Status)
		s.Equal("up", resp.Checks["postgres"])
		s.Equal("down: connection refused", resp.Checks["redis"])
	})
}

func TestReadinessCheckReceivesDeadline(t *testing.T) {
	h := New("test", "SILO")
	h.RegisterCheck("mongo", func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		require.True(t, ok)
		return nil
	})

	rr := httptest.NewRecorder()
	h.HandleReadiness(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}
