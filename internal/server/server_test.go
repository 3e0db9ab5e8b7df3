package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/kallisto-osint/osinter/config"
	"github.com/kallisto-osint/osinter/internal/agent"
	"github.com/kallisto-osint/osinter/internal/app"
	"github.com/kallisto-osint/osinter/internal/fetch"
	"github.com/kallisto-osint/osinter/internal/search/models"
	"github.com/kallisto-osint/osinter/internal/summarize"
	"github.com/kallisto-osint/osinter/internal/telemetry"
)

type emptySearcher struct{}

func (emptySearcher) Search(context.Context, string, int, models.Filters) ([]models.Result, error) {
	return nil, nil
}

type deadFetcher struct{}

func (deadFetcher) Fetch(_ context.Context, url string) fetch.Document {
	return fetch.Document{URL: url, Status: fetch.StatusError}
}

type cannedLLM struct{}

func (cannedLLM) Complete(context.Context, string, int) (string, error) { return "answer", nil }

func testEngine() *app.Engine {
	cfg := &config.Config{}
	cfg.Investigation = cfg.Investigation.Normalize()
	tele := telemetry.New(cfg.Telemetry)
	pipeline := summarize.NewPipeline(cannedLLM{})
	web := agent.NewWebAgent(emptySearcher{}, deadFetcher{}, pipeline, models.Filters{}, 2)
	return &app.Engine{
		Config:    cfg,
		Telemetry: tele,
		Knowledge: agent.NewKnowledgeAgent(cannedLLM{}, web, pipeline, tele),
	}
}

func TestHealthz(t *testing.T) {
	e := newEcho(testEngine())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	e := newEcho(testEngine())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateInvestigationValidation(t *testing.T) {
	e := newEcho(testEngine())
	req := httptest.NewRequest(http.MethodPost, "/api/investigations",
		strings.NewReader(`{"question":"who?"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "subject")
}

func TestCreateInvestigationEmptyResults(t *testing.T) {
	e := newEcho(testEngine())
	req := httptest.NewRequest(http.MethodPost, "/api/investigations",
		strings.NewReader(`{"subject":"Jane Doe","question":"who is she?","round_limit":1}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"complete"`)
}

func TestListWithoutStore(t *testing.T) {
	e := newEcho(testEngine())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/investigations", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
