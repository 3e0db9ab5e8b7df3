package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kallisto-osint/osinter/config"
	"github.com/kallisto-osint/osinter/internal/agent"
	"github.com/kallisto-osint/osinter/internal/app"
	"github.com/kallisto-osint/osinter/internal/store"
)

// Run assembles the engine and serves the HTTP API until the listener
// fails or the process is stopped.
func Run(ctx context.Context, cfg *config.Config) error {
	eng, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	e := newEcho(eng)
	return e.Start(cfg.Server.Address)
}

// newEcho builds the router around an assembled engine. Split from Run so
// handler tests can drive it through httptest.
func newEcho(eng *app.Engine) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(
		eng.Telemetry.Registry(), promhttp.HandlerOpts{})))

	h := &investigationsHandler{eng: eng}
	api := e.Group("/api")
	api.POST("/investigations", h.create)
	api.GET("/investigations", h.list)
	api.GET("/investigations/:id", h.get)
	return e
}

type investigationsHandler struct {
	eng *app.Engine
}

type investigateRequest struct {
	Subject       string `json:"subject"`
	Question      string `json:"question"`
	Location      string `json:"location"`
	RoundLimit    int    `json:"round_limit"`
	ResultLimit   int    `json:"result_limit"`
	MaxTopics     int    `json:"max_topics"`
	BudgetSeconds int    `json:"budget_seconds"`
}

type investigateResponse struct {
	Investigation *agent.Investigation `json:"investigation"`
	Report        agent.Report         `json:"report"`
}

// create runs an investigation synchronously. The round budget bounds the
// slow part, so the request completes within budget plus synthesis time.
func (h *investigationsHandler) create(c echo.Context) error {
	var req investigateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	areq := agent.Request{
		Subject:  req.Subject,
		Question: req.Question,
		Location: req.Location,
	}
	areq.Config.RoundLimit = req.RoundLimit
	areq.Config.ResultLimit = req.ResultLimit
	areq.Config.MaxTopics = req.MaxTopics
	if req.BudgetSeconds > 0 {
		areq.Config.Budget = time.Duration(req.BudgetSeconds) * time.Second
	}
	if err := areq.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	inv, report, err := h.eng.Run(c.Request().Context(), areq)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, investigateResponse{Investigation: inv, Report: report})
}

func (h *investigationsHandler) list(c echo.Context) error {
	if h.eng.Store == nil {
		return echo.NewHTTPError(http.StatusNotFound, "audit store not configured")
	}
	out, err := h.eng.Store.ListInvestigations(c.Request().Context(), 50)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (h *investigationsHandler) get(c echo.Context) error {
	if h.eng.Store == nil {
		return echo.NewHTTPError(http.StatusNotFound, "audit store not configured")
	}
	inv, report, err := h.eng.Store.GetInvestigation(c.Request().Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "unknown investigation")
	}
	if err != nil {
		return err
	}
	resp := investigateResponse{Investigation: inv}
	if report != nil {
		resp.Report = *report
	}
	return c.JSON(http.StatusOK, resp)
}
