// Package status serves a read-only view of a running ingest.
package status

import (
	"context"
	"net/http"
	"time"

	"rapture/progress"
	"rapture/scrape"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/errors"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// Run is what the server reports on. Governor may be nil for runs that make
// no network calls.
type Run struct {
	ID          string
	Source      string
	Started     time.Time
	Progress    *scrape.Progress
	Governor    *scrape.Governor
	FailurePath string
}

type Server struct {
	e      *echo.Echo
	run    Run
	logger *zap.Logger
}

type progressBody struct {
	RunID    string          `json:"run_id"`
	Source   string          `json:"source"`
	Elapsed  string          `json:"elapsed"`
	Counters scrape.Counters `json:"counters"`
	InFlight int64           `json:"in_flight"`
	Peak     int64           `json:"peak"`
	Limit    int             `json:"limit"`
}

type failuresBody struct {
	RunID    string             `json:"run_id"`
	BadLines int                `json:"bad_lines"`
	Failures []progress.Failure `json:"failures"`
}

func New(run Run, logger *zap.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = sonicSerializer{}
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Debug("status request", zap.String("uri", v.URI), zap.Int("status", v.Status))
			return nil
		},
	}))

	s := &Server{e: e, run: run, logger: logger}
	e.GET("/healthz", s.healthz)
	e.GET("/progress", s.progress)
	e.GET("/failures", s.failures)
	return s
}

func (s *Server) Handler() http.Handler { return s.e }

// Start serves on addr in the background. Serve errors other than a normal
// shutdown are logged.
func (s *Server) Start(addr string) {
	go func() {
		if err := s.e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status server", zap.String("addr", addr), zap.Error(err))
		}
	}()
	s.logger.Info("status server listening", zap.String("addr", addr))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

func (s *Server) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok", "run_id": s.run.ID})
}

func (s *Server) progress(c echo.Context) error {
	body := progressBody{
		RunID:   s.run.ID,
		Source:  s.run.Source,
		Elapsed: time.Since(s.run.Started).Round(time.Second).String(),
	}
	if s.run.Progress != nil {
		body.Counters = s.run.Progress.Counters()
	}
	if g := s.run.Governor; g != nil {
		body.InFlight = g.InFlight()
		body.Peak = g.Peak()
		body.Limit = g.Limit()
	}
	return c.JSON(http.StatusOK, body)
}

// failures lists failure log entries for this run, or for every run with
// ?run=all, or for a given run id.
func (s *Server) failures(c echo.Context) error {
	entries, bad, err := progress.ReadFailures(s.run.FailurePath)
	if err != nil {
		s.logger.Error("reading failure log", zap.String("path", s.run.FailurePath), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failure log unreadable")
	}
	runID := c.QueryParam("run")
	if runID == "" {
		runID = s.run.ID
	}
	body := failuresBody{RunID: runID, BadLines: bad, Failures: []progress.Failure{}}
	for _, f := range entries {
		if runID == "all" || f.RunID == runID {
			body.Failures = append(body.Failures, f)
		}
	}
	return c.JSON(http.StatusOK, body)
}

type sonicSerializer struct{}

func (sonicSerializer) Serialize(c echo.Context, i any, indent string) error {
	var (
		b   []byte
		err error
	)
	if indent != "" {
		b, err = sonic.ConfigStd.MarshalIndent(i, "", indent)
	} else {
		b, err = sonic.Marshal(i)
	}
	if err != nil {
		return err
	}
	_, err = c.Response().Write(b)
	return err
}

func (sonicSerializer) Deserialize(c echo.Context, i any) error {
	if err := sonic.ConfigDefault.NewDecoder(c.Request().Body).Decode(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	}
	return nil
}
