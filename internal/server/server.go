// Package server exposes the stored clinical records over HTTP: patient
// reads, bundle uploads, insight generation, and a change-event stream.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

// Server wires the echo router to the store reader, the ingestion
// coordinator, the insights client, and the change-event hub.
type Server struct {
	echo        *echo.Echo
	reader      Reader
	sub         Submitter
	insights    Insights
	hub         *Hub
	uploadDir   string
	watchActive bool
	log         zerolog.Logger
}

// Options carries the optional collaborators. Uploads need an UploadDir
// plus a way to get the saved file ingested: either a Submitter, or
// WatchActive when a directory watcher already covers UploadDir. With a
// watcher active the handler must not submit directly, or the watcher's
// own event would ingest the same upload a second time. A nil Insights
// disables the insight endpoints.
type Options struct {
	Submitter   Submitter
	Insights    Insights
	UploadDir   string
	WatchActive bool
}

func New(reader Reader, hub *Hub, opts Options, log zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		echo:        e,
		reader:      reader,
		sub:         opts.Submitter,
		insights:    opts.Insights,
		hub:         hub,
		uploadDir:   opts.UploadDir,
		watchActive: opts.WatchActive,
		log:         log,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.echo.Group("/api")

	api.GET("/patients", s.listPatients)
	api.GET("/patients/:id", s.getPatient)
	api.GET("/patients/:id/conditions", s.getConditions)
	api.GET("/patients/:id/medications", s.getMedications)
	api.GET("/patients/:id/encounters", s.getEncounters)
	api.GET("/patients/:id/summary", s.getSummary)

	api.POST("/upload-patient", s.uploadPatient)
	api.POST("/notify-data-change", s.notifyDataChange)
	api.GET("/data-events", s.dataEvents)

	api.POST("/patients/:id/insights/medications", s.medicationInsights)
	api.POST("/patients/:id/insights/conditions", s.conditionInsights)
	api.POST("/patients/:id/insights/comprehensive", s.comprehensiveInsights)
	api.POST("/patients/:id/chat", s.chat)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	errc := make(chan error, 1)
	go func() {
		errc <- s.echo.Start(addr)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	}
}
