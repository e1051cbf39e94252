package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/gyeh/careview/internal/bundle"
	"github.com/gyeh/careview/internal/model"
	"github.com/gyeh/careview/internal/store"
)

// Reader is the slice of the store the API serves.
type Reader interface {
	ListPatients(ctx context.Context) ([]model.PatientRecord, error)
	SearchPatients(ctx context.Context, q string) ([]model.PatientRecord, error)
	PatientByID(ctx context.Context, id string) (*model.PatientRecord, error)
	ConditionsByPatient(ctx context.Context, patientID string) ([]model.ConditionRecord, error)
	MedicationsByPatient(ctx context.Context, patientID string) ([]model.MedicationRecord, error)
	EncountersByPatient(ctx context.Context, patientID string) ([]model.EncounterRecord, error)
	PatientSummary(ctx context.Context, patientID string) (*model.PatientSummary, error)
}

// Submitter queues a bundle file for ingestion.
type Submitter interface {
	Submit(path string) bool
}

// Insights produces free-text analysis of a patient's record.
type Insights interface {
	Configured() bool
	MedicationInsights(ctx context.Context, p *model.PatientRecord, meds []model.MedicationRecord) (string, error)
	ConditionInsights(ctx context.Context, p *model.PatientRecord, conds []model.ConditionRecord) (string, error)
	ComprehensiveInsights(ctx context.Context, p *model.PatientRecord, conds []model.ConditionRecord, meds []model.MedicationRecord, encs []model.EncounterRecord) (string, error)
	Chat(ctx context.Context, question string, p *model.PatientRecord, conds []model.ConditionRecord, meds []model.MedicationRecord) (string, error)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) listPatients(c echo.Context) error {
	ctx := c.Request().Context()

	var (
		patients []model.PatientRecord
		err      error
	)
	if q := c.QueryParam("q"); q != "" {
		patients, err = s.reader.SearchPatients(ctx, q)
	} else {
		patients, err = s.reader.ListPatients(ctx)
	}
	if err != nil {
		s.log.Error().Err(err).Msg("list patients failed")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to list patients"})
	}
	if patients == nil {
		patients = []model.PatientRecord{}
	}
	return c.JSON(http.StatusOK, patients)
}

func (s *Server) getPatient(c echo.Context) error {
	p, err := s.reader.PatientByID(c.Request().Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "patient not found"})
	}
	if err != nil {
		s.log.Error().Err(err).Str("patient_id", c.Param("id")).Msg("get patient failed")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to load patient"})
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) getConditions(c echo.Context) error {
	conds, err := s.reader.ConditionsByPatient(c.Request().Context(), c.Param("id"))
	if err != nil {
		s.log.Error().Err(err).Str("patient_id", c.Param("id")).Msg("get conditions failed")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to load conditions"})
	}
	if conds == nil {
		conds = []model.ConditionRecord{}
	}
	return c.JSON(http.StatusOK, conds)
}

func (s *Server) getMedications(c echo.Context) error {
	meds, err := s.reader.MedicationsByPatient(c.Request().Context(), c.Param("id"))
	if err != nil {
		s.log.Error().Err(err).Str("patient_id", c.Param("id")).Msg("get medications failed")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to load medications"})
	}
	if meds == nil {
		meds = []model.MedicationRecord{}
	}
	return c.JSON(http.StatusOK, meds)
}

func (s *Server) getEncounters(c echo.Context) error {
	encs, err := s.reader.EncountersByPatient(c.Request().Context(), c.Param("id"))
	if err != nil {
		s.log.Error().Err(err).Str("patient_id", c.Param("id")).Msg("get encounters failed")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to load encounters"})
	}
	if encs == nil {
		encs = []model.EncounterRecord{}
	}
	return c.JSON(http.StatusOK, encs)
}

func (s *Server) getSummary(c echo.Context) error {
	sum, err := s.reader.PatientSummary(c.Request().Context(), c.Param("id"))
	if err != nil {
		s.log.Error().Err(err).Str("patient_id", c.Param("id")).Msg("get summary failed")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to load summary"})
	}
	return c.JSON(http.StatusOK, sum)
}

// uploadPatient accepts a bundle document, validates that it parses and
// names a patient, saves it into the bundle directory, and gets it queued:
// through the Submitter directly, or by the directory watcher's own event
// when one covers the directory.
func (s *Server) uploadPatient(c echo.Context) error {
	if s.uploadDir == "" || (s.sub == nil && !s.watchActive) {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "uploads are not enabled"})
	}

	data, err := readUpload(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	res, err := bundle.Parse(data)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid bundle: %v", err)})
	}
	if res.Records.Patient == nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "bundle contains no patient resource"})
	}

	name := fmt.Sprintf("%s_%s.json", res.Records.Patient.ID, uuid.NewString())
	path := filepath.Join(s.uploadDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		s.log.Error().Err(err).Str("file", name).Msg("save upload failed")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to save bundle"})
	}

	// With a watcher on the directory the write event above queues the file
	// after the stability window; submitting here too would ingest it twice.
	queued := true
	if !s.watchActive {
		queued = s.sub.Submit(path)
	}
	s.log.Info().
		Str("patient_id", res.Records.Patient.ID).
		Str("file", name).
		Bool("queued", queued).
		Msg("bundle uploaded")

	return c.JSON(http.StatusAccepted, map[string]any{
		"patient_id": res.Records.Patient.ID,
		"file":       name,
		"queued":     queued,
	})
}

// readUpload takes the bundle either as a multipart "file" part or as the
// raw request body.
func readUpload(c echo.Context) ([]byte, error) {
	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open uploaded file: %w", err)
		}
		defer f.Close()
		return io.ReadAll(f)
	}

	ct := c.Request().Header.Get(echo.HeaderContentType)
	if !strings.HasPrefix(ct, echo.MIMEApplicationJSON) {
		return nil, fmt.Errorf("expected a multipart file or a JSON body")
	}
	return io.ReadAll(c.Request().Body)
}

// notifyDataChange lets an out-of-process ingester signal connected viewers.
func (s *Server) notifyDataChange(c echo.Context) error {
	if err := s.hub.DataChanged(c.Request().Context()); err != nil {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "broadcast failed"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// dataEvents streams change notifications as server-sent events.
func (s *Server) dataEvents(c echo.Context) error {
	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set(echo.HeaderCacheControl, "no-cache")
	w.Header().Set(echo.HeaderConnection, "keep-alive")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	events, cancel := s.hub.Subscribe()
	defer cancel()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			fmt.Fprintf(w, "event: data-changed\ndata: {\"timestamp\":%q}\n\n", ev.Timestamp.Format(time.RFC3339))
			w.Flush()
		}
	}
}

func (s *Server) insightsEnabled() bool {
	return s.insights != nil && s.insights.Configured()
}

func (s *Server) medicationInsights(c echo.Context) error {
	if !s.insightsEnabled() {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "insights are not configured"})
	}
	p, meds, _, _, err := s.loadRecord(c, false, true, false)
	if err != nil {
		return s.recordError(c, err)
	}
	text, err := s.insights.MedicationInsights(c.Request().Context(), p, meds)
	return s.insightsReply(c, text, err)
}

func (s *Server) conditionInsights(c echo.Context) error {
	if !s.insightsEnabled() {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "insights are not configured"})
	}
	p, _, conds, _, err := s.loadRecord(c, true, false, false)
	if err != nil {
		return s.recordError(c, err)
	}
	text, err := s.insights.ConditionInsights(c.Request().Context(), p, conds)
	return s.insightsReply(c, text, err)
}

func (s *Server) comprehensiveInsights(c echo.Context) error {
	if !s.insightsEnabled() {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "insights are not configured"})
	}
	p, meds, conds, encs, err := s.loadRecord(c, true, true, true)
	if err != nil {
		return s.recordError(c, err)
	}
	text, err := s.insights.ComprehensiveInsights(c.Request().Context(), p, conds, meds, encs)
	return s.insightsReply(c, text, err)
}

type chatRequest struct {
	Question string `json:"question"`
}

func (s *Server) chat(c echo.Context) error {
	if !s.insightsEnabled() {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "insights are not configured"})
	}
	var req chatRequest
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Question) == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "question is required"})
	}
	p, meds, conds, _, err := s.loadRecord(c, true, true, false)
	if err != nil {
		return s.recordError(c, err)
	}
	text, err := s.insights.Chat(c.Request().Context(), req.Question, p, conds, meds)
	return s.insightsReply(c, text, err)
}

// loadRecord fetches the patient plus whichever child collections the
// insight needs.
func (s *Server) loadRecord(c echo.Context, wantConds, wantMeds, wantEncs bool) (*model.PatientRecord, []model.MedicationRecord, []model.ConditionRecord, []model.EncounterRecord, error) {
	ctx := c.Request().Context()
	id := c.Param("id")

	p, err := s.reader.PatientByID(ctx, id)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	var meds []model.MedicationRecord
	var conds []model.ConditionRecord
	var encs []model.EncounterRecord
	if wantMeds {
		if meds, err = s.reader.MedicationsByPatient(ctx, id); err != nil {
			return nil, nil, nil, nil, err
		}
	}
	if wantConds {
		if conds, err = s.reader.ConditionsByPatient(ctx, id); err != nil {
			return nil, nil, nil, nil, err
		}
	}
	if wantEncs {
		if encs, err = s.reader.EncountersByPatient(ctx, id); err != nil {
			return nil, nil, nil, nil, err
		}
	}
	return p, meds, conds, encs, nil
}

func (s *Server) recordError(c echo.Context, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "patient not found"})
	}
	s.log.Error().Err(err).Str("patient_id", c.Param("id")).Msg("load record failed")
	return c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to load patient record"})
}

func (s *Server) insightsReply(c echo.Context, text string, err error) error {
	if err != nil {
		s.log.Error().Err(err).Str("patient_id", c.Param("id")).Msg("insights request failed")
		return c.JSON(http.StatusBadGateway, errorResponse{Error: "insights request failed"})
	}
	return c.JSON(http.StatusOK, map[string]string{"insights": text})
}
