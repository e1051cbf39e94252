package ingest

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gyeh/careview/internal/bundle"
	"github.com/gyeh/careview/internal/model"
)

// Pipeline reads a bundle file, parses it, and persists the record set.
// It is the Processor the coordinator runs.
type Pipeline struct {
	writer *Writer
	log    zerolog.Logger
}

func NewPipeline(writer *Writer, log zerolog.Logger) *Pipeline {
	return &Pipeline{writer: writer, log: log}
}

// Run ingests one bundle file and returns job metrics.
func (p *Pipeline) Run(ctx context.Context, path string) (*model.IngestSummary, error) {
	start := time.Now()
	jobID := uuid.NewString()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bundle file: %w", err)
	}

	res, err := bundle.Parse(data)
	if err != nil {
		return nil, err
	}
	if res.Dropped > 0 {
		p.log.Warn().Int("dropped", res.Dropped).Str("file", path).
			Msg("entries dropped for unusable subject references")
	}

	wr, err := p.writer.Persist(ctx, &res.Records)
	if err != nil {
		return nil, err
	}

	summary := &model.IngestSummary{
		FilePath:     path,
		JobID:        jobID,
		Conditions:   wr.Conditions,
		Medications:  wr.Medications,
		Encounters:   wr.Encounters,
		RowsRejected: wr.RowsRejected,
		Skipped:      res.Skipped,
		Dropped:      res.Dropped,
		Duration:     time.Since(start),
	}
	if res.Records.Patient != nil {
		summary.PatientID = res.Records.Patient.ID
	}

	p.log.Info().
		Str("job_id", summary.JobID).
		Str("patient_id", summary.PatientID).
		Int("conditions", summary.Conditions).
		Int("medications", summary.Medications).
		Int("encounters", summary.Encounters).
		Int("rows_rejected", summary.RowsRejected).
		Str("duration", summary.Duration.String()).
		Msg("bundle persisted")

	return summary, nil
}

// ProcessFile implements Processor.
func (p *Pipeline) ProcessFile(ctx context.Context, path string) error {
	_, err := p.Run(ctx, path)
	return err
}
