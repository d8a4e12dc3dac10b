package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/mu1bokjoa/FloodResponseSystem/internal/auth"
	"github.com/mu1bokjoa/FloodResponseSystem/internal/models"
	"github.com/mu1bokjoa/FloodResponseSystem/internal/observability"
	"github.com/mu1bokjoa/FloodResponseSystem/internal/risk"
	"github.com/mu1bokjoa/FloodResponseSystem/internal/store"
	"github.com/mu1bokjoa/FloodResponseSystem/internal/upload"
	"github.com/mu1bokjoa/FloodResponseSystem/internal/validation"
)

var (
	ErrForbidden      = errors.New("forbidden")
	ErrReportNotFound = errors.New("report not found")
)

// DefaultSeverity is applied when a report is submitted without one.
var DefaultSeverity = risk.Caution.String()

// ReportStore is the persistence used by ReportService.
type ReportStore interface {
	ListReports(ctx context.Context) ([]models.Report, error)
	CreateReport(ctx context.Context, r models.Report) (models.Report, error)
	GetReport(ctx context.Context, id int64) (models.Report, error)
	UpdateReport(ctx context.Context, id int64, content, severity string) error
	DeleteReport(ctx context.Context, id int64) error
}

// MediaStore saves and removes report attachments.
type MediaStore interface {
	Save(originalName string, r io.Reader) (string, error)
	Remove(name string) error
}

// Attachment is an uploaded file accompanying a new report.
type Attachment struct {
	Filename string
	Body     io.Reader
}

// ReportUpdate holds optional edits; nil fields keep their current value.
type ReportUpdate struct {
	Content  *string
	Severity *string
}

// ReportService manages incident reports. Only the author may edit or delete.
type ReportService struct {
	store     ReportStore
	media     MediaStore
	validator *validation.Validator
	logger    *zap.Logger
}

func NewReportService(reports ReportStore, media MediaStore, v *validation.Validator, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if v == nil {
		v = validation.New()
	}
	return &ReportService{store: reports, media: media, validator: v, logger: logger}
}

func (s *ReportService) List(ctx context.Context) ([]models.Report, error) {
	return s.store.ListReports(ctx)
}

// Create validates in and stores a report authored by the session user.
// An attachment with a disallowed extension is dropped; the report is still created.
func (s *ReportService) Create(ctx context.Context, sess auth.Session, in validation.ReportInput, file *Attachment) (models.Report, error) {
	logger := loggerFromContext(ctx, s.logger)
	if in.Severity == "" {
		in.Severity = DefaultSeverity
	}
	if err := s.validator.Struct(&in); err != nil {
		return models.Report{}, err
	}

	report := models.Report{
		Lat:      in.Lat,
		Lng:      in.Lng,
		Content:  in.Content,
		UserID:   sess.UserID,
		Username: sess.Username,
		Severity: in.Severity,
		ZoneName: in.ZoneName,
	}

	if file != nil && file.Filename != "" && s.media != nil {
		name, err := s.media.Save(file.Filename, file.Body)
		switch {
		case err == nil:
			report.ImageFilename = &name
		case errors.Is(err, upload.ErrDisallowedExtension):
			logger.Debug("attachment ignored", zap.String("filename", file.Filename))
		default:
			return models.Report{}, fmt.Errorf("save attachment: %w", err)
		}
	}

	created, err := s.store.CreateReport(ctx, report)
	if err != nil {
		if report.ImageFilename != nil {
			_ = s.media.Remove(*report.ImageFilename)
		}
		return models.Report{}, err
	}

	media := "none"
	if created.ImageFilename != nil {
		media = "attached"
	}
	observability.ReportsCreatedTotal.WithLabelValues(media).Inc()
	logger.Info("report created", zap.Int64("report_id", created.ID), zap.Int64("user_id", sess.UserID))
	return created, nil
}

// Update applies upd to report id when sess is its author.
func (s *ReportService) Update(ctx context.Context, sess auth.Session, id int64, upd ReportUpdate) (models.Report, error) {
	report, err := s.owned(ctx, sess, id)
	if err != nil {
		return models.Report{}, err
	}

	in := validation.ReportInput{
		Lat:      report.Lat,
		Lng:      report.Lng,
		Content:  report.Content,
		Severity: report.Severity,
		ZoneName: report.ZoneName,
	}
	if upd.Content != nil {
		in.Content = *upd.Content
	}
	if upd.Severity != nil {
		in.Severity = *upd.Severity
	}
	if err := s.validator.Struct(&in); err != nil {
		return models.Report{}, err
	}

	if err := s.store.UpdateReport(ctx, id, in.Content, in.Severity); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Report{}, ErrReportNotFound
		}
		return models.Report{}, err
	}
	report.Content = in.Content
	report.Severity = in.Severity
	return report, nil
}

// Delete removes report id when sess is its author. Attached media is removed
// best-effort.
func (s *ReportService) Delete(ctx context.Context, sess auth.Session, id int64) error {
	report, err := s.owned(ctx, sess, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteReport(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrReportNotFound
		}
		return err
	}
	if report.ImageFilename != nil && s.media != nil {
		if err := s.media.Remove(*report.ImageFilename); err != nil {
			loggerFromContext(ctx, s.logger).Warn("remove attachment failed",
				zap.String("filename", *report.ImageFilename), zap.Error(err))
		}
	}
	return nil
}

func (s *ReportService) owned(ctx context.Context, sess auth.Session, id int64) (models.Report, error) {
	report, err := s.store.GetReport(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return models.Report{}, ErrReportNotFound
	}
	if err != nil {
		return models.Report{}, err
	}
	if report.UserID != sess.UserID {
		return models.Report{}, ErrForbidden
	}
	return report, nil
}
