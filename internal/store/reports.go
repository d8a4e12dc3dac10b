package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mu1bokjoa/FloodResponseSystem/internal/models"
)

const reportColumns = `r.id, r.lat, r.lng, r.content, r.user_id, COALESCE(u.username, ''),
	r.severity, r.image_filename, r.created_at, r.zone_name`

const reportFrom = ` FROM reports r LEFT JOIN users u ON u.id = r.user_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (models.Report, error) {
	var (
		r         models.Report
		image     sql.NullString
		zoneName  sql.NullString
		createdAt string
	)
	if err := row.Scan(&r.ID, &r.Lat, &r.Lng, &r.Content, &r.UserID, &r.Username,
		&r.Severity, &image, &createdAt, &zoneName); err != nil {
		return models.Report{}, err
	}
	if image.Valid && image.String != "" {
		name := image.String
		r.ImageFilename = &name
	}
	r.ZoneName = zoneName.String
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return models.Report{}, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	r.CreatedAt = t.UTC()
	return r, nil
}

// ListReports returns every report, newest (highest id) first.
func (s *Store) ListReports(ctx context.Context) ([]models.Report, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+reportColumns+reportFrom+" ORDER BY r.id DESC")
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	reports := []models.Report{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// CreateReport inserts r and returns it with ID set. CreatedAt defaults to now (UTC).
func (s *Store) CreateReport(ctx context.Context, r models.Report) (models.Report, error) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	r.CreatedAt = r.CreatedAt.UTC()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO reports (lat, lng, content, user_id, severity, image_filename, created_at, zone_name)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Lat, r.Lng, r.Content, r.UserID, r.Severity, nullable(r.ImageFilename),
		r.CreatedAt.Format(time.RFC3339Nano), nullString(r.ZoneName))
	if err != nil {
		return models.Report{}, fmt.Errorf("insert report: %w", err)
	}
	if r.ID, err = res.LastInsertId(); err != nil {
		return models.Report{}, fmt.Errorf("insert report id: %w", err)
	}
	return r, nil
}

func (s *Store) GetReport(ctx context.Context, id int64) (models.Report, error) {
	r, err := scanReport(s.db.QueryRowContext(ctx, "SELECT "+reportColumns+reportFrom+" WHERE r.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Report{}, ErrNotFound
	}
	if err != nil {
		return models.Report{}, fmt.Errorf("query report: %w", err)
	}
	return r, nil
}

// UpdateReport rewrites the content and severity of report id.
func (s *Store) UpdateReport(ctx context.Context, id int64, content, severity string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE reports SET content = ?, severity = ? WHERE id = ?", content, severity, id)
	if err != nil {
		return fmt.Errorf("update report: %w", err)
	}
	return requireAffected(res)
}

func (s *Store) DeleteReport(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM reports WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return nullString(*s)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
