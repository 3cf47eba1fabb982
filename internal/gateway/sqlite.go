// This file implements the SQLite-backed submission gateway.
package gateway

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/telkomfield/visitbot/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// insertColumns lists the value columns in canonical order, matching both
// migration files.
const insertColumns = `user_id, code, full_name, phone, region, local_area, visit_date,
	customer_category, site_name, activity_type, service_tier, price_tier,
	contact_name, contact_title, contact_phone, deal_package, deal_bundle,
	photo_link, created_at`

// SQLiteGateway appends submissions to an SQLite table and stores
// evidence photos on the local filesystem.
type SQLiteGateway struct {
	db       *sql.DB
	imageDir string
}

// NewSQLiteGateway opens (and if needed creates) the submissions database
// at the given DSN and prepares the image directory.
func NewSQLiteGateway(dsn, imageDir string) (*SQLiteGateway, error) {
	if dsn == "" {
		slog.Error("SQLiteGateway DSN not set")
		return nil, fmt.Errorf("submissions database DSN not set")
	}
	if imageDir == "" {
		slog.Error("SQLiteGateway image directory not set")
		return nil, fmt.Errorf("image directory not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create submissions database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create submissions database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open submissions SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("Submissions SQLite ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run submissions migrations", "error", err)
		return nil, fmt.Errorf("failed to run submissions migrations: %w", err)
	}
	slog.Debug("Submissions SQLite gateway ready", "imageDir", imageDir)
	return &SQLiteGateway{db: db, imageDir: imageDir}, nil
}

// Submit stores the evidence photo, then appends one row with the photo
// link in the last value column.
func (g *SQLiteGateway) Submit(ctx context.Context, rec models.SubmissionRecord) (models.SubmissionResult, error) {
	if err := rec.Validate(); err != nil {
		slog.Error("SQLiteGateway rejected incomplete record", "error", err, "userID", rec.UserID)
		return models.SubmissionResult{}, err
	}

	link, err := saveImage(g.imageDir, rec)
	if err != nil {
		slog.Error("SQLiteGateway image save failed", "error", err, "userID", rec.UserID)
		return models.SubmissionResult{}, fmt.Errorf("could not store evidence photo: %w", err)
	}

	args := make([]interface{}, 0, len(rec.Values)+3)
	args = append(args, rec.UserID)
	for _, v := range rec.Values {
		args = append(args, v)
	}
	args = append(args, link, time.Now())

	query := fmt.Sprintf(`INSERT INTO submissions (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, insertColumns)
	res, err := g.db.ExecContext(ctx, query, args...)
	if err != nil {
		slog.Error("SQLiteGateway insert failed", "error", err, "userID", rec.UserID)
		return models.SubmissionResult{}, fmt.Errorf("could not append report row: %w", err)
	}

	id, _ := res.LastInsertId()
	slog.Info("SQLiteGateway stored submission", "id", id, "userID", rec.UserID, "photoLink", link)
	return models.SubmissionResult{
		Success: true,
		Message: fmt.Sprintf("report stored as row %d", id),
	}, nil
}

// List returns stored submissions in submission order, newest last,
// limited to at most limit rows (0 means no limit).
func (g *SQLiteGateway) List(ctx context.Context, limit int) ([]Submission, error) {
	query := fmt.Sprintf(`SELECT id, %s FROM submissions ORDER BY id`, insertColumns)
	if limit > 0 {
		query = fmt.Sprintf("%s LIMIT %d", query, limit)
	}
	rows, err := g.db.QueryContext(ctx, query)
	if err != nil {
		slog.Error("SQLiteGateway list query failed", "error", err)
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()

	var subs []Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			slog.Error("SQLiteGateway list scan failed", "error", err)
			return nil, err
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate submission rows: %w", err)
	}
	return subs, nil
}

// Close closes the underlying database connection.
func (g *SQLiteGateway) Close() error {
	return g.db.Close()
}
