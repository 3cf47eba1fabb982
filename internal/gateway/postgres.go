// This file implements the Postgres-backed submission gateway for shared
// deployments.
package gateway

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "embed"

	"github.com/telkomfield/visitbot/internal/models"
	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresGateway appends submissions to a Postgres table and stores
// evidence photos on the local filesystem.
type PostgresGateway struct {
	db       *sql.DB
	imageDir string
}

// NewPostgresGateway connects to the database at the given DSN and runs
// migrations.
func NewPostgresGateway(dsn, imageDir string) (*PostgresGateway, error) {
	if dsn == "" {
		slog.Error("PostgresGateway DSN not set")
		return nil, fmt.Errorf("submissions database DSN not set")
	}
	if imageDir == "" {
		slog.Error("PostgresGateway image directory not set")
		return nil, fmt.Errorf("image directory not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open submissions Postgres connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("Submissions Postgres ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run submissions migrations", "error", err)
		return nil, fmt.Errorf("failed to run submissions migrations: %w", err)
	}
	slog.Debug("Submissions Postgres gateway ready", "imageDir", imageDir)
	return &PostgresGateway{db: db, imageDir: imageDir}, nil
}

// Submit stores the evidence photo, then appends one row with the photo
// link in the last value column.
func (g *PostgresGateway) Submit(ctx context.Context, rec models.SubmissionRecord) (models.SubmissionResult, error) {
	if err := rec.Validate(); err != nil {
		slog.Error("PostgresGateway rejected incomplete record", "error", err, "userID", rec.UserID)
		return models.SubmissionResult{}, err
	}

	link, err := saveImage(g.imageDir, rec)
	if err != nil {
		slog.Error("PostgresGateway image save failed", "error", err, "userID", rec.UserID)
		return models.SubmissionResult{}, fmt.Errorf("could not store evidence photo: %w", err)
	}

	args := make([]interface{}, 0, len(rec.Values)+3)
	args = append(args, rec.UserID)
	for _, v := range rec.Values {
		args = append(args, v)
	}
	args = append(args, link, time.Now())

	placeholders := make([]string, len(args))
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf(`INSERT INTO submissions (%s) VALUES (%s) RETURNING id`,
		insertColumns, strings.Join(placeholders, ", "))

	var id int64
	if err := g.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		slog.Error("PostgresGateway insert failed", "error", err, "userID", rec.UserID)
		return models.SubmissionResult{}, fmt.Errorf("could not append report row: %w", err)
	}

	slog.Info("PostgresGateway stored submission", "id", id, "userID", rec.UserID, "photoLink", link)
	return models.SubmissionResult{
		Success: true,
		Message: fmt.Sprintf("report stored as row %d", id),
	}, nil
}

// List returns stored submissions in submission order, newest last,
// limited to at most limit rows (0 means no limit).
func (g *PostgresGateway) List(ctx context.Context, limit int) ([]Submission, error) {
	query := fmt.Sprintf(`SELECT id, %s FROM submissions ORDER BY id`, insertColumns)
	if limit > 0 {
		query = fmt.Sprintf("%s LIMIT %d", query, limit)
	}
	rows, err := g.db.QueryContext(ctx, query)
	if err != nil {
		slog.Error("PostgresGateway list query failed", "error", err)
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()

	var subs []Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			slog.Error("PostgresGateway list scan failed", "error", err)
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
func (g *PostgresGateway) Close() error {
	return g.db.Close()
}
