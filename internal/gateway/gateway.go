// Package gateway persists completed visit reports.
//
// A gateway appends one row per submission to a fixed-column table and
// stores the evidence photo, recording the resulting link in the row.
// Rows are append-only, never updated or deleted. The SQLite backend is
// the default; the Postgres backend serves shared deployments.
package gateway

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/telkomfield/visitbot/internal/models"
)

// DefaultDirPermissions defines the default permissions for created
// directories.
const DefaultDirPermissions = 0755

// Submission is one stored visit report row.
type Submission struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Values    []string  `json:"values"`
	PhotoLink string    `json:"photo_link"`
	CreatedAt time.Time `json:"created_at"`
}

// imageFileName derives the evidence photo filename from the record:
// code, visit date, and activity type, with path separators made safe.
func imageFileName(rec models.SubmissionRecord) string {
	code := rec.Value(models.FieldCode)
	date := strings.ReplaceAll(rec.Value(models.FieldVisitDate), "/", "-")
	activity := rec.Value(models.FieldActivityType)
	return fmt.Sprintf("%s_%s_%s.jpg", code, date, activity)
}

// saveImage writes the evidence photo under dir and returns the stored
// path used as the photo link column.
func saveImage(dir string, rec models.SubmissionRecord) (string, error) {
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		return "", fmt.Errorf("failed to create image directory: %w", err)
	}
	path := filepath.Join(dir, imageFileName(rec))
	if err := os.WriteFile(path, rec.Image, 0644); err != nil {
		return "", fmt.Errorf("failed to write evidence photo: %w", err)
	}
	return path, nil
}
