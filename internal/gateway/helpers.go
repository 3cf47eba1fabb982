package gateway

import (
	"database/sql"
	"fmt"

	"github.com/telkomfield/visitbot/internal/models"
)

// scanSubmission scans one submission row: id, user id, the 16 canonical
// value columns, photo link, created at.
func scanSubmission(rows *sql.Rows) (Submission, error) {
	var sub Submission
	values := make([]string, len(models.CanonicalFieldOrder))

	dest := make([]interface{}, 0, len(values)+4)
	dest = append(dest, &sub.ID, &sub.UserID)
	for i := range values {
		dest = append(dest, &values[i])
	}
	dest = append(dest, &sub.PhotoLink, &sub.CreatedAt)

	if err := rows.Scan(dest...); err != nil {
		return sub, fmt.Errorf("scan submission failed: %w", err)
	}
	sub.Values = values
	return sub, nil
}
