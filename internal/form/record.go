package form

import (
	"encoding/base64"
	"fmt"

	"github.com/telkomfield/visitbot/internal/models"
	"github.com/telkomfield/visitbot/internal/session"
)

// BuildRecord assembles the completed record from a session: the 16 text
// values in canonical order, with placeholders for the branch not taken,
// plus the evidence photo decoded from its session encoding.
func BuildRecord(s *session.Session) (models.SubmissionRecord, error) {
	values := make([]string, 0, len(models.CanonicalFieldOrder))
	for _, key := range models.CanonicalFieldOrder {
		v, ok := s.Values[key]
		if !ok || v == "" {
			v = models.Placeholder
		}
		values = append(values, v)
	}

	encoded, ok := s.Values[models.FieldEvidencePhoto]
	if !ok || encoded == "" {
		return models.SubmissionRecord{}, fmt.Errorf("%w: evidence photo missing", models.ErrRecordIncomplete)
	}
	image, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return models.SubmissionRecord{}, fmt.Errorf("failed to decode evidence photo: %w", err)
	}

	return models.SubmissionRecord{
		UserID: s.UserID,
		Values: values,
		Image:  image,
	}, nil
}
