package repository

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/tender-extractor/internal/entity"
)

// newDocumentID returns a time-ordered UUIDv7, so ids sort in creation
// order and break created_at ties in ListSummaries.
func newDocumentID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func encodeFields(f entity.Fields) (*string, error) {
	if f == nil {
		return nil, nil
	}
	b, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	s := string(b)
	return &s, nil
}

func decodeFields(raw string) (entity.Fields, error) {
	if raw == "" || raw == "null" {
		return nil, nil
	}
	var f entity.Fields
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	return f, nil
}

func encodeSubmittals(s []entity.Submittal) (string, error) {
	if s == nil {
		s = []entity.Submittal{}
	}
	b, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode submittals: %w", err)
	}
	return string(b), nil
}

func decodeSubmittals(raw string) ([]entity.Submittal, error) {
	out := []entity.Submittal{}
	if raw == "" || raw == "null" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode submittals: %w", err)
	}
	if out == nil {
		out = []entity.Submittal{}
	}
	return out, nil
}
