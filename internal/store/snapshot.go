package store

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rosettalab/xlate/internal/models"
)

// SaveSnapshot writes a session snapshot as a JSON document. The document is
// the session schema verbatim, intended for debugging and resume.
func SaveSnapshot(path string, s *models.Session) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write session snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads a session snapshot previously written by SaveSnapshot.
func LoadSnapshot(path string) (*models.Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read session snapshot: %w", err)
	}
	var s models.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse session snapshot: %w", err)
	}
	return &s, nil
}
