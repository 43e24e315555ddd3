package types

import (
	"time"

	"github.com/google/uuid"
)

// Session is one chat conversation and the document attached to it.
// An empty DocumentPath means the session answers from the default catalog, if any.
type Session struct {
	ID             uuid.UUID `json:"session_id"`
	Name           string    `json:"name"`
	Company        string    `json:"company"`
	BusinessSector string    `json:"business_sector"`
	DocumentName   string    `json:"document_name,omitempty"`
	DocumentPath   string    `json:"document_path,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// HasDocument reports whether the session carries its own document.
func (s *Session) HasDocument() bool {
	return s.DocumentPath != ""
}
