package model

import (
	"time"

	"github.com/google/uuid"
)

// GraphSchema constrains extraction for a user: the node-type labels and
// relation labels an Extractor is allowed to produce.
type GraphSchema struct {
	ID            uuid.UUID `json:"id"`
	UserID        string    `json:"user_id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Attributes    []string  `json:"attributes"`
	Relationships []string  `json:"relationships"`
	IsSeed        bool      `json:"is_seed"`
	CreatedAt     time.Time `json:"created_at"`
}
