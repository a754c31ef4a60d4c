package model

import "time"

// Node is a concept extracted from a user's text. Its identity within a
// user's subgraph is the (UserID, Name) pair.
type Node struct {
	UserID      string     `json:"user_id"`
	Name        string     `json:"name"`
	Type        string     `json:"type,omitempty"`
	Properties  Properties `json:"properties,omitempty"`
	Perspective string     `json:"perspective,omitempty"`
	Embedding   []float32  `json:"embedding,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// MaxNameLength is the longest a node Name may be.
const MaxNameLength = 256
