package model

import "time"

// Edge is a directed, labeled relationship between two nodes owned by the
// same user. Identity is the 4-tuple (UserID, Source, Target, Relation).
type Edge struct {
	UserID    string    `json:"user_id"`
	Source    string    `json:"source"`
	Target    string    `json:"target"`
	Relation  string    `json:"relation"`
	CreatedAt time.Time `json:"created_at"`
}

// Direction tags an Edge returned by GetNodeRelationships with which way
// it points relative to the node that was queried.
type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
)

// DirectedEdge pairs an Edge with its Direction relative to a query node.
type DirectedEdge struct {
	Edge
	Direction Direction `json:"direction"`
}
