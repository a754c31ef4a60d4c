package model

import (
	"regexp"
	"time"
)

// UserIDPattern is the required shape of every user_id accepted by the HTTP
// handlers and userservice.Service; graphstore itself does not check it.
var UserIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidUserID reports whether id satisfies UserIDPattern.
func ValidUserID(id string) bool {
	return UserIDPattern.MatchString(id)
}

// User is the root entity every node, edge, embedding and schema is owned by.
type User struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}
