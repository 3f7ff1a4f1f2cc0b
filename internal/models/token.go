package models

import (
	"time"
)

// Signed bearer token issued by TokenManager
// It is never stored on the server side
type IssuedToken struct {
	Value     string
	SubjectID string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Result of successful login
type Session struct {
	Token    IssuedToken
	Identity Identity
}
