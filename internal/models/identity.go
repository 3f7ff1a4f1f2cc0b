package models

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
)

// Person allowed to sign in to the admin panel
type Identity struct {
	ID         uuid.UUID
	CreatedAt  time.Time
	Identifier string // unique login, e.g. email
	SecretHash string
	Role       Role
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}
