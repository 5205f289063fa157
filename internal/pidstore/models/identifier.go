// Package models defines persistent identifiers: typed, globally-unique
// external keys bound to exactly one record.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Type is an identifier namespace. Uniqueness is enforced per (Type, Value)
// across all records.
type Type string

const (
	TypeRecID  Type = "recid"
	TypeArxiv  Type = "arxiv"
	TypeISBN   Type = "isbn"
	TypeTexkey Type = "texkey"
)

// Status tags the lifecycle of an identifier.
type Status string

const (
	StatusReserved   Status = "reserved"
	StatusRegistered Status = "registered"
	StatusDeleted    Status = "deleted"
)

// Identifier binds one (Type, Value) pair to its owning record.
type Identifier struct {
	RecordID  uuid.UUID
	Type      Type
	Value     string
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}
