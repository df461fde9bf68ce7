package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditFields holds standard audit information for domain entities.
type AuditFields struct {
	CreatedAt     time.Time `json:"createdAt"`
	CreatedBy     string    `json:"createdBy"` // UserID Reference
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
	LastUpdatedBy string    `json:"lastUpdatedBy"` // UserID Reference
	Version       int64     `json:"version"`
}

// SystemActor is recorded as the actor for writes the service performs on its own,
// such as lazily creating a credit account or repairing a cached balance.
const SystemActor = "system"

// IsValidID reports whether id is a well-formed identity (UUID).
func IsValidID(id string) bool {
	if id == "" {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}
