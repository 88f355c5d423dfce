package models

import (
	"time"

	"github.com/google/uuid"
)

// Run is one recorded execution of the answer pipeline, as reported by the
// tracing backend. Only the fields the gateway inspects are modeled; the
// backend record carries much more.
type Run struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name,omitempty"`
	Status    string    `json:"status,omitempty"`
	StartTime time.Time `json:"start_time,omitzero"`
	EndTime   time.Time `json:"end_time,omitzero"`
}
