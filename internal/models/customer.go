package models

import (
	"time"

	"github.com/google/uuid"
)

// Customer is read-only for this service; the owning CRUD lives elsewhere.
// Tags is a comma-separated list as stored upstream.
type Customer struct {
	ID         uuid.UUID  `db:"id"`
	Name       string     `db:"name"`
	Email      string     `db:"email"`
	Phone      string     `db:"phone"`
	Country    string     `db:"country"`
	Tags       string     `db:"tags"`
	CategoryID *uuid.UUID `db:"category_id"`
	GroupID    *uuid.UUID `db:"group_id"`
	CreatedAt  time.Time  `db:"created_at"`
}
