package models

import (
	"time"

	"github.com/google/uuid"
)

// Subscription is read-only for this service.
type Subscription struct {
	ID              uuid.UUID  `db:"id"`
	CustomerID      uuid.UUID  `db:"customer_id"`
	CategoryID      *uuid.UUID `db:"category_id"`
	VendorName      string     `db:"vendor_name"`
	PlanName        string     `db:"plan_name"`
	Cost            float64    `db:"cost"`
	Currency        string     `db:"currency"`
	BillingCycle    string     `db:"billing_cycle"`
	Country         string     `db:"country"`
	NextRenewalDate *time.Time `db:"next_renewal_date"`
	CreatedAt       time.Time  `db:"created_at"`
}
