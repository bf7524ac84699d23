// Package lessons manages training session records. A lesson is the parent
// a posture group is reconciled onto once the lesson exists server-side.
package lessons

import "time"

// Lesson represents a recorded training session for a customer.
type Lesson struct {
	ID          string    `json:"id"`
	CustomerID  string    `json:"customerId"`
	TrainerID   string    `json:"trainerId"`
	Title       string    `json:"title"`
	Note        string    `json:"note,omitempty"`
	PerformedAt time.Time `json:"performedAt"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CreateInput holds validated input for creating a lesson.
type CreateInput struct {
	CustomerID  string    `json:"customerId"`
	TrainerID   string    `json:"trainerId"`
	Title       string    `json:"title"`
	Note        string    `json:"note"`
	PerformedAt time.Time `json:"performedAt"`
}

// UpdateInput holds validated input for updating a lesson. Nil fields are
// left unchanged.
type UpdateInput struct {
	Title       *string    `json:"title"`
	Note        *string    `json:"note"`
	PerformedAt *time.Time `json:"performedAt"`
}
