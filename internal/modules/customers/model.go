// Package customers manages the customer records that lessons and posture
// groups belong to. It is a thin CRUD resource; the interesting behavior
// lives in the postures module that references it.
package customers

import "time"

// Customer represents a gym customer.
type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Kana      string    `json:"kana,omitempty"` // Phonetic reading for sorting.
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Option is the minimal projection used by selection dropdowns across many
// screens. Served through the option cache to avoid re-querying per screen.
type Option struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CreateInput holds validated input for creating a customer.
type CreateInput struct {
	Name  string `json:"name"`
	Kana  string `json:"kana"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// UpdateInput holds validated input for updating a customer. Nil fields are
// left unchanged.
type UpdateInput struct {
	Name  *string `json:"name"`
	Kana  *string `json:"kana"`
	Email *string `json:"email"`
	Phone *string `json:"phone"`
}
