package model

import (
	"time"

	"github.com/google/uuid"
)

// Product is a single donated item tracked from listing to donation.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	State       string    `json:"state"`
	PurchasedAt time.Time `json:"purchased_at"`
	Images      []string  `json:"images"`

	OwnerID    string  `json:"owner_id"`
	ReceiverID *string `json:"receiver_id,omitempty"`

	Available bool       `json:"available"`
	DonatedAt *time.Time `json:"donated_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	// Expanded relations (not always populated). Nil when the referenced
	// user no longer exists.
	Owner    *UserProfile `json:"owner,omitempty"`
	Receiver *UserProfile `json:"receiver,omitempty"`
}

// ProductInput holds the caller-supplied business fields of a product. It is
// used both for creation and for full-replace updates.
type ProductInput struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	State       string    `json:"state"`
	PurchasedAt time.Time `json:"purchased_at"`
	Images      []string  `json:"images"`
}

// ProductFilter selects products by relation. Empty fields match everything.
type ProductFilter struct {
	OwnerID    string
	ReceiverID string
}

// NewID returns a fresh random identifier.
func NewID() string {
	return uuid.NewString()
}

// ParseID validates an identifier and returns its canonical form.
func ParseID(s string) (string, bool) {
	if len(s) != 36 {
		return "", false
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return "", false
	}
	return id.String(), true
}
