package domain

import "time"

// Product represents a catalog item. Category is a reference by name,
// not by id; the store enforces no referential integrity.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Price       string    `json:"price"`
	NoteGeneral string    `json:"note_general,omitempty"`
	NoteSpecial string    `json:"note_special,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
