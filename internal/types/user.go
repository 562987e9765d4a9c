package types

import (
	"time"

	"github.com/google/uuid"
)

// UserProfile is the profile boundary contract: skin type plus named concerns.
type UserProfile struct {
	UserID   uuid.UUID `json:"user_id"`
	Name     string    `json:"name,omitempty"`
	SkinType string    `json:"skin_type"`
	Concerns string    `json:"concerns,omitempty"`
}

// InventoryItem is one product on the user's shelf. IngredientAnnotation is
// the structured "Ingredients: a, b, c" note attached by the label scanner,
// empty when the item was added by hand.
type InventoryItem struct {
	ID                   uuid.UUID `json:"id"`
	Name                 string    `json:"name"`
	Brand                string    `json:"brand,omitempty"`
	Category             string    `json:"category,omitempty"`
	IngredientAnnotation string    `json:"ingredient_annotation,omitempty"`
	AddedAt              time.Time `json:"added_at"`
}

// UserContext is everything the pipeline knows about the running user:
// profile fields, the active shelf, and the ingredient sets derived from it.
// Assembled once per request, before retrieval or safety evaluation.
type UserContext struct {
	UserID               uuid.UUID       `json:"user_id"`
	SkinType             string          `json:"skin_type"`
	Concerns             string          `json:"concerns,omitempty"`
	ActiveInventory      []InventoryItem `json:"active_inventory"`
	ShelfIngredients     []string        `json:"shelf_ingredients"`
	BlacklistIngredients []string        `json:"blacklist_ingredients"`
	JournalNotes         []string        `json:"journal_notes,omitempty"`
}

// InventoryNames returns the shelf item names in inventory order.
func (c UserContext) InventoryNames() []string {
	names := make([]string, 0, len(c.ActiveInventory))
	for _, item := range c.ActiveInventory {
		names = append(names, item.Name)
	}
	return names
}
