package common

import (
	"github.com/google/uuid"
)

// NewItemID generates a unique raw item ID with the "item_" prefix
// Format: item_<uuid>
func NewItemID() string {
	return "item_" + uuid.New().String()
}
