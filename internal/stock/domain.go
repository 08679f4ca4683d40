package stock

import (
	"errors"
	"time"
)

// Level is the current stock position for one product. Available tracks
// what can be committed, Total includes reserved units.
type Level struct {
	ProductID   int64     `json:"product_id"`
	ProductName string    `json:"product_name"`
	Available   int64     `json:"available"`
	Total       int64     `json:"total"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ErrNotFound indicates the product has no stock record yet.
var ErrNotFound = errors.New("stock: not found")
