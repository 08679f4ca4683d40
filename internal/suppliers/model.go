package suppliers

import (
	"errors"
	"time"
)

// Supplier represents a supplier entity, scoped to one company.
type Supplier struct {
	ID        int64     `json:"id"`
	CompanyID int64     `json:"company_id"`
	TaxID     string    `json:"tax_id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var (
	// ErrNotFound indicates the supplier does not exist within the company scope.
	ErrNotFound = errors.New("suppliers: not found")
	// ErrInvalidInput indicates a malformed supplier payload.
	ErrInvalidInput = errors.New("suppliers: invalid input")
	// ErrInUse indicates the supplier is referenced by open purchase orders and
	// may only be deactivated.
	ErrInUse = errors.New("suppliers: supplier in use")
)
