package suppliers

import (
	"context"
	"fmt"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, companyID int64, filters ListFilters) ([]Supplier, int, error) {
	return s.repo.List(ctx, companyID, filters)
}

func (s *Service) Get(ctx context.Context, companyID, id int64) (Supplier, error) {
	if id <= 0 {
		return Supplier{}, fmt.Errorf("%w: invalid supplier ID", ErrInvalidInput)
	}
	return s.repo.Get(ctx, companyID, id)
}

// Create registers a supplier. The tax ID must be unique within the company;
// new suppliers start active.
func (s *Service) Create(ctx context.Context, supplier Supplier) (Supplier, error) {
	if err := s.validate(supplier); err != nil {
		return Supplier{}, err
	}
	taken, err := s.repo.TaxIDExists(ctx, supplier.CompanyID, supplier.TaxID, 0)
	if err != nil {
		return Supplier{}, err
	}
	if taken {
		return Supplier{}, fmt.Errorf("%w: tax ID %s already registered", ErrInvalidInput, supplier.TaxID)
	}
	supplier.Active = true
	return s.repo.Create(ctx, supplier)
}

func (s *Service) Update(ctx context.Context, companyID, id int64, supplier Supplier) (Supplier, error) {
	if id <= 0 {
		return Supplier{}, fmt.Errorf("%w: invalid supplier ID", ErrInvalidInput)
	}
	if err := s.validate(supplier); err != nil {
		return Supplier{}, err
	}
	existing, err := s.repo.Get(ctx, companyID, id)
	if err != nil {
		return Supplier{}, err
	}
	if supplier.TaxID != existing.TaxID {
		taken, err := s.repo.TaxIDExists(ctx, companyID, supplier.TaxID, id)
		if err != nil {
			return Supplier{}, err
		}
		if taken {
			return Supplier{}, fmt.Errorf("%w: tax ID %s already registered", ErrInvalidInput, supplier.TaxID)
		}
	}
	supplier.CompanyID = companyID
	if err := s.repo.Update(ctx, id, supplier); err != nil {
		return Supplier{}, err
	}
	return s.repo.Get(ctx, companyID, id)
}

// Deactivate marks the supplier inactive. Existing orders keep their
// reference; new orders against it are rejected by purchasing validation.
func (s *Service) Deactivate(ctx context.Context, companyID, id int64) error {
	return s.repo.SetActive(ctx, companyID, id, false)
}

func (s *Service) Activate(ctx context.Context, companyID, id int64) error {
	return s.repo.SetActive(ctx, companyID, id, true)
}

// Delete removes a supplier outright. Refused while any non-terminal order
// references it; those suppliers can only be deactivated.
func (s *Service) Delete(ctx context.Context, companyID, id int64) error {
	if _, err := s.repo.Get(ctx, companyID, id); err != nil {
		return err
	}
	open, err := s.repo.CountOpenOrders(ctx, companyID, id)
	if err != nil {
		return err
	}
	if open > 0 {
		return fmt.Errorf("%w: %d open purchase orders, deactivate instead", ErrInUse, open)
	}
	return s.repo.Delete(ctx, companyID, id)
}
