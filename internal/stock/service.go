package stock

import (
	"context"
	"fmt"
)

// Service is the read side of the stock ledger. Writes happen inside the
// purchasing receive transaction; this service only reports positions.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, companyID int64, search string, limit, offset int) ([]Level, int, error) {
	return s.repo.List(ctx, companyID, search, limit, offset)
}

func (s *Service) Get(ctx context.Context, companyID, productID int64) (Level, error) {
	if productID <= 0 {
		return Level{}, fmt.Errorf("stock: invalid product ID %d", productID)
	}
	return s.repo.Get(ctx, companyID, productID)
}

// Below lists products whose available quantity sits under the threshold,
// for replenishment review.
func (s *Service) Below(ctx context.Context, companyID, threshold int64) ([]Level, error) {
	if threshold <= 0 {
		threshold = 10
	}
	return s.repo.Below(ctx, companyID, threshold)
}
