package usecase

import (
	"context"

	"github.com/google/uuid"

	"github.com/kihuni/Hoodie-Hub/internal/domain"
)

type CatalogService struct {
	Products ProductRepo
}

func NewCatalogService(products ProductRepo) *CatalogService {
	return &CatalogService{Products: products}
}

func (s *CatalogService) Get(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	p, ok := s.Products.GetProduct(ctx, id)
	if !ok {
		return nil, ErrProductNotFound
	}
	return p, nil
}

func (s *CatalogService) List(ctx context.Context) ([]domain.Product, error) {
	return s.Products.ListProducts(ctx, true)
}

// CheckStock validates that quantity of a product can be added on top of
// what the cart already holds. Stock is advisory: it gates adds, it is not
// decremented by checkout.
func (s *CatalogService) CheckStock(ctx context.Context, id uuid.UUID, quantity int) error {
	p, ok := s.Products.GetProduct(ctx, id)
	if !ok {
		return ErrProductNotFound
	}
	if p.StockQuantity <= 0 {
		return ErrOutOfStock
	}
	if quantity > p.StockQuantity {
		return ErrInsufficientStock
	}
	return nil
}
