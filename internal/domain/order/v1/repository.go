package orderv1

import (
	"context"

	marketv1 "github.com/muhammadchandra19/kwanza-exchange/internal/domain/market/v1"
)

// Repository persists orders. GetForUpdate must be called inside a unit of
// work and holds the row lock until the unit ends.
//
//go:generate mockgen -source repository.go -destination=mock/repository_mock.go -package=orderv1_mock
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Update(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	GetForUpdate(ctx context.Context, id string) (*Order, error)
	// ListOpen returns pending and partially filled orders of pair, oldest first.
	ListOpen(ctx context.Context, pair marketv1.Pair) ([]*Order, error)
}
