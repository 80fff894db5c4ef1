package donation

import (
	"context"
	"database/sql"
	"time"

	"github.com/erazemk/podari/internal/model"
	"github.com/erazemk/podari/internal/store"
)

// Repository persists products. Find methods return nil, nil for absent
// records. The conditional transitions report false when the product is
// missing, not owned by ownerID, or no longer available.
type Repository interface {
	Insert(ctx context.Context, p *model.Product) error
	FindByID(ctx context.Context, id string, expand bool) (*model.Product, error)
	FindPage(ctx context.Context, limit, skip int) ([]model.Product, error)
	FindAllMatching(ctx context.Context, filter model.ProductFilter) ([]model.Product, error)
	Save(ctx context.Context, p *model.Product) (bool, error)
	DeleteByID(ctx context.Context, id string) (bool, error)
	AssignReceiver(ctx context.Context, id, ownerID, receiverID string) (bool, error)
	MarkDonated(ctx context.Context, id, ownerID string, at time.Time) (bool, error)
}

// Identity resolves a caller ID to a user. Failures carry
// apperr.CodeUnauthenticated.
type Identity interface {
	Resolve(ctx context.Context, callerID string) (*model.User, error)
}

// SQLRepository is the Repository backed by the SQLite product store.
type SQLRepository struct {
	DB *sql.DB
}

func (r *SQLRepository) Insert(ctx context.Context, p *model.Product) error {
	return store.InsertProduct(ctx, r.DB, p)
}

func (r *SQLRepository) FindByID(ctx context.Context, id string, expand bool) (*model.Product, error) {
	return store.GetProduct(ctx, r.DB, id, expand)
}

func (r *SQLRepository) FindPage(ctx context.Context, limit, skip int) ([]model.Product, error) {
	return store.ListProducts(ctx, r.DB, limit, skip)
}

func (r *SQLRepository) FindAllMatching(ctx context.Context, filter model.ProductFilter) ([]model.Product, error) {
	return store.ListProductsMatching(ctx, r.DB, filter)
}

func (r *SQLRepository) Save(ctx context.Context, p *model.Product) (bool, error) {
	return store.SaveProduct(ctx, r.DB, p)
}

func (r *SQLRepository) DeleteByID(ctx context.Context, id string) (bool, error) {
	return store.DeleteProduct(ctx, r.DB, id)
}

func (r *SQLRepository) AssignReceiver(ctx context.Context, id, ownerID, receiverID string) (bool, error) {
	return store.AssignReceiver(ctx, r.DB, id, ownerID, receiverID)
}

func (r *SQLRepository) MarkDonated(ctx context.Context, id, ownerID string, at time.Time) (bool, error) {
	return store.MarkDonated(ctx, r.DB, id, ownerID, at)
}
