package catalog

import (
	"context"

	"github.com/bkotelnikov/shopadmin/internal/domain"
)

// ProductPatch is a partial product update. Nil fields are left
// untouched by the store.
type ProductPatch struct {
	Name        *string
	Category    *string
	Description *string
	Price       *string
	NoteGeneral *string
	NoteSpecial *string
}

// IsEmpty reports whether the patch changes nothing.
func (p ProductPatch) IsEmpty() bool {
	return p.Name == nil && p.Category == nil && p.Description == nil &&
		p.Price == nil && p.NoteGeneral == nil && p.NoteSpecial == nil
}

// CategoryPatch is a partial category update.
type CategoryPatch struct {
	Name        *string
	Description *string
	IsActive    *bool
}

// IsEmpty reports whether the patch changes nothing.
func (p CategoryPatch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil && p.IsActive == nil
}

// Repository defines the interface for catalog data operations.
type Repository interface {
	CreateProduct(ctx context.Context, product *domain.Product) error
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	// ListProducts returns all products ordered by creation time, newest first.
	ListProducts(ctx context.Context) ([]domain.Product, error)
	// ListProductsByCategory returns products whose category field equals
	// name. The linkage is by name, not id.
	ListProductsByCategory(ctx context.Context, name string) ([]domain.Product, error)
	UpdateProduct(ctx context.Context, id string, patch ProductPatch) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error

	CreateCategory(ctx context.Context, category *domain.Category) error
	GetCategoryByID(ctx context.Context, id string) (*domain.Category, error)
	// ListCategories returns all categories ordered by name.
	ListCategories(ctx context.Context) ([]domain.Category, error)
	UpdateCategory(ctx context.Context, id string, patch CategoryPatch) (*domain.Category, error)
	DeleteCategory(ctx context.Context, id string) error
}
