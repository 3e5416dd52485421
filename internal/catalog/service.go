// Package catalog provides products and categories: role-gated CRUD with
// optional audit logging, the name-joined category cascade delete, and
// client-side product search.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bkotelnikov/shopadmin/internal/domain"
	"golang.org/x/text/cases"
)

// Audit action labels.
const (
	ActionCreateProduct  = "Create product"
	ActionUpdateProduct  = "Update product"
	ActionDeleteProduct  = "Delete product"
	ActionCreateCategory = "Create category"
	ActionUpdateCategory = "Update category"
	ActionDeleteCategory = "Delete category"
)

// Auditor records an audit entry without blocking or failing the caller.
type Auditor interface {
	Record(actor *domain.User, action, details string)
}

// Service provides catalog business logic.
type Service struct {
	repo    Repository
	auditor Auditor
}

// NewService creates a new catalog service.
func NewService(repo Repository, auditor Auditor) *Service {
	return &Service{repo: repo, auditor: auditor}
}

// CreateProductInput contains data for creating a product.
type CreateProductInput struct {
	Name        string
	Category    string
	Description string
	Price       string
	NoteGeneral string
	NoteSpecial string
}

// ListProducts returns all products, newest first.
func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

// GetProduct returns a product by id, or nil when it does not exist.
// Absence is not an error.
func (s *Service) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	product, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return product, nil
}

// CreateProduct creates a product.
func (s *Service) CreateProduct(ctx context.Context, input CreateProductInput) (*domain.Product, error) {
	product := &domain.Product{
		Name:        input.Name,
		Category:    input.Category,
		Description: input.Description,
		Price:       input.Price,
		NoteGeneral: input.NoteGeneral,
		NoteSpecial: input.NoteSpecial,
	}

	if err := s.repo.CreateProduct(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

// CreateProductWithLog creates a product on behalf of actor and records
// one audit entry on success.
func (s *Service) CreateProductWithLog(ctx context.Context, actor *domain.User, input CreateProductInput) (*domain.Product, error) {
	product, err := s.CreateProduct(ctx, input)
	if err != nil {
		return nil, err
	}

	s.auditor.Record(actor, ActionCreateProduct,
		fmt.Sprintf("created product %q in category %q with price %s", product.Name, product.Category, product.Price))
	return product, nil
}

// UpdateProduct applies a partial update. Nil patch fields leave the
// stored values unchanged, so applying the same patch twice yields the
// same final state as once.
func (s *Service) UpdateProduct(ctx context.Context, id string, patch ProductPatch) (*domain.Product, error) {
	if patch.IsEmpty() {
		return s.repo.GetProductByID(ctx, id)
	}
	return s.repo.UpdateProduct(ctx, id, patch)
}

// UpdateProductWithLog applies a partial update and records one audit
// entry enumerating the changed fields. An empty patch writes nothing
// and is not logged.
func (s *Service) UpdateProductWithLog(ctx context.Context, actor *domain.User, id string, patch ProductPatch) (*domain.Product, error) {
	product, err := s.UpdateProduct(ctx, id, patch)
	if err != nil || patch.IsEmpty() {
		return product, err
	}

	s.auditor.Record(actor, ActionUpdateProduct,
		fmt.Sprintf("updated product %q: %s", product.Name, describeProductPatch(patch)))
	return product, nil
}

// DeleteProduct deletes a product by id.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	return s.repo.DeleteProduct(ctx, id)
}

// DeleteProductWithLog deletes a product and records one audit entry.
func (s *Service) DeleteProductWithLog(ctx context.Context, actor *domain.User, id string) error {
	product, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}

	s.auditor.Record(actor, ActionDeleteProduct,
		fmt.Sprintf("deleted product %q (id %s)", product.Name, id))
	return nil
}

// CreateCategoryInput contains data for creating a category.
type CreateCategoryInput struct {
	Name        string
	Description string
	IsActive    *bool
}

// ListCategories returns all categories ordered by name.
func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.repo.ListCategories(ctx)
}

// GetCategory returns a category by id, or nil when it does not exist.
func (s *Service) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	category, err := s.repo.GetCategoryByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrCategoryNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return category, nil
}

// CreateCategory creates a category. Active defaults to true.
func (s *Service) CreateCategory(ctx context.Context, input CreateCategoryInput) (*domain.Category, error) {
	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}

	category := &domain.Category{
		Name:        input.Name,
		Description: input.Description,
		IsActive:    active,
	}

	if err := s.repo.CreateCategory(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

// CreateCategoryWithLog creates a category and records one audit entry.
func (s *Service) CreateCategoryWithLog(ctx context.Context, actor *domain.User, input CreateCategoryInput) (*domain.Category, error) {
	category, err := s.CreateCategory(ctx, input)
	if err != nil {
		return nil, err
	}

	s.auditor.Record(actor, ActionCreateCategory,
		fmt.Sprintf("created category %q", category.Name))
	return category, nil
}

// UpdateCategory applies a partial update.
func (s *Service) UpdateCategory(ctx context.Context, id string, patch CategoryPatch) (*domain.Category, error) {
	if patch.IsEmpty() {
		return s.repo.GetCategoryByID(ctx, id)
	}
	return s.repo.UpdateCategory(ctx, id, patch)
}

// UpdateCategoryWithLog applies a partial update and records one audit
// entry enumerating the changed fields. An empty patch writes nothing
// and is not logged.
func (s *Service) UpdateCategoryWithLog(ctx context.Context, actor *domain.User, id string, patch CategoryPatch) (*domain.Category, error) {
	category, err := s.UpdateCategory(ctx, id, patch)
	if err != nil || patch.IsEmpty() {
		return category, err
	}

	s.auditor.Record(actor, ActionUpdateCategory,
		fmt.Sprintf("updated category %q: %s", category.Name, describeCategoryPatch(patch)))
	return category, nil
}

// DeleteCategoryCascade deletes every product whose category equals the
// category's name, then the category itself, in that order. A product
// deletion failure aborts the cascade: the category stays intact and the
// returned CascadeError lists the products still present.
func (s *Service) DeleteCategoryCascade(ctx context.Context, id string) error {
	category, err := s.repo.GetCategoryByID(ctx, id)
	if err != nil {
		return err
	}

	products, err := s.repo.ListProductsByCategory(ctx, category.Name)
	if err != nil {
		return fmt.Errorf("list products for cascade: %w", err)
	}

	for i, product := range products {
		if err := s.repo.DeleteProduct(ctx, product.ID); err != nil {
			remaining := make([]string, 0, len(products)-i)
			for _, p := range products[i:] {
				remaining = append(remaining, p.ID)
			}
			return &CascadeError{Category: category.Name, Remaining: remaining, Err: err}
		}
	}

	return s.repo.DeleteCategory(ctx, id)
}

// DeleteCategoryCascadeWithLog runs the cascade and records one audit
// entry on success.
func (s *Service) DeleteCategoryCascadeWithLog(ctx context.Context, actor *domain.User, id string) error {
	category, err := s.repo.GetCategoryByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.DeleteCategoryCascade(ctx, id); err != nil {
		return err
	}

	s.auditor.Record(actor, ActionDeleteCategory,
		fmt.Sprintf("deleted category %q and its products", category.Name))
	return nil
}

var searchFolder = cases.Fold()

// SearchProducts fetches all products and filters client-side: a
// case-folded substring match on name and/or an exact category match.
// Both empty returns everything.
func (s *Service) SearchProducts(ctx context.Context, term, category string) ([]domain.Product, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	term = strings.TrimSpace(term)
	if term == "" && category == "" {
		return products, nil
	}

	foldedTerm := searchFolder.String(term)
	filtered := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if category != "" && p.Category != category {
			continue
		}
		if term != "" && !strings.Contains(searchFolder.String(p.Name), foldedTerm) {
			continue
		}
		filtered = append(filtered, p)
	}
	return filtered, nil
}

// describeProductPatch renders the set fields of a patch into a
// human-readable phrase for the audit trail.
func describeProductPatch(patch ProductPatch) string {
	changes := make([]string, 0, 6)
	appendChange := func(field string, v *string) {
		if v != nil {
			changes = append(changes, fmt.Sprintf("%s to %q", field, *v))
		}
	}
	appendChange("name", patch.Name)
	appendChange("category", patch.Category)
	appendChange("description", patch.Description)
	appendChange("price", patch.Price)
	appendChange("general note", patch.NoteGeneral)
	appendChange("special note", patch.NoteSpecial)

	if len(changes) == 0 {
		return "no fields changed"
	}
	return "changed " + strings.Join(changes, ", ")
}

func describeCategoryPatch(patch CategoryPatch) string {
	changes := make([]string, 0, 3)
	if patch.Name != nil {
		changes = append(changes, fmt.Sprintf("name to %q", *patch.Name))
	}
	if patch.Description != nil {
		changes = append(changes, fmt.Sprintf("description to %q", *patch.Description))
	}
	if patch.IsActive != nil {
		if *patch.IsActive {
			changes = append(changes, "activated")
		} else {
			changes = append(changes, "deactivated")
		}
	}

	if len(changes) == 0 {
		return "no fields changed"
	}
	return "changed " + strings.Join(changes, ", ")
}
