package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bkotelnikov/shopadmin/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRepository implements Repository for testing.
type mockRepository struct {
	mu         sync.Mutex
	products   map[string]domain.Product
	categories map[string]domain.Category
	nextID     int

	deleteProductErr map[string]error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		products:         make(map[string]domain.Product),
		categories:       make(map[string]domain.Category),
		deleteProductErr: make(map[string]error),
	}
}

func (m *mockRepository) id(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%d", prefix, m.nextID)
}

func (m *mockRepository) CreateProduct(_ context.Context, p *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.id("prod")
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	m.products[p.ID] = *p
	return nil
}

func (m *mockRepository) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	return &p, nil
}

func (m *mockRepository) ListProducts(_ context.Context) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *mockRepository) ListProductsByCategory(_ context.Context, name string) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Product, 0)
	for _, p := range m.products {
		if p.Category == name {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockRepository) UpdateProduct(_ context.Context, id string, patch ProductPatch) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Category != nil {
		p.Category = *patch.Category
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.NoteGeneral != nil {
		p.NoteGeneral = *patch.NoteGeneral
	}
	if patch.NoteSpecial != nil {
		p.NoteSpecial = *patch.NoteSpecial
	}
	p.UpdatedAt = time.Now()
	m.products[id] = p
	return &p, nil
}

func (m *mockRepository) DeleteProduct(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.deleteProductErr[id]; err != nil {
		return err
	}
	if _, ok := m.products[id]; !ok {
		return ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *mockRepository) CreateCategory(_ context.Context, c *domain.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.id("cat")
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	m.categories[c.ID] = *c
	return nil
}

func (m *mockRepository) GetCategoryByID(_ context.Context, id string) (*domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.categories[id]
	if !ok {
		return nil, ErrCategoryNotFound
	}
	return &c, nil
}

func (m *mockRepository) ListCategories(_ context.Context) ([]domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Category, 0, len(m.categories))
	for _, c := range m.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockRepository) UpdateCategory(_ context.Context, id string, patch CategoryPatch) (*domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.categories[id]
	if !ok {
		return nil, ErrCategoryNotFound
	}
	if patch.Name != nil {
		c.Name = *patch.Name
	}
	if patch.Description != nil {
		c.Description = *patch.Description
	}
	if patch.IsActive != nil {
		c.IsActive = *patch.IsActive
	}
	c.UpdatedAt = time.Now()
	m.categories[id] = c
	return &c, nil
}

func (m *mockRepository) DeleteCategory(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.categories[id]; !ok {
		return ErrCategoryNotFound
	}
	delete(m.categories, id)
	return nil
}

// mockAuditor records calls; optionally simulating a failing audit sink
// is unnecessary because the Auditor contract cannot fail.
type mockAuditor struct {
	mu      sync.Mutex
	records []string
}

func (m *mockAuditor) Record(actor *domain.User, action, details string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, action+": "+details)
}

func (m *mockAuditor) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func actor() *domain.User {
	return &domain.User{ID: "u1", Username: "admin", Email: "admin@example.com", Role: domain.RoleAdmin}
}

func strptr(s string) *string { return &s }

func TestCreateProductWithLog_RecordsExactlyOneEntry(t *testing.T) {
	repo := newMockRepository()
	auditor := &mockAuditor{}
	svc := NewService(repo, auditor)

	product, err := svc.CreateProductWithLog(context.Background(), actor(), CreateProductInput{
		Name: "Cola", Category: "Drinks", Price: "1.50",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, product.ID)
	assert.Equal(t, 1, auditor.count())
}

func TestUpdateProduct_PartialAndIdempotent(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, &mockAuditor{})

	product, err := svc.CreateProduct(context.Background(), CreateProductInput{
		Name: "Cola", Category: "Drinks", Description: "fizzy", Price: "1.50", NoteGeneral: "keep cold",
	})
	require.NoError(t, err)

	patch := ProductPatch{Price: strptr("2.00")}

	once, err := svc.UpdateProduct(context.Background(), product.ID, patch)
	require.NoError(t, err)
	twice, err := svc.UpdateProduct(context.Background(), product.ID, patch)
	require.NoError(t, err)

	// Unspecified fields survive the update.
	assert.Equal(t, "Cola", once.Name)
	assert.Equal(t, "Drinks", once.Category)
	assert.Equal(t, "fizzy", once.Description)
	assert.Equal(t, "keep cold", once.NoteGeneral)
	assert.Equal(t, "2.00", once.Price)

	// Applying the same patch twice yields the same final state.
	assert.Equal(t, once.Name, twice.Name)
	assert.Equal(t, once.Price, twice.Price)
	assert.Equal(t, once.Description, twice.Description)
}

func TestUpdateProductWithLog_EnumeratesChangedFields(t *testing.T) {
	repo := newMockRepository()
	auditor := &mockAuditor{}
	svc := NewService(repo, auditor)

	product, err := svc.CreateProduct(context.Background(), CreateProductInput{
		Name: "Cola", Category: "Drinks", Price: "1.50",
	})
	require.NoError(t, err)

	_, err = svc.UpdateProductWithLog(context.Background(), actor(), product.ID, ProductPatch{
		Name:  strptr("Cola Zero"),
		Price: strptr("1.80"),
	})
	require.NoError(t, err)

	require.Equal(t, 1, auditor.count())
	entry := auditor.records[0]
	assert.Contains(t, entry, `name to "Cola Zero"`)
	assert.Contains(t, entry, `price to "1.80"`)
	assert.NotContains(t, entry, "category")
}

func TestDeleteCategoryCascade_ProductsFirstThenCategory(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, &mockAuditor{})
	ctx := context.Background()

	drinks, err := svc.CreateCategory(ctx, CreateCategoryInput{Name: "Drinks", Description: "beverages"})
	require.NoError(t, err)
	_, err = svc.CreateProduct(ctx, CreateProductInput{Name: "Cola", Category: "Drinks", Price: "1.50"})
	require.NoError(t, err)
	_, err = svc.CreateProduct(ctx, CreateProductInput{Name: "Juice", Category: "Drinks", Price: "2.10"})
	require.NoError(t, err)
	other, err := svc.CreateProduct(ctx, CreateProductInput{Name: "Bread", Category: "Food", Price: "0.90"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteCategoryCascade(ctx, drinks.ID))

	remaining, err := repo.ListProductsByCategory(ctx, "Drinks")
	require.NoError(t, err)
	assert.Empty(t, remaining, "no product with category Drinks may remain")

	got, err := svc.GetCategory(ctx, drinks.ID)
	require.NoError(t, err)
	assert.Nil(t, got, "category must be gone")

	// Unrelated products survive.
	kept, err := svc.GetProduct(ctx, other.ID)
	require.NoError(t, err)
	require.NotNil(t, kept)
}

func TestDeleteCategoryCascade_AbortsAndKeepsCategoryOnProductFailure(t *testing.T) {
	repo := newMockRepository()
	auditor := &mockAuditor{}
	svc := NewService(repo, auditor)
	ctx := context.Background()

	drinks, err := svc.CreateCategory(ctx, CreateCategoryInput{Name: "Drinks"})
	require.NoError(t, err)
	p1, err := svc.CreateProduct(ctx, CreateProductInput{Name: "Cola", Category: "Drinks", Price: "1.50"})
	require.NoError(t, err)
	p2, err := svc.CreateProduct(ctx, CreateProductInput{Name: "Juice", Category: "Drinks", Price: "2.10"})
	require.NoError(t, err)

	// The second product in id order refuses to die.
	failing := p2.ID
	if p1.ID > p2.ID {
		failing = p1.ID
	}
	repo.deleteProductErr[failing] = errors.New("store down")

	err = svc.DeleteCategoryCascadeWithLog(ctx, actor(), drinks.ID)

	var cascadeErr *CascadeError
	require.ErrorAs(t, err, &cascadeErr)
	assert.Equal(t, "Drinks", cascadeErr.Category)
	assert.Contains(t, cascadeErr.Remaining, failing)

	// Category intact, no audit entry for the failed mutation.
	got, err := svc.GetCategory(ctx, drinks.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 0, auditor.count())
}

func TestCreateThenCascade_EndToEnd(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, &mockAuditor{})
	ctx := context.Background()

	drinks, err := svc.CreateCategory(ctx, CreateCategoryInput{Name: "Drinks", Description: "beverages"})
	require.NoError(t, err)
	_, err = svc.CreateProduct(ctx, CreateProductInput{Name: "Cola", Category: "Drinks", Price: "1.50"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteCategoryCascade(ctx, drinks.ID))

	products, err := svc.ListProducts(ctx)
	require.NoError(t, err)
	assert.Empty(t, products)

	categories, err := svc.ListCategories(ctx)
	require.NoError(t, err)
	assert.Empty(t, categories)
}

func TestCreateCategory_ActiveDefaultsTrue(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, &mockAuditor{})

	c, err := svc.CreateCategory(context.Background(), CreateCategoryInput{Name: "Drinks"})
	require.NoError(t, err)
	assert.True(t, c.IsActive)

	inactive := false
	c2, err := svc.CreateCategory(context.Background(), CreateCategoryInput{Name: "Archive", IsActive: &inactive})
	require.NoError(t, err)
	assert.False(t, c2.IsActive)
}

func TestGetProduct_NotFoundIsNilNotError(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, &mockAuditor{})

	product, err := svc.GetProduct(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, product)
}

func TestSearchProducts_CaseInsensitiveSubstringAndCategory(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, &mockAuditor{})
	ctx := context.Background()

	for _, p := range []CreateProductInput{
		{Name: "Cola", Category: "Drinks", Price: "1.50"},
		{Name: "Cola Zero", Category: "Drinks", Price: "1.60"},
		{Name: "Chocolate", Category: "Sweets", Price: "2.20"},
		{Name: "Bread", Category: "Food", Price: "0.90"},
	} {
		_, err := svc.CreateProduct(ctx, p)
		require.NoError(t, err)
	}

	names := func(products []domain.Product) []string {
		out := make([]string, 0, len(products))
		for _, p := range products {
			out = append(out, p.Name)
		}
		sort.Strings(out)
		return out
	}

	// Substring, case-insensitive.
	results, err := svc.SearchProducts(ctx, "cOLa", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Chocolate", "Cola", "Cola Zero"}, names(results))

	// Exact category only.
	results, err = svc.SearchProducts(ctx, "", "Drinks")
	require.NoError(t, err)
	assert.Equal(t, []string{"Cola", "Cola Zero"}, names(results))

	// Intersection of both predicates.
	results, err = svc.SearchProducts(ctx, "zero", "Drinks")
	require.NoError(t, err)
	assert.Equal(t, []string{"Cola Zero"}, names(results))

	// Empty query returns everything.
	results, err = svc.SearchProducts(ctx, "  ", "")
	require.NoError(t, err)
	assert.Len(t, results, 4)
}

func TestDescribeProductPatch_NoFields(t *testing.T) {
	assert.Equal(t, "no fields changed", describeProductPatch(ProductPatch{}))
	assert.True(t, ProductPatch{}.IsEmpty())
	assert.False(t, strings.Contains(describeProductPatch(ProductPatch{Name: strptr("x")}), "price"))
}

func TestUpdateProductWithLog_EmptyPatchIsNotLogged(t *testing.T) {
	repo := newMockRepository()
	auditor := &mockAuditor{}
	svc := NewService(repo, auditor)

	product, err := svc.CreateProduct(context.Background(), CreateProductInput{
		Name: "Cola", Category: "Drinks", Price: "1.50",
	})
	require.NoError(t, err)

	got, err := svc.UpdateProductWithLog(context.Background(), actor(), product.ID, ProductPatch{})
	require.NoError(t, err)
	assert.Equal(t, "Cola", got.Name)
	assert.Equal(t, 0, auditor.count())
}
