package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bkotelnikov/shopadmin/internal/domain"
	"github.com/bkotelnikov/shopadmin/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Handler handles HTTP requests for the catalog module.
type Handler struct {
	service   *Service
	search    *Debouncer
	validator *validator.Validate
}

// NewHandler creates a new catalog handler.
func NewHandler(service *Service, search *Debouncer) *Handler {
	return &Handler{
		service:   service,
		search:    search,
		validator: validator.New(),
	}
}

// RegisterReadRoutes registers routes available to every role.
func (h *Handler) RegisterReadRoutes(r chi.Router) {
	r.Get("/products", h.ListProducts)
	r.Get("/products/search", h.SearchProducts)
	r.Get("/products/{id}", h.GetProduct)
	r.Get("/categories", h.ListCategories)
	r.Get("/categories/{id}", h.GetCategory)
}

// RegisterWriteRoutes registers mutating routes. Callers mount them
// behind the Advanced role gate.
func (h *Handler) RegisterWriteRoutes(r chi.Router) {
	r.Post("/products", h.CreateProduct)
	r.Patch("/products/{id}", h.UpdateProduct)
	r.Delete("/products/{id}", h.DeleteProduct)

	r.Post("/categories", h.CreateCategory)
	r.Patch("/categories/{id}", h.UpdateCategory)
	r.Delete("/categories/{id}", h.DeleteCategory)
}

var productErrorMappings = []httputil.ErrorMapping{
	{Error: ErrProductNotFound, Status: http.StatusNotFound},
	{Error: ErrCategoryNotFound, Status: http.StatusNotFound},
}

// ListProducts handles GET /products.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, nil)
		return
	}
	httputil.Success(w, http.StatusOK, products)
}

// GetProduct handles GET /products/{id}.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.service.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, nil)
		return
	}
	if product == nil {
		httputil.Error(w, http.StatusNotFound, "product not found")
		return
	}
	httputil.Success(w, http.StatusOK, product)
}

// SearchProducts handles GET /products/search?q=&category=.
// Queries are debounced per session; a superseded query answers 204 so
// the client discards it.
func (h *Handler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("q")
	category := r.URL.Query().Get("category")

	key := "anonymous"
	if actor := httputil.Actor(r.Context()); actor != nil {
		key = actor.ID
	}

	products, err := h.search.Do(r.Context(), key, func(ctx context.Context) ([]domain.Product, error) {
		return h.service.SearchProducts(ctx, term, category)
	})
	if err != nil {
		if errors.Is(err, ErrSuperseded) || errors.Is(err, context.Canceled) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		httputil.HandleError(r.Context(), w, err, nil)
		return
	}

	httputil.Success(w, http.StatusOK, products)
}

// CreateProductRequest is the create-product request body.
type CreateProductRequest struct {
	Name        string `json:"name" validate:"required"`
	Category    string `json:"category" validate:"required"`
	Description string `json:"description"`
	Price       string `json:"price" validate:"required,numeric"`
	NoteGeneral string `json:"note_general"`
	NoteSpecial string `json:"note_special"`
}

// CreateProduct handles POST /products.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	product, err := h.service.CreateProductWithLog(r.Context(), httputil.Actor(r.Context()), CreateProductInput{
		Name:        req.Name,
		Category:    req.Category,
		Description: req.Description,
		Price:       req.Price,
		NoteGeneral: req.NoteGeneral,
		NoteSpecial: req.NoteSpecial,
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, productErrorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, product)
}

// UpdateProductRequest is the partial-update request body. Absent fields
// are left unchanged.
type UpdateProductRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1"`
	Category    *string `json:"category" validate:"omitempty,min=1"`
	Description *string `json:"description"`
	Price       *string `json:"price" validate:"omitempty,numeric"`
	NoteGeneral *string `json:"note_general"`
	NoteSpecial *string `json:"note_special"`
}

// UpdateProduct handles PATCH /products/{id}.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req UpdateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	patch := ProductPatch{
		Name:        req.Name,
		Category:    req.Category,
		Description: req.Description,
		Price:       req.Price,
		NoteGeneral: req.NoteGeneral,
		NoteSpecial: req.NoteSpecial,
	}

	product, err := h.service.UpdateProductWithLog(r.Context(), httputil.Actor(r.Context()), chi.URLParam(r, "id"), patch)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, productErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, product)
}

// DeleteProduct handles DELETE /products/{id}.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	err := h.service.DeleteProductWithLog(r.Context(), httputil.Actor(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, productErrorMappings)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListCategories handles GET /categories.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, nil)
		return
	}
	httputil.Success(w, http.StatusOK, categories)
}

// GetCategory handles GET /categories/{id}.
func (h *Handler) GetCategory(w http.ResponseWriter, r *http.Request) {
	category, err := h.service.GetCategory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, nil)
		return
	}
	if category == nil {
		httputil.Error(w, http.StatusNotFound, "category not found")
		return
	}
	httputil.Success(w, http.StatusOK, category)
}

// CreateCategoryRequest is the create-category request body.
type CreateCategoryRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	IsActive    *bool  `json:"is_active"`
}

// CreateCategory handles POST /categories.
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	category, err := h.service.CreateCategoryWithLog(r.Context(), httputil.Actor(r.Context()), CreateCategoryInput{
		Name:        req.Name,
		Description: req.Description,
		IsActive:    req.IsActive,
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, nil)
		return
	}

	httputil.Success(w, http.StatusCreated, category)
}

// UpdateCategoryRequest is the partial-update request body.
type UpdateCategoryRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
}

// UpdateCategory handles PATCH /categories/{id}.
func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req UpdateCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	patch := CategoryPatch{
		Name:        req.Name,
		Description: req.Description,
		IsActive:    req.IsActive,
	}

	category, err := h.service.UpdateCategoryWithLog(r.Context(), httputil.Actor(r.Context()), chi.URLParam(r, "id"), patch)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, []httputil.ErrorMapping{
			{Error: ErrCategoryNotFound, Status: http.StatusNotFound},
		})
		return
	}

	httputil.Success(w, http.StatusOK, category)
}

// DeleteCategory handles DELETE /categories/{id}. The deletion cascades
// to all products in the category; a partial cascade failure answers 409
// with the ids of the products still present.
func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	err := h.service.DeleteCategoryCascadeWithLog(r.Context(), httputil.Actor(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		var cascadeErr *CascadeError
		if errors.As(err, &cascadeErr) {
			httputil.JSON(w, http.StatusConflict, map[string]interface{}{
				"error": map[string]interface{}{
					"message":            "cascade delete aborted, category left intact",
					"remaining_products": cascadeErr.Remaining,
				},
			})
			return
		}
		httputil.HandleError(r.Context(), w, err, []httputil.ErrorMapping{
			{Error: ErrCategoryNotFound, Status: http.StatusNotFound},
		})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
