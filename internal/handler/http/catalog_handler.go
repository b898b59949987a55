package http

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/modest-storefront/internal/catalog"
)

const maxPageSize = 100

type ProductRequest struct {
	Name          string           `json:"name" validate:"required,max=200"`
	NameEN        string           `json:"name_en,omitempty" validate:"omitempty,max=200"`
	NameAR        string           `json:"name_ar,omitempty" validate:"omitempty,max=200"`
	Description   string           `json:"description,omitempty"`
	DescriptionEN string           `json:"description_en,omitempty"`
	DescriptionAR string           `json:"description_ar,omitempty"`
	Price         decimal.Decimal  `json:"price"`
	OriginalPrice *decimal.Decimal `json:"original_price,omitempty"`
	Category      catalog.Category `json:"category" validate:"required,oneof=hijab-wrapping robe-dress coordinated-set gift-box"`
	Subcategory   string           `json:"subcategory,omitempty"`
	Images        []string         `json:"images" validate:"dive,url"`
	Colors        []string         `json:"colors" validate:"dive,required"`
	Sizes         []string         `json:"sizes" validate:"dive,required"`
	InStock       bool             `json:"in_stock"`
	IsNew         bool             `json:"is_new"`
	IsBestSeller  bool             `json:"is_best_seller"`
	IsOnSale      bool             `json:"is_on_sale"`
	Tags          []string         `json:"tags"`
}

func (r ProductRequest) toProduct() catalog.Product {
	return catalog.Product{
		Name:          r.Name,
		NameEN:        r.NameEN,
		NameAR:        r.NameAR,
		Description:   r.Description,
		DescriptionEN: r.DescriptionEN,
		DescriptionAR: r.DescriptionAR,
		Price:         r.Price,
		OriginalPrice: r.OriginalPrice,
		Category:      r.Category,
		Subcategory:   r.Subcategory,
		Images:        r.Images,
		Colors:        r.Colors,
		Sizes:         r.Sizes,
		InStock:       r.InStock,
		IsNew:         r.IsNew,
		IsBestSeller:  r.IsBestSeller,
		IsOnSale:      r.IsOnSale,
		Tags:          r.Tags,
	}
}

type CategoryRequest struct {
	Slug      catalog.Category `json:"slug" validate:"required,oneof=hijab-wrapping robe-dress coordinated-set gift-box"`
	Name      string           `json:"name" validate:"required,max=100"`
	NameEN    string           `json:"name_en,omitempty" validate:"omitempty,max=100"`
	NameAR    string           `json:"name_ar,omitempty" validate:"omitempty,max=100"`
	ImageURL  string           `json:"image_url,omitempty" validate:"omitempty,url"`
	SortOrder int              `json:"sort_order" validate:"min=0"`
}

type CatalogHandler struct {
	service  catalog.Service
	validate *validator.Validate
}

func NewCatalogHandler(service catalog.Service) *CatalogHandler {
	return &CatalogHandler{
		service:  service,
		validate: newValidator(),
	}
}

func (h *CatalogHandler) RegisterRoutes(router chi.Router) {
	router.Get("/products", h.handleListProducts)
	router.Get("/products/{id}", h.handleGetProduct)
	router.Get("/categories", h.handleListCategories)
	router.Get("/categories/{slug}/subcategories", h.handleListSubcategories)
}

func (h *CatalogHandler) RegisterAdminRoutes(router chi.Router) {
	router.Post("/products", h.handleCreateProduct)
	router.Put("/products/{id}", h.handleUpdateProduct)
	router.Delete("/products/{id}", h.handleDeleteProduct)
	router.Post("/categories", h.handleCreateCategory)
}

func (h *CatalogHandler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	filter, err := productFilterFromQuery(r.URL.Query())
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	products, err := h.service.ListProducts(r.Context(), filter)
	if err != nil {
		respondWithServiceError(w, err, "Failed to list products")
		return
	}
	respondWithJSON(w, http.StatusOK, products)
}

func (h *CatalogHandler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	product, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get product")
		return
	}
	respondWithJSON(w, http.StatusOK, product)
}

func (h *CatalogHandler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		respondWithServiceError(w, err, "Failed to list categories")
		return
	}
	respondWithJSON(w, http.StatusOK, categories)
}

func (h *CatalogHandler) handleListSubcategories(w http.ResponseWriter, r *http.Request) {
	slug := catalog.Category(chi.URLParam(r, "slug"))

	subcategories, err := h.service.ListSubcategories(r.Context(), slug)
	if err != nil {
		respondWithServiceError(w, err, "Failed to list subcategories")
		return
	}
	respondWithJSON(w, http.StatusOK, subcategories)
}

func (h *CatalogHandler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	p := req.toProduct()
	created, err := h.service.CreateProduct(r.Context(), &p)
	if err != nil {
		respondWithServiceError(w, err, "Failed to create product")
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

func (h *CatalogHandler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req ProductRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	p := req.toProduct()
	p.ID = id
	if err := h.service.UpdateProduct(r.Context(), &p); err != nil {
		respondWithServiceError(w, err, "Failed to update product")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandler) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		respondWithServiceError(w, err, "Failed to delete product")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandler) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	c := catalog.CategoryInfo{
		Slug:      req.Slug,
		Name:      req.Name,
		NameEN:    req.NameEN,
		NameAR:    req.NameAR,
		ImageURL:  req.ImageURL,
		SortOrder: req.SortOrder,
	}
	if err := h.service.CreateCategory(r.Context(), &c); err != nil {
		respondWithServiceError(w, err, "Failed to create category")
		return
	}
	respondWithJSON(w, http.StatusCreated, c)
}

func productFilterFromQuery(q url.Values) (catalog.ProductFilter, error) {
	f := catalog.ProductFilter{
		Category:    catalog.Category(q.Get("category")),
		Subcategory: q.Get("subcategory"),
		Search:      strings.TrimSpace(q.Get("q")),
		InStockOnly: q.Get("in_stock") == "true",
		NewOnly:     q.Get("new") == "true",
		BestSeller:  q.Get("best_seller") == "true",
		OnSaleOnly:  q.Get("on_sale") == "true",
	}
	if f.Category != "" && !f.Category.Valid() {
		return f, errInvalidQuery("category")
	}

	var err error
	if f.MinPrice, err = decimalQuery(q, "min_price"); err != nil {
		return f, err
	}
	if f.MaxPrice, err = decimalQuery(q, "max_price"); err != nil {
		return f, err
	}
	if f.Limit, f.Offset, err = pageQuery(q); err != nil {
		return f, err
	}
	return f, nil
}

type errInvalidQuery string

func (e errInvalidQuery) Error() string {
	return "Invalid " + string(e) + " parameter"
}

func decimalQuery(q url.Values, key string) (*decimal.Decimal, error) {
	raw := q.Get(key)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		return nil, errInvalidQuery(key)
	}
	return &d, nil
}

func pageQuery(q url.Values) (limit, offset int, err error) {
	if raw := q.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return 0, 0, errInvalidQuery("limit")
		}
		if limit > maxPageSize {
			limit = maxPageSize
		}
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return 0, 0, errInvalidQuery("offset")
		}
	}
	return limit, offset, nil
}
