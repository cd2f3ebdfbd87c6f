package shelf

import (
	"context"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// CreateProductRequest is the catalog creation payload.
type CreateProductRequest struct {
	SKU         string `json:"sku"`
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents"`
	Currency    string `json:"currency"`
	Stock       int    `json:"stock"`
}

// UpdateProductRequest is a partial update; zero fields leave the stored
// value untouched.
type UpdateProductRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents"`
	Currency    string `json:"currency"`
	Stock       int    `json:"stock"`
}

// ProductService is the catalog CRUD surface behind the admin API.
type ProductService struct {
	db       *bun.DB
	products repository.Repository[*Product]
	logger   Logger
}

// ProductOption customizes ProductService construction.
type ProductOption func(*ProductService)

// WithProductLogger overrides the default logger.
func WithProductLogger(logger Logger) ProductOption {
	return func(s *ProductService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewProductService returns a new ProductService
func NewProductService(db *bun.DB, opts ...ProductOption) *ProductService {
	repo := repository.NewRepository[*Product](db, repository.ModelHandlers[*Product]{
		NewRecord: func() *Product { return &Product{} },
		GetID: func(p *Product) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *Product, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
		GetIdentifier: func() string {
			return "sku"
		},
	})

	s := &ProductService{
		db:       db,
		products: repo,
		logger:   defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// List returns the catalog ordered by name.
func (s *ProductService) List(ctx context.Context) ([]*Product, error) {
	var records []*Product
	err := s.db.NewSelect().
		Model(&records).
		OrderExpr("?TableAlias.name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Get returns one product, or nil when the id is not known.
func (s *ProductService) Get(ctx context.Context, id uuid.UUID) (*Product, error) {
	record, err := s.products.GetByID(ctx, id.String())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

// Create adds a product; duplicate SKUs are rejected with a structured
// detail like the credential store rejections.
func (s *ProductService) Create(ctx context.Context, req CreateProductRequest) (*Product, error) {
	record := &Product{
		ID:          uuid.New(),
		SKU:         req.SKU,
		Name:        req.Name,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Currency:    req.Currency,
		Stock:       req.Stock,
	}

	created, err := s.products.CreateTx(ctx, s.db, record)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, NewCredentialError(ErrorDetail{
				Code:        "DuplicateSKU",
				Description: "sku '" + req.SKU + "' is already taken",
			})
		}
		return nil, err
	}

	return created, nil
}

// Update applies the non-zero request fields to the product.
func (s *ProductService) Update(ctx context.Context, id uuid.UUID, req UpdateProductRequest) (*Product, error) {
	record := &Product{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Currency:    req.Currency,
		Stock:       req.Stock,
	}

	// the repository update omits zero-value columns, so this is a
	// partial update
	_, err := s.products.Update(ctx, record,
		repository.UpdateByID(id.String()),
	)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	// the partial update only returns the touched columns
	return s.Get(ctx, id)
}

// Delete removes a product; deleting an unknown id reports false.
func (s *ProductService) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.db.NewDelete().
		Model((*Product)(nil)).
		Where("?TableAlias.id = ?", id).
		Exec(ctx)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}
