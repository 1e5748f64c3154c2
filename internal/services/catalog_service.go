package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap/zapcore"

	"catalogweb/internal/cache"
	"catalogweb/internal/domain"
	"catalogweb/internal/log"
	"catalogweb/internal/metrics"
	"catalogweb/internal/repos"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidPrice    = errors.New("invalid price bucket")
	ErrDuplicate       = errors.New("already exists")
	ErrUnknownCategory = errors.New("unknown category")
)

// ListCache is the optional response cache in front of ListProducts.
type ListCache interface {
	Get(ctx context.Context, k cache.ListKey) (domain.ListPage, bool)
	Set(ctx context.Context, k cache.ListKey, page domain.ListPage)
	Invalidate(ctx context.Context) error
}

type CatalogService struct {
	Cats     *repos.CategoryRepo
	Prods    *repos.ProductRepo
	PageSize int
	Cache    ListCache
	Metrics  *metrics.Metrics
}

func NewCatalogService(cats *repos.CategoryRepo, prods *repos.ProductRepo, pageSize int) *CatalogService {
	if pageSize <= 0 {
		pageSize = 10
	}
	return &CatalogService{Cats: cats, Prods: prods, PageSize: pageSize}
}

// ListQuery is one listing request. Categories match any-of.
type ListQuery struct {
	Page        int
	Name        string
	Description string
	Price       string
	Categories  []string
}

// PriceRange translates a bucket token into [min, max). "" means unbounded.
func PriceRange(bucket string) (min, max *float64, err error) {
	f := func(v float64) *float64 { return &v }
	switch bucket {
	case "":
		return nil, nil, nil
	case "under100":
		return nil, f(100), nil
	case "under500":
		return f(100), f(500), nil
	case "more500":
		return f(500), nil, nil
	}
	return nil, nil, ErrInvalidPrice
}

// SplitCategories parses the comma-joined category parameter.
func SplitCategories(v string) []string {
	var out []string
	for _, c := range strings.Split(v, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func (s *CatalogService) ListProducts(ctx context.Context, q ListQuery) (domain.ListPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	min, max, err := PriceRange(q.Price)
	if err != nil {
		return domain.ListPage{}, err
	}

	key := cache.ListKey{
		Page: q.Page, PageSize: s.PageSize,
		Name: q.Name, Description: q.Description, Price: q.Price, Categories: q.Categories,
	}
	if s.Cache != nil {
		if page, ok := s.Cache.Get(ctx, key); ok {
			s.Metrics.Cache(true)
			return page, nil
		}
		s.Metrics.Cache(false)
	}

	f := repos.ProductFilter{
		Name:        q.Name,
		Description: q.Description,
		MinPrice:    min,
		MaxPrice:    max,
		Categories:  q.Categories,
	}
	total, err := s.Prods.Count(f)
	if err != nil {
		return domain.ListPage{}, err
	}
	rows, err := s.Prods.Search(f, s.PageSize, (q.Page-1)*s.PageSize)
	if err != nil {
		return domain.ListPage{}, err
	}
	page := domain.ListPage{
		Data:        rows,
		CurrentPage: q.Page,
		LastPage:    max1((total + s.PageSize - 1) / s.PageSize),
		Total:       total,
	}
	if s.Cache != nil {
		s.Cache.Set(ctx, key, page)
	}
	return page, nil
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

func (s *CatalogService) GetProduct(id int64) (domain.Product, error) {
	p, err := s.Prods.Get(id)
	if repos.IsNotFound(err) {
		return p, ErrNotFound
	}
	return p, err
}

func (s *CatalogService) DeleteProduct(ctx context.Context, id int64) error {
	ok, err := s.Prods.Delete(id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	s.invalidate(ctx)
	return nil
}

func (s *CatalogService) ListCategories() ([]domain.Category, error) {
	return s.Cats.List()
}

func (s *CatalogService) CreateCategory(ctx context.Context, name string) (domain.Category, error) {
	c, err := s.Cats.Create(strings.TrimSpace(name))
	if errors.Is(err, repos.ErrDuplicate) {
		return c, ErrDuplicate
	}
	return c, err
}

type CreateProductInput struct {
	Name        string
	Description string
	Price       float64
	Categories  []string
	ImagePaths  []string
}

func (s *CatalogService) CreateProduct(ctx context.Context, in CreateProductInput) (domain.Product, error) {
	ids, err := s.Cats.IDsByNames(in.Categories)
	if errors.Is(err, repos.ErrUnknownCategory) {
		return domain.Product{}, ErrUnknownCategory
	}
	if err != nil {
		return domain.Product{}, err
	}
	p, err := s.Prods.Create(repos.NewProduct{
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		CategoryIDs: ids,
		ImagePaths:  in.ImagePaths,
	})
	if err != nil {
		return p, err
	}
	s.invalidate(ctx)
	return p, nil
}

func (s *CatalogService) invalidate(ctx context.Context) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Invalidate(ctx); err != nil {
		log.Event(zapcore.ErrorLevel, "cache.invalidate", err, nil)
	}
}
