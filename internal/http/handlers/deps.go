package handlers

import (
	"context"
	"time"

	"catalogweb/internal/catalogapi"
	"catalogweb/internal/config"
	"catalogweb/internal/domain"
	"catalogweb/internal/listview"
	"catalogweb/internal/services"
)

// Catalog is the upstream the web client talks to. *catalogapi.Client implements it.
type Catalog interface {
	listview.Service
	GetProduct(ctx context.Context, id int64) (domain.Product, error)
	CreateCategory(ctx context.Context, name string) (domain.Category, error)
	CreateProduct(ctx context.Context, p catalogapi.NewProduct) (domain.Product, error)
}

type Deps struct {
	ListHandler    *ListHandler
	ProductHandler *ProductHandler
	AdminHandler   *AdminHandler
	AuthHandler    *AuthHandler
	Gate           *services.AdminGate
}

func NewDeps(cfg config.Config, catalog Catalog, views *listview.Registry, gate *services.AdminGate) *Deps {
	return &Deps{
		ListHandler: &ListHandler{
			Views:       views,
			SettleWait:  2 * time.Second,
			PollTimeout: 25 * time.Second,
		},
		ProductHandler: &ProductHandler{Catalog: catalog, StorageBase: cfg.StorageBaseURL},
		AdminHandler:   &AdminHandler{Catalog: catalog},
		AuthHandler:    &AuthHandler{Gate: gate},
		Gate:           gate,
	}
}
