package domain

import (
	"net/url"
	"strings"
	"unicode"
)

type Category struct {
	ID        int64  `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	CreatedAt string `db:"created_at" json:"created_at"`
	UpdatedAt string `db:"updated_at" json:"updated_at"`
}

type Image struct {
	ID        int64  `db:"id" json:"id"`
	ProductID int64  `db:"product_id" json:"product_id"`
	Path      string `db:"image_path" json:"image_path"`
}

type Product struct {
	ID          int64      `db:"id" json:"id"`
	Name        string     `db:"name" json:"name"`
	Description string     `db:"description" json:"description"`
	Price       float64    `db:"price" json:"price"`
	CreatedAt   string     `db:"created_at" json:"created_at"`
	UpdatedAt   string     `db:"updated_at" json:"updated_at"`
	Categories  []Category `db:"-" json:"categories"`
	Images      []Image    `db:"-" json:"images,omitempty"`
}

// ListPage is one page of the product listing as served by the catalog API.
type ListPage struct {
	Data        []Product `json:"data"`
	CurrentPage int       `json:"current_page"`
	LastPage    int       `json:"last_page"`
	Total       int       `json:"total"`
}

// ProductSummary is a listing row: truncated description, first image, first category.
type ProductSummary struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Image       string  `json:"image"`
	Category    string  `json:"category"`
}

const summaryDescriptionLen = 30

func Summarize(p Product, storageBase string) ProductSummary {
	s := ProductSummary{
		ID:          p.ID,
		Name:        p.Name,
		Description: TruncateDescription(p.Description),
		Price:       p.Price,
	}
	if len(p.Images) > 0 {
		s.Image = ImageURL(storageBase, p.Images[0].Path)
	}
	if len(p.Categories) > 0 {
		s.Category = p.Categories[0].Name
	}
	return s
}

// TruncateDescription keeps the first 30 characters, trimmed, followed by an ellipsis.
func TruncateDescription(d string) string {
	r := []rune(d)
	if len(r) <= summaryDescriptionLen {
		return d
	}
	return strings.TrimFunc(string(r[:summaryDescriptionLen]), unicode.IsSpace) + "..."
}

// ImageURL resolves a stored image path. Absolute URLs are returned verbatim;
// anything else is served from the catalog's static storage.
func ImageURL(storageBase, path string) string {
	if u, err := url.Parse(path); err == nil && u.Scheme != "" && u.Host != "" {
		return path
	}
	if storageBase != "" && !strings.HasSuffix(storageBase, "/") {
		storageBase += "/"
	}
	return storageBase + strings.TrimLeft(path, "/")
}

// PageCursor tracks the list position. LastPage 0 means not loaded yet.
type PageCursor struct {
	CurrentPage int `json:"current_page"`
	LastPage    int `json:"last_page"`
}

func (c PageCursor) PrevDisabled() bool { return c.CurrentPage == 1 }
func (c PageCursor) NextDisabled() bool { return c.CurrentPage == c.LastPage }
