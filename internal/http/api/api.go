// Package api is the JSON surface of catalogd, the catalog service the web
// client talks to.
package api

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	applog "catalogweb/internal/log"
	"catalogweb/internal/services"
	"catalogweb/internal/validate"
)

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true}

type Handler struct {
	Catalog  *services.CatalogService
	MediaDir string
}

func errJSON(c *fiber.Ctx, code int, msg string) error {
	return c.Status(code).JSON(fiber.Map{"error": msg})
}

// GET /api/products
func (h *Handler) ListProducts(c *fiber.Ctx) error {
	name, okN := validate.FilterValue(c.Query("name"))
	desc, okD := validate.FilterValue(c.Query("description"))
	price, okP := validate.PriceBucket(c.Query("price"))
	if !okN || !okD || !okP {
		applog.Security(c, "validation.fail", map[string]any{"route": "products.list"})
		return errJSON(c, fiber.StatusBadRequest, "invalid filter")
	}
	page, err := h.Catalog.ListProducts(c.UserContext(), services.ListQuery{
		Page:        validate.Page(c.Query("page")),
		Name:        name,
		Description: desc,
		Price:       price,
		Categories:  services.SplitCategories(c.Query("category")),
	})
	if errors.Is(err, services.ErrInvalidPrice) {
		return errJSON(c, fiber.StatusBadRequest, "invalid price")
	}
	if err != nil {
		return err
	}
	return c.JSON(page)
}

// GET /api/products/:id
func (h *Handler) GetProduct(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return errJSON(c, fiber.StatusNotFound, "product not found")
	}
	p, err := h.Catalog.GetProduct(id)
	if errors.Is(err, services.ErrNotFound) {
		return errJSON(c, fiber.StatusNotFound, "product not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(p)
}

// DELETE /api/products/:id
func (h *Handler) DeleteProduct(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return errJSON(c, fiber.StatusNotFound, "product not found")
	}
	err := h.Catalog.DeleteProduct(c.UserContext(), id)
	if errors.Is(err, services.ErrNotFound) {
		return errJSON(c, fiber.StatusNotFound, "product not found")
	}
	if err != nil {
		return err
	}
	applog.Audit(c, "api.product.delete", map[string]any{"product_id": id})
	return c.SendStatus(fiber.StatusNoContent)
}

// POST /api/products takes multipart fields name, description, price,
// categories[] and image[].
func (h *Handler) CreateProduct(c *fiber.Ctx) error {
	mf, err := c.MultipartForm()
	if err != nil {
		return errJSON(c, fiber.StatusBadRequest, "multipart form expected")
	}
	form := validate.ProductForm{
		Name:        first(mf.Value["name"]),
		Description: first(mf.Value["description"]),
		Price:       first(mf.Value["price"]),
		Categories:  mf.Value["categories[]"],
	}
	if errs := validate.Product(&form); len(errs) > 0 {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"errors": errs})
	}

	var paths []string
	for _, fh := range mf.File["image[]"] {
		ext := strings.ToLower(filepath.Ext(fh.Filename))
		if !imageExts[ext] {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"errors": validate.FieldErrors{"image": "Images must be jpg, png, gif or webp"}})
		}
		rel := filepath.ToSlash(filepath.Join("products", uuid.NewString()+ext))
		if err := os.MkdirAll(filepath.Join(h.MediaDir, "products"), 0o755); err != nil {
			return err
		}
		if err := c.SaveFile(fh, filepath.Join(h.MediaDir, filepath.FromSlash(rel))); err != nil {
			return err
		}
		paths = append(paths, rel)
	}

	p, err := h.Catalog.CreateProduct(c.UserContext(), services.CreateProductInput{
		Name:        form.Name,
		Description: form.Description,
		Price:       form.PriceValue(),
		Categories:  form.Categories,
		ImagePaths:  paths,
	})
	if errors.Is(err, services.ErrUnknownCategory) {
		h.removeUploads(paths)
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"errors": validate.FieldErrors{"categories": "Unknown category"}})
	}
	if err != nil {
		h.removeUploads(paths)
		return err
	}
	applog.Audit(c, "api.product.create", map[string]any{"product_id": p.ID, "images": len(paths)})
	return c.Status(fiber.StatusCreated).JSON(p)
}

func (h *Handler) removeUploads(paths []string) {
	for _, p := range paths {
		_ = os.Remove(filepath.Join(h.MediaDir, filepath.FromSlash(p)))
	}
}

// GET /api/categories
func (h *Handler) ListCategories(c *fiber.Ctx) error {
	cats, err := h.Catalog.ListCategories()
	if err != nil {
		return err
	}
	return c.JSON(cats)
}

// POST /api/categories accepts JSON or form encoded {name}.
func (h *Handler) CreateCategory(c *fiber.Ctx) error {
	var body struct {
		Name string `json:"name" form:"name"`
	}
	if err := c.BodyParser(&body); err != nil {
		return errJSON(c, fiber.StatusBadRequest, "invalid body")
	}
	form := validate.CategoryForm{Name: body.Name}
	if errs := validate.Category(&form); len(errs) > 0 {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"errors": errs})
	}
	cat, err := h.Catalog.CreateCategory(c.UserContext(), form.Name)
	if errors.Is(err, services.ErrDuplicate) {
		return errJSON(c, fiber.StatusConflict, "category already exists")
	}
	if err != nil {
		return err
	}
	applog.Audit(c, "api.category.create", map[string]any{"category_id": cat.ID})
	return c.Status(fiber.StatusCreated).JSON(cat)
}

// Storage serves uploaded images from MediaDir, refusing traversal.
func (h *Handler) Storage(c *fiber.Ctx) error {
	path := c.Params("*")
	rawLower := strings.ToLower(path)
	if strings.Contains(rawLower, "..") || strings.Contains(rawLower, "%2e") || strings.Contains(rawLower, "\x00") {
		applog.Security(c, "media.traversal.block", map[string]any{"path": path})
		return c.SendStatus(fiber.StatusNotFound)
	}
	clean := filepath.Clean(path)
	if clean == "." || strings.Contains(clean, "..") || filepath.IsAbs(clean) {
		applog.Security(c, "media.traversal.block", map[string]any{"path": path})
		return c.SendStatus(fiber.StatusNotFound)
	}
	return c.SendFile(filepath.Join(h.MediaDir, clean), true)
}

// ErrorHandler answers with JSON and never leaks internals for 5xx.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "internal error"
	if fe, ok := err.(*fiber.Error); ok && fe.Code < 500 {
		code, msg = fe.Code, fe.Message
	}
	if code >= 500 {
		applog.Error(c, "server.error", err, nil)
	}
	return errJSON(c, code, msg)
}

// Register mounts the API and storage routes.
func Register(app fiber.Router, h *Handler) {
	api := app.Group("/api")
	api.Get("/products", h.ListProducts)
	api.Post("/products", h.CreateProduct)
	api.Get("/products/:id", h.GetProduct)
	api.Delete("/products/:id", h.DeleteProduct)
	api.Get("/categories", h.ListCategories)
	api.Post("/categories", h.CreateCategory)

	app.Get("/storage/*", h.Storage)
}

func first(vs []string) string {
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}
