package handlers

import (
	"errors"

	"catalogweb/internal/catalogapi"
	"catalogweb/internal/domain"
	"catalogweb/internal/log"
	"catalogweb/internal/validate"

	"github.com/gofiber/fiber/v2"
)

type ProductHandler struct {
	Catalog     Catalog
	StorageBase string
}

type imageView struct {
	URL string
}

func (h *ProductHandler) images(p domain.Product) []imageView {
	out := make([]imageView, 0, len(p.Images))
	for _, img := range p.Images {
		out = append(out, imageView{URL: domain.ImageURL(h.StorageBase, img.Path)})
	}
	return out
}

// GET /product/:id
func (h *ProductHandler) Detail(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		log.Security(c, "validation.fail", map[string]any{"field": "product"})
		return notFound(c, "This item is no longer available")
	}
	p, err := h.Catalog.GetProduct(c.UserContext(), id)
	if errors.Is(err, catalogapi.ErrNotFound) {
		return notFound(c, "This item is no longer available")
	}
	if err != nil {
		log.Error(c, "product.get.fail", err, map[string]any{"product_id": id})
		return fiber.NewError(fiber.StatusBadGateway, "Could not load this product. Please try again.")
	}
	return render(c, "product", fiber.Map{"P": p, "Images": h.images(p)})
}

// POST /product/:id/delete
func (h *ProductHandler) Delete(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		log.Security(c, "validation.fail", map[string]any{"field": "product"})
		return notFound(c, "This item is no longer available")
	}
	err := h.Catalog.DeleteProduct(c.UserContext(), id)
	switch {
	case err == nil:
		log.Audit(c, "product.delete", map[string]any{"product_id": id})
		return c.Redirect("/")
	case errors.Is(err, catalogapi.ErrNotFound):
		return notFound(c, "This item is no longer available")
	}
	log.Error(c, "product.delete.fail", err, map[string]any{"product_id": id})
	p, gerr := h.Catalog.GetProduct(c.UserContext(), id)
	if gerr != nil {
		return fiber.NewError(fiber.StatusBadGateway, "Could not delete product. Please try again.")
	}
	c.Status(fiber.StatusBadGateway)
	return render(c, "product", fiber.Map{"P": p, "Images": h.images(p), "Err": "Could not delete product. Please try again."})
}
