package handlers

import (
	"errors"
	"mime/multipart"

	"catalogweb/internal/catalogapi"
	applog "catalogweb/internal/log"
	"catalogweb/internal/validate"

	"github.com/gofiber/fiber/v2"
)

const maxImages = 8

type AdminHandler struct {
	Catalog Catalog
}

// GET /admin
func (h *AdminHandler) Dashboard(c *fiber.Ctx) error {
	return render(c, "admin", fiber.Map{})
}

// GET /admin/categories/create
func (h *AdminHandler) CategoryForm(c *fiber.Ctx) error {
	return render(c, "admin_category_create", fiber.Map{"Form": validate.CategoryForm{}, "Errors": validate.FieldErrors{}})
}

// POST /admin/categories/create
func (h *AdminHandler) CreateCategory(c *fiber.Ctx) error {
	form := validate.CategoryForm{Name: c.FormValue("name")}
	if errs := validate.Category(&form); len(errs) > 0 {
		c.Status(fiber.StatusUnprocessableEntity)
		return render(c, "admin_category_create", fiber.Map{"Form": form, "Errors": errs})
	}
	cat, err := h.Catalog.CreateCategory(c.UserContext(), form.Name)
	if err != nil {
		applog.Error(c, "admin.category.create.fail", err, map[string]any{"name": form.Name})
		msg := "Could not create category. Please try again."
		var se *catalogapi.StatusError
		if errors.As(err, &se) && se.Status == fiber.StatusConflict {
			msg = "A category with this name already exists"
		}
		c.Status(fiber.StatusBadGateway)
		return render(c, "admin_category_create", fiber.Map{"Form": form, "Errors": validate.FieldErrors{}, "Err": msg})
	}
	applog.Audit(c, "admin.category.create", map[string]any{"category_id": cat.ID, "name": cat.Name})
	return c.Redirect("/admin/products/create")
}

// GET /admin/products/create
func (h *AdminHandler) ProductForm(c *fiber.Ctx) error {
	return h.productForm(c, validate.ProductForm{}, nil, "")
}

func (h *AdminHandler) productForm(c *fiber.Ctx, form validate.ProductForm, errs validate.FieldErrors, msg string) error {
	cats, err := h.Catalog.ListCategories(c.UserContext())
	if err != nil {
		applog.Error(c, "admin.categories.list.fail", err, nil)
		if msg == "" {
			msg = "Could not load categories"
		}
	}
	if errs == nil {
		errs = validate.FieldErrors{}
	}
	selected := map[string]bool{}
	for _, n := range form.Categories {
		selected[n] = true
	}
	return render(c, "admin_product_create", fiber.Map{
		"Form":       form,
		"Errors":     errs,
		"Err":        msg,
		"Categories": cats,
		"Selected":   selected,
	})
}

// POST /admin/products/create
func (h *AdminHandler) CreateProduct(c *fiber.Ctx) error {
	form := validate.ProductForm{
		Name:        c.FormValue("name"),
		Description: c.FormValue("description"),
		Price:       c.FormValue("price"),
	}
	var files []*multipart.FileHeader
	if mf, err := c.MultipartForm(); err == nil {
		form.Categories = mf.Value["categories"]
		files = mf.File["image"]
	}
	if errs := validate.Product(&form); len(errs) > 0 {
		c.Status(fiber.StatusUnprocessableEntity)
		return h.productForm(c, form, errs, "")
	}
	if len(files) > maxImages {
		c.Status(fiber.StatusUnprocessableEntity)
		return h.productForm(c, form, validate.FieldErrors{"image": "Too many images"}, "")
	}

	in := catalogapi.NewProduct{
		Name:        form.Name,
		Description: form.Description,
		Price:       form.PriceValue(),
		Categories:  form.Categories,
	}
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			applog.Error(c, "admin.product.upload.fail", err, map[string]any{"file": fh.Filename})
			c.Status(fiber.StatusBadRequest)
			return h.productForm(c, form, validate.FieldErrors{"image": "Could not read " + fh.Filename}, "")
		}
		defer f.Close()
		in.Images = append(in.Images, catalogapi.Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Body:        f,
		})
	}

	p, err := h.Catalog.CreateProduct(c.UserContext(), in)
	if err != nil {
		applog.Error(c, "admin.product.create.fail", err, map[string]any{"name": form.Name})
		c.Status(fiber.StatusBadGateway)
		return h.productForm(c, form, nil, "Could not create product. Please try again.")
	}
	applog.Audit(c, "admin.product.create", map[string]any{"product_id": p.ID, "images": len(in.Images)})
	return c.Redirect("/")
}
