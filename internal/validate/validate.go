package validate

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"catalogweb/internal/query"
)

const (
	maxFilterLen = 100
	maxPage      = 1000000
)

var (
	reID = regexp.MustCompile(`^[0-9]{1,18}$`)

	checker = newValidator()
)

func newValidator() *validator.Validate {
	vd := validator.New()
	// "price" accepts a positive decimal; empty and zero are reported as required
	_ = vd.RegisterValidation("price", func(fl validator.FieldLevel) bool {
		f, err := strconv.ParseFloat(fl.Field().String(), 64)
		return err == nil && f > 0
	})
	return vd
}

// ID validates a numeric resource identifier (product/category ids).
func ID(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if !reID.MatchString(s) {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	return n, err == nil && n > 0
}

// Page parses a page number, falling back to 1.
func Page(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 1
	}
	if n > maxPage {
		return maxPage
	}
	return n
}

func PriceBucket(s string) (string, bool) {
	switch s {
	case "", query.PriceUnder100, query.PriceUnder500, query.PriceMore500:
		return s, true
	}
	return "", false
}

func FilterKey(k string) bool { return query.IsFilterKey(k) }

// FilterValue clamps a free-text filter and rejects control characters. It does
// not trim: whitespace is part of what the user typed.
func FilterValue(s string) (string, bool) {
	if r := []rune(s); len(r) > maxFilterLen {
		s = string(r[:maxFilterLen])
	}
	for _, r := range s {
		if unicode.IsControl(r) {
			return "", false
		}
	}
	return s, true
}

// Password is the cheap shape check before a bcrypt comparison. bcrypt ignores
// bytes past 72.
func Password(s string) bool {
	return s != "" && len(s) <= 72
}

// FieldErrors maps a form field to the message shown next to it.
type FieldErrors map[string]string

func (fe FieldErrors) Has(field string) bool {
	_, ok := fe[field]
	return ok
}

type CategoryForm struct {
	Name string `form:"name" validate:"required,max=255"`
}

type ProductForm struct {
	Name        string   `form:"name" validate:"required,max=255"`
	Description string   `form:"description" validate:"required"`
	Price       string   `form:"price" validate:"required,price"`
	Categories  []string `form:"categories" validate:"min=1"`
}

// PriceValue is the parsed price; call it only after Product reported no errors.
func (f ProductForm) PriceValue() float64 {
	p, _ := strconv.ParseFloat(f.Price, 64)
	return p
}

var messages = map[string]map[string]string{
	"CategoryForm.Name": {
		"required": "Category Name is required",
		"max":      "Category Name is too long",
	},
	"ProductForm.Name": {
		"required": "Name is required",
		"max":      "Name is too long",
	},
	"ProductForm.Description": {"required": "Description is required"},
	"ProductForm.Price": {
		"required": "Price is required",
		"price":    "Price must be a positive number",
	},
	"ProductForm.Categories": {"min": "Categories is required"},
}

// Category trims f in place and validates it.
func Category(f *CategoryForm) FieldErrors {
	f.Name = strings.TrimSpace(f.Name)
	return check(f, map[string]string{"Name": "name"})
}

// Product trims f in place and validates it. A price of 0 counts as missing.
func Product(f *ProductForm) FieldErrors {
	f.Name = strings.TrimSpace(f.Name)
	f.Description = strings.TrimSpace(f.Description)
	f.Price = strings.TrimSpace(f.Price)
	if p, err := strconv.ParseFloat(f.Price, 64); err == nil && p == 0 {
		f.Price = ""
	}
	cats := f.Categories[:0:0]
	for _, c := range f.Categories {
		if c = strings.TrimSpace(c); c != "" {
			cats = append(cats, c)
		}
	}
	f.Categories = cats
	return check(f, map[string]string{
		"Name":        "name",
		"Description": "description",
		"Price":       "price",
		"Categories":  "categories",
	})
}

func check(form any, fields map[string]string) FieldErrors {
	err := checker.Struct(form)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return FieldErrors{"_": err.Error()}
	}
	out := FieldErrors{}
	for _, fe := range verrs {
		ns := fe.StructNamespace()
		field := fields[fe.StructField()]
		if _, seen := out[field]; seen {
			continue
		}
		msg := messages[ns][fe.Tag()]
		if msg == "" {
			msg = fe.StructField() + " is invalid"
		}
		out[field] = msg
	}
	return out
}
