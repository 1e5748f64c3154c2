package handlers

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"catalogweb/internal/listview"
	"catalogweb/internal/log"
	"catalogweb/internal/query"
	"catalogweb/internal/validate"
)

// ListHandler serves the product list page and the endpoints its script drives.
type ListHandler struct {
	Views       *listview.Registry
	SettleWait  time.Duration
	PollTimeout time.Duration
}

type priceOption struct {
	Value, Label string
}

var priceOptions = []priceOption{
	{"", "Default"},
	{query.PriceUnder100, "Under 100"},
	{query.PriceUnder500, "Under 500"},
	{query.PriceMore500, "More than 500"},
}

// fragments are re-rendered into every snapshot response.
var fragments = []string{"rows", "pager", "categories"}

type snapshotResponse struct {
	listview.Snapshot
	HTML map[string]string `json:"html"`
}

// GET /
func (h *ListHandler) Page(c *fiber.Ctx) error {
	v := h.Views.Mount("/", string(c.Request().URI().QueryString()))
	ctx, cancel := context.WithTimeout(c.UserContext(), h.SettleWait)
	defer cancel()
	snap, err := v.Await(ctx, func(s listview.Snapshot) bool { return s.Settled })
	if errors.Is(err, listview.ErrClosed) {
		return fiber.NewError(fiber.StatusServiceUnavailable, "The list is unavailable right now.")
	}
	if err != nil {
		// render what we have; the script picks up the rest
		log.Info(c, "list.settle.timeout", map[string]any{"view": v.ID()})
	}
	return render(c, "list", h.data(c, snap))
}

func (h *ListHandler) data(c *fiber.Ctx, snap listview.Snapshot) fiber.Map {
	return fiber.Map{
		"View":         snap,
		"PriceOptions": priceOptions,
		"CSRFToken":    csrfToken(c),
	}
}

func (h *ListHandler) view(c *fiber.Ctx) (*listview.View, error) {
	v, ok := h.Views.Get(c.Params("id"))
	if !ok {
		return nil, c.Status(fiber.StatusGone).JSON(fiber.Map{"error": "view expired"})
	}
	return v, nil
}

func (h *ListHandler) respond(c *fiber.Ctx, v *listview.View, status int) error {
	snap := v.Snapshot()
	out := snapshotResponse{Snapshot: snap, HTML: map[string]string{}}
	data := h.data(c, snap)
	for _, name := range fragments {
		var buf bytes.Buffer
		if err := c.App().Config().Views.Render(&buf, "partials/"+name, data); err != nil {
			log.Error(c, "list.fragment.fail", err, map[string]any{"fragment": name})
			continue
		}
		out.HTML[name] = buf.String()
	}
	return c.Status(status).JSON(out)
}

func (h *ListHandler) act(c *fiber.Ctx, fn func(v *listview.View) error) error {
	v, err := h.view(c)
	if v == nil {
		return err
	}
	if err := fn(v); err != nil {
		if errors.Is(err, listview.ErrClosed) {
			return c.Status(fiber.StatusGone).JSON(fiber.Map{"error": "view expired"})
		}
		return err
	}
	return h.respond(c, v, fiber.StatusOK)
}

// GET /views/:id?after=N long-polls for the next snapshot.
func (h *ListHandler) Snapshot(c *fiber.Ctx) error {
	v, err := h.view(c)
	if v == nil {
		return err
	}
	after, _ := strconv.ParseUint(c.Query("after"), 10, 64)
	ctx, cancel := context.WithTimeout(c.UserContext(), h.PollTimeout)
	defer cancel()
	if _, err := v.WaitChange(ctx, after); errors.Is(err, listview.ErrClosed) {
		return c.Status(fiber.StatusGone).JSON(fiber.Map{"error": "view expired"})
	}
	return h.respond(c, v, fiber.StatusOK)
}

// POST /views/:id/filter
func (h *ListHandler) Filter(c *fiber.Ctx) error {
	key := c.FormValue("key")
	if !validate.FilterKey(key) || key == query.KeyCategory {
		log.Security(c, "validation.fail", map[string]any{"field": "key", "value": key})
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown filter"})
	}
	value, ok := validate.FilterValue(c.FormValue("value"))
	if key == query.KeyPrice {
		value, ok = validate.PriceBucket(value)
	}
	if !ok {
		log.Security(c, "validation.fail", map[string]any{"field": key})
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid filter value"})
	}
	return h.act(c, func(v *listview.View) error { return v.SetFilter(key, value) })
}

// POST /views/:id/categories/toggle
func (h *ListHandler) ToggleCategory(c *fiber.Ctx) error {
	name, ok := validate.FilterValue(c.FormValue("name"))
	if !ok || name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid category"})
	}
	return h.act(c, func(v *listview.View) error { return v.ToggleCategory(name) })
}

// POST /views/:id/page with dir=next|prev or n=<page>.
func (h *ListHandler) Paginate(c *fiber.Ctx) error {
	switch dir := c.FormValue("dir"); dir {
	case "next":
		return h.act(c, (*listview.View).Next)
	case "prev":
		return h.act(c, (*listview.View).Prev)
	case "":
		n := validate.Page(c.FormValue("n"))
		return h.act(c, func(v *listview.View) error { return v.SetPage(n) })
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid direction"})
	}
}

// POST /views/:id/dropdown
func (h *ListHandler) Dropdown(c *fiber.Ctx) error {
	return h.act(c, (*listview.View).ToggleDropdown)
}

// POST /views/:id/interact reports a pointer interaction at target.
func (h *ListHandler) Interact(c *fiber.Ctx) error {
	target := c.FormValue("target")
	if len(target) > 200 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid target"})
	}
	return h.act(c, func(v *listview.View) error { return v.Interact(target) })
}

// POST /views/:id/products/:pid/delete
func (h *ListHandler) Delete(c *fiber.Ctx) error {
	pid, ok := validate.ID(c.Params("pid"))
	if !ok {
		log.Security(c, "validation.fail", map[string]any{"field": "product"})
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid product"})
	}
	v, err := h.view(c)
	if v == nil {
		return err
	}
	if err := v.Delete(c.UserContext(), pid); err != nil {
		if errors.Is(err, listview.ErrClosed) {
			return c.Status(fiber.StatusGone).JSON(fiber.Map{"error": "view expired"})
		}
		log.Error(c, "product.delete.fail", err, map[string]any{"product_id": pid})
		return h.respond(c, v, fiber.StatusBadGateway)
	}
	log.Audit(c, "product.delete", map[string]any{"product_id": pid, "view": v.ID()})
	return h.respond(c, v, fiber.StatusOK)
}

// POST /views/:id/close is sent on pagehide.
func (h *ListHandler) Close(c *fiber.Ctx) error {
	h.Views.Close(c.Params("id"))
	return c.SendStatus(fiber.StatusNoContent)
}
