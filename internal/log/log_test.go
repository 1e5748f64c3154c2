package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap/zapcore"
)

type line struct {
	TS     string         `json:"ts"`
	Level  string         `json:"level"`
	Action string         `json:"action"`
	Kind   string         `json:"kind"`
	ReqID  string         `json:"req_id"`
	Path   string         `json:"path"`
	Err    string         `json:"err"`
	Fields map[string]any `json:"fields"`
}

func decode(t *testing.T, buf *bytes.Buffer) []line {
	t.Helper()
	var out []line
	for _, raw := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if raw == "" {
			continue
		}
		var l line
		if err := json.Unmarshal([]byte(raw), &l); err != nil {
			t.Fatalf("not json: %q: %v", raw, err)
		}
		out = append(out, l)
	}
	return out
}

func TestRequestBoundEntries(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(&bytes.Buffer{}) })

	app := fiber.New()
	app.Use(requestid.New())
	app.Get("/x", func(c *fiber.Ctx) error {
		Audit(c, "product.delete", map[string]any{"product_id": 7})
		Error(c, "catalog.fail", errors.New("boom"), nil)
		return c.SendStatus(fiber.StatusNoContent)
	})
	if _, err := app.Test(httptest.NewRequest("GET", "/x", nil)); err != nil {
		t.Fatal(err)
	}

	lines := decode(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("want 2 lines, got %d: %s", len(lines), buf.String())
	}
	if lines[0].Action != "product.delete" || lines[0].Kind != "audit" || lines[0].Level != "info" {
		t.Fatalf("bad audit line %+v", lines[0])
	}
	if lines[0].ReqID == "" || lines[0].Path != "/x" {
		t.Fatalf("request metadata missing: %+v", lines[0])
	}
	if lines[0].Fields["product_id"] != float64(7) {
		t.Fatalf("fields missing: %+v", lines[0].Fields)
	}
	if lines[1].Level != "error" || lines[1].Err != "boom" {
		t.Fatalf("bad error line %+v", lines[1])
	}
}

func TestEventWithoutRequest(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(&bytes.Buffer{}) })

	Event(zapcore.WarnLevel, "listview.fetch.stale", nil, map[string]any{"seq": 2})
	lines := decode(t, &buf)
	if len(lines) != 1 || lines[0].Level != "warn" || lines[0].Path != "" || lines[0].TS == "" {
		t.Fatalf("unexpected %+v", lines)
	}
}
