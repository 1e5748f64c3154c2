package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	html "github.com/gofiber/template/html/v2"

	"catalogweb/internal/catalogapi"
	"catalogweb/internal/config"
	"catalogweb/internal/http/api"
	"catalogweb/internal/http/handlers"
	"catalogweb/internal/listview"
	applog "catalogweb/internal/log"
	"catalogweb/internal/repos"
	"catalogweb/internal/services"
)

// catalogd starts the catalog service on a loopback port backed by an
// in-memory seeded database.
func catalogd(t *testing.T) (*services.CatalogService, string) {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	svc := services.NewCatalogService(repos.NewCategoryRepo(db), repos.NewProductRepo(db), 10)

	app := fiber.New(fiber.Config{ErrorHandler: api.ErrorHandler, DisableStartupMessage: true})
	api.Register(app, &api.Handler{Catalog: svc, MediaDir: t.TempDir()})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })
	return svc, "http://" + ln.Addr().String()
}

type webStack struct {
	App     *fiber.App
	Deps    *handlers.Deps
	Views   *listview.Registry
	Service *services.CatalogService
	Client  *catalogapi.Client
	BaseURL string
}

// newWebStack wires the web client against a live catalogd, the way main does,
// minus the global limiter.
func newWebStack(t *testing.T, gate *services.AdminGate) *webStack {
	t.Helper()
	svc, base := catalogd(t)
	client := catalogapi.New(base+"/api", catalogapi.WithTimeout(2*time.Second))
	cfg := config.Config{StorageBaseURL: base + "/storage/"}
	views := listview.NewRegistry(client, time.Minute, listview.Options{
		Delay:        20 * time.Millisecond,
		FetchTimeout: 2 * time.Second,
		StorageBase:  cfg.StorageBaseURL,
	})
	t.Cleanup(views.CloseAll)
	if gate == nil {
		gate = services.NewAdminGate("", time.Hour)
	}

	engine := html.New("../../web/templates", ".html")
	app := fiber.New(fiber.Config{
		Views: engine,
		ErrorHandler: handlers.ErrorHandler(func(c *fiber.Ctx, err error) {
			applog.Error(c, "server.error", err, nil)
		}),
	})
	app.Use(requestid.New())
	app.Use(csrf.New(csrf.Config{
		KeyLookup:      "form:csrf",
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		ContextKey:     "csrf",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			applog.Security(c, "csrf.fail", map[string]any{"path": c.Path()})
			return c.Status(fiber.StatusForbidden).Render("notfound", fiber.Map{"Message": "Security check failed. Please refresh and try again."})
		},
	}))
	app.Use(func(c *fiber.Ctx) error {
		if tok, ok := c.Locals("csrf").(string); ok {
			c.Locals("CSRFToken", tok)
		}
		return c.Next()
	})

	deps := handlers.NewDeps(cfg, client, views, gate)
	deps.ListHandler.PollTimeout = 2 * time.Second
	handlers.Register(app, deps)
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(404).Render("notfound", fiber.Map{"Message": "Page not found"})
	})
	return &webStack{App: app, Deps: deps, Views: views, Service: svc, Client: client, BaseURL: base}
}

func extractCookie(resp *http.Response, name string) string {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// csrfToken loads any page to obtain a token cookie.
func csrfToken(t *testing.T, app *fiber.App) string {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("GET", "/product", nil))
	if err != nil {
		t.Fatal(err)
	}
	tok := extractCookie(resp, "csrf_")
	if tok == "" {
		t.Fatal("csrf token missing")
	}
	return tok
}

// postForm sends a form POST carrying tok in both the cookie and the body.
func postForm(t *testing.T, app *fiber.App, path, tok string, form map[string]string, cookies ...*http.Cookie) *http.Response {
	t.Helper()
	vals := []string{"csrf=" + tok}
	for k, v := range form {
		vals = append(vals, k+"="+url.QueryEscape(v))
	}
	req := httptest.NewRequest("POST", path, strings.NewReader(strings.Join(vals, "&")))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: "csrf_", Value: tok})
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

var viewIDRe = regexp.MustCompile(`data-view="([^"]+)"`)

func viewID(t *testing.T, body string) string {
	t.Helper()
	m := viewIDRe.FindStringSubmatch(body)
	if m == nil {
		t.Fatalf("no view id in page: %s", body)
	}
	return m[1]
}

type snapshot struct {
	ID       string `json:"id"`
	Version  uint64 `json:"version"`
	Products []struct {
		ID       int64  `json:"id"`
		Name     string `json:"name"`
		Image    string `json:"image"`
		Category string `json:"category"`
	} `json:"products"`
	CurrentPage  int  `json:"current_page"`
	LastPage     int  `json:"last_page"`
	PrevDisabled bool `json:"prev_disabled"`
	NextDisabled bool `json:"next_disabled"`
	Filters      []struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	} `json:"filters"`
	DropdownOpen bool              `json:"dropdown_open"`
	Location     string            `json:"location"`
	Settled      bool              `json:"settled"`
	HTML         map[string]string `json:"html"`
}

func decodeSnapshot(t *testing.T, resp *http.Response) snapshot {
	t.Helper()
	var s snapshot
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		t.Fatalf("decode snapshot (status %d): %v", resp.StatusCode, err)
	}
	return s
}

// pollUntil long-polls view id until ok accepts a snapshot.
func pollUntil(t *testing.T, app *fiber.App, id string, after uint64, ok func(snapshot) bool) snapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := app.Test(httptest.NewRequest("GET", "/views/"+id+"?after="+strconv.FormatUint(after, 10), nil), 5000)
		if err != nil {
			t.Fatal(err)
		}
		s := decodeSnapshot(t, resp)
		if ok(s) {
			return s
		}
		after = s.Version
	}
	t.Fatal("view never reached the expected state")
	return snapshot{}
}

type logEntry struct {
	Level  string         `json:"level"`
	Action string         `json:"action"`
	Kind   string         `json:"kind"`
	Fields map[string]any `json:"fields"`
}

type lockedWriter struct {
	w  *bytes.Buffer
	mu *sync.Mutex
}

func (lw *lockedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.Write(p)
}

// captureLogs points the application logger at a buffer while fn runs.
func captureLogs(t *testing.T, fn func()) []logEntry {
	t.Helper()
	var buf bytes.Buffer
	var mu sync.Mutex
	applog.SetOutput(&lockedWriter{w: &buf, mu: &mu})
	defer applog.SetOutput(os.Stdout)

	fn()

	mu.Lock()
	defer mu.Unlock()
	var entries []logEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var e logEntry
		if err := json.Unmarshal([]byte(line), &e); err == nil {
			entries = append(entries, e)
		}
	}
	return entries
}

func hasAction(entries []logEntry, action string) bool {
	for _, e := range entries {
		if e.Action == action {
			return true
		}
	}
	return false
}
