// internal/web/web_test.go
//
// Handler tests driven through the full router with httptest.

package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/yanizio/dweb/internal/codec"
	"github.com/yanizio/dweb/internal/graph"
	"github.com/yanizio/dweb/internal/identity"
	"github.com/yanizio/dweb/internal/publish"
	"github.com/yanizio/dweb/internal/resolve"
)

var testOwner = identity.Owner{Address: "pub-test", Alias: "alice"}

func newTestServer(t *testing.T) (*Server, *graph.MemoryStore) {
	t.Helper()
	store := graph.NewMemoryStore()
	pub := publish.New(store, nil, publish.WithVerifyWindow(250*time.Millisecond))
	res := resolve.New(store, nil, "https://ipfs.io", resolve.WithWaitWindow(250*time.Millisecond))
	return New(pub, res, testOwner, "dweb.example"), store
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	out := map[string]any{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode response: %v\n%s", err, rec.Body.String())
		}
	}
	return rec, out
}

func TestPublishAndView(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Router()

	rec, out := doJSON(t, h, http.MethodPost, "/dweb/api/publish", map[string]any{
		"pageName": "My Site!",
		"html":     "<html><body>hello from the graph</body></html>",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("publish status = %d: %s", rec.Code, rec.Body.String())
	}
	if out["success"] != true || out["pubKey"] != testOwner.Address {
		t.Fatalf("publish response = %v", out)
	}
	if out["pageName"] != "My-Site" {
		t.Fatalf("pageName = %v", out["pageName"])
	}

	view := httptest.NewRecorder()
	h.ServeHTTP(view, httptest.NewRequest(http.MethodGet, "/dweb/view/pub-test/My-Site", nil))
	if view.Code != http.StatusOK {
		t.Fatalf("view status = %d: %s", view.Code, view.Body.String())
	}
	if !strings.Contains(view.Body.String(), "hello from the graph") {
		t.Fatalf("view body:\n%s", view.Body.String())
	}
	if ct := view.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("content type = %q", ct)
	}
}

func TestPublishTokenMode(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Router()

	rec, out := doJSON(t, h, http.MethodPost, "/dweb/api/publish", map[string]any{
		"pageName": "note",
		"mode":     "textarea",
		"text":     "# Title\nbody text",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("publish status = %d: %s", rec.Code, rec.Body.String())
	}

	token, _ := out["textareaHash"].(string)
	if token == "" {
		t.Fatalf("no token in response: %v", out)
	}
	text, _, err := codec.DecompressWithStyle(token)
	if err != nil || text != "# Title\nbody text" {
		t.Fatalf("token round trip: %q, %v", text, err)
	}

	// The standalone token viewer renders without any graph state.
	view := httptest.NewRecorder()
	h.ServeHTTP(view, httptest.NewRequest(http.MethodGet, "/dweb/t/"+token, nil))
	if view.Code != http.StatusOK {
		t.Fatalf("token view status = %d", view.Code)
	}
	if !strings.Contains(view.Body.String(), "<title>Title</title>") {
		t.Fatalf("token view body:\n%s", view.Body.String())
	}
}

func TestPublishValidationError(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Router()

	rec, out := doJSON(t, h, http.MethodPost, "/dweb/api/publish", map[string]any{
		"pageName": "!!!",
		"html":     "<html></html>",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if out["success"] == true {
		t.Fatalf("response = %v", out)
	}
}

func TestPubKeyEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	rec, out := doJSON(t, s.Router(), http.MethodGet, "/dweb/api/pubkey", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if out["pub"] != "pub-test" || out["username"] != "alice" {
		t.Fatalf("response = %v", out)
	}
}

func TestListAndDelete(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Router()

	for _, page := range []string{"one", "two"} {
		rec, _ := doJSON(t, h, http.MethodPost, "/dweb/api/publish", map[string]any{
			"pageName": page, "mode": "textarea", "text": "content of " + page,
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("publish %s: %d", page, rec.Code)
		}
	}

	rec, out := doJSON(t, h, http.MethodGet, "/dweb/api/sites/pub-test", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	sites, _ := out["sites"].([]any)
	if len(sites) != 2 {
		t.Fatalf("sites = %v", out["sites"])
	}

	rec, _ = doJSON(t, h, http.MethodDelete, "/dweb/api/sites/one", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}

	view := httptest.NewRecorder()
	h.ServeHTTP(view, httptest.NewRequest(http.MethodGet, "/dweb/view/pub-test/one", nil))
	if view.Code != http.StatusNotFound {
		t.Fatalf("deleted page status = %d", view.Code)
	}
}

func TestBundleFileRoute(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Router()

	rec, _ := doJSON(t, h, http.MethodPost, "/dweb/api/publish", map[string]any{
		"pageName": "assets",
		"html":     "<html><body>page</body></html>",
		"files": []map[string]any{
			{"path": "site/css/style.css", "content": "body{color:red}", "type": "text/css"},
			{"path": "logo.png", "content": "aW1hZ2U=", "base64": true, "type": "image/png"},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("publish status = %d: %s", rec.Code, rec.Body.String())
	}

	// Binary assets come back decoded, not as base64 text.
	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}
	w := get("/dweb/file/pub-test/assets/logo.png")
	if w.Code != http.StatusOK {
		t.Fatalf("file status = %d: %s", w.Code, w.Body.String())
	}
	if w.Body.String() != "image" {
		t.Fatalf("file body = %q", w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("content type = %q", ct)
	}

	// A reference shorter than the stored path matches by suffix, the same
	// rule the inline rewriter uses.
	w = get("/dweb/file/pub-test/assets/css/style.css")
	if w.Code != http.StatusOK || w.Body.String() != "body{color:red}" {
		t.Fatalf("suffix match: status = %d, body = %q", w.Code, w.Body.String())
	}

	w = get("/dweb/file/pub-test/assets/missing.js")
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing file status = %d", w.Code)
	}
}

func TestViewNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dweb/view/nobody/nothing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/dweb/api/publish", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing CORS header")
	}
}

func TestSubdomainRedirect(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Router()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "alice.dweb.example"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/dweb/view/alice" {
		t.Fatalf("location = %q", loc)
	}

	// The bare base domain serves the publish form.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "dweb.example"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("root status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Publish a page") {
		t.Fatalf("root body:\n%s", rec.Body.String())
	}
}
