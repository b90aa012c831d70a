// internal/web/server.go
//
// HTTP surface: router assembly and cross-cutting middleware.
//
// Context
// -------
// The web server exposes three groups of routes under one chi router:
//
//   • /dweb/api/…   – JSON API the publish front-end calls.
//   • /dweb/view/…  – rendered pages for browsers.
//   • /dweb/file/…  – individual bundle assets of an embedded page.
//   • /dweb/t/…     – standalone token viewer, no graph lookup.
//
// plus /metrics for Prometheus and a minimal publish form at the root.
// A request for a site subdomain (alice.<base_domain>) redirects to the
// owner's view URL, so published sites get a memorable address without
// any per-site vhost plumbing.
//
// Middleware order matters: recovery first, then request enrichment, then
// the access log, then CORS and security headers.

package web

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/yanizio/dweb/internal/identity"
	"github.com/yanizio/dweb/internal/middleware"
	"github.com/yanizio/dweb/internal/publish"
	"github.com/yanizio/dweb/internal/requestinfo"
	"github.com/yanizio/dweb/internal/resolve"
)

// Server binds the publish and resolve pipelines to HTTP routes.
type Server struct {
	publisher  *publish.Orchestrator
	resolver   *resolve.Resolver
	owner      identity.Owner
	baseDomain string
}

// New builds a Server.  baseDomain may be empty; the subdomain redirect is
// then disabled.
func New(publisher *publish.Orchestrator, resolver *resolve.Resolver, owner identity.Owner, baseDomain string) *Server {
	return &Server{
		publisher:  publisher,
		resolver:   resolver,
		owner:      owner,
		baseDomain: strings.ToLower(strings.TrimSpace(baseDomain)),
	}
}

// Router assembles the full handler chain.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(requestinfo.Enrich)
	r.Use(accessLog)
	r.Use(s.cors)
	r.Use(middleware.Security)
	r.Use(s.subdomainRedirect)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/", s.handleIndex)

	r.Route("/dweb", func(r chi.Router) {
		r.Route("/api", func(r chi.Router) {
			r.Post("/publish", s.handlePublish)
			r.Get("/pubkey", s.handlePubKey)
			r.Get("/sites/{owner}", s.handleListSites)
			r.Delete("/sites/{page}", s.handleDeleteSite)
		})
		r.Get("/view/{owner}", s.handleView)
		r.Get("/view/{owner}/{page}", s.handleView)
		r.Get("/file/{owner}/{page}/*", s.handleFile)
		r.Get("/t/{token}", s.handleToken)
	})

	return r
}

/*──────────────────────────── middleware ───────────────────────────────────*/

// cors lets the front-end run from any origin; published content is public
// by definition, and the API carries no cookies.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// subdomainRedirect sends alice.<base_domain>/ to /dweb/view/alice.  Only
// the bare root path redirects; deeper paths belong to the router.
func (s *Server) subdomainRedirect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.baseDomain != "" && r.URL.Path == "/" {
			host := strings.ToLower(stripPort(r.Host))
			if suffix := "." + s.baseDomain; strings.HasSuffix(host, suffix) {
				owner := strings.TrimSuffix(host, suffix)
				if owner != "" && owner != "www" {
					http.Redirect(w, r, "/dweb/view/"+owner, http.StatusFound)
					return
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

// accessLog writes one INFO line per request with status and latency.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		fields := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if info := requestinfo.FromContext(r.Context()); info != nil {
			fields = append(fields,
				"request_id", info.ID,
				"browser", info.UA.Browser,
				"bot", info.UA.IsBot,
			)
		}
		zap.S().Infow("http request", fields...)
	})
}

func stripPort(h string) string {
	if i := strings.IndexByte(h, ':'); i != -1 {
		return h[:i]
	}
	return h
}
