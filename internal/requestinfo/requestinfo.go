//
//  internal/requestinfo/requestinfo.go
//
//  Lightweight types and helpers that collect per-request metadata
//  (user-agent fingerprint, client IP, request ID, URL, and timestamp).
//  These structs are inert.  They contain no pointers to large buffers,
//  so they are safe to log or JSON-encode.
//
//  Dependencies
//  • internal/ua        (uasurfer wrapper)
//  • github.com/google/uuid (request IDs)
//

package requestinfo

import (
	"context"
	"net"
	"net/url"
	"time"

	"github.com/yanizio/dweb/internal/ua"
)

//
//  -----------------------------
//  Struct definitions
//  -----------------------------
//

// RequestInfo is attached to the request context by the Enrich middleware
// and is visible to every handler downstream.
type RequestInfo struct {
	ID        string   // UUID assigned at ingress
	UA        ua.Info  // Parsed User-Agent attributes
	IP        net.IP   // Original client address (not X-Forwarded-For chain)
	URL       *url.URL // Pointer copy, safe to dereference read-only
	Timestamp time.Time
}

//
//  -----------------------------
//  Public helper: FromContext
//  -----------------------------
//
//  The Enrich middleware stores *RequestInfo inside the request context so
//  that any code holding only an http.Request can retrieve the struct
//  without reparsing headers.
//

type ctxKey struct{} // unexported, collision-proof

// FromContext returns the pointer previously stored by Enrich.
// It returns nil if the middleware has not run.
func FromContext(ctx context.Context) *RequestInfo {
	v, _ := ctx.Value(ctxKey{}).(*RequestInfo)
	return v
}
