package tenant

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// Request is the view of an inbound request that strategies work with.
type Request interface {
	Path() string
	// Segments returns the non-empty path segments in order.
	Segments() []string
	// Host returns the request host without port.
	Host() string
	Header(name string) string
	// RouteParam returns a router-populated parameter or "" if absent.
	RouteParam(name string) string
	// Property reads the authentication flow's property bag.
	Property(key string) (string, bool)
}

// Properties is a string-keyed bag carried across the phases of an external
// authentication flow.
type Properties map[string]string

// Get returns the value for key.
func (p Properties) Get(key string) (string, bool) {
	if p == nil {
		return "", false
	}
	v, ok := p[key]
	return v, ok
}

type propertiesKey struct{}

// WithProperties attaches an authentication property bag to the context.
func WithProperties(ctx context.Context, props Properties) context.Context {
	return context.WithValue(ctx, propertiesKey{}, props)
}

// PropertiesFromContext returns the property bag attached to the context.
func PropertiesFromContext(ctx context.Context) (Properties, bool) {
	p, ok := ctx.Value(propertiesKey{}).(Properties)
	return p, ok
}

// HTTPRequest adapts *http.Request to Request. Route parameters are read
// from the chi routing context, which chi fills after route matching.
type HTTPRequest struct {
	r *http.Request
}

func NewHTTPRequest(r *http.Request) *HTTPRequest {
	return &HTTPRequest{r: r}
}

// Request returns the wrapped request.
func (h *HTTPRequest) Request() *http.Request { return h.r }

func (h *HTTPRequest) Path() string { return h.r.URL.Path }

func (h *HTTPRequest) Segments() []string { return SplitPath(h.r.URL.Path) }

func (h *HTTPRequest) Host() string {
	host := h.r.Host
	if hp, _, err := net.SplitHostPort(host); err == nil {
		host = hp
	}
	return strings.TrimSuffix(host, ".")
}

func (h *HTTPRequest) Header(name string) string {
	return strings.TrimSpace(h.r.Header.Get(name))
}

func (h *HTTPRequest) RouteParam(name string) string {
	rctx := chi.RouteContext(h.r.Context())
	if rctx == nil {
		return ""
	}
	return rctx.URLParam(name)
}

func (h *HTTPRequest) Property(key string) (string, bool) {
	props, ok := PropertiesFromContext(h.r.Context())
	if !ok {
		return "", false
	}
	return props.Get(key)
}

// SplitPath splits a URL path into its non-empty segments.
func SplitPath(path string) []string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
