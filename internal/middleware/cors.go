package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/vyrodovalexey/avauthgate/internal/config"
)

// corsHeaders holds pre-computed CORS header values so the hot path
// does no joining or map building.
type corsHeaders struct {
	exactOrigins     map[string]bool
	wildcardPatterns []string
	allowAllOrigins  bool
	allowMethods     string
	allowHeaders     string
	exposeHeaders    string
	maxAge           string
	allowCredentials bool
}

func newCORSHeaders(cfg *config.CORSConfig) *corsHeaders {
	h := &corsHeaders{
		exactOrigins:     make(map[string]bool),
		allowMethods:     strings.Join(cfg.AllowedMethods, ", "),
		allowHeaders:     strings.Join(cfg.AllowedHeaders, ", "),
		exposeHeaders:    strings.Join(cfg.ExposedHeaders, ", "),
		allowCredentials: cfg.AllowCredentials,
	}

	for _, origin := range cfg.AllowedOrigins {
		switch {
		case origin == "*":
			h.allowAllOrigins = true
		case strings.HasPrefix(origin, "*."):
			h.wildcardPatterns = append(h.wildcardPatterns, origin)
		default:
			h.exactOrigins[origin] = true
		}
	}

	if seconds := int(cfg.MaxAge.Duration().Seconds()); seconds > 0 {
		h.maxAge = strconv.Itoa(seconds)
	}

	return h
}

func (h *corsHeaders) originAllowed(origin string) bool {
	if origin == "" {
		return false
	}
	if h.allowAllOrigins || h.exactOrigins[origin] {
		return true
	}
	for _, pattern := range h.wildcardPatterns {
		if matchWildcardOrigin(origin, pattern) {
			return true
		}
	}
	return false
}

// matchWildcardOrigin reports whether origin's host falls under a
// "*.domain" pattern. The bare apex does not match: "*.example.com"
// admits "https://api.example.com" but not "https://example.com".
func matchWildcardOrigin(origin, pattern string) bool {
	if !strings.HasPrefix(pattern, "*.") {
		return false
	}
	suffix := pattern[1:] // ".example.com"

	host := origin
	if idx := strings.Index(host, "://"); idx != -1 {
		host = host[idx+3:]
	}
	if idx := strings.Index(host, ":"); idx != -1 {
		host = host[:idx]
	}

	return len(host) > len(suffix) && strings.HasSuffix(host, suffix)
}

func (h *corsHeaders) apply(w http.ResponseWriter, origin string) {
	if !h.originAllowed(origin) {
		return
	}

	// Echo the specific origin rather than "*": required with
	// credentials and harmless without.
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Add("Vary", HeaderOrigin)

	if h.allowMethods != "" {
		w.Header().Set("Access-Control-Allow-Methods", h.allowMethods)
	}
	if h.allowHeaders != "" {
		w.Header().Set("Access-Control-Allow-Headers", h.allowHeaders)
	}
	if h.exposeHeaders != "" {
		w.Header().Set("Access-Control-Expose-Headers", h.exposeHeaders)
	}
	if h.allowCredentials {
		w.Header().Set("Access-Control-Allow-Credentials", "true")
	}
	if h.maxAge != "" {
		w.Header().Set("Access-Control-Max-Age", h.maxAge)
	}
}

// CORS returns a middleware applying the configured cross-origin
// policy. Preflight OPTIONS requests are answered with 204 and never
// reach authentication. A nil or disabled section is a no-op.
func CORS(cfg *config.CORSConfig) func(http.Handler) http.Handler {
	if cfg == nil || !cfg.Enabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	headers := newCORSHeaders(withCORSDefaults(cfg))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			headers.apply(w, r.Header.Get(HeaderOrigin))

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// withCORSDefaults fills the method, header, and exposure lists a
// browser client needs against this gate. The token handed out by the
// login endpoint travels in the Authorization response header, so it is
// always exposed.
func withCORSDefaults(cfg *config.CORSConfig) *config.CORSConfig {
	out := *cfg

	if len(out.AllowedMethods) == 0 {
		out.AllowedMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}
	}
	if len(out.AllowedHeaders) == 0 {
		out.AllowedHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", HeaderXRequestID}
	}
	if len(out.ExposedHeaders) == 0 {
		out.ExposedHeaders = []string{"Authorization"}
	}

	return &out
}
