package middleware

import (
	"bufio"
	"net"
	"net/http"
	"strconv"

	"github.com/vyrodovalexey/avauthgate/internal/config"
)

// SecurityHeaders returns a middleware stamping hardening headers onto
// every response and stripping the Server header so the gate and its
// upstream stay anonymous. A nil or disabled section is a no-op.
//
// Strict-Transport-Security is sent only when the request arrived over
// TLS (directly or per X-Forwarded-Proto from a trusted front): HSTS on
// plain HTTP is at best ignored and at worst locks clients out.
func SecurityHeaders(cfg *config.SecurityHeadersConfig) func(http.Handler) http.Handler {
	if cfg == nil || !cfg.Enabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	hsts := "max-age=" + strconv.Itoa(cfg.HSTSMaxAge)
	if cfg.HSTSIncludeSubdomains {
		hsts += "; includeSubDomains"
	}

	nosniff := cfg.ContentTypeNosniff == nil || *cfg.ContentTypeNosniff

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()

			if cfg.FrameOptions != "" {
				h.Set("X-Frame-Options", cfg.FrameOptions)
			}
			if nosniff {
				h.Set("X-Content-Type-Options", "nosniff")
			}
			if cfg.ReferrerPolicy != "" {
				h.Set("Referrer-Policy", cfg.ReferrerPolicy)
			}
			if cfg.ContentSecurityPolicy != "" {
				h.Set("Content-Security-Policy", cfg.ContentSecurityPolicy)
			}
			if isSecureRequest(r) {
				h.Set("Strict-Transport-Security", hsts)
			}

			next.ServeHTTP(&serverStrippingWriter{ResponseWriter: w}, r)
		})
	}
}

// isSecureRequest reports whether the request arrived over TLS, either
// on this listener or at a forwarding proxy.
func isSecureRequest(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return r.Header.Get(HeaderXForwardedProto) == "https"
}

// serverStrippingWriter removes the Server header before the response
// is committed. The upstream may set one; it never leaves the gate.
type serverStrippingWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (w *serverStrippingWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.ResponseWriter.Header().Del("Server")
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *serverStrippingWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// Flush implements http.Flusher.
func (w *serverStrippingWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack implements http.Hijacker for connection upgrades.
func (w *serverStrippingWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := w.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

// Unwrap returns the underlying ResponseWriter.
func (w *serverStrippingWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
