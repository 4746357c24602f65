// Package metadata records where a request came from. Field agents submit
// approvals and flags from shared handsets, so the logged client is the
// reduced "<browser>/<os>/<class>" form rather than the raw User-Agent.
package metadata

import (
	"net"
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"sahara/pkg/requestcontext"
)

// ClientMetadata stores the client IP and the summarized User-Agent in the context.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientMetadata(r.Context(), ClientIPFromRequest(r), SummarizeUserAgent(r.UserAgent()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIPFromRequest prefers the first X-Forwarded-For hop, then X-Real-IP,
// then the connection address.
func ClientIPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if r.RemoteAddr == "" {
		return "unknown"
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// SummarizeUserAgent reduces a User-Agent header to browser, OS and device class.
// Empty input yields "".
func SummarizeUserAgent(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	ua := useragent.New(raw)
	class := "desktop"
	switch {
	case ua.Bot():
		class = "bot"
	case ua.Mobile():
		class = "mobile"
	}
	name, _ := ua.Browser()
	if name == "" {
		name = "unknown"
	}
	osName := ua.OS()
	if osName == "" {
		osName = "unknown"
	}
	return name + "/" + osName + "/" + class
}
