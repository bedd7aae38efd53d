package middleware

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// BodyLimitConfig caps request bodies. Sizes are strings such as "64K", "1M" or "2048";
// Routes maps a path prefix to a cap that replaces Default for matching requests.
type BodyLimitConfig struct {
	Default string
	Routes  map[string]string
}

// BodyLimit rejects bodies above the configured size with 413. The Content-Length
// header is checked up front and the body reader enforces the cap when it is absent.
func BodyLimit(cfg BodyLimitConfig) echo.MiddlewareFunc {
	def := parseLimit(cfg.Default)
	routes := make(map[string]int64, len(cfg.Routes))
	for prefix, size := range cfg.Routes {
		routes[prefix] = parseLimit(size)
	}

	limitFor := func(path string) int64 {
		limit, longest := def, -1
		for prefix, l := range routes {
			if strings.HasPrefix(path, prefix) && len(prefix) > longest {
				limit, longest = l, len(prefix)
			}
		}
		return limit
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Body == nil || req.Body == http.NoBody {
				return next(c)
			}
			limit := limitFor(req.URL.Path)
			if req.ContentLength > limit {
				return tooLarge(limit)
			}
			req.Body = &limitedReadCloser{ReadCloser: req.Body, remaining: limit, limit: limit}
			return next(c)
		}
	}
}

func tooLarge(limit int64) error {
	return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
		fmt.Sprintf("request body exceeds %d bytes", limit))
}

type limitedReadCloser struct {
	io.ReadCloser
	remaining int64
	limit     int64
}

func (r *limitedReadCloser) Read(p []byte) (int, error) {
	if r.remaining < 0 {
		return 0, tooLarge(r.limit)
	}
	// Read one byte past the cap so an oversized body is detected.
	if int64(len(p)) > r.remaining+1 {
		p = p[:r.remaining+1]
	}
	n, err := r.ReadCloser.Read(p)
	r.remaining -= int64(n)
	if r.remaining < 0 {
		return 0, tooLarge(r.limit)
	}
	return n, err
}

// parseLimit turns "512K", "1M", "1MB", "2G" or a byte count into bytes. Empty or
// unparsable input means 1 MB.
func parseLimit(s string) int64 {
	const fallback = 1 << 20
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, "B")
	if s == "" {
		return fallback
	}

	mult := int64(1)
	switch s[len(s)-1] {
	case 'K':
		mult = 1 << 10
	case 'M':
		mult = 1 << 20
	case 'G':
		mult = 1 << 30
	}
	if mult > 1 {
		s = s[:len(s)-1]
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return fallback
	}
	return n * mult
}
