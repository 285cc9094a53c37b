package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	corsAllowHeaders  = "Authorization, Content-Type, Accept, Origin, Cache-Control, X-Requested-With, X-Request-ID, X-Anonymous-Id"
	corsAllowMethods  = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	corsExposeHeaders = "X-Request-ID, Retry-After, X-RateLimit-Limit, X-RateLimit-Remaining, X-RateLimit-Reset"
	corsMaxAge        = "600"
)

// CORSConfig lists the browser origins allowed to call the API.
// Entries may be exact ("https://vibelog.app") or a subdomain wildcard
// ("https://*.vibelog.app"). "*" or AllowAllOrigins opens the API to any
// origin without credentials.
type CORSConfig struct {
	AllowedOrigins  []string
	AllowAllOrigins bool
}

// CORS answers preflights and stamps cross-origin headers on allowed requests.
// Disallowed origins get no CORS headers and the browser blocks the response.
func CORS(config CORSConfig) gin.HandlerFunc {
	match := newOriginMatcher(config)

	return func(c *gin.Context) {
		h := c.Writer.Header()
		origin := c.GetHeader("Origin")

		switch {
		case match.any:
			h.Set("Access-Control-Allow-Origin", "*")
		case origin != "" && match.allows(origin):
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")
		default:
			c.Next()
			return
		}
		h.Set("Access-Control-Expose-Headers", corsExposeHeaders)

		if c.Request.Method == http.MethodOptions {
			h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
			h.Set("Access-Control-Allow-Methods", corsAllowMethods)
			h.Set("Access-Control-Max-Age", corsMaxAge)
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

type originMatcher struct {
	any      bool
	exact    map[string]bool
	suffixes []wildcardOrigin
}

type wildcardOrigin struct {
	scheme string // "https://"
	suffix string // ".vibelog.app"
}

func newOriginMatcher(config CORSConfig) originMatcher {
	m := originMatcher{any: config.AllowAllOrigins, exact: map[string]bool{}}
	for _, o := range config.AllowedOrigins {
		o = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(o), "/"))
		switch {
		case o == "":
		case o == "*":
			m.any = true
		case strings.Contains(o, "://*."):
			i := strings.Index(o, "://*.")
			m.suffixes = append(m.suffixes, wildcardOrigin{scheme: o[:i+3], suffix: o[i+4:]})
		default:
			m.exact[o] = true
		}
	}
	return m
}

func (m originMatcher) allows(origin string) bool {
	if m.any {
		return true
	}
	origin = strings.ToLower(origin)
	if m.exact[origin] {
		return true
	}
	for _, w := range m.suffixes {
		if strings.HasPrefix(origin, w.scheme) && strings.HasSuffix(origin, w.suffix) &&
			len(origin) > len(w.scheme)+len(w.suffix) {
			return true
		}
	}
	return false
}
