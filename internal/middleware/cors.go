package middleware

import (
	"net/http"
	"strings"
)

const (
	corsAllowMethods  = "GET, POST, DELETE, OPTIONS"
	corsAllowHeaders  = "Content-Type, Authorization, X-Requested-With, X-Visitor-ID, X-Session-ID"
	corsExposeHeaders = "Content-Disposition, Retry-After, X-Request-Id"
	corsMaxAge        = "600"
)

// originPolicy 描述允许的跨域来源。
// 支持完整来源、"*" 以及 "https://*.example.com" 形式的子域通配。
type originPolicy struct {
	any      bool
	exact    map[string]struct{}
	suffixes []string // 形如 "https://" + ".example.com"
}

func newOriginPolicy(origins []string) originPolicy {
	p := originPolicy{exact: map[string]struct{}{}}
	for _, origin := range origins {
		value := strings.TrimRight(strings.TrimSpace(origin), "/")
		switch {
		case value == "":
		case value == "*":
			p.any = true
		case strings.Contains(value, "://*."):
			p.suffixes = append(p.suffixes, value)
		default:
			p.exact[value] = struct{}{}
		}
	}
	return p
}

// match 返回应写入 Allow-Origin 的值，不允许时返回空串。
func (p originPolicy) match(origin string) string {
	if origin == "" {
		return ""
	}
	if p.any {
		return "*"
	}
	if _, ok := p.exact[origin]; ok {
		return origin
	}
	for _, pattern := range p.suffixes {
		scheme, host, _ := strings.Cut(pattern, "://*")
		if strings.HasPrefix(origin, scheme+"://") && strings.HasSuffix(origin, host) &&
			len(origin) > len(scheme)+3+len(host) {
			return origin
		}
	}
	return ""
}

// CORS 生成跨域中间件。管理端依赖 cookie 会话，明确列出的来源会返回 Allow-Credentials；
// 通配 "*" 时不允许携带凭据。
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	policy := newOriginPolicy(allowedOrigins)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			allowed := policy.match(origin)
			if origin != "" && !policy.any {
				w.Header().Add("Vary", "Origin")
			}

			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
			if allowed == "" {
				if preflight {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allowed)
			if allowed != "*" {
				h.Set("Access-Control-Allow-Credentials", "true")
			}
			if !preflight {
				h.Set("Access-Control-Expose-Headers", corsExposeHeaders)
				next.ServeHTTP(w, r)
				return
			}

			h.Set("Access-Control-Allow-Methods", corsAllowMethods)
			h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
			h.Set("Access-Control-Max-Age", corsMaxAge)
			w.WriteHeader(http.StatusNoContent)
		})
	}
}
