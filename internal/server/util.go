package server

import "strings"

// sanitizeBase normalizes a base path: leading slash, no trailing slash,
// "" for root.
func sanitizeBase(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == "/" {
		return ""
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return strings.TrimSuffix(p, "/")
}
