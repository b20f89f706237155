package middleware

import "strings"

// knownRoutes are labelled with their own path.
var knownRoutes = map[string]bool{
	"/":                      true,
	"/health":                true,
	"/ready":                 true,
	"/metrics":               true,
	"/personas":              true,
	"/search":                true,
	"/admin/personas/reload": true,
}

// probePaths are polled by orchestrators and scrapers; they are neither
// traced nor counted in HTTP metrics.
var probePaths = map[string]bool{
	"/health":  true,
	"/ready":   true,
	"/metrics": true,
}

// unmatchedRoute labels any path outside the route table.
const unmatchedRoute = "/{unmatched}"

// normalizePath maps a request path to its route label so metric series and
// span names stay bounded: /personas/sarah becomes /personas/{id} and
// unknown paths share one label.
func normalizePath(path string) string {
	if knownRoutes[path] {
		return path
	}
	if id, ok := strings.CutPrefix(path, "/personas/"); ok && id != "" && !strings.Contains(id, "/") {
		return "/personas/{id}"
	}
	return unmatchedRoute
}
