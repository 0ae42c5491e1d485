package types

import (
	"strings"
)

const ContextUserKey = "user"

const ContextRequestIDKey = "request_id"

// Default allowed origins for development
var defaultOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
}

// AllowedOrigins returns the development defaults plus the frontend URL and
// any comma-separated extras, without duplicates.
func AllowedOrigins(frontendURL, extra string) []string {
	origins := make([]string, len(defaultOrigins))
	copy(origins, defaultOrigins)

	seen := make(map[string]bool, len(origins))
	for _, origin := range origins {
		seen[origin] = true
	}

	add := func(origin string) {
		trimmed := strings.TrimRight(strings.TrimSpace(origin), "/")
		if trimmed == "" || seen[trimmed] {
			return
		}
		seen[trimmed] = true
		origins = append(origins, trimmed)
	}

	add(frontendURL)

	for _, origin := range strings.Split(extra, ",") {
		add(origin)
	}

	return origins
}
