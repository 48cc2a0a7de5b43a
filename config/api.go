package config

// GetAuthSkipperPaths returns a list of paths to skip authentication for
func GetAuthSkipperPaths() []string {
	// Read-only public paths (stock levels, GraphQL reads, health)
	return []string{"/api/stock", "/api/triage/stats", "/graphql", "/health", "/metrics"}
}
