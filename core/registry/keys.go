package registry

// Core keys for GlobalRegistry.
const (
	// Extension registries (cmd, cron, api) stored in GlobalRegistry
	KeyRegistryCmd    = "registry:cmd"
	KeyRegistryCron   = "registry:cron"
	KeyRegistryAPI    = "registry:api"
	KeyRegistryRoutes = "registry:routes"

	KeyRegistryGraphQL = "registry:graphql"
)
