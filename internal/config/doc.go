// Package config manages application configuration for the CafeMarche API.
//
// Configuration is loaded from environment variables and checked as a whole:
//
//	cfg, err := config.Load()
//	if err == nil {
//	    err = cfg.Validate() // every problem, joined
//	}
//
// # Configuration Groups
//
//   - ServerConfig: HTTP port, timeouts and CORS origins
//   - DatabaseConfig: SurrealDB connection and whether to apply migrations
//   - BlobConfig: file content driver (fs, s3 or memory) and size limit
//   - CacheConfig: Redis address, or in-process when empty, and TTLs
//   - RateLimitConfig, MetricsConfig, JobsConfig
//   - ExportConfig: defaults for the relational export command
//
// # Environment Variables
//
//	SERVER_PORT          - HTTP server port (default: 8080)
//	DB_HOST, DB_PORT     - SurrealDB address
//	DB_NAMESPACE         - SurrealDB namespace (default: cafemarche)
//	DB_SEED              - load permissions and built-in roles at startup (default: true)
//	BLOB_DRIVER          - fs, s3 or memory (default: fs)
//	CACHE_REDIS_ADDR     - Redis address; empty keeps the cache in process
//	EXPORT_DIALECT       - sqlite, postgres or mysql (default: sqlite)
package config
