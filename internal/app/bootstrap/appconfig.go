// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// Store backends selectable with store_backend.
const (
	BackendMongo  = "mongo"
	BackendMemory = "memory"
)

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables (TALLYHUB_*), configuration
// files, or command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig
// covers ports, TLS, logging and CORS; everything specific to the counter
// service lives here.
type AppConfig struct {
	// Synchronized store
	StoreBackend     string // "mongo" (default) or "memory"
	MongoURI         string // MongoDB connection string; live feeds need a replica set
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Anonymous participant session
	SessionKey    string        // Secret key for signing session cookies
	SessionName   string        // Cookie name (default: tallyhub-session)
	SessionDomain string        // Cookie domain (blank means current host)
	SessionMaxAge time.Duration // How long a participant keeps its id

	// Base URL for share links ({base_url}/g/{gid})
	BaseURL string

	// Per-participant throttling of create, increment and reset
	MutationRate  int // events per second; 0 disables throttling
	MutationBurst int

	// Store operation deadlines (zero keeps the default)
	TimeoutPing   time.Duration
	TimeoutShort  time.Duration
	TimeoutMedium time.Duration
}
