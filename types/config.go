package types

// AppConfig is the persisted client configuration, loaded from config.yaml.
type AppConfig struct {
	// ServerURL is the base URL of the Nimbus Drive backend, without the API prefix.
	ServerURL string `yaml:"serverUrl"`
	// APIPrefix is prepended to every call path. Defaults to /api/v1.
	APIPrefix string `yaml:"apiPrefix"`
	// RetentionDays is the recycle-bin window. Records older than this are purged.
	RetentionDays int `yaml:"retentionDays"`
	// MaxUploadMB caps the size of a single upload, client-side.
	MaxUploadMB int64 `yaml:"maxUploadMb"`
	// RateLimitRPS throttles outgoing API calls. 0 disables throttling.
	RateLimitRPS float64 `yaml:"rateLimitRps"`
	// DevPort is the listen port for the built-in dev backend.
	DevPort int `yaml:"devPort"`
}

// ProgramConfig holds runtime-only toggles that are never written to disk.
type ProgramConfig struct {
	UseDevServer bool
	Confirm      bool // require confirmation before destructive bulk actions
}
