package tool

import "flag"

// Config holds runtime overrides from CLI flags.
type Config struct {
	Log           string
	UseConfigPath string
	UseServerURL  string
	UseDevServer  bool

	Upload     string // comma-separated paths
	List       bool
	Bin        bool
	RestoreAll bool
	EmptyBin   bool
	Purge      string // file id
	Delete     string // file id (soft delete)
	ShareQR    string // file id, writes share-<id>.png
	Status     bool
}

// SetFlags parses CLI flags and returns the override config.
func SetFlags() Config {
	var cfg Config
	flag.StringVar(&cfg.Log, "log", "", "log mode: dev|prod|none")
	flag.StringVar(&cfg.UseConfigPath, "useConfigPath", "", "override config file path")
	flag.StringVar(&cfg.UseServerURL, "useServerUrl", "", "override backend base URL")
	flag.BoolVar(&cfg.UseDevServer, "useDevServer", false, "run the built-in dev backend and point the client at it")
	flag.StringVar(&cfg.Upload, "upload", "", "comma-separated file paths to upload")
	flag.BoolVar(&cfg.List, "list", false, "list library files")
	flag.BoolVar(&cfg.Bin, "bin", false, "list the recycle bin (runs the expiry sweep)")
	flag.BoolVar(&cfg.RestoreAll, "restoreAll", false, "restore every file in the recycle bin")
	flag.BoolVar(&cfg.EmptyBin, "emptyBin", false, "permanently delete every file in the recycle bin")
	flag.StringVar(&cfg.Purge, "purge", "", "permanently delete one recycle-bin file by id")
	flag.StringVar(&cfg.Delete, "delete", "", "move one file to the recycle bin by id")
	flag.StringVar(&cfg.ShareQR, "shareQR", "", "write a QR code PNG for a file's share link")
	flag.BoolVar(&cfg.Status, "status", false, "check backend reachability")
	flag.Parse()
	return cfg
}
