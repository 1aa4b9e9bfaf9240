package config

// Watched folder keys. The engine is not limited to these two, but they
// are the only folders the default configuration knows about.
const (
	FolderMod = "MOD"
	FolderOri = "ORI"
)

// Default settings. Timeouts are deliberately asymmetric: metadata calls
// are small JSON exchanges, content fetches move flash file payloads.
const (
	defaultExtension       = ".fls"
	defaultBaseDir         = "flashfiles"
	defaultTempDir         = "flashfiles/.tmp"
	defaultBatchSize       = 50
	defaultBatchDelaySec   = 10
	defaultMetadataTimeout = 30
	defaultContentTimeout  = 300
	defaultTenant          = "common"
	defaultScope           = "offline_access https://graph.microsoft.com/.default"
	defaultStatePath       = "flashsync.db"
	defaultCatalogDSN      = "catalog.db"
	defaultPrice           = 30
	defaultServeAddr       = ":8080"
)

// Default returns the baseline configuration before file and environment
// layers are applied.
func Default() *Config {
	return &Config{
		Auth: Auth{
			TenantID: defaultTenant,
			Scope:    defaultScope,
		},
		Sync: Sync{
			BaseDir:   defaultBaseDir,
			TempDir:   defaultTempDir,
			Extension: defaultExtension,
			Folders: []Folder{
				{Key: FolderMod},
				{Key: FolderOri},
			},
			BatchSize:              defaultBatchSize,
			BatchDelaySeconds:      defaultBatchDelaySec,
			MetadataTimeoutSeconds: defaultMetadataTimeout,
			ContentTimeoutSeconds:  defaultContentTimeout,
		},
		State: State{
			Backend:    "sqlite",
			SQLitePath: defaultStatePath,
		},
		Catalog: Catalog{
			Driver:       "sqlite",
			DSN:          defaultCatalogDSN,
			DefaultPrice: defaultPrice,
		},
		Serve: Serve{
			Addr: defaultServeAddr,
		},
	}
}
