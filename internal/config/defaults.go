package config

const (
	defaultConfigPath         = "~/.config/biomtype/config.toml"
	defaultWorkDir            = "~/.local/share/biomtype/work"
	defaultLogDir             = "~/.local/share/biomtype/logs"
	defaultStateDir           = "~/.local/share/biomtype"
	defaultQiitaURL           = "https://localhost:21174"
	defaultQiitaTimeout       = 60
	defaultGeneratedBy        = "biomtype"
	defaultLockTimeoutSeconds = 30
	defaultArchiveRoot        = "~/.local/share/biomtype/archive"
	defaultS3Region           = "us-east-1"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"

	envConfigPath   = "BIOMTYPE_CONFIG"
	envClientID     = "QIITA_CLIENT_ID"
	envClientSecret = "QIITA_CLIENT_SECRET"
	envServerCert   = "QIITA_SERVER_CERT"
)

// Storage drivers accepted in [storage].driver.
const (
	StorageNone   = "none"
	StorageFS     = "fs"
	StorageS3     = "s3"
	StorageMemory = "memory"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:  defaultWorkDir,
			LogDir:   defaultLogDir,
			StateDir: defaultStateDir,
		},
		Qiita: Qiita{
			URL:            defaultQiitaURL,
			TimeoutSeconds: defaultQiitaTimeout,
		},
		Validation: Validation{
			GeneratedBy:        defaultGeneratedBy,
			LockTimeoutSeconds: defaultLockTimeoutSeconds,
		},
		Storage: Storage{
			Driver:   StorageNone,
			FSRoot:   defaultArchiveRoot,
			S3Region: defaultS3Region,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
