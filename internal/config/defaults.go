package config

const (
	defaultDataDir            = "~/.local/share/ddexer"
	defaultLogDir             = "~/.local/share/ddexer/logs"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultS3Region           = "us-east-1"
	defaultSDKEndpoint        = "https://api.audius.co"
	defaultPollInterval       = 30
	defaultPublishInterval    = 30
	defaultIdleInterval       = 300
	defaultErrorRetryInterval = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:  defaultDataDir,
			LogDir:   defaultLogDir,
			CacheDir: defaultCacheDir(),
		},
		Workflow: Workflow{
			PollInterval:       defaultPollInterval,
			PublishInterval:    defaultPublishInterval,
			IdleInterval:       defaultIdleInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
