package config

const (
	defaultConfigPath         = "~/.config/majdl/config.toml"
	defaultSessionFile        = "~/.config/majdl/session.json"
	defaultSchemaFile         = "~/.config/majdl/liqi.json"
	defaultVersionURL         = "https://majsoul.union-game.com/0/version.json"
	defaultConfigURL          = "https://majsoul.union-game.com/0/v{version}/config.json"
	defaultResourceURL        = "https://majsoul.union-game.com/0/resversion{version}.json"
	defaultRegion             = "mainland"
	defaultGatewayService     = "ws-gateway"
	defaultDeviceType         = "pc"
	defaultBrowser            = "safari"
	defaultCurrencyPlatform   = 2
	defaultPasswordHMACKey    = "lailai"
	defaultPageSize           = 30
	defaultStart              = 1
	defaultHTTPTimeoutSeconds = 0
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			SessionFile: defaultSessionFile,
			SchemaFile:  defaultSchemaFile,
		},
		Lobby: Lobby{
			VersionURL:        defaultVersionURL,
			ConfigURL:         defaultConfigURL,
			ResourceURL:       defaultResourceURL,
			Region:            defaultRegion,
			GatewayService:    defaultGatewayService,
			DeviceType:        defaultDeviceType,
			Browser:           defaultBrowser,
			CurrencyPlatforms: []uint32{defaultCurrencyPlatform},
			PasswordHMACKey:   defaultPasswordHMACKey,
		},
		Download: Download{
			PageSize:           defaultPageSize,
			Start:              defaultStart,
			HTTPTimeoutSeconds: defaultHTTPTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
