package app

import (
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// ReloadOptions wires config hot-reload into the running pieces. The setter
// funcs may be nil when the corresponding knob is not reloadable for the
// selected adapters.
type ReloadOptions struct {
	Engine         *Engine
	SetUnit        func(unit string)
	SetGeoEndpoint func(endpoint string)
}

// WatchConfig re-reads the config file whenever it changes and applies the
// runtime-tunable settings. Invalid settings are rejected and the previous
// configuration is retained; a restart is never required for window, unit,
// or geolocation endpoint changes.
func WatchConfig(opts ReloadOptions) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		log.Info().
			Str("file", e.Name).
			Str("op", e.Op.String()).
			Msg("Config file changed, reloading...")

		applyReload(opts)
	})
	viper.WatchConfig()
}

func applyReload(opts ReloadOptions) {
	if err := viper.ReadInConfig(); err != nil {
		log.Error().Err(err).Msg("Failed to re-read config, keeping current configuration")
		return
	}

	if opts.Engine != nil {
		config := EngineConfig{
			LongWindow:  durationSetting("windows.long", opts.Engine.Config().LongWindow),
			ShortWindow: durationSetting("windows.short", opts.Engine.Config().ShortWindow),
		}
		opts.Engine.ApplyConfig(config)
	}

	if opts.SetUnit != nil {
		if unit := viper.GetString("log.unit"); unit != "" {
			opts.SetUnit(unit)
		}
	}
	if opts.SetGeoEndpoint != nil {
		if endpoint := viper.GetString("geo.endpoint"); endpoint != "" {
			opts.SetGeoEndpoint(endpoint)
		}
	}
}

func durationSetting(key string, fallback time.Duration) time.Duration {
	if d := viper.GetDuration(key); d > 0 {
		return d
	}
	return fallback
}
