package config

import (
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// DisplayConfig is the vocabulary used when rendering custom field values for
// humans. Operators can override individual unit nouns without a redeploy.
type DisplayConfig struct {
	UnlimitedLabel string            `mapstructure:"unlimitedLabel"`
	Units          map[string]string `mapstructure:"units"`
}

func DefaultDisplayConfig() DisplayConfig {
	return DisplayConfig{
		UnlimitedLabel: "Unlimited",
		Units: map[string]string{
			"emails":     "emails/month",
			"sms":        "SMS/month",
			"requests":   "requests/month",
			"users":      "users",
			"items":      "items",
			"bytes":      "bytes",
			"kb":         "KB",
			"mb":         "MB",
			"gb":         "GB",
			"tb":         "TB",
			"percentage": "%",
			"days":       "days",
			"hours":      "hours",
			"none":       "",
		},
	}
}

// DisplayConfigHolder serves the current vocabulary and hot-reloads it when
// the backing file changes.
type DisplayConfigHolder struct {
	current atomic.Value // holds DisplayConfig
}

func NewDisplayConfigHolder(cfg Config, log *zap.Logger) (*DisplayConfigHolder, error) {
	holder := &DisplayConfigHolder{}
	holder.current.Store(DefaultDisplayConfig())

	v := viper.New()
	v.SetConfigName("entitlement")
	v.SetConfigType("yml")
	if cfg.DisplayConfigPath != "" {
		v.AddConfigPath(cfg.DisplayConfigPath)
	}
	v.AddConfigPath("/etc/entitlement")
	v.AddConfigPath(".")
	v.SetEnvPrefix("ENTITLEMENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		return holder, nil
	}

	if err := holder.reload(v, log); err != nil {
		return nil, err
	}

	v.OnConfigChange(func(fsnotify.Event) {
		if err := holder.reload(v, log); err != nil {
			log.Warn("display config reload failed", zap.Error(err))
		}
	})
	v.WatchConfig()

	return holder, nil
}

func (h *DisplayConfigHolder) reload(v *viper.Viper, log *zap.Logger) error {
	loaded := DefaultDisplayConfig()
	if err := v.UnmarshalKey("display", &loaded); err != nil {
		return err
	}
	if loaded.UnlimitedLabel == "" {
		loaded.UnlimitedLabel = DefaultDisplayConfig().UnlimitedLabel
	}
	defaults := DefaultDisplayConfig().Units
	if loaded.Units == nil {
		loaded.Units = defaults
	} else {
		for unit, noun := range defaults {
			if _, ok := loaded.Units[unit]; !ok {
				loaded.Units[unit] = noun
			}
		}
	}
	h.current.Store(loaded)
	log.Info("display vocabulary loaded", zap.Int("units", len(loaded.Units)))
	return nil
}

// Current returns the active vocabulary.
func (h *DisplayConfigHolder) Current() DisplayConfig {
	return h.current.Load().(DisplayConfig)
}
