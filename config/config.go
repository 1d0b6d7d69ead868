// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cardinalhq/ddbexport/internal/constants"
	"github.com/cardinalhq/ddbexport/internal/ddbitem"
)

// Config aggregates configuration for the application.
type Config struct {
	Provider ProviderConfig `mapstructure:"provider"`
	Scratch  ScratchConfig  `mapstructure:"scratch"`
	AWS      AWSConfig      `mapstructure:"aws"`
	Export   ExportConfig   `mapstructure:"export"`
}

type ProviderConfig struct {
	// Kind selects the scan provider: "command" or "sdk".
	Kind    string `mapstructure:"kind"`
	Command string `mapstructure:"command"`
	// Segments is the parallel scan segment count.
	Segments int `mapstructure:"segments"`
	// Concurrency bounds in-flight segments for the sdk provider.
	Concurrency int `mapstructure:"concurrency"`
	// PageLimit sets the Scan Limit for the sdk provider; 0 leaves it unset.
	PageLimit int32         `mapstructure:"page_limit"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type ScratchConfig struct {
	Dir      string `mapstructure:"dir"`
	Compress bool   `mapstructure:"compress"`
}

type AWSConfig struct {
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
	RoleARN  string `mapstructure:"role_arn"`
}

type ExportConfig struct {
	WrapperPolicy string `mapstructure:"wrapper_policy"`
	ProgressEvery int64  `mapstructure:"progress_every"`
}

func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			Kind:        ProviderKindCommand,
			Command:     constants.ScanProviderCommand,
			Segments:    constants.DefaultTotalSegments,
			Concurrency: constants.DefaultConcurrency,
		},
		Export: ExportConfig{
			WrapperPolicy: "strict",
			ProgressEvery: constants.DefaultProgressEvery,
		},
	}
}

// Load reads configuration from an optional ddbexport.yaml in the working
// directory and from environment variables. Environment variables use the
// prefix "DDBEXPORT" and the dot character in keys is replaced by an
// underscore. For example, "provider.segments" becomes
// "DDBEXPORT_PROVIDER_SEGMENTS".
func Load() (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName("ddbexport")
	v.AddConfigPath(".")
	v.SetEnvPrefix("DDBEXPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	cfg.Provider.Kind = strings.ToLower(strings.TrimSpace(cfg.Provider.Kind))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be caught by decoding alone.
func (c *Config) Validate() error {
	switch c.Provider.Kind {
	case ProviderKindCommand, ProviderKindSDK:
	default:
		return fmt.Errorf("provider.kind %q: want %s or %s", c.Provider.Kind, ProviderKindCommand, ProviderKindSDK)
	}
	if c.Provider.Segments <= 0 {
		return fmt.Errorf("provider.segments must be positive, got %d", c.Provider.Segments)
	}
	if c.Provider.Concurrency < 0 {
		return fmt.Errorf("provider.concurrency must not be negative, got %d", c.Provider.Concurrency)
	}
	if c.Provider.Timeout < 0 {
		return fmt.Errorf("provider.timeout must not be negative, got %s", c.Provider.Timeout)
	}
	if _, err := c.WrapperPolicy(); err != nil {
		return fmt.Errorf("export.wrapper_policy: %w", err)
	}
	return nil
}

func (c *Config) WrapperPolicy() (ddbitem.WrapperPolicy, error) {
	return ddbitem.ParseWrapperPolicy(c.Export.WrapperPolicy)
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(parts, tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
