/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package config loads the settings of the rtss-osc daemon from a YAML file
// and RTSS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/srediag/rtss-shm/internal/logging"
	"github.com/srediag/rtss-shm/pkg/layout"
)

const envPrefix = "RTSS"

// Config holds the daemon configuration.
type Config struct {
	MapName       string        `mapstructure:"map_name"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	TargetApp     string        `mapstructure:"target_app"`
	MessagePrefix string        `mapstructure:"message_prefix"`
	// LogLevel is a level name; empty keeps RTSS_LOG_LEVEL or the default.
	LogLevel string `mapstructure:"log_level"`

	OSC     OSCConfig     `mapstructure:"osc"`
	Forward ForwardConfig `mapstructure:"forward"`
	Retry   RetryConfig   `mapstructure:"retry"`
	HTTP    HTTPConfig    `mapstructure:"http"`
}

// OSCConfig describes where and how chatbox messages are sent.
type OSCConfig struct {
	Targets         []string `mapstructure:"targets"`
	Address         string   `mapstructure:"address"`
	SendImmediately bool     `mapstructure:"send_immediately"`
	Notify          bool     `mapstructure:"notify"`
}

// ForwardConfig sizes the outbound pipeline.
type ForwardConfig struct {
	Workers           int  `mapstructure:"workers"`
	QueueSize         int  `mapstructure:"queue_size"`
	SkipDeadProcesses bool `mapstructure:"skip_dead_processes"`
}

// RetryConfig bounds the delay between polls while RTSS is not running.
type RetryConfig struct {
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
}

// HTTPConfig is the metrics and health listener. An empty Listen disables it.
type HTTPConfig struct {
	Listen string `mapstructure:"listen"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		MapName:       layout.DefaultMapName,
		PollInterval:  3 * time.Second,
		TargetApp:     "VRChat.exe",
		MessagePrefix: "FPS: ",
		OSC: OSCConfig{
			Targets:         []string{"127.0.0.1:9000"},
			Address:         "/chatbox/input",
			SendImmediately: true,
			Notify:          false,
		},
		Forward: ForwardConfig{
			Workers:           4,
			QueueSize:         16,
			SkipDeadProcesses: true,
		},
		Retry: RetryConfig{
			InitialInterval: 3 * time.Second,
			MaxInterval:     30 * time.Second,
		},
		HTTP: HTTPConfig{Listen: ":9464"},
	}
}

// VerifyConfig reports the first invalid setting.
func VerifyConfig(c *Config) error {
	if c.MapName == "" {
		return errors.New("map_name must not be empty")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval:%v must be positive", c.PollInterval)
	}
	if c.TargetApp == "" {
		return errors.New("target_app must not be empty")
	}
	if len(c.OSC.Targets) == 0 {
		return errors.New("osc.targets needs at least one host:port")
	}
	for _, t := range c.OSC.Targets {
		if _, _, err := net.SplitHostPort(t); err != nil {
			return fmt.Errorf("osc.targets %q: %w", t, err)
		}
	}
	if !strings.HasPrefix(c.OSC.Address, "/") {
		return fmt.Errorf("osc.address:%q must start with '/'", c.OSC.Address)
	}
	if c.Forward.Workers < 1 {
		return fmt.Errorf("forward.workers:%d must be at least 1", c.Forward.Workers)
	}
	if c.Forward.QueueSize < 1 {
		return fmt.Errorf("forward.queue_size:%d must be at least 1", c.Forward.QueueSize)
	}
	if c.Retry.InitialInterval <= 0 || c.Retry.MaxInterval < c.Retry.InitialInterval {
		return fmt.Errorf("retry interval initial:%v max:%v is invalid",
			c.Retry.InitialInterval, c.Retry.MaxInterval)
	}
	if c.LogLevel != "" {
		if _, err := logging.ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("log_level: %w", err)
		}
	}
	return nil
}

// Load reads path (YAML) when given, otherwise looks for rtss-osc.yaml in the
// working directory and /etc/rtss-osc. A missing searched file is not an
// error. RTSS_* environment variables override both, e.g. RTSS_OSC_TARGETS.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("rtss-osc")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/rtss-osc/")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := VerifyConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("map_name", c.MapName)
	v.SetDefault("poll_interval", c.PollInterval)
	v.SetDefault("target_app", c.TargetApp)
	v.SetDefault("message_prefix", c.MessagePrefix)
	v.SetDefault("log_level", c.LogLevel)
	v.SetDefault("osc.targets", c.OSC.Targets)
	v.SetDefault("osc.address", c.OSC.Address)
	v.SetDefault("osc.send_immediately", c.OSC.SendImmediately)
	v.SetDefault("osc.notify", c.OSC.Notify)
	v.SetDefault("forward.workers", c.Forward.Workers)
	v.SetDefault("forward.queue_size", c.Forward.QueueSize)
	v.SetDefault("forward.skip_dead_processes", c.Forward.SkipDeadProcesses)
	v.SetDefault("retry.initial_interval", c.Retry.InitialInterval)
	v.SetDefault("retry.max_interval", c.Retry.MaxInterval)
	v.SetDefault("http.listen", c.HTTP.Listen)
}
