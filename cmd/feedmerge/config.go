package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/feedspot/feedmerge/internal/mergesdk"
	"github.com/feedspot/feedmerge/internal/progress"
	"github.com/feedspot/feedmerge/internal/utils"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	envPrefix      = "FEEDMERGE"
	configFileName = "config"
)

var (
	home, _              = os.UserHomeDir()
	defaultConfigDir     = filepath.Join(home, ".feedmerge")
	defaultConfigPath    = filepath.Join(defaultConfigDir, "config.json")
	defaultLogFilePath   = filepath.Join(defaultConfigDir, "logs", "feedmerge.log")
	defaultEnvFile       = ".env"
	defaultDownloadType  = string(mergesdk.DownloadCSV)
	defaultServerURL     = mergesdk.DefaultBaseURL
	defaultOutputDir     = "."
	defaultTickInterval  = progress.DefaultInterval
	defaultClientTimeout = mergesdk.DefaultTimeout
)

var (
	ErrInvalidDownloadType = errors.New("format must be one of: csv, excel")
	ErrInvalidInterval     = errors.New("interval must be positive")
)

type Config struct {
	Path         string            `json:"-"`
	ServerURL    string            `json:"server_url"`
	DownloadType string            `json:"format"`
	OutDir       string            `json:"out_dir"`
	Fields       map[string]string `json:"fields,omitempty"`
	Interval     time.Duration     `json:"interval"`
	Timeout      time.Duration     `json:"timeout"`
	Plain        bool              `json:"plain"`
	Debug        bool              `json:"debug"`
}

func (c *Config) Validate() error {
	switch mergesdk.DownloadType(c.DownloadType) {
	case mergesdk.DownloadCSV, mergesdk.DownloadExcel:
	default:
		return fmt.Errorf("%w (got %q)", ErrInvalidDownloadType, c.DownloadType)
	}

	if c.Interval <= 0 {
		return ErrInvalidInterval
	}

	outDir, err := utils.ResolvePath(c.OutDir)
	if err != nil {
		return fmt.Errorf("out dir: %w", err)
	}
	c.OutDir = outDir

	return c.SDKConfig().Validate()
}

func (c *Config) SDKConfig() *mergesdk.Config {
	return &mergesdk.Config{
		BaseURL: c.ServerURL,
		Timeout: c.Timeout,
		Debug:   c.Debug,
	}
}

// loadConfig resolves settings with precedence flags > env (.env included) > config file > defaults.
func loadConfig(cmd *cobra.Command) (*Config, error) {
	v := viper.New()

	// .env never overrides variables already present in the environment
	envFile, _ := cmd.Flags().GetString("env-file")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("env file read '%s': %w", envFile, err)
	}

	if cmd.Flag("config").Changed {
		configFilePath, _ := cmd.Flags().GetString("config")
		v.SetConfigFile(configFilePath)
	} else {
		v.AddConfigPath(defaultConfigDir)
		v.AddConfigPath(filepath.Join(home, ".config", "feedmerge"))
		v.SetConfigName(configFileName)
		v.SetConfigType("json")
	}

	if err := v.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		var notFound viper.ConfigFileNotFoundError
		if !enoent && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config read '%s': %w", v.ConfigFileUsed(), err)
		}
	}

	v.SetDefault("server_url", defaultServerURL)
	v.SetDefault("format", defaultDownloadType)
	v.SetDefault("out_dir", defaultOutputDir)
	v.SetDefault("interval", defaultTickInterval)
	v.SetDefault("timeout", defaultClientTimeout)

	v.BindPFlag("server_url", cmd.Flags().Lookup("server"))
	v.BindPFlag("format", cmd.Flags().Lookup("format"))
	v.BindPFlag("out_dir", cmd.Flags().Lookup("out"))
	v.BindPFlag("interval", cmd.Flags().Lookup("interval"))
	v.BindPFlag("timeout", cmd.Flags().Lookup("timeout"))
	v.BindPFlag("plain", cmd.Flags().Lookup("plain"))
	v.BindPFlag("debug", cmd.Flags().Lookup("debug"))

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	cfg := &Config{
		Path:         v.ConfigFileUsed(),
		ServerURL:    v.GetString("server_url"),
		DownloadType: v.GetString("format"),
		OutDir:       v.GetString("out_dir"),
		Fields:       v.GetStringMapString("fields"),
		Interval:     v.GetDuration("interval"),
		Timeout:      v.GetDuration("timeout"),
		Plain:        v.GetBool("plain"),
		Debug:        v.GetBool("debug"),
	}

	// --field entries are merged over the configured ones
	if f := cmd.Flag("field"); f != nil && f.Changed {
		fields, err := cmd.Flags().GetStringToString("field")
		if err != nil {
			return nil, err
		}
		if cfg.Fields == nil {
			cfg.Fields = make(map[string]string, len(fields))
		}
		for k, val := range fields {
			cfg.Fields[k] = val
		}
	}

	return cfg, nil
}
