package main

import (
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/jingkaihe/skillscan/pkg/db"
	"github.com/jingkaihe/skillscan/pkg/scanner"
	"github.com/jingkaihe/skillscan/pkg/skills"
)

func init() {
	viper.SetEnvPrefix("SKILLSCAN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.skillscan")
	viper.AddConfigPath(".")

	setDefaults()

	// Load config file if it exists (ignore errors if it doesn't)
	_ = viper.ReadInConfig()
}

func setDefaults() {
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "fmt")
	viper.SetDefault("min_severity", "LOW")
	viper.SetDefault("quiet", false)
	viper.SetDefault("color", "auto")
	viper.SetDefault("scan.workers", 0)
	viper.SetDefault("scan.max_file_bytes", scanner.DefaultMaxFileBytes)
	viper.SetDefault("scan.exclude", []string{})
	viper.SetDefault("db_path", "")
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.sampler", "ratio")
	viper.SetDefault("tracing.ratio", 1.0)
}

// newScannerFromViper builds a scanner from the scan.* settings.
func newScannerFromViper() (*scanner.Scanner, error) {
	return scanner.New(
		scanner.WithWorkers(viper.GetInt("scan.workers")),
		scanner.WithMaxFileBytes(viper.GetInt64("scan.max_file_bytes")),
		scanner.WithExclude(viper.GetStringSlice("scan.exclude")...),
	)
}

// ecosystemsFromViper decodes additional ecosystems from
// discovery.ecosystems, e.g.
//
//	discovery:
//	  ecosystems:
//	    - name: Windsurf
//	      global: ["~/.windsurf/skills"]
//	      project: [".windsurf/skills"]
func ecosystemsFromViper() ([]skills.Ecosystem, error) {
	raw := viper.Get("discovery.ecosystems")
	if raw == nil {
		return nil, nil
	}

	var ecosystems []skills.Ecosystem
	if err := mapstructure.Decode(raw, &ecosystems); err != nil {
		return nil, errors.Wrap(err, "invalid discovery.ecosystems configuration")
	}
	return ecosystems, nil
}

// newRegistry builds the discovery registry from configuration, restricted
// to ecosystems matching filter when it is not empty.
func newRegistry(filter string) (*skills.Registry, error) {
	extra, err := ecosystemsFromViper()
	if err != nil {
		return nil, err
	}
	return skills.NewRegistry(
		skills.WithExtraEcosystems(extra...),
		skills.WithFilter(filter),
	)
}

// dbPathFromViper returns db_path, falling back to the default location.
func dbPathFromViper() (string, error) {
	if p := viper.GetString("db_path"); p != "" {
		return p, nil
	}
	return db.DefaultDBPath()
}
