package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	// TagsConfig maps host tag names to the roles engine recognizes.
	TagsConfig struct {
		List        string `yaml:"list" validate:"required"`
		ListItem    string `yaml:"list_item" validate:"required"`
		Swiper      string `yaml:"swiper" validate:"required"`
		SwiperSlide string `yaml:"swiper_slide" validate:"required"`
		PullHeader  string `yaml:"pull_header" validate:"required"`
		Comment     string `yaml:"comment" validate:"required"`
	}

	CollectorConfig struct {
		IdleTimeout time.Duration `yaml:"idle_timeout" validate:"gt=0"`
		Cooldown    time.Duration `yaml:"cooldown" validate:"gte=0"`
	}

	EngineConfig struct {
		RootID           string          `yaml:"root_id"`
		CheckRatio       bool            `yaml:"check_ratio"`
		Debug            bool            `yaml:"debug"`
		PageDebounce     time.Duration   `yaml:"page_debounce" validate:"gte=0"`
		CustomScrollTags []string        `yaml:"custom_scroll_tags" validate:"dive,required"`
		Tags             TagsConfig      `yaml:"tags"`
		GC               CollectorConfig `yaml:"gc"`
	}

	PluginConfig struct {
		ReNotifyWhenReVisible  bool    `yaml:"renotify_when_revisible"`
		ExposureRatioThreshold float64 `yaml:"exposure_ratio_threshold" validate:"gte=0.0,lte=1.0"`
	}

	ReplayConfig struct {
		OutputFormat       OutputFormat `yaml:"output_format"`
		OutputNameTemplate string       `yaml:"output_name_template"`
		DumpRegistry       bool         `yaml:"dump_registry"`
		Overwrite          bool         `yaml:"overwrite"`
		History            string       `yaml:"history"`
	}

	Config struct {
		Version   int            `yaml:"version" validate:"eq=1"`
		Engine    EngineConfig   `yaml:"engine"`
		Plugin    PluginConfig   `yaml:"plugin"`
		Replay    ReplayConfig   `yaml:"replay"`
		Logging   LoggingConfig  `yaml:"logging"`
		Reporting ReporterConfig `yaml:"reporting"`
	}
)

// Default hook values, kept in sync with config.yaml.tmpl.
const (
	DefaultPageDebounce  = 150 * time.Millisecond
	DefaultGCIdleTimeout = 550 * time.Millisecond
	DefaultGCCooldown    = 300 * time.Millisecond
)

// DefaultEngineConfig returns engine settings identical to the embedded
// template, for library users who do not load configuration files.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		CheckRatio:   true,
		PageDebounce: DefaultPageDebounce,
		Tags: TagsConfig{
			List:        "ul",
			ListItem:    "li",
			Swiper:      "hi-swiper",
			SwiperSlide: "hi-swiper-slide",
			PullHeader:  "hi-pull-header",
			Comment:     "comment",
		},
		GC: CollectorConfig{
			IdleTimeout: DefaultGCIdleTimeout,
			Cooldown:    DefaultGCCooldown,
		},
	}
}

// DefaultPluginConfig returns notification layer defaults.
func DefaultPluginConfig() PluginConfig {
	return PluginConfig{ReNotifyWhenReVisible: true}
}

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, err
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration template to provide
// sane defaults and performs validation.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	// overwrite cfg values with values from the file
	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare generates configuration file from template and returns it as a byte
// slice.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %w", err)
	}
	return data, nil
}
