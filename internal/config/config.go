// Package config is the typed view over the viper configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/catalog-mapper/internal/common"
	"github.com/Veraticus/catalog-mapper/internal/engine"
	"github.com/Veraticus/catalog-mapper/internal/marketplace"
	"github.com/Veraticus/catalog-mapper/internal/matcher"
	"github.com/Veraticus/catalog-mapper/internal/model"
	"github.com/Veraticus/catalog-mapper/internal/payload"
)

// EnvPrefix is the prefix for environment overrides, e.g. MAPPER_MATCHING_THRESHOLD.
const EnvPrefix = "MAPPER"

// Settings holds every configurable value.
type Settings struct {
	Taxonomy    TaxonomySettings
	Feed        FeedSettings
	Matching    MatchingSettings
	Marketplace MarketplaceSettings
	Storage     StorageSettings
	Server      ServerSettings
	Logging     LoggingSettings
	Payload     payload.Config
	Session     engine.Params
}

// TaxonomySettings locates the category tree.
type TaxonomySettings struct {
	Path         string
	Language     string
	SkipDisabled bool
}

// FeedSettings locates the offer feed. When URL is set the feed is
// downloaded to Path before parsing.
type FeedSettings struct {
	Path string
	URL  string
}

// MatchingSettings selects the similarity backend.
type MatchingSettings struct {
	Backend   string
	ModelPath string
	Stopword  string
	Alphabets []string
	Threshold float64
}

// MarketplaceSettings configures the seller API client.
type MarketplaceSettings struct {
	BaseURL    string
	ClientID   string
	APIKey     string
	BatchSize  int
	BatchDelay time.Duration
	Timeout    time.Duration
}

// StorageSettings locates the submission ledger.
type StorageSettings struct {
	Path string
}

// ServerSettings configures the HTTP control surface.
type ServerSettings struct {
	Addr string
}

// LoggingSettings configures slog.
type LoggingSettings struct {
	Level  string
	Format string
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	pc := payload.DefaultConfig()
	params := engine.DefaultParams()

	defaults := map[string]any{
		"taxonomy.path":          "./data/category_tree.json",
		"taxonomy.skip_disabled": false,
		"taxonomy.language":      "DEFAULT",

		"feed.path": "./tmp/feed.xml",
		"feed.url":  "",

		"matching.backend":    matcher.BackendSequence,
		"matching.threshold":  params.Threshold,
		"matching.model_path": "./models/tfidf.json",
		"matching.stopword":   matcher.DefaultStopword,
		"matching.alphabets":  []string{"cyrillic"},

		"session.offset":    params.Offset,
		"session.max_items": params.MaxItems,
		"session.keyword":   params.Keyword,

		"marketplace.base_url":    marketplace.DefaultBaseURL,
		"marketplace.client_id":   "",
		"marketplace.api_key":     "",
		"marketplace.batch_size":  50,
		"marketplace.batch_delay": 15 * time.Second,
		"marketplace.timeout":     60 * time.Second,

		"payload.currency":                 pc.Currency,
		"payload.weight_unit":              pc.WeightUnit,
		"payload.dimension_unit":           pc.DimensionUnit,
		"payload.article_marker":           pc.ArticleMarker,
		"payload.max_name_length":          pc.MaxNameLength,
		"payload.name_attribute_id":        pc.NameAttributeID,
		"payload.brand_attribute_id":       pc.BrandAttributeID,
		"payload.vendor_code_attribute_id": pc.VendorCodeAttributeID,
		"payload.quantity_attribute_id":    pc.QuantityAttributeID,

		"storage.path": "~/.local/share/mapper/ledger.db",
		"server.addr":  "127.0.0.1:8080",

		"logging.level":  "info",
		"logging.format": "console",
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

// BindEnv makes every key overridable from MAPPER_* environment variables.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads Settings from v and validates them.
func Load(v *viper.Viper) (*Settings, error) {
	s := &Settings{
		Taxonomy: TaxonomySettings{
			Path:         ExpandPath(v.GetString("taxonomy.path")),
			Language:     v.GetString("taxonomy.language"),
			SkipDisabled: v.GetBool("taxonomy.skip_disabled"),
		},
		Feed: FeedSettings{
			Path: ExpandPath(v.GetString("feed.path")),
			URL:  v.GetString("feed.url"),
		},
		Matching: MatchingSettings{
			Backend:   strings.ToLower(v.GetString("matching.backend")),
			Threshold: v.GetFloat64("matching.threshold"),
			ModelPath: ExpandPath(v.GetString("matching.model_path")),
			Stopword:  v.GetString("matching.stopword"),
			Alphabets: v.GetStringSlice("matching.alphabets"),
		},
		Session: engine.Params{
			Offset:    v.GetInt("session.offset"),
			MaxItems:  v.GetInt("session.max_items"),
			Keyword:   v.GetString("session.keyword"),
			Threshold: v.GetFloat64("matching.threshold"),
		},
		Marketplace: MarketplaceSettings{
			BaseURL:    v.GetString("marketplace.base_url"),
			ClientID:   v.GetString("marketplace.client_id"),
			APIKey:     v.GetString("marketplace.api_key"),
			BatchSize:  v.GetInt("marketplace.batch_size"),
			BatchDelay: v.GetDuration("marketplace.batch_delay"),
			Timeout:    v.GetDuration("marketplace.timeout"),
		},
		Payload: payload.Config{
			Currency:              v.GetString("payload.currency"),
			WeightUnit:            v.GetString("payload.weight_unit"),
			DimensionUnit:         v.GetString("payload.dimension_unit"),
			ArticleMarker:         v.GetString("payload.article_marker"),
			MaxNameLength:         v.GetInt("payload.max_name_length"),
			NameAttributeID:       v.GetInt64("payload.name_attribute_id"),
			BrandAttributeID:      v.GetInt64("payload.brand_attribute_id"),
			VendorCodeAttributeID: v.GetInt64("payload.vendor_code_attribute_id"),
			QuantityAttributeID:   v.GetInt64("payload.quantity_attribute_id"),
		},
		Storage: StorageSettings{Path: ExpandPath(v.GetString("storage.path"))},
		Server:  ServerSettings{Addr: v.GetString("server.addr")},
		Logging: LoggingSettings{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks ranges that would otherwise fail deep inside a run.
func (s *Settings) Validate() error {
	if s.Matching.Threshold < 0 || s.Matching.Threshold > 1 {
		return fmt.Errorf("%w: matching threshold must be within [0, 1], got %v", common.ErrInvalidConfig, s.Matching.Threshold)
	}
	if s.Session.Offset < 0 {
		return fmt.Errorf("%w: session offset must not be negative", common.ErrInvalidConfig)
	}
	if s.Session.MaxItems < 0 {
		return fmt.Errorf("%w: session max_items must not be negative", common.ErrInvalidConfig)
	}
	if s.Marketplace.BatchSize <= 0 {
		return fmt.Errorf("%w: marketplace batch_size must be positive", common.ErrInvalidConfig)
	}
	if s.Marketplace.BatchDelay < 0 {
		return fmt.Errorf("%w: marketplace batch_delay must not be negative", common.ErrInvalidConfig)
	}
	if _, err := common.ParseLevel(s.Logging.Level); err != nil {
		return err
	}
	return nil
}

// Credentials returns the configured marketplace credentials.
func (s *Settings) Credentials() model.Credentials {
	return model.Credentials{ClientID: s.Marketplace.ClientID, APIKey: s.Marketplace.APIKey}
}

// MatcherConfig returns the matcher factory configuration.
func (s *Settings) MatcherConfig() matcher.Config {
	return matcher.Config{
		Backend:   s.Matching.Backend,
		ModelPath: s.Matching.ModelPath,
		Stopword:  s.Matching.Stopword,
		Alphabets: s.Matching.Alphabets,
	}
}

// MarketplaceConfig returns the client configuration for creds.
func (s *Settings) MarketplaceConfig(creds model.Credentials) marketplace.Config {
	return marketplace.Config{
		Credentials: creds,
		BaseURL:     s.Marketplace.BaseURL,
		BatchSize:   s.Marketplace.BatchSize,
		BatchDelay:  s.Marketplace.BatchDelay,
		Timeout:     s.Marketplace.Timeout,
		Retry:       common.DefaultRetryOptions(),
	}
}

// ExpandPath resolves environment variables and a leading ~ in path.
// Variables are expanded first so MAPPER_HOME=~/x style values work too.
func ExpandPath(path string) string {
	path = os.ExpandEnv(path)
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
