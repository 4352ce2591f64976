package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPAddr string `yaml:"http_addr"`
	DBPath   string `yaml:"db_path"`

	HotelName string `yaml:"hotel_name"`
	Timezone  string `yaml:"timezone"`

	CatalogPath string `yaml:"catalog_path"`
	ZonesPath   string `yaml:"zones_path"`
	LexiconPath string `yaml:"lexicon_path"`

	LLMProvider       string  `yaml:"llm_provider"` // "", "anthropic", or "openai"
	LLMModel          string  `yaml:"llm_model"`
	AnthropicAPIKey   string  `yaml:"anthropic_api_key"`
	OpenAIAPIKey      string  `yaml:"openai_api_key"`
	LLMTimeoutSeconds int     `yaml:"llm_timeout_seconds"`
	SemanticFloor     float64 `yaml:"semantic_confidence_floor"`

	// Empirically tuned matcher thresholds. Catalog-specific; kept as
	// configuration, not code.
	PhraseDecisiveScore float64 `yaml:"phrase_decisive_score"`
	PhraseClusterMargin float64 `yaml:"phrase_cluster_margin"`
	FuzzyAliasCutoff    float64 `yaml:"fuzzy_alias_cutoff"`
	DirectNameCutoff    float64 `yaml:"direct_name_cutoff"`
	DetectorScoreFloor  float64 `yaml:"detector_score_floor"`
	DetectorMargin      float64 `yaml:"detector_margin"`

	AllowFreeformPlaces bool `yaml:"allow_freeform_places"`

	DraftTTLMinutes  int `yaml:"draft_ttl_minutes"`
	DedupeTTLMinutes int `yaml:"dedupe_ttl_minutes"`
	HistoryLimit     int `yaml:"history_limit"`

	AdminConversations []string `yaml:"admin_conversations"`

	ExportOutputDir    string `yaml:"export_output_dir"`
	ExportCron         string `yaml:"export_cron"`
	CatalogRefreshCron string `yaml:"catalog_refresh_cron"`

	Location *time.Location `yaml:"-"`
}

// LoadConfig reads config.yaml (or CONFIG_PATH), applies env-var overrides and
// defaults, and exits on invalid values. Configuration errors are fatal at
// startup, never per-request.
func LoadConfig() Config {
	var cfg Config

	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	} else {
		// No YAML file: freeform default differs from the bool zero value.
		cfg.AllowFreeformPlaces = true
	}

	envOverride(&cfg.HTTPAddr, "HTTP_ADDR")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.HotelName, "HOTEL_NAME")
	envOverride(&cfg.Timezone, "TIMEZONE")
	envOverride(&cfg.CatalogPath, "CATALOG_PATH")
	envOverride(&cfg.ZonesPath, "ZONES_PATH")
	envOverride(&cfg.LexiconPath, "LEXICON_PATH")
	envOverride(&cfg.LLMProvider, "LLM_PROVIDER")
	envOverride(&cfg.LLMModel, "LLM_MODEL")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	envOverrideInt(&cfg.LLMTimeoutSeconds, "LLM_TIMEOUT_SECONDS")
	envOverrideFloat(&cfg.SemanticFloor, "SEMANTIC_CONFIDENCE_FLOOR")
	envOverrideInt(&cfg.DraftTTLMinutes, "DRAFT_TTL_MINUTES")
	envOverrideInt(&cfg.DedupeTTLMinutes, "DEDUPE_TTL_MINUTES")
	envOverride(&cfg.ExportOutputDir, "EXPORT_OUTPUT_DIR")

	if ids := os.Getenv("ADMIN_CONVERSATIONS"); ids != "" {
		cfg.AdminConversations = nil
		for _, id := range strings.Split(ids, ",") {
			id = strings.TrimSpace(id)
			if id != "" {
				cfg.AdminConversations = append(cfg.AdminConversations, id)
			}
		}
	}

	applyDefaults(&cfg)

	if err := Validate(cfg); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	if strings.EqualFold(cfg.Timezone, "Local") || cfg.Timezone == "" {
		cfg.Location = time.Local
	} else {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			log.Fatalf("invalid timezone '%s': %v", cfg.Timezone, err)
		}
		cfg.Location = loc
	}

	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./incidentbot.db"
	}
	if cfg.HotelName == "" {
		cfg.HotelName = "Hotel"
	}
	if cfg.CatalogPath == "" {
		cfg.CatalogPath = "./catalog.yaml"
	}
	if cfg.ZonesPath == "" {
		cfg.ZonesPath = "./zones.yaml"
	}
	if cfg.LexiconPath == "" {
		cfg.LexiconPath = "./lexicon.yaml"
	}
	if cfg.LLMTimeoutSeconds == 0 {
		cfg.LLMTimeoutSeconds = 20
	}
	if cfg.SemanticFloor == 0 {
		cfg.SemanticFloor = 0.60
	}
	if cfg.PhraseDecisiveScore == 0 {
		cfg.PhraseDecisiveScore = 0.55
	}
	if cfg.PhraseClusterMargin == 0 {
		cfg.PhraseClusterMargin = 0.08
	}
	if cfg.FuzzyAliasCutoff == 0 {
		cfg.FuzzyAliasCutoff = 0.84
	}
	if cfg.DirectNameCutoff == 0 {
		cfg.DirectNameCutoff = 0.90
	}
	if cfg.DetectorScoreFloor == 0 {
		cfg.DetectorScoreFloor = 0.75
	}
	if cfg.DetectorMargin == 0 {
		cfg.DetectorMargin = 0.35
	}
	if cfg.DraftTTLMinutes == 0 {
		cfg.DraftTTLMinutes = 45
	}
	if cfg.DedupeTTLMinutes == 0 {
		cfg.DedupeTTLMinutes = 10
	}
	if cfg.HistoryLimit == 0 {
		cfg.HistoryLimit = 12
	}
	if cfg.ExportOutputDir == "" {
		cfg.ExportOutputDir = "./exports"
	}
	if cfg.ExportCron == "" {
		cfg.ExportCron = "0 7 * * 1"
	}
	if cfg.CatalogRefreshCron == "" {
		cfg.CatalogRefreshCron = "0 5 * * *"
	}
}

// Validate checks value ranges and provider/key pairing. The semantic service
// is optional: an empty llm_provider disables it rather than failing.
func Validate(cfg Config) error {
	switch cfg.LLMProvider {
	case "":
		// disabled
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return fmt.Errorf("anthropic_api_key is required when llm_provider=anthropic")
		}
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return fmt.Errorf("openai_api_key is required when llm_provider=openai")
		}
	default:
		return fmt.Errorf("llm_provider must be '', 'anthropic' or 'openai', got '%s'", cfg.LLMProvider)
	}

	for name, v := range map[string]float64{
		"semantic_confidence_floor": cfg.SemanticFloor,
		"phrase_decisive_score":     cfg.PhraseDecisiveScore,
		"phrase_cluster_margin":     cfg.PhraseClusterMargin,
		"fuzzy_alias_cutoff":        cfg.FuzzyAliasCutoff,
		"direct_name_cutoff":        cfg.DirectNameCutoff,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("invalid %s '%f': must be between 0 and 1", name, v)
		}
	}
	if cfg.DetectorScoreFloor < 0 {
		return fmt.Errorf("invalid detector_score_floor '%f': must be >= 0", cfg.DetectorScoreFloor)
	}
	if cfg.DetectorMargin < 0 {
		return fmt.Errorf("invalid detector_margin '%f': must be >= 0", cfg.DetectorMargin)
	}
	if cfg.DraftTTLMinutes < 1 {
		return fmt.Errorf("invalid draft_ttl_minutes '%d': must be >= 1", cfg.DraftTTLMinutes)
	}
	if cfg.DedupeTTLMinutes < 1 {
		return fmt.Errorf("invalid dedupe_ttl_minutes '%d': must be >= 1", cfg.DedupeTTLMinutes)
	}
	if cfg.HistoryLimit < 1 {
		return fmt.Errorf("invalid history_limit '%d': must be >= 1", cfg.HistoryLimit)
	}
	if cfg.LLMTimeoutSeconds < 1 {
		return fmt.Errorf("invalid llm_timeout_seconds '%d': must be >= 1", cfg.LLMTimeoutSeconds)
	}
	return nil
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

func envOverrideFloat(field *float64, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

// SemanticEnabled reports whether a language-model provider is configured.
func (c Config) SemanticEnabled() bool {
	return c.LLMProvider != ""
}

func (c Config) IsAdminConversation(id string) bool {
	id = strings.TrimSpace(id)
	for _, admin := range c.AdminConversations {
		if strings.TrimSpace(admin) == id {
			return true
		}
	}
	return false
}

func (c Config) DraftTTL() time.Duration {
	return time.Duration(c.DraftTTLMinutes) * time.Minute
}

func (c Config) DedupeTTL() time.Duration {
	return time.Duration(c.DedupeTTLMinutes) * time.Minute
}

func (c Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLMTimeoutSeconds) * time.Second
}
