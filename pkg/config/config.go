package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Config representa a estrutura completa do config.yaml
type Config struct {
	App struct {
		Env      string `yaml:"env"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"app"`

	API struct {
		ClientID       string  `yaml:"client_id"`
		BaseV1         string  `yaml:"base_v1"`
		BaseV2         string  `yaml:"base_v2"`
		WaitSeconds    float64 `yaml:"wait_seconds"`
		TimeoutSeconds int     `yaml:"request_timeout_seconds"`
		// RPS > 0 liga um limitador compartilhado por todos os fetchers do processo.
		RPS float64 `yaml:"rps"`
	} `yaml:"api"`

	Database struct {
		URL      string `yaml:"url"`
		MaxConns int32  `yaml:"max_conns"`
	} `yaml:"database"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Nats struct {
		URL     string `yaml:"url"`
		Subject string `yaml:"subject"`
		Durable string `yaml:"durable"`
	} `yaml:"nats"`

	Meilisearch struct {
		Host  string `yaml:"host"`
		Key   string `yaml:"key"`
		Index string `yaml:"index"`
	} `yaml:"meilisearch"`

	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`

	// Usado pelo Discovery
	Discovery struct {
		Limit            int      `yaml:"limit"`
		Workers          int      `yaml:"workers"`
		BatchSize        int      `yaml:"batch_size"`
		Sources          []string `yaml:"expansion_sources"`
		FollowerMax      int64    `yaml:"follower_max"`
		FollowerMult     float64  `yaml:"min_yield_follower_mult"`
		FollowingMult    float64  `yaml:"min_yield_following_mult"`
		MaxAttempts      int      `yaml:"max_attempts"`
		Headless         *bool    `yaml:"headless"`
		ResolveTimeout   int      `yaml:"resolve_timeout_seconds"`
		ClaimTTLMinutes  int      `yaml:"claim_ttl_minutes"`
		PublishTrackJobs bool     `yaml:"publish_track_jobs"`
		// IntervalMinutes é o intervalo entre ciclos no modo contínuo.
		IntervalMinutes int `yaml:"interval_minutes"`
	} `yaml:"discovery"`

	// Usado pelo Scraper
	Scraper struct {
		Limit             int      `yaml:"limit"`
		Workers           int      `yaml:"workers"`
		BatchSize         int      `yaml:"batch_size"`
		EngagementKinds   []string `yaml:"engagement_kinds"`
		EmitEngagers      bool     `yaml:"emit_engager_profiles"`
		HaltOnAbort       bool     `yaml:"halt_on_abort"`
		Source            string   `yaml:"source"` // store | seed | nats
		SeedFile          string   `yaml:"seed_file"`
		IncludeEnumerated bool     `yaml:"include_enumerated"`
		// FetchWaitSeconds é a espera máxima por jobs no modo nats.
		FetchWaitSeconds int `yaml:"fetch_wait_seconds"`
	} `yaml:"scraper"`
}

// Load lê o .env opcional, o YAML em path e aplica overrides de ambiente e defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("[Config] .env ilegível, ignorando")
	}

	var cfg Config
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("erro lendo config: %w", err)
		}
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("erro ao decodificar YAML: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

// MustLoad localiza o config.yaml como nos outros serviços e encerra em erro.
func MustLoad() *Config {
	path := findConfig()
	if path != "" {
		absPath, _ := filepath.Abs(path)
		log.Info().Str("path", absPath).Msg("Carregando config")
	} else {
		log.Warn().Msg("config.yaml não encontrado, usando só variáveis de ambiente")
	}
	cfg, err := Load(path)
	if err != nil {
		log.Fatal().Err(err).Msg("Erro fatal lendo config")
	}
	return cfg
}

func findConfig() string {
	// 1. Variável de Ambiente (Docker/Prod)
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	// 2. Sobe pastas (Local Dev, 'go run' de dentro de services/<svc>)
	for _, p := range []string{"config.yaml", "config/config.yaml", "../../config/config.yaml"} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func (c *Config) applyEnv() {
	setString(&c.API.ClientID, "SC_CLIENT_ID")
	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.Redis.Address, "REDIS_ADDRESS")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setString(&c.Nats.URL, "NATS_URL")
	setString(&c.Meilisearch.Host, "MEILI_HOST")
	setString(&c.Meilisearch.Key, "MEILI_KEY")
	setString(&c.App.Env, "APP_ENV")
	setString(&c.App.LogLevel, "LOG_LEVEL")
	if v := os.Getenv("SCRAPER_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Scraper.Workers = n
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "development"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.API.WaitSeconds == 0 {
		c.API.WaitSeconds = 2
	}
	if c.API.TimeoutSeconds == 0 {
		c.API.TimeoutSeconds = 30
	}
	if c.Redis.Address == "" {
		c.Redis.Address = "localhost:6379"
	}
	if c.Nats.Subject == "" {
		c.Nats.Subject = "jobs.tracks"
	}
	if c.Nats.Durable == "" {
		c.Nats.Durable = "track-crawler"
	}
	if c.Meilisearch.Index == "" {
		c.Meilisearch.Index = "profiles"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}

	d := &c.Discovery
	if d.Limit == 0 {
		d.Limit = 100
	}
	if d.Workers == 0 {
		d.Workers = 1
	}
	if d.BatchSize == 0 {
		d.BatchSize = 10
	}
	if d.FollowerMax == 0 {
		d.FollowerMax = 750000
	}
	if d.FollowerMult == 0 && d.FollowingMult == 0 {
		d.FollowerMult, d.FollowingMult = 0.50, 0.95
	}
	if d.MaxAttempts == 0 {
		d.MaxAttempts = 3
	}
	if d.Headless == nil {
		t := true
		d.Headless = &t
	}
	if d.ResolveTimeout == 0 {
		d.ResolveTimeout = 45
	}
	if d.ClaimTTLMinutes == 0 {
		d.ClaimTTLMinutes = 360
	}
	if d.IntervalMinutes == 0 {
		d.IntervalMinutes = 30
	}

	s := &c.Scraper
	if s.Limit == 0 {
		s.Limit = 1000
	}
	if s.Workers == 0 {
		s.Workers = 4
	}
	if s.BatchSize == 0 {
		s.BatchSize = 20
	}
	if len(s.EngagementKinds) == 0 {
		s.EngagementKinds = []string{"reposters", "comments"}
	}
	if s.Source == "" {
		s.Source = "store"
	}
	if s.FetchWaitSeconds == 0 {
		s.FetchWaitSeconds = 5
	}
}
