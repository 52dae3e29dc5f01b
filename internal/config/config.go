package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"seedslot/go-backend/internal/address"
	"seedslot/go-backend/internal/ledger"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	RPC      RPCConfig      `yaml:"rpc"`
	Storage  StorageConfig  `yaml:"storage"`
	Rent     ledger.Rent    `yaml:"rent"`
	Programs ProgramsConfig `yaml:"programs"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

type RPCConfig struct {
	Addr           string        `yaml:"addr" validate:"required,hostname_port"`
	Token          string        `yaml:"token"`
	RateLimitRPS   float64       `yaml:"rateLimitRPS" validate:"gte=0"`
	RateLimitBurst int           `yaml:"rateLimitBurst" validate:"gte=0"`
	MaxBodyBytes   int64         `yaml:"maxBodyBytes" validate:"gt=0"`
	RequestTimeout time.Duration `yaml:"requestTimeout" validate:"gt=0"`
}

type StorageConfig struct {
	Driver     string `yaml:"driver" validate:"oneof=memory file sqlite postgres"`
	Path       string `yaml:"path"`
	DSN        string `yaml:"dsn"`
	Passphrase string `yaml:"passphrase"`
}

type ProgramsConfig struct {
	Journal string `yaml:"journal" validate:"required,address"`
	Voting  string `yaml:"voting" validate:"required,address"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr" validate:"omitempty,hostname_port"`
}

type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}

func Default() Config {
	return Config{
		RPC: RPCConfig{
			Addr:           "127.0.0.1:8899",
			RateLimitRPS:   20,
			RateLimitBurst: 40,
			MaxBodyBytes:   1 << 20,
			RequestTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{Driver: DriverMemory},
		Rent:    ledger.DefaultRent(),
		Programs: ProgramsConfig{
			Journal: "FX6obMKSmgdg5FygYaVqsytTfswENphFiPJ9v5NsFa1B",
			Voting:  "Ck1Nt6DDLVTG4Ct76bQPMQFGoZfpici7akiAU42Ec15T",
		},
		Metrics: MetricsConfig{Enabled: true, Addr: "127.0.0.1:9464"},
		Log:     LogConfig{Level: "info"},
	}
}

// FileConfig mirrors Config with optional leaves so an omitted key keeps its default.
type FileConfig struct {
	RPC struct {
		Addr           string        `yaml:"addr"`
		Token          string        `yaml:"token"`
		RateLimitRPS   *float64      `yaml:"rateLimitRPS"`
		RateLimitBurst *int          `yaml:"rateLimitBurst"`
		MaxBodyBytes   int64         `yaml:"maxBodyBytes"`
		RequestTimeout time.Duration `yaml:"requestTimeout"`
	} `yaml:"rpc"`
	Storage  StorageConfig  `yaml:"storage"`
	Rent     ledger.Rent    `yaml:"rent"`
	Programs ProgramsConfig `yaml:"programs"`
	Metrics  struct {
		Enabled *bool  `yaml:"enabled"`
		Addr    string `yaml:"addr"`
	} `yaml:"metrics"`
	Log LogConfig `yaml:"log"`
}

// LoadFromPath reads the first config file found, merges it over the defaults, applies
// SEEDSLOT_* overrides and validates the result. Missing files are not an error.
func LoadFromPath(configPath string) (Config, error) {
	cfg := Default()

	candidates := make([]string, 0, 2)
	if configPath != "" {
		candidates = append(candidates, configPath)
	} else {
		candidates = append(candidates,
			"configs/seedslot.yaml",
			"seedslot.yaml",
		)
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return Config{}, err
		}
		var parsed FileConfig
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
		Merge(&cfg, parsed)
		break
	}

	ApplyEnvOverrides(&cfg)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func Merge(dst *Config, src FileConfig) {
	if src.RPC.Addr != "" {
		dst.RPC.Addr = src.RPC.Addr
	}
	if src.RPC.Token != "" {
		dst.RPC.Token = src.RPC.Token
	}
	if src.RPC.RateLimitRPS != nil {
		dst.RPC.RateLimitRPS = *src.RPC.RateLimitRPS
	}
	if src.RPC.RateLimitBurst != nil {
		dst.RPC.RateLimitBurst = *src.RPC.RateLimitBurst
	}
	if src.RPC.MaxBodyBytes != 0 {
		dst.RPC.MaxBodyBytes = src.RPC.MaxBodyBytes
	}
	if src.RPC.RequestTimeout != 0 {
		dst.RPC.RequestTimeout = src.RPC.RequestTimeout
	}
	if src.Storage.Driver != "" {
		dst.Storage.Driver = strings.ToLower(src.Storage.Driver)
	}
	if src.Storage.Path != "" {
		dst.Storage.Path = src.Storage.Path
	}
	if src.Storage.DSN != "" {
		dst.Storage.DSN = src.Storage.DSN
	}
	if src.Storage.Passphrase != "" {
		dst.Storage.Passphrase = src.Storage.Passphrase
	}
	if src.Rent.LamportsPerByteYear != 0 {
		dst.Rent.LamportsPerByteYear = src.Rent.LamportsPerByteYear
	}
	if src.Rent.ExemptionYears != 0 {
		dst.Rent.ExemptionYears = src.Rent.ExemptionYears
	}
	if src.Rent.AccountOverhead != 0 {
		dst.Rent.AccountOverhead = src.Rent.AccountOverhead
	}
	if src.Programs.Journal != "" {
		dst.Programs.Journal = src.Programs.Journal
	}
	if src.Programs.Voting != "" {
		dst.Programs.Voting = src.Programs.Voting
	}
	if src.Metrics.Enabled != nil {
		dst.Metrics.Enabled = *src.Metrics.Enabled
	}
	if src.Metrics.Addr != "" {
		dst.Metrics.Addr = src.Metrics.Addr
	}
	if src.Log.Level != "" {
		dst.Log.Level = strings.ToLower(src.Log.Level)
	}
}

func ApplyEnvOverrides(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := envString(key); v != "" {
			*dst = v
		}
	}
	setString("SEEDSLOT_RPC_ADDR", &cfg.RPC.Addr)
	setString("SEEDSLOT_RPC_TOKEN", &cfg.RPC.Token)
	setString("SEEDSLOT_STORAGE_DRIVER", &cfg.Storage.Driver)
	setString("SEEDSLOT_STORAGE_PATH", &cfg.Storage.Path)
	setString("SEEDSLOT_STORAGE_DSN", &cfg.Storage.DSN)
	setString("SEEDSLOT_STORAGE_PASSPHRASE", &cfg.Storage.Passphrase)
	setString("SEEDSLOT_JOURNAL_PROGRAM_ID", &cfg.Programs.Journal)
	setString("SEEDSLOT_VOTING_PROGRAM_ID", &cfg.Programs.Voting)
	setString("SEEDSLOT_METRICS_ADDR", &cfg.Metrics.Addr)
	setString("SEEDSLOT_LOG_LEVEL", &cfg.Log.Level)
	cfg.Storage.Driver = strings.ToLower(cfg.Storage.Driver)
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)

	cfg.RPC.RateLimitRPS = envFloatWithFallback("SEEDSLOT_RATE_LIMIT_RPS", cfg.RPC.RateLimitRPS)
	cfg.RPC.RateLimitBurst = envBoundedIntWithFallback("SEEDSLOT_RATE_LIMIT_BURST", cfg.RPC.RateLimitBurst, 0, 100_000)
	cfg.Metrics.Enabled = envBoolWithFallback("SEEDSLOT_METRICS_ENABLED", cfg.Metrics.Enabled)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("address", func(fl validator.FieldLevel) bool {
		_, err := address.Parse(fl.Field().String())
		return err == nil
	})
	return v
}

func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	switch cfg.Storage.Driver {
	case DriverFile, DriverSQLite:
		if strings.TrimSpace(cfg.Storage.Path) == "" {
			return fmt.Errorf("invalid config: storage.path is required for driver %s", cfg.Storage.Driver)
		}
	case DriverPostgres:
		if strings.TrimSpace(cfg.Storage.DSN) == "" {
			return errors.New("invalid config: storage.dsn is required for driver postgres")
		}
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		return errors.New("invalid config: metrics.addr is required when metrics are enabled")
	}
	if cfg.Rent.LamportsPerByteYear == 0 || cfg.Rent.ExemptionYears == 0 {
		return errors.New("invalid config: rent parameters must be positive")
	}
	if cfg.Programs.Journal == cfg.Programs.Voting {
		return errors.New("invalid config: journal and voting programs need distinct ids")
	}
	return nil
}

func (c Config) JournalProgramID() address.Address {
	return address.MustParse(c.Programs.Journal)
}

func (c Config) VotingProgramID() address.Address {
	return address.MustParse(c.Programs.Voting)
}
