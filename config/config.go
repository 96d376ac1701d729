package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/hipodromo/internal/domain"
)

// Config es la configuración completa del servicio de carreras.
type Config struct {
	Engine  EngineConfig  `yaml:"engine"`
	API     APIConfig     `yaml:"api"`
	Gateway GatewayConfig `yaml:"gateway"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

// EngineConfig contiene las identidades y parámetros del motor.
type EngineConfig struct {
	Owner   string `yaml:"owner"`
	Manager string `yaml:"manager"`
	Token   string `yaml:"token"`   // identidad del contrato de tokens
	Oracle  string `yaml:"oracle"`  // identidad del oracle
	Vault   string `yaml:"vault"`   // custodia de los depósitos
	FeeBps  uint64 `yaml:"fee_bps"` // 0..10000
}

// APIConfig contiene los base URLs de los colaboradores externos.
type APIConfig struct {
	TokenBase  string `yaml:"token_base"`
	OracleBase string `yaml:"oracle_base"`
}

// GatewayConfig controla el servidor HTTP del gateway.
type GatewayConfig struct {
	Listen string `yaml:"listen"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("GATEWAY_LISTEN"); v != "" {
		cfg.Gateway.Listen = v
	}
	if v := os.Getenv("STORAGE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Engine.Token == "" {
		cfg.Engine.Token = "token-contract"
	}
	if cfg.Engine.Oracle == "" {
		cfg.Engine.Oracle = "randomness-oracle"
	}
	if cfg.Engine.Vault == "" {
		cfg.Engine.Vault = "race-vault"
	}
	if cfg.API.TokenBase == "" {
		cfg.API.TokenBase = "http://localhost:8081"
	}
	if cfg.API.OracleBase == "" {
		cfg.API.OracleBase = "http://localhost:8082"
	}
	if cfg.Gateway.Listen == "" {
		cfg.Gateway.Listen = ":8080"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "hipodromo.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

func validate(cfg *Config) error {
	if cfg.Engine.Owner == "" {
		return fmt.Errorf("engine.owner is required")
	}
	if cfg.Engine.Manager == "" {
		return fmt.Errorf("engine.manager is required")
	}
	if err := domain.ValidateFeeBps(cfg.Engine.FeeBps); err != nil {
		return fmt.Errorf("engine.fee_bps: %w", err)
	}
	return nil
}
