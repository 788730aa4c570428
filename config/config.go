package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/polymoly/internal/domain"
)

// Config es la configuración completa del bot.
type Config struct {
	Sports   []SportConfig  `yaml:"sports"`
	Scanner  ScannerConfig  `yaml:"scanner"`
	Executor ExecutorConfig `yaml:"executor"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	Credits  CreditsConfig  `yaml:"credits"`
	API      APIConfig      `yaml:"api"`
	Storage  StorageConfig  `yaml:"storage"`
	Polling  PollingConfig  `yaml:"polling"`
	Log      LogConfig      `yaml:"log"`
}

// SportConfig describe un deporte activo y cómo consultarlo en ambas fuentes.
// Inmutable: se carga una vez al arrancar.
type SportConfig struct {
	ID       string  `yaml:"id"`        // clave interna (ej: "nba")
	SportKey string  `yaml:"sport_key"` // clave del feed de cuotas (ej: "basketball_nba")
	Markets  string  `yaml:"markets"`   // "h2h" | "spreads"
	TagSlug  string  `yaml:"tag_slug"`  // tag de Gamma (ej: "nba")
	Label    string  `yaml:"label"`     // nombre legible para logs
	MaxOdds  float64 `yaml:"max_odds"`  // techo de cuota del favorito
	Handicap bool    `yaml:"handicap"`  // true si el mercado es spreads
}

// ScannerConfig controla los gates de detección de gaps.
type ScannerConfig struct {
	EntryWindowHrs    float64     `yaml:"entry_window_hrs"`    // máx horas antes del partido
	EntryDeadlineHrs  float64     `yaml:"entry_deadline_hrs"`  // mín horas antes del partido
	MaxPrice          float64     `yaml:"max_price"`           // techo de precio en Polymarket
	MinGap            float64     `yaml:"min_gap"`             // gap mínimo (prob - ask)
	MinLiquidity      float64     `yaml:"min_liquidity"`       // shares mínimos cerca del ask
	LiquidityLevels   int         `yaml:"liquidity_levels"`    // niveles de ask a sumar
	StakeTiers        []StakeTier `yaml:"stake_tiers"`
	MatchToleranceHrs float64     `yaml:"match_tolerance_hrs"` // ventana de matching por tiempo
}

// StakeTier es un rango de gap [min, max) con su stake en USDC.
type StakeTier struct {
	Min   float64 `yaml:"min"`
	Max   float64 `yaml:"max"`
	Stake float64 `yaml:"stake"`
}

// ExecutorConfig controla la ejecución de órdenes.
type ExecutorConfig struct {
	MaxPositions int `yaml:"max_positions"`
}

// MonitorConfig controla el loop de liquidación.
type MonitorConfig struct {
	IntervalSeconds      int     `yaml:"interval_seconds"`
	WinThreshold         float64 `yaml:"win_threshold"`  // best bid >= → win
	LossThreshold        float64 `yaml:"loss_threshold"` // best bid <= → loss
	MaxConsecutiveLosses int     `yaml:"max_consecutive_losses"`
}

// CreditsConfig controla el gobernador de crédito del feed de cuotas.
type CreditsConfig struct {
	MinReserve    int    `yaml:"min_reserve"`    // por debajo no se llama a la API
	WarnThreshold int    `yaml:"warn_threshold"` // por debajo se avisa al operador
	DailyMaxCalls int    `yaml:"daily_max_calls"`
	StatePath     string `yaml:"state_path"` // archivo JSON del estado de crédito
}

// APIConfig contiene los base URLs y parámetros de las APIs externas.
type APIConfig struct {
	OddsBase   string `yaml:"odds_base"`
	Bookmakers string `yaml:"bookmakers"` // ej: "pinnacle"
	CLOBBase   string `yaml:"clob_base"`
	GammaBase  string `yaml:"gamma_base"`
	PolygonRPC string `yaml:"polygon_rpc"` // para el chequeo de saldo USDC on-chain
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN             string `yaml:"dsn"`               // ruta al archivo SQLite, o ":memory:"
	TeamMappingPath string `yaml:"team_mapping_path"` // JSON nombre completo → forma corta
}

// PollingConfig controla el ritmo del loop de trading.
//
// El intervalo se elige según las horas que faltan para el partido matcheado
// más próximo: lejos del partido se consulta poco (las cuotas son inestables
// y cada consulta gasta crédito), cerca se consulta más seguido.
type PollingConfig struct {
	DefaultSeconds  int           `yaml:"default_seconds"`
	CooldownSeconds int           `yaml:"cooldown_seconds"` // espera tras error de red
	Intervals       []PollingTier `yaml:"intervals"`
}

// PollingTier mapea un rango de horas-hasta-el-partido a un intervalo.
type PollingTier struct {
	MinHrs  float64 `yaml:"min_hrs"`
	MaxHrs  float64 `yaml:"max_hrs"`
	Seconds int     `yaml:"seconds"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los secretos (ODDS_API_KEY, PRIVATE_KEY, TELEGRAM_*) viven solo en el entorno.
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

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// Validate verifica la coherencia de la configuración cargada.
func (c *Config) Validate() error {
	if len(c.Sports) == 0 {
		return fmt.Errorf("validate: no sports configured")
	}
	seen := make(map[string]bool, len(c.Sports))
	for _, s := range c.Sports {
		if s.ID == "" || s.SportKey == "" || s.TagSlug == "" {
			return fmt.Errorf("validate: sport %q incomplete", s.ID)
		}
		if seen[s.ID] {
			return fmt.Errorf("validate: duplicate sport id %q", s.ID)
		}
		seen[s.ID] = true
		if s.Markets != "h2h" && s.Markets != "spreads" {
			return fmt.Errorf("validate: sport %q: unknown markets %q", s.ID, s.Markets)
		}
		if s.Handicap != (s.Markets == "spreads") {
			return fmt.Errorf("validate: sport %q: handicap flag and markets disagree", s.ID)
		}
		if s.MaxOdds <= 1.0 {
			return fmt.Errorf("validate: sport %q: max_odds must be > 1.0", s.ID)
		}
	}
	if c.Scanner.EntryDeadlineHrs >= c.Scanner.EntryWindowHrs {
		return fmt.Errorf("validate: entry_deadline_hrs must be below entry_window_hrs")
	}
	if c.Monitor.LossThreshold >= c.Monitor.WinThreshold {
		return fmt.Errorf("validate: loss_threshold must be below win_threshold")
	}
	if err := domain.ValidateTiers(c.StakeTiers()); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	return nil
}

// StakeTiers convierte la tabla YAML a los tiers del dominio.
func (c *Config) StakeTiers() []domain.StakeTier {
	tiers := make([]domain.StakeTier, len(c.Scanner.StakeTiers))
	for i, t := range c.Scanner.StakeTiers {
		tiers[i] = domain.StakeTier{Min: t.Min, Max: t.Max, StakeUSDC: t.Stake}
	}
	return tiers
}

// MonitorInterval devuelve el intervalo del loop de liquidación.
func (c *Config) MonitorInterval() time.Duration {
	return time.Duration(c.Monitor.IntervalSeconds) * time.Second
}

// DefaultPollInterval devuelve el intervalo por defecto del loop de trading.
func (c *Config) DefaultPollInterval() time.Duration {
	return time.Duration(c.Polling.DefaultSeconds) * time.Second
}

// NetworkCooldown devuelve la espera tras un error de transporte.
func (c *Config) NetworkCooldown() time.Duration {
	return time.Duration(c.Polling.CooldownSeconds) * time.Second
}

// PollIntervalFor devuelve el intervalo según las horas hasta el partido
// más próximo. Devuelve el default si ningún tier aplica.
func (c *Config) PollIntervalFor(minHrs float64) time.Duration {
	for _, t := range c.Polling.Intervals {
		if minHrs >= t.MinHrs && minHrs < t.MaxHrs {
			return time.Duration(t.Seconds) * time.Second
		}
	}
	return c.DefaultPollInterval()
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Scanner.EntryWindowHrs <= 0 {
		cfg.Scanner.EntryWindowHrs = 24
	}
	if cfg.Scanner.EntryDeadlineHrs <= 0 {
		cfg.Scanner.EntryDeadlineHrs = 1
	}
	if cfg.Scanner.MaxPrice <= 0 {
		cfg.Scanner.MaxPrice = 0.50
	}
	if cfg.Scanner.MinGap <= 0 {
		cfg.Scanner.MinGap = 0.15
	}
	if cfg.Scanner.MinLiquidity <= 0 {
		cfg.Scanner.MinLiquidity = 30
	}
	if cfg.Scanner.LiquidityLevels <= 0 {
		cfg.Scanner.LiquidityLevels = 3
	}
	if cfg.Scanner.MatchToleranceHrs <= 0 {
		cfg.Scanner.MatchToleranceHrs = 3
	}
	if len(cfg.Scanner.StakeTiers) == 0 {
		cfg.Scanner.StakeTiers = []StakeTier{
			{Min: 0.15, Max: 0.20, Stake: 10},
			{Min: 0.20, Max: 0.30, Stake: 20},
			{Min: 0.30, Max: 1.00, Stake: 30},
		}
	}
	if cfg.Executor.MaxPositions <= 0 {
		cfg.Executor.MaxPositions = 5
	}
	if cfg.Monitor.IntervalSeconds <= 0 {
		cfg.Monitor.IntervalSeconds = 600
	}
	if cfg.Monitor.WinThreshold <= 0 {
		cfg.Monitor.WinThreshold = 0.95
	}
	if cfg.Monitor.LossThreshold <= 0 {
		cfg.Monitor.LossThreshold = 0.05
	}
	if cfg.Monitor.MaxConsecutiveLosses <= 0 {
		cfg.Monitor.MaxConsecutiveLosses = 3
	}
	if cfg.Credits.MinReserve <= 0 {
		cfg.Credits.MinReserve = 10
	}
	if cfg.Credits.WarnThreshold <= 0 {
		cfg.Credits.WarnThreshold = 50
	}
	if cfg.Credits.DailyMaxCalls <= 0 {
		cfg.Credits.DailyMaxCalls = 100
	}
	if cfg.Credits.StatePath == "" {
		cfg.Credits.StatePath = "data/credits.json"
	}
	if cfg.API.OddsBase == "" {
		cfg.API.OddsBase = "https://api.the-odds-api.com/v4"
	}
	if cfg.API.Bookmakers == "" {
		cfg.API.Bookmakers = "pinnacle"
	}
	if cfg.API.CLOBBase == "" {
		cfg.API.CLOBBase = "https://clob.polymarket.com"
	}
	if cfg.API.GammaBase == "" {
		cfg.API.GammaBase = "https://gamma-api.polymarket.com"
	}
	if cfg.API.PolygonRPC == "" {
		cfg.API.PolygonRPC = "https://polygon-rpc.com"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "data/positions.db"
	}
	if cfg.Storage.TeamMappingPath == "" {
		cfg.Storage.TeamMappingPath = "data/team_mapping.json"
	}
	if cfg.Polling.DefaultSeconds <= 0 {
		cfg.Polling.DefaultSeconds = 3600
	}
	if cfg.Polling.CooldownSeconds <= 0 {
		cfg.Polling.CooldownSeconds = 300
	}
	if len(cfg.Polling.Intervals) == 0 {
		cfg.Polling.Intervals = []PollingTier{
			{MinHrs: 6, MaxHrs: 24, Seconds: 4 * 3600},
			{MinHrs: 2, MaxHrs: 6, Seconds: 2 * 3600},
			{MinHrs: 1, MaxHrs: 2, Seconds: 1800},
		}
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
