package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/signalbot/internal/domain"
	"github.com/alejandrodnm/signalbot/internal/domain/indicator"
	"github.com/alejandrodnm/signalbot/internal/domain/signal"
)

// Config es la configuración completa del bot.
type Config struct {
	Scheduler SchedulerConfig  `yaml:"scheduler"`
	Exchange  ExchangeConfig   `yaml:"exchange"`
	Paper     PaperConfig      `yaml:"paper"`
	Cache     CacheConfig      `yaml:"cache"`
	Redis     RedisConfig      `yaml:"redis"`
	Storage   StorageConfig    `yaml:"storage"`
	Log       LogConfig        `yaml:"log"`
	Metrics   MetricsConfig    `yaml:"metrics"`
	Tracing   TracingConfig    `yaml:"tracing"`
	Profiles  []signal.Profile `yaml:"temperature_profiles"`
	Bots      []BotConfig      `yaml:"bots"`
}

// SchedulerConfig controla el loop de evaluación.
type SchedulerConfig struct {
	IntervalSeconds       int `yaml:"interval_seconds"`
	Workers               int `yaml:"workers"` // 0 = NumCPU*2
	FetchTimeoutSeconds   int `yaml:"fetch_timeout_seconds"`
	ExecuteTimeoutSeconds int `yaml:"execute_timeout_seconds"`
}

// ExchangeConfig contiene el base URL del exchange y la API key.
// Con Live=false las órdenes van al exchange simulado.
type ExchangeConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`    // normalmente vía EXCHANGE_API_KEY
	APISecret string `yaml:"api_secret"` // firma de órdenes, vía EXCHANGE_API_SECRET
	Live      bool   `yaml:"live"`
}

// PaperConfig configura el exchange simulado.
type PaperConfig struct {
	StartBalance float64 `yaml:"start_balance"`
	FeeRate      float64 `yaml:"fee_rate"`
}

// CacheConfig controla la caché de series en memoria.
type CacheConfig struct {
	TTLSeconds int `yaml:"ttl_seconds"`
}

// RedisConfig activa la caché compartida cuando Addr no está vacío.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
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

// MetricsConfig expone /metrics cuando Addr no está vacío.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// TracingConfig activa el exporter de spans a stdout.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// BotConfig es la definición declarativa de un bot en el YAML.
// Confirmación, cooldown y loss cap son punteros: un 0 explícito desactiva el
// control y solo la key ausente toma el default.
type BotConfig struct {
	ID                  string                  `yaml:"id" validate:"required"`
	Asset               string                  `yaml:"asset" validate:"required"`
	Granularity         string                  `yaml:"granularity" default:"5m" validate:"oneof=1m 5m 15m 1h 4h 1d"`
	Lookback            int                     `yaml:"lookback" default:"120" validate:"gte=1,lte=5000"`
	Signals             map[string]SignalConfig `yaml:"signal_config" validate:"required,min=1,dive"`
	BuyThreshold        float64                 `yaml:"buy_threshold" default:"0.05" validate:"gt=0,lte=1"`
	SellThreshold       float64                 `yaml:"sell_threshold" default:"-0.05" validate:"gte=-1,lt=0"`
	Renormalize         bool                    `yaml:"renormalize"`
	ConfirmationMinutes *float64                `yaml:"confirmation_minutes" default:"5" validate:"gte=0"`
	CooldownMinutes     *float64                `yaml:"cooldown_minutes" default:"30" validate:"gte=0"`
	PositionSize        float64                 `yaml:"position_size" default:"25" validate:"gt=0"`
	MinPositionSize     float64                 `yaml:"min_position_size" validate:"gte=0"`
	MaxPositionSize     float64                 `yaml:"max_position_size" default:"500" validate:"gt=0"`
	MinTemperature      string                  `yaml:"min_temperature" default:"WARM" validate:"oneof=FROZEN COOL WARM HOT frozen cool warm hot"`
	DailyLossCap        *float64                `yaml:"daily_loss_cap" default:"100" validate:"gte=0"`
	Profile             string                  `yaml:"temperature_profile" default:"conservative"`
}

// SignalConfig configura un indicador dentro de un bot.
// Enabled omitido equivale a true.
type SignalConfig struct {
	Enabled *bool              `yaml:"enabled"`
	Weight  float64            `yaml:"weight" validate:"gte=0,lte=1"`
	Params  map[string]float64 `yaml:"params"`
}

var validate = validator.New()

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
// Bots y perfiles se validan aquí: una configuración inválida nunca llega a
// la evaluación.
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

	if _, err := cfg.TemperatureProfiles(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if _, err := cfg.DomainBots(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// Interval devuelve el intervalo de evaluación como time.Duration.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Scheduler.IntervalSeconds) * time.Second
}

// FetchTimeout devuelve el límite de cada descarga de velas.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Scheduler.FetchTimeoutSeconds) * time.Second
}

// ExecuteTimeout devuelve el límite de cada orden.
func (c *Config) ExecuteTimeout() time.Duration {
	return time.Duration(c.Scheduler.ExecuteTimeoutSeconds) * time.Second
}

// CacheTTL devuelve la frescura de una serie cacheada.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// TemperatureProfiles devuelve los perfiles integrados más los definidos en
// el YAML. Un perfil del YAML con el mismo nombre reemplaza al integrado.
func (c *Config) TemperatureProfiles() (signal.Profiles, error) {
	profiles := signal.DefaultProfiles()
	for _, p := range c.Profiles {
		if p.Name == "" {
			return nil, domain.NewConfigError("temperature_profiles", "profile without name")
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		profiles[p.Name] = p
	}
	return profiles, nil
}

// DomainBots aplica defaults, valida y convierte cada BotConfig a domain.Bot.
func (c *Config) DomainBots() ([]domain.Bot, error) {
	profiles, err := c.TemperatureProfiles()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(c.Bots))
	out := make([]domain.Bot, 0, len(c.Bots))
	for i := range c.Bots {
		bc := c.Bots[i]
		bot, err := bc.toDomain()
		if err != nil {
			return nil, fmt.Errorf("bots[%d]: %w", i, err)
		}
		if seen[bot.ID] {
			return nil, fmt.Errorf("bots[%d]: %w", i, domain.NewConfigError("id", "duplicate bot id %q", bot.ID))
		}
		seen[bot.ID] = true
		if _, err := profiles.Lookup(bot.Profile); err != nil {
			return nil, fmt.Errorf("bots[%d]: %w", i, err)
		}
		out = append(out, bot)
	}
	return out, nil
}

func (bc BotConfig) toDomain() (domain.Bot, error) {
	if err := defaults.Set(&bc); err != nil {
		return domain.Bot{}, fmt.Errorf("defaults: %w", err)
	}
	if err := validate.Struct(&bc); err != nil {
		return domain.Bot{}, fromValidation(err)
	}

	temp, err := domain.ParseTemperature(bc.MinTemperature)
	if err != nil {
		return domain.Bot{}, domain.NewConfigError("min_temperature", "%v", err)
	}

	signals := make(map[string]domain.IndicatorConfig, len(bc.Signals))
	for name, sc := range bc.Signals {
		enabled := sc.Enabled == nil || *sc.Enabled
		signals[name] = domain.IndicatorConfig{Type: name, Enabled: enabled, Weight: sc.Weight, Params: sc.Params}
	}

	bot := domain.Bot{
		ID:                  bc.ID,
		Asset:               bc.Asset,
		Granularity:         domain.Granularity(bc.Granularity),
		Lookback:            bc.Lookback,
		Signals:             signals,
		BuyThreshold:        bc.BuyThreshold,
		SellThreshold:       bc.SellThreshold,
		Renormalize:         bc.Renormalize,
		ConfirmationMinutes: *bc.ConfirmationMinutes,
		CooldownMinutes:     *bc.CooldownMinutes,
		PositionSize:        bc.PositionSize,
		MinPositionSize:     bc.MinPositionSize,
		MaxPositionSize:     bc.MaxPositionSize,
		MinTemperature:      temp,
		DailyLossCap:        *bc.DailyLossCap,
		Profile:             bc.Profile,
	}
	if err := indicator.ValidateBot(bot); err != nil {
		return domain.Bot{}, err
	}
	return bot, nil
}

// fromValidation convierte el primer error del validator en un
// ConfigurationError con el path del campo.
func fromValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return domain.NewConfigError("", "%v", err)
	}
	fe := verrs[0]
	if fe.Param() != "" {
		return domain.NewConfigError(fe.Namespace(), "failed %s=%s (got %v)", fe.Tag(), fe.Param(), fe.Value())
	}
	return domain.NewConfigError(fe.Namespace(), "failed %s", fe.Tag())
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("EXCHANGE_BASE_URL"); v != "" {
		cfg.Exchange.BaseURL = v
	}
	if v := os.Getenv("EXCHANGE_API_KEY"); v != "" {
		cfg.Exchange.APIKey = v
	}
	if v := os.Getenv("EXCHANGE_API_SECRET"); v != "" {
		cfg.Exchange.APISecret = v
	}
	if v := os.Getenv("SIGNALBOT_DB"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("TRACING_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Tracing.Enabled = b
		}
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Scheduler.IntervalSeconds <= 0 {
		cfg.Scheduler.IntervalSeconds = 60
	}
	if cfg.Scheduler.FetchTimeoutSeconds <= 0 {
		cfg.Scheduler.FetchTimeoutSeconds = 10
	}
	if cfg.Scheduler.ExecuteTimeoutSeconds <= 0 {
		cfg.Scheduler.ExecuteTimeoutSeconds = 15
	}
	if cfg.Exchange.BaseURL == "" {
		cfg.Exchange.BaseURL = "http://localhost:8080"
	}
	if cfg.Paper.StartBalance <= 0 {
		cfg.Paper.StartBalance = 1000
	}
	if cfg.Paper.FeeRate < 0 {
		cfg.Paper.FeeRate = 0
	}
	if cfg.Cache.TTLSeconds <= 0 {
		cfg.Cache.TTLSeconds = 30
	}
	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = "signalbot"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "signalbot.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
