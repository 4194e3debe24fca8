package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Generation providers accepted by llm.provider / LLM_PROVIDER.
const (
	ProviderAuto   = "auto"
	ProviderAzure  = "azure"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

const (
	DefaultWeatherAPIURL         = "http://api.weatherapi.com/v1"
	DefaultOpenAIModel           = "gpt-4"
	DefaultOpenAIBaseURL         = "https://api.openai.com/v1"
	DefaultAzureDeployment       = "gpt-4o"
	DefaultAzureAPIVersion       = "2024-02-15-preview"
	DefaultGeminiModel           = "gemini-2.0-flash"
	DefaultMinLocationConfidence = 0.3
	DefaultTestEquipmentID       = "PUMP_001_NYC"
)

// ConfigurationError lists every required setting that is absent.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return "missing required configuration: " + strings.Join(e.Missing, ", ")
}

// IsConfigurationError reports whether err is, or wraps, a *ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// CircuitBreakerConfig holds the optional breaker around weather provider calls.
type CircuitBreakerConfig struct {
	Enabled          bool
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
}

// Config holds service configuration loaded from YAML, secrets and env.
type Config struct {
	Env        string
	ServerPort string

	WeatherAPIKey     string
	WeatherAPIURL     string
	WeatherAPITimeout time.Duration
	CircuitBreaker    CircuitBreakerConfig

	LLMProvider string
	LLMTimeout  time.Duration

	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	AzureOpenAIAPIKey     string
	AzureOpenAIEndpoint   string
	AzureOpenAIDeployment string
	AzureOpenAIAPIVersion string

	GeminiAPIKey string
	GeminiModel  string

	// Decoding temperatures; both zero for deterministic output. LocationAgentTemperature
	// drives location generation. WeatherAgentTemperature is reserved for a generated weather
	// summary; weather results are currently formatted without a model and do not read it.
	LocationAgentTemperature float64
	WeatherAgentTemperature  float64

	MinLocationConfidence float64

	EquipmentDataset string
	TestEquipmentID  string

	RequestTimeout   time.Duration
	RateLimitRPS     int
	RateLimitBurst   int
	ShutdownTimeout  time.Duration
	HealthWindow     time.Duration
	DegradedErrorPct float64
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	WeatherAPI struct {
		URL            string `yaml:"url"`
		Timeout        string `yaml:"timeout"`
		CircuitBreaker struct {
			Enabled          bool   `yaml:"enabled"`
			FailureThreshold int    `yaml:"failure_threshold"`
			SuccessThreshold int    `yaml:"success_threshold"`
			Timeout          string `yaml:"timeout"`
		} `yaml:"circuit_breaker"`
	} `yaml:"weather_api"`

	LLM struct {
		Provider string `yaml:"provider"`
		Timeout  string `yaml:"timeout"`
		OpenAI   struct {
			Model   string `yaml:"model"`
			BaseURL string `yaml:"base_url"`
		} `yaml:"openai"`
		Azure struct {
			Endpoint   string `yaml:"endpoint"`
			Deployment string `yaml:"deployment"`
			APIVersion string `yaml:"api_version"`
		} `yaml:"azure"`
		Gemini struct {
			Model string `yaml:"model"`
		} `yaml:"gemini"`
	} `yaml:"llm"`

	Agents struct {
		LocationTemperature *float64 `yaml:"location_temperature"`
		WeatherTemperature  *float64 `yaml:"weather_temperature"`
	} `yaml:"agents"`

	Location struct {
		MinConfidence *float64 `yaml:"min_confidence"`
	} `yaml:"location"`

	Equipment struct {
		Dataset string `yaml:"dataset"`
		TestID  string `yaml:"test_id"`
	} `yaml:"equipment"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Reliability struct {
		RateLimitRPS   int `yaml:"rate_limit_rps"`
		RateLimitBurst int `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`

	Health struct {
		Window           string  `yaml:"window"`
		DegradedErrorPct float64 `yaml:"degraded_error_pct"`
	} `yaml:"health"`
}

type secretsFile struct {
	WeatherAPIKey       string `yaml:"weather_api_key"`
	OpenAIAPIKey        string `yaml:"openai_api_key"`
	AzureOpenAIAPIKey   string `yaml:"azure_openai_api_key"`
	AzureOpenAIEndpoint string `yaml:"azure_openai_endpoint"`
	GeminiAPIKey        string `yaml:"gemini_api_key"`
}

// Load reads settings (see LoadSettings) and then requires weather and generation
// credentials. A missing credential yields a *ConfigurationError.
func Load() (*Config, error) {
	cfg, err := LoadSettings()
	if err != nil {
		return nil, err
	}
	if err := cfg.RequireCredentials(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadSettings reads config/{ENV_NAME}.yaml (default dev) and config/secrets.yaml relative
// to the working directory, then applies environment overrides. Missing files fall back to
// defaults; malformed files are errors. Credentials are not required.
func LoadSettings() (*Config, error) {
	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}

	var fc fileConfig
	configPath := filepath.Join(cwd, "config", env+".yaml")
	if data, err := os.ReadFile(configPath); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", configPath, err)
	}

	var sec secretsFile
	secretsPath := filepath.Join(cwd, "config", "secrets.yaml")
	if data, err := os.ReadFile(secretsPath); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read secrets file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &sec); err != nil {
		return nil, fmt.Errorf("parse secrets file: %w", err)
	}

	cfg := &Config{Env: env}

	cfg.ServerPort = firstSet(os.Getenv("PORT"), fc.Server.Port, "8080")

	cfg.WeatherAPIKey = credential(os.Getenv("WEATHER_API_KEY"), sec.WeatherAPIKey)
	cfg.WeatherAPIURL = strings.TrimRight(firstSet(os.Getenv("WEATHER_API_URL"), fc.WeatherAPI.URL, DefaultWeatherAPIURL), "/")
	cfg.WeatherAPITimeout = parseDurationOrZero(fc.WeatherAPI.Timeout, 10*time.Second)
	cfg.CircuitBreaker = CircuitBreakerConfig{
		Enabled:          fc.WeatherAPI.CircuitBreaker.Enabled,
		FailureThreshold: fc.WeatherAPI.CircuitBreaker.FailureThreshold,
		SuccessThreshold: fc.WeatherAPI.CircuitBreaker.SuccessThreshold,
		Timeout:          parseDuration(fc.WeatherAPI.CircuitBreaker.Timeout, 30*time.Second),
	}
	if cfg.CircuitBreaker.FailureThreshold <= 0 {
		cfg.CircuitBreaker.FailureThreshold = 5
	}
	if cfg.CircuitBreaker.SuccessThreshold <= 0 {
		cfg.CircuitBreaker.SuccessThreshold = 2
	}

	cfg.LLMProvider = strings.ToLower(firstSet(os.Getenv("LLM_PROVIDER"), fc.LLM.Provider, ProviderAuto))
	cfg.LLMTimeout = parseDuration(fc.LLM.Timeout, 60*time.Second)

	cfg.OpenAIAPIKey = credential(os.Getenv("OPENAI_API_KEY"), sec.OpenAIAPIKey)
	cfg.OpenAIModel = firstSet(os.Getenv("OPENAI_MODEL"), fc.LLM.OpenAI.Model, DefaultOpenAIModel)
	cfg.OpenAIBaseURL = strings.TrimRight(firstSet(os.Getenv("OPENAI_BASE_URL"), fc.LLM.OpenAI.BaseURL, DefaultOpenAIBaseURL), "/")

	cfg.AzureOpenAIAPIKey = credential(os.Getenv("AZURE_OPENAI_API_KEY"), sec.AzureOpenAIAPIKey)
	cfg.AzureOpenAIEndpoint = credential(os.Getenv("AZURE_OPENAI_ENDPOINT"), firstSet(sec.AzureOpenAIEndpoint, fc.LLM.Azure.Endpoint))
	cfg.AzureOpenAIDeployment = firstSet(os.Getenv("AZURE_OPENAI_DEPLOYMENT_NAME"), fc.LLM.Azure.Deployment, DefaultAzureDeployment)
	cfg.AzureOpenAIAPIVersion = firstSet(os.Getenv("AZURE_OPENAI_API_VERSION"), fc.LLM.Azure.APIVersion, DefaultAzureAPIVersion)

	cfg.GeminiAPIKey = credential(os.Getenv("GEMINI_API_KEY"), sec.GeminiAPIKey)
	cfg.GeminiModel = firstSet(os.Getenv("GEMINI_MODEL"), fc.LLM.Gemini.Model, DefaultGeminiModel)

	if fc.Agents.LocationTemperature != nil {
		cfg.LocationAgentTemperature = *fc.Agents.LocationTemperature
	}
	if fc.Agents.WeatherTemperature != nil {
		cfg.WeatherAgentTemperature = *fc.Agents.WeatherTemperature
	}

	cfg.MinLocationConfidence = DefaultMinLocationConfidence
	if fc.Location.MinConfidence != nil {
		cfg.MinLocationConfidence = *fc.Location.MinConfidence
	}
	if v := strings.TrimSpace(os.Getenv("MIN_LOCATION_CONFIDENCE")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("MIN_LOCATION_CONFIDENCE: %w", err)
		}
		cfg.MinLocationConfidence = f
	}

	cfg.EquipmentDataset = firstSet(os.Getenv("EQUIPMENT_DATASET"), fc.Equipment.Dataset)
	cfg.TestEquipmentID = firstSet(os.Getenv("TEST_EQUIPMENT_ID"), fc.Equipment.TestID, DefaultTestEquipmentID)

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 30*time.Second)
	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 5
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 10
	}
	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.HealthWindow = parseDuration(fc.Health.Window, 60*time.Second)
	cfg.DegradedErrorPct = fc.Health.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 50
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// HasAzure reports whether Azure OpenAI key and endpoint are both set.
func (c *Config) HasAzure() bool {
	return c.AzureOpenAIAPIKey != "" && c.AzureOpenAIEndpoint != ""
}

// ResolvedProvider returns the generation provider to use, or "" when none is configured.
// In auto mode Azure wins over OpenAI, which wins over Gemini.
func (c *Config) ResolvedProvider() string {
	switch c.LLMProvider {
	case ProviderAzure:
		if c.HasAzure() {
			return ProviderAzure
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey != "" {
			return ProviderOpenAI
		}
	case ProviderGemini:
		if c.GeminiAPIKey != "" {
			return ProviderGemini
		}
	default:
		switch {
		case c.HasAzure():
			return ProviderAzure
		case c.OpenAIAPIKey != "":
			return ProviderOpenAI
		case c.GeminiAPIKey != "":
			return ProviderGemini
		}
	}
	return ""
}

// RequireCredentials returns a *ConfigurationError naming every missing credential.
func (c *Config) RequireCredentials() error {
	var missing []string
	if c.WeatherAPIKey == "" {
		missing = append(missing, "WEATHER_API_KEY")
	}
	if c.ResolvedProvider() == "" {
		switch c.LLMProvider {
		case ProviderAzure:
			missing = append(missing, "AZURE_OPENAI_API_KEY+AZURE_OPENAI_ENDPOINT")
		case ProviderOpenAI:
			missing = append(missing, "OPENAI_API_KEY")
		case ProviderGemini:
			missing = append(missing, "GEMINI_API_KEY")
		default:
			missing = append(missing, "OPENAI_API_KEY or AZURE_OPENAI_API_KEY+AZURE_OPENAI_ENDPOINT or GEMINI_API_KEY")
		}
	}
	if len(missing) > 0 {
		return &ConfigurationError{Missing: missing}
	}
	return nil
}

// isPlaceholder reports values copied unedited from the example secrets, e.g. YOUR_WEATHER_API_KEY_HERE.
func isPlaceholder(v string) bool {
	u := strings.ToUpper(v)
	return strings.HasPrefix(u, "YOUR_") && strings.HasSuffix(u, "_HERE")
}

// credential picks the first non-placeholder, non-empty value.
func credential(vals ...string) string {
	for _, v := range vals {
		v = strings.TrimSpace(v)
		if v != "" && !isPlaceholder(v) {
			return v
		}
	}
	return ""
}

func firstSet(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Zero or negative durations are returned as-is for validate to reject.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate performs post-load checks. RequestTimeout is raised above WeatherAPITimeout if needed.
func validate(cfg *Config) error {
	if cfg.WeatherAPITimeout <= 0 {
		return fmt.Errorf("WEATHER_API_TIMEOUT must be positive")
	}
	if cfg.RequestTimeout <= cfg.WeatherAPITimeout {
		cfg.RequestTimeout = cfg.WeatherAPITimeout + time.Second
	}
	if cfg.MinLocationConfidence < 0 || cfg.MinLocationConfidence > 1 {
		return fmt.Errorf("location.min_confidence must be within [0,1], got %v", cfg.MinLocationConfidence)
	}
	switch cfg.LLMProvider {
	case ProviderAuto, ProviderAzure, ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("llm.provider must be auto, azure, openai or gemini, got %q", cfg.LLMProvider)
	}
	return nil
}
