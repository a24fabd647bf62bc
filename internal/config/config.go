package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// LLMConfig configures the OpenAI compatible completion endpoint.
type LLMConfig struct {
	BaseURL        string
	Model          string
	Temperature    float64
	MaxTokens      int
	APIKey         string
	RequestTimeout time.Duration
	MaxRetries     int
}

// OCRConfig configures handwriting extraction.
type OCRConfig struct {
	TesseractPath string
	DockerImage   string
	// DockerEnabled turns on the containerised engine when the local binary is missing.
	DockerEnabled bool
	Timeout       time.Duration
	MaxUploadMB   int
	MaxPages      int
}

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName           string
	AppEnv            string
	AppPort           string
	LLM               LLMConfig
	EvaluationTimeout time.Duration
	MaxEssayChars     int
	JWTSecret         string
	NATSURL           string
	NATSSubject       string
	DockerHost        string
	OCR               OCRConfig
	RateLimitMax      int
	RateLimitWindow   time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("ESSAY")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// The provider's own variable name is honoured so existing shells keep working.
	if err := v.BindEnv("llm.api_key", "ESSAY_LLM_API_KEY", "OPENROUTER_API_KEY"); err != nil {
		return Config{}, fmt.Errorf("bind llm api key: %w", err)
	}

	v.SetDefault("app.name", "Essay Evaluator API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("llm.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("llm.model", "mistralai/mistral-7b-instruct:free")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 0)
	v.SetDefault("llm.request_timeout", "60s")
	v.SetDefault("llm.max_retries", 0)
	v.SetDefault("evaluation.timeout", "120s")
	v.SetDefault("max_essay_chars", 20000)
	v.SetDefault("nats.subject", "essay.evaluation.completed")
	v.SetDefault("ocr.tesseract_path", "tesseract")
	v.SetDefault("ocr.docker_image", "jitesoft/tesseract-ocr:latest")
	v.SetDefault("ocr.docker_enabled", false)
	v.SetDefault("ocr.timeout", "60s")
	v.SetDefault("ocr.max_upload_mb", 10)
	v.SetDefault("ocr.max_pages", 10)
	v.SetDefault("rate_limit.max", 10)
	v.SetDefault("rate_limit.window", "1m")

	requestTimeout, err := parseDuration(v, "llm.request_timeout")
	if err != nil {
		return Config{}, err
	}
	evaluationTimeout, err := parseDuration(v, "evaluation.timeout")
	if err != nil {
		return Config{}, err
	}
	ocrTimeout, err := parseDuration(v, "ocr.timeout")
	if err != nil {
		return Config{}, err
	}
	rateWindow, err := parseDuration(v, "rate_limit.window")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName: v.GetString("app.name"),
		AppEnv:  v.GetString("app.env"),
		AppPort: v.GetString("app.port"),
		LLM: LLMConfig{
			BaseURL:        strings.TrimRight(strings.TrimSpace(v.GetString("llm.base_url")), "/"),
			Model:          strings.TrimSpace(v.GetString("llm.model")),
			Temperature:    v.GetFloat64("llm.temperature"),
			MaxTokens:      v.GetInt("llm.max_tokens"),
			APIKey:         strings.TrimSpace(v.GetString("llm.api_key")),
			RequestTimeout: requestTimeout,
			MaxRetries:     v.GetInt("llm.max_retries"),
		},
		EvaluationTimeout: evaluationTimeout,
		MaxEssayChars:     v.GetInt("max_essay_chars"),
		JWTSecret:         v.GetString("jwt.secret"),
		NATSURL:           strings.TrimSpace(v.GetString("nats.url")),
		NATSSubject:       strings.TrimSpace(v.GetString("nats.subject")),
		DockerHost:        v.GetString("docker_host"),
		OCR: OCRConfig{
			TesseractPath: v.GetString("ocr.tesseract_path"),
			DockerImage:   v.GetString("ocr.docker_image"),
			DockerEnabled: v.GetBool("ocr.docker_enabled"),
			Timeout:       ocrTimeout,
			MaxUploadMB:   v.GetInt("ocr.max_upload_mb"),
			MaxPages:      v.GetInt("ocr.max_pages"),
		},
		RateLimitMax:    v.GetInt("rate_limit.max"),
		RateLimitWindow: rateWindow,
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.LLM.BaseURL == "" {
		return fmt.Errorf("llm base url must be provided")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm model must be provided")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm temperature must be between 0 and 2, got %v", c.LLM.Temperature)
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("llm max retries must not be negative")
	}
	if c.LLM.MaxTokens < 0 {
		return fmt.Errorf("llm max tokens must not be negative")
	}
	return nil
}

// parseDuration accepts Go duration strings; "0" disables the limit.
func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" || raw == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return d, nil
}
