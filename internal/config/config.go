package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// Config is built once at startup and handed to every stage.
type Config struct {
	Job           Job           `yaml:"job"`
	SMTP          SMTP          `yaml:"smtp"`
	Output        Output        `yaml:"output"`
	Audio         Audio         `yaml:"audio"`
	Transcription Transcription `yaml:"transcription"`
	Log           Log           `yaml:"log"`
}

type Job struct {
	CustomerEmail  string `yaml:"customer_email"`
	SourceURL      string `yaml:"source_url"`
	LocalFile      string `yaml:"local_file"`
	NonInteractive bool   `yaml:"non_interactive"`
}

type SMTP struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	User      string `yaml:"user"`
	Pass      string `yaml:"pass"`
	From      string `yaml:"from"`
	TLSPolicy string `yaml:"tls_policy"` // mandatory|opportunistic|none
}

type Output struct {
	Dir          string `yaml:"dir"`
	SegmentsXLSX bool   `yaml:"segments_xlsx"`
}

type Audio struct {
	TempDir  string `yaml:"temp_dir"`
	Keep     bool   `yaml:"keep"`
	Progress bool   `yaml:"progress"`
}

type Transcription struct {
	Backend       string `yaml:"backend"` // whispercpp|openai|native
	Device        string `yaml:"device"`  // auto|cpu|cuda
	Model         string `yaml:"model"`
	ModelDir      string `yaml:"model_dir"`
	WhisperBin    string `yaml:"whisper_bin"`
	FFmpegBin     string `yaml:"ffmpeg_bin"`
	Language      string `yaml:"language"`
	OpenAIKey     string `yaml:"openai_api_key"`
	OpenAIBaseURL string `yaml:"openai_base_url"`
	OpenAIModel   string `yaml:"openai_model"`
}

type Log struct {
	Level       string `yaml:"level"`
	Environment string `yaml:"environment"`
}

const (
	BackendWhisperCpp = "whispercpp"
	BackendOpenAI     = "openai"
	BackendNative     = "native"

	DeviceAuto = "auto"
	DeviceCPU  = "cpu"
	DeviceCUDA = "cuda"
)

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		SMTP: SMTP{
			Port:      587,
			TLSPolicy: "mandatory",
		},
		Output: Output{
			Dir: "output",
		},
		Transcription: Transcription{
			Backend:     BackendWhisperCpp,
			Device:      DeviceAuto,
			ModelDir:    defaultModelDir(),
			WhisperBin:  "whisper-cli",
			FFmpegBin:   "ffmpeg",
			OpenAIModel: "whisper-1",
		},
		Log: Log{
			Level: "info",
		},
	}
}

func defaultModelDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "quickscribe", "models")
	}
	return "models"
}

// Load layers defaults, an optional YAML file and the process environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg, os.Getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides cfg with every non-empty variable returned by getenv.
func applyEnv(cfg *Config, getenv func(string) string) error {
	str := func(dst *string, key string) {
		*dst = lo.Ternary(getenv(key) != "", strings.TrimSpace(getenv(key)), *dst)
	}
	var errs []error
	boolean := func(dst *bool, key string) {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: invalid boolean %q", key, v))
			return
		}
		*dst = b
	}

	str(&cfg.Job.CustomerEmail, "CUSTOMER_EMAIL")
	str(&cfg.Job.SourceURL, "ZOOM_URL")
	str(&cfg.Job.LocalFile, "LOCAL_FILE")
	boolean(&cfg.Job.NonInteractive, "QUICKSCRIBE_NON_INTERACTIVE")

	str(&cfg.SMTP.Host, "SMTP_HOST")
	if v := strings.TrimSpace(getenv("SMTP_PORT")); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("SMTP_PORT: invalid port %q", v))
		} else {
			cfg.SMTP.Port = port
		}
	}
	str(&cfg.SMTP.User, "SMTP_USER")
	// passwords may legitimately carry surrounding spaces
	cfg.SMTP.Pass = lo.Ternary(getenv("SMTP_PASS") != "", getenv("SMTP_PASS"), cfg.SMTP.Pass)
	str(&cfg.SMTP.From, "FROM_EMAIL")
	str(&cfg.SMTP.TLSPolicy, "SMTP_TLS_POLICY")

	str(&cfg.Output.Dir, "OUTPUT_DIR")
	boolean(&cfg.Output.SegmentsXLSX, "SEGMENTS_XLSX")

	str(&cfg.Audio.TempDir, "AUDIO_TMP_DIR")
	boolean(&cfg.Audio.Keep, "KEEP_AUDIO")

	str(&cfg.Transcription.Backend, "TRANSCRIBE_BACKEND")
	str(&cfg.Transcription.Device, "WHISPER_DEVICE")
	str(&cfg.Transcription.Model, "WHISPER_MODEL")
	str(&cfg.Transcription.ModelDir, "WHISPER_MODEL_DIR")
	str(&cfg.Transcription.WhisperBin, "WHISPER_BIN")
	str(&cfg.Transcription.FFmpegBin, "FFMPEG_BIN")
	str(&cfg.Transcription.Language, "WHISPER_LANGUAGE")
	str(&cfg.Transcription.OpenAIKey, "OPENAI_API_KEY")
	str(&cfg.Transcription.OpenAIBaseURL, "OPENAI_BASE_URL")
	str(&cfg.Transcription.OpenAIModel, "OPENAI_TRANSCRIBE_MODEL")

	str(&cfg.Log.Level, "LOG_LEVEL")
	str(&cfg.Log.Environment, "ENVIRONMENT")

	return errors.Join(errs...)
}

// Validate rejects values no stage can act on.
func (c Config) Validate() error {
	var errs []error
	if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("smtp port out of range: %d", c.SMTP.Port))
	}
	if !lo.Contains([]string{"mandatory", "opportunistic", "none"}, c.SMTP.TLSPolicy) {
		errs = append(errs, fmt.Errorf("unknown smtp tls policy: %s", c.SMTP.TLSPolicy))
	}
	if !lo.Contains([]string{BackendWhisperCpp, BackendOpenAI, BackendNative}, c.Transcription.Backend) {
		errs = append(errs, fmt.Errorf("unknown transcription backend: %s (supported: whispercpp, openai, native)", c.Transcription.Backend))
	}
	if !lo.Contains([]string{DeviceAuto, DeviceCPU, DeviceCUDA}, c.Transcription.Device) {
		errs = append(errs, fmt.Errorf("unknown device: %s (supported: auto, cpu, cuda)", c.Transcription.Device))
	}
	if c.Transcription.Backend == BackendOpenAI && c.Transcription.OpenAIKey == "" {
		errs = append(errs, errors.New("openai backend selected but OPENAI_API_KEY is missing"))
	}
	if strings.TrimSpace(c.Output.Dir) == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	return errors.Join(errs...)
}
