package config

import (
	_ "embed"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Match strategies selectable through MATCH_STRATEGY.
const (
	StrategyDescriptor = "descriptor"
	StrategyClassifier = "classifier"
)

type Config struct {
	DataDir    string           `yaml:"data_dir"`
	Match      MatchConfig      `yaml:"match"`
	Session    SessionConfig    `yaml:"session"`
	Detector   DetectorConfig   `yaml:"detector"`
	Descriptor DescriptorConfig `yaml:"descriptor"`
	Database   DatabaseConfig   `yaml:"-"`
	Web        WebConfig        `yaml:"web"`
}

type MatchConfig struct {
	Strategy            string  `yaml:"strategy"`             // descriptor or classifier
	Tolerance           float64 `yaml:"tolerance"`            // max descriptor distance accepted
	ClassifierThreshold float64 `yaml:"classifier_threshold"` // max classifier confidence accepted
	// ExcludedPrefixes lists username prefixes (case-insensitive) that are never marked present.
	ExcludedPrefixes []string `yaml:"excluded_prefixes"`
	// UseIndex enables the HNSW candidate index for descriptor matching.
	UseIndex bool `yaml:"use_index"`
	// ClassifierBackend selects the classifier implementation: lbph or opencv.
	ClassifierBackend string `yaml:"classifier_backend"`
}

type SessionConfig struct {
	// Camera is a device index or a directory of frame images.
	Camera           string `yaml:"camera"`
	MaxFrameFailures int    `yaml:"max_frame_failures"`
	SampleCount      int    `yaml:"sample_count"` // face crops captured per student for training
	// SampleMinDistance skips crops whose perceptual hash is closer than this
	// to an already saved one. Zero keeps every crop.
	SampleMinDistance int `yaml:"sample_min_distance"`
}

type DetectorConfig struct {
	Cascade          string  `yaml:"cascade"` // pigo cascade file
	MinSize          int     `yaml:"min_size"`
	MaxSize          int     `yaml:"max_size"`
	ShiftFactor      float64 `yaml:"shift_factor"`
	ScaleFactor      float64 `yaml:"scale_factor"`
	QualityThreshold float64 `yaml:"quality_threshold"`
}

type DescriptorConfig struct {
	Backend   string `yaml:"backend"` // remote or dlib
	URL       string `yaml:"url"`     // remote descriptor service
	Model     string `yaml:"model"`   // model name for reference only
	ModelsDir string `yaml:"models_dir"`
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL for the mirror (optional)
	MaxOpenConns int
	MaxIdleConns int
}

type WebConfig struct {
	Port           int    `yaml:"port"`
	Host           string `yaml:"host"`
	Password       string `yaml:"-"` // dashboard password, empty disables auth
	SessionSecret  string `yaml:"-"`
	AllowedOrigins string `yaml:"-"`
}

// envInt reads an environment variable and parses it as a non-negative integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a positive float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return defaultVal
	}
	return b
}

// splitList splits a comma-separated list, dropping empty items.
func splitList(s string) []string {
	var out []string
	for item := range strings.SplitSeq(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Defaults returns the configuration embedded in defaults.yaml.
func Defaults() *Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return &cfg
}

func Load() *Config {
	cfg := Defaults()

	cfg.DataDir = envString("DATA_DIR", cfg.DataDir)

	cfg.Match.Strategy = strings.ToLower(envString("MATCH_STRATEGY", cfg.Match.Strategy))
	cfg.Match.Tolerance = envFloat("MATCH_TOLERANCE", cfg.Match.Tolerance)
	cfg.Match.ClassifierThreshold = envFloat("CLASSIFIER_THRESHOLD", cfg.Match.ClassifierThreshold)
	if s := os.Getenv("EXCLUDED_PREFIXES"); s != "" {
		cfg.Match.ExcludedPrefixes = splitList(s)
	}
	cfg.Match.UseIndex = envBool("DESCRIPTOR_INDEX", cfg.Match.UseIndex)
	cfg.Match.ClassifierBackend = strings.ToLower(envString("CLASSIFIER_BACKEND", cfg.Match.ClassifierBackend))

	cfg.Session.Camera = envString("CAMERA_DEVICE", cfg.Session.Camera)
	cfg.Session.MaxFrameFailures = envInt("MAX_FRAME_FAILURES", cfg.Session.MaxFrameFailures)
	cfg.Session.SampleCount = envInt("SAMPLE_COUNT", cfg.Session.SampleCount)
	cfg.Session.SampleMinDistance = envInt("SAMPLE_MIN_DISTANCE", cfg.Session.SampleMinDistance)

	cfg.Detector.Cascade = envString("PIGO_CASCADE", cfg.Detector.Cascade)
	cfg.Detector.MinSize = envInt("DETECTOR_MIN_SIZE", cfg.Detector.MinSize)

	cfg.Descriptor.Backend = strings.ToLower(envString("DESCRIPTOR_BACKEND", cfg.Descriptor.Backend))
	cfg.Descriptor.URL = envString("DESCRIPTOR_URL", cfg.Descriptor.URL)
	cfg.Descriptor.ModelsDir = envString("DLIB_MODELS_DIR", cfg.Descriptor.ModelsDir)

	cfg.Database = DatabaseConfig{
		URL:          os.Getenv("DATABASE_URL"),
		MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 5),
		MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 2),
	}

	cfg.Web.Port = envInt("WEB_PORT", cfg.Web.Port)
	cfg.Web.Host = envString("WEB_HOST", cfg.Web.Host)
	cfg.Web.Password = os.Getenv("WEB_PASSWORD")
	cfg.Web.SessionSecret = os.Getenv("WEB_SESSION_SECRET")
	cfg.Web.AllowedOrigins = os.Getenv("WEB_ALLOWED_ORIGINS")

	return cfg
}

// Path resolves a file name relative to the data directory.
func (c *Config) Path(elem ...string) string {
	return filepath.Join(append([]string{c.DataDir}, elem...)...)
}

// IsClassifier reports whether the trained-classifier strategy is selected.
func (c *Config) IsClassifier() bool {
	return c.Match.Strategy == StrategyClassifier
}
