// Package config loads the YAML configuration shared by the cbir tools.
package config

import (
	"fmt"
	"strings"
	"time"

	"cbir-engine/internal/feature"
	"cbir-engine/internal/saliency"
	"cbir-engine/internal/texture"

	"github.com/spf13/viper"
)

type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Extract ExtractConfig `mapstructure:"extract"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Store   StoreConfig   `mapstructure:"store"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Models  ModelsConfig  `mapstructure:"models"`
}

type LogConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

type ExtractConfig struct {
	RGBBins      int            `mapstructure:"rgb_bins"`
	ChromaRBins  int            `mapstructure:"chroma_r_bins"`
	ChromaGBins  int            `mapstructure:"chroma_g_bins"`
	GradientBins int            `mapstructure:"gradient_bins"`
	GLCMDistance int            `mapstructure:"glcm_distance"`
	GLCMLevels   int            `mapstructure:"glcm_levels"`
	Gabor        GaborConfig    `mapstructure:"gabor"`
	Saliency     SaliencyConfig `mapstructure:"saliency"`
}

type GaborConfig struct {
	Scales       int     `mapstructure:"scales"`
	Orientations int     `mapstructure:"orientations"`
	KernelSize   int     `mapstructure:"kernel_size"`
	Sigma        float64 `mapstructure:"sigma"`
	Lambda0      float64 `mapstructure:"lambda0"`
	Gamma        float64 `mapstructure:"gamma"`
	Psi          float64 `mapstructure:"psi"`
	Bins         int     `mapstructure:"bins"`
}

type SaliencyConfig struct {
	Method      string `mapstructure:"method"`
	ColorBins   int    `mapstructure:"color_bins"`
	TextureBins int    `mapstructure:"texture_bins"`
}

type EngineConfig struct {
	Workers      int `mapstructure:"workers"` // 0 means one per CPU
	TopK         int `mapstructure:"top_k"`
	BottomK      int `mapstructure:"bottom_k"`
	MaxDimension int `mapstructure:"max_dimension"` // 0 keeps full resolution
}

type CacheConfig struct {
	Backend string        `mapstructure:"backend"` // none, memory or redis
	TTL     time.Duration `mapstructure:"ttl"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type StoreConfig struct {
	Features string `mapstructure:"features"` // CSV, optionally .zst
	Bolt     string `mapstructure:"bolt"`
}

// Path returns the configured feature file, preferring the bolt database.
func (s StoreConfig) Path() string {
	if s.Bolt != "" {
		return s.Bolt
	}
	return s.Features
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type ModelsConfig struct {
	Embedding EmbeddingModelConfig `mapstructure:"embedding"`
	Detector  DetectorModelConfig  `mapstructure:"detector"`
}

type EmbeddingModelConfig struct {
	Model  string `mapstructure:"model"`
	Config string `mapstructure:"config"`
	Output string `mapstructure:"output"`
	Size   int    `mapstructure:"size"`
	SwapRB bool   `mapstructure:"swap_rb"`
}

type DetectorModelConfig struct {
	Prototxt  string  `mapstructure:"prototxt"`
	Model     string  `mapstructure:"model"`
	Classes   string  `mapstructure:"classes"`
	Threshold float64 `mapstructure:"threshold"`
}

// Load reads the YAML file at path over the defaults. Settings can also be
// overridden by CBIR_ environment variables, e.g. CBIR_ENGINE_WORKERS.
func Load(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// New loads path, or returns the defaults when path is empty. A path that
// cannot be read or parsed is an error.
func New(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// Default returns the built-in configuration.
func Default() *Config {
	v := newViper()
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("cbir")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.mode", "debug")
	v.SetDefault("log.level", "info")

	fp := feature.DefaultParams()
	v.SetDefault("extract.rgb_bins", fp.RGBBins)
	v.SetDefault("extract.chroma_r_bins", fp.ChromaRBins)
	v.SetDefault("extract.chroma_g_bins", fp.ChromaGBins)
	v.SetDefault("extract.gradient_bins", fp.GradientBins)
	v.SetDefault("extract.glcm_distance", fp.GLCMDistance)
	v.SetDefault("extract.glcm_levels", fp.GLCMLevels)
	v.SetDefault("extract.gabor.scales", fp.Gabor.Scales)
	v.SetDefault("extract.gabor.orientations", fp.Gabor.Orientations)
	v.SetDefault("extract.gabor.kernel_size", fp.Gabor.KernelSize)
	v.SetDefault("extract.gabor.sigma", fp.Gabor.Sigma)
	v.SetDefault("extract.gabor.lambda0", fp.Gabor.Lambda0)
	v.SetDefault("extract.gabor.gamma", fp.Gabor.Gamma)
	v.SetDefault("extract.gabor.psi", fp.Gabor.Psi)
	v.SetDefault("extract.gabor.bins", fp.Gabor.Bins)
	v.SetDefault("extract.saliency.method", fp.SaliencyMethod.String())
	v.SetDefault("extract.saliency.color_bins", fp.SaliencyColorBins)
	v.SetDefault("extract.saliency.texture_bins", fp.SaliencyTextureBins)

	v.SetDefault("engine.workers", 0)
	v.SetDefault("engine.top_k", 3)
	v.SetDefault("engine.bottom_k", 0)
	v.SetDefault("engine.max_dimension", 0)

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl", time.Hour)
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)

	v.SetDefault("store.features", "")
	v.SetDefault("store.bolt", "")

	v.SetDefault("metrics.enabled", false)

	v.SetDefault("models.embedding.model", "")
	v.SetDefault("models.embedding.config", "")
	v.SetDefault("models.embedding.output", "")
	v.SetDefault("models.embedding.size", 224)
	v.SetDefault("models.embedding.swap_rb", true)
	v.SetDefault("models.detector.prototxt", "")
	v.SetDefault("models.detector.model", "")
	v.SetDefault("models.detector.classes", "")
	v.SetDefault("models.detector.threshold", 0.3)
}

// FeatureParams converts the extract section to extractor parameters.
func (c *Config) FeatureParams() (feature.Params, error) {
	e := c.Extract
	method, err := saliency.ParseMethod(e.Saliency.Method)
	if err != nil {
		return feature.Params{}, err
	}
	p := feature.Params{
		RGBBins:      e.RGBBins,
		ChromaRBins:  e.ChromaRBins,
		ChromaGBins:  e.ChromaGBins,
		GradientBins: e.GradientBins,
		GLCMDistance: e.GLCMDistance,
		GLCMLevels:   e.GLCMLevels,
		Gabor: texture.GaborParams{
			Scales:       e.Gabor.Scales,
			Orientations: e.Gabor.Orientations,
			KernelSize:   e.Gabor.KernelSize,
			Sigma:        e.Gabor.Sigma,
			Lambda0:      e.Gabor.Lambda0,
			Gamma:        e.Gabor.Gamma,
			Psi:          e.Gabor.Psi,
			Bins:         e.Gabor.Bins,
		},
		SaliencyMethod:      method,
		SaliencyColorBins:   e.Saliency.ColorBins,
		SaliencyTextureBins: e.Saliency.TextureBins,
	}
	for name, n := range map[string]int{
		"rgb_bins":           p.RGBBins,
		"chroma_r_bins":      p.ChromaRBins,
		"chroma_g_bins":      p.ChromaGBins,
		"gradient_bins":      p.GradientBins,
		"glcm_levels":        p.GLCMLevels,
		"gabor.bins":         p.Gabor.Bins,
		"gabor.scales":       p.Gabor.Scales,
		"gabor.orientations": p.Gabor.Orientations,
		"gabor.kernel_size":  p.Gabor.KernelSize,
	} {
		if n <= 0 {
			return feature.Params{}, fmt.Errorf("extract.%s must be positive, got %d", name, n)
		}
	}
	for name, f := range map[string]float64{
		"gabor.sigma":   p.Gabor.Sigma,
		"gabor.lambda0": p.Gabor.Lambda0,
		"gabor.gamma":   p.Gabor.Gamma,
	} {
		if !(f > 0) {
			return feature.Params{}, fmt.Errorf("extract.%s must be positive, got %g", name, f)
		}
	}
	return p, nil
}
