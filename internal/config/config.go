package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Server struct {
	Port          string `yaml:"port"`
	MaxUploadSize int64  `yaml:"max_upload_size"`
	UploadDir     string `yaml:"upload_dir"`
}

type Video struct {
	Stride      int     `yaml:"stride"`
	CascadePath string  `yaml:"cascade_path"`
	MinQuality  float64 `yaml:"min_quality"`
}

type Services struct {
	EmotionURL string `yaml:"emotion_url"`
}

type Narrative struct {
	APIKey          string `yaml:"api_key"`
	Model           string `yaml:"model"`
	PollIntervalSec int    `yaml:"poll_interval_sec"`
	TimeoutSec      int    `yaml:"timeout_sec"`
}

type Database struct {
	Path string `yaml:"path"`
}

type Root struct {
	Server    Server    `yaml:"server"`
	Video     Video     `yaml:"video"`
	Services  Services  `yaml:"services"`
	Narrative Narrative `yaml:"narrative"`
	Database  Database  `yaml:"database"`
}

// Load reads config.yaml if present, fills in defaults, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Root, error) {
	cfg := defaults()

	if path == "" {
		path = "config.yaml"
	}
	if f, err := os.Open(path); err == nil {
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func defaults() *Root {
	return &Root{
		Server: Server{
			Port:          "8080",
			MaxUploadSize: 104857600,
			UploadDir:     "./uploads",
		},
		Video: Video{
			Stride:      10,
			CascadePath: "./cascade/facefinder",
			MinQuality:  5.0,
		},
		Services: Services{
			EmotionURL: "http://localhost:5005",
		},
		Narrative: Narrative{
			Model:           "gemini-2.5-pro",
			PollIntervalSec: 1,
			TimeoutSec:      120,
		},
		Database: Database{
			Path: "./podium.db",
		},
	}
}

func applyEnv(cfg *Root) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("MAX_UPLOAD_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Server.MaxUploadSize = n
		}
	}
	if v := os.Getenv("UPLOAD_DIR"); v != "" {
		cfg.Server.UploadDir = v
	}
	if v := os.Getenv("FRAME_STRIDE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Video.Stride = n
		}
	}
	if v := os.Getenv("CASCADE_PATH"); v != "" {
		cfg.Video.CascadePath = v
	}
	if v := os.Getenv("EMOTION_SERVICE_URL"); v != "" {
		cfg.Services.EmotionURL = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Narrative.APIKey = v
	}
	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		cfg.Narrative.Model = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
}

func (n Narrative) PollInterval() time.Duration {
	return time.Duration(n.PollIntervalSec) * time.Second
}

func (n Narrative) Timeout() time.Duration {
	return time.Duration(n.TimeoutSec) * time.Second
}
