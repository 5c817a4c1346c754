package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/podiumcoach/podium/internal/analysis"
	"github.com/podiumcoach/podium/internal/config"
	"github.com/podiumcoach/podium/internal/media"
	"github.com/podiumcoach/podium/internal/narrative"
	"github.com/podiumcoach/podium/internal/pipeline"
	"github.com/podiumcoach/podium/internal/vision"
)

func main() {
	var (
		videoPath = flag.String("video", "", "Path to a video file")
		audioPath = flag.String("audio", "", "Path to an audio file")
		prompt    = flag.String("prompt", "", "Optional question for the coach")
		stride    = flag.Int("stride", 0, "Frame sampling stride (overrides config)")
	)
	flag.Parse()

	if *videoPath == "" && *audioPath == "" && *prompt == "" {
		log.Fatal("Provide at least one of -video, -audio, or -prompt")
	}

	godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}
	if *stride > 0 {
		cfg.Video.Stride = *stride
	}

	detector, err := vision.NewPigoDetector(cfg.Video.CascadePath, cfg.Video.MinQuality)
	if err != nil {
		log.Fatal("Failed to load face cascade:", err)
	}

	var coach narrative.Coach
	if cfg.Narrative.APIKey != "" {
		coach = narrative.NewClient(narrative.ClientConfig{
			APIKey:       cfg.Narrative.APIKey,
			Model:        cfg.Narrative.Model,
			PollInterval: cfg.Narrative.PollInterval(),
		})
	}

	service := pipeline.NewService(
		pipeline.DefaultSamplerFactory,
		detector,
		vision.NewHTTPClassifier(cfg.Services.EmotionURL),
		media.DecodeAudio,
		analysis.ExtractFeatures,
		coach,
		pipeline.Config{
			Stride:           cfg.Video.Stride,
			NarrativeTimeout: cfg.Narrative.Timeout(),
		},
	)

	result := service.Analyze(context.Background(), pipeline.Request{
		VideoPath: *videoPath,
		AudioPath: *audioPath,
		Prompt:    *prompt,
	})

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatal("Failed to encode result:", err)
	}
	fmt.Println(string(out))
}
