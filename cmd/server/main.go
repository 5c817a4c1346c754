package main

import (
	"net/http"
	"os"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/podiumcoach/podium/internal/analysis"
	"github.com/podiumcoach/podium/internal/api"
	"github.com/podiumcoach/podium/internal/config"
	"github.com/podiumcoach/podium/internal/database"
	"github.com/podiumcoach/podium/internal/media"
	"github.com/podiumcoach/podium/internal/narrative"
	"github.com/podiumcoach/podium/internal/pipeline"
	"github.com/podiumcoach/podium/internal/storage"
	"github.com/podiumcoach/podium/internal/vision"
)

func main() {
	godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	detector, err := vision.NewPigoDetector(cfg.Video.CascadePath, cfg.Video.MinQuality)
	if err != nil {
		log.Fatal("Failed to load face cascade:", err)
	}

	classifier := vision.NewHTTPClassifier(cfg.Services.EmotionURL)

	var coach narrative.Coach
	if cfg.Narrative.APIKey != "" {
		coach = narrative.NewClient(narrative.ClientConfig{
			APIKey:       cfg.Narrative.APIKey,
			Model:        cfg.Narrative.Model,
			PollInterval: cfg.Narrative.PollInterval(),
		})
	} else {
		log.Printf("GEMINI_API_KEY not set, narrative feedback disabled")
	}

	service := pipeline.NewService(
		pipeline.DefaultSamplerFactory,
		detector,
		classifier,
		media.DecodeAudio,
		analysis.ExtractFeatures,
		coach,
		pipeline.Config{
			Stride:           cfg.Video.Stride,
			NarrativeTimeout: cfg.Narrative.Timeout(),
		},
	)

	store, err := storage.NewTempStore(cfg.Server.UploadDir)
	if err != nil {
		log.Fatal("Failed to initialize upload storage:", err)
	}

	db, err := database.NewDB(database.Config{Path: cfg.Database.Path})
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer db.Close()

	app := &api.App{
		Store:         store,
		Analyzer:      service,
		History:       database.NewAnalysisRepo(db),
		MaxUploadSize: cfg.Server.MaxUploadSize,
	}

	router := api.NewRouter(app)

	log.Printf("Server starting on port %s", cfg.Server.Port)
	log.Printf("Upload directory: %s", cfg.Server.UploadDir)
	log.Printf("Database path: %s", cfg.Database.Path)
	log.Printf("Emotion service: %s", cfg.Services.EmotionURL)
	log.Printf("Frame stride: %d", cfg.Video.Stride)

	if err := http.ListenAndServe(":"+cfg.Server.Port, router); err != nil {
		log.Fatal(err)
	}
}
