// Command trainer runs one offline training cycle: it optionally imports a
// CSV or fetches fresh candles, trains, evaluates, persists the model and
// prints the result as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"FinCast/internal/di"
	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	"FinCast/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	csvPath := flag.String("csv", "", "import candles from this CSV before training")
	fetch := flag.Bool("fetch", false, "fetch the configured lookback from Finnhub before training")
	symbol := flag.String("symbol", "", "symbol override")
	epochs := flag.Int("epochs", 50, "training epochs")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if *symbol != "" {
		cfg.Series.Symbol = *symbol
	}
	if *epochs > 0 {
		cfg.Training.Epochs = *epochs
	}
	// offline runs get a longer training budget than the HTTP path
	cfg.Training.Timeout *= 10

	svc, cleanup, err := di.InitializePipeline(cfg)
	if err != nil {
		log.Fatalf("pipeline initialization failed: %v", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *csvPath != "" {
		if err := importCSV(ctx, svc.Candles(), *csvPath, svc.Symbol(), domrepo.NormalizeResolution(cfg.Series.Resolution)); err != nil {
			log.Fatalf("import failed: %v", err)
		}
	}

	var res *models.PredictionResult
	if *fetch {
		res, err = svc.Refresh(ctx, svc.Symbol(), time.Time{}, time.Time{})
	} else {
		res, err = svc.RunPredictionCycle(ctx, svc.Symbol())
	}
	if err != nil {
		log.Fatalf("training failed: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		log.Fatalf("encode result: %v", err)
	}
	log.Printf("model saved to %s", cfg.Model.Path)
}
