package main

import (
	"context"
	"fmt"
	"log"
	"os"

	domrepo "FinCast/internal/domain/repository"
	"FinCast/internal/repository"
	"FinCast/internal/usecase"
)

func importCSV(ctx context.Context, cs *usecase.CandleStore, path, symbol string, res domrepo.Resolution) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	candles, err := repository.ReadCandlesCSV(f)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	series, err := cs.Import(ctx, symbol, res, candles)
	if err != nil {
		return err
	}
	log.Printf("imported %d candles for %s", series.Len(), symbol)
	return nil
}
