package importer

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"coinboard/internal/models"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
)

// Fetcher loads one market list. The market service is used so every
// successful fetch lands in the Redis cache and is published.
type Fetcher interface {
	FetchMarkets(ctx context.Context, currency models.Currency) ([]models.CoinSummary, error)
}

// Invalidator drops a cached market list so the next fetch goes upstream
type Invalidator interface {
	Delete(ctx context.Context, currency models.Currency) error
}

type Importer struct {
	fetcher  Fetcher
	cache    Invalidator
	logger   *logrus.Logger
	progress io.Writer
}

type ImportJob struct {
	Currencies []models.Currency
	Workers    int
	Refresh    bool
}

func (j *ImportJob) String() string {
	return fmt.Sprintf("%d currencies with %d workers", len(j.Currencies), j.Workers)
}

type importResult struct {
	Currency models.Currency
	Count    int
	Error    error
}

// Summary counts the outcome of an import run
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Coins     int
}

// New creates an importer. cache may be nil when refresh is never requested.
func New(fetcher Fetcher, cache Invalidator, logger *logrus.Logger) *Importer {
	return &Importer{
		fetcher:  fetcher,
		cache:    cache,
		logger:   logger,
		progress: os.Stderr,
	}
}

// SetProgressOutput redirects the progress bar
func (imp *Importer) SetProgressOutput(w io.Writer) {
	imp.progress = w
}

// Import warms the market list for every currency of job
func (imp *Importer) Import(ctx context.Context, job *ImportJob) (Summary, error) {
	summary := Summary{Total: len(job.Currencies)}
	if summary.Total == 0 {
		return summary, nil
	}

	workers := job.Workers
	if workers <= 0 {
		workers = 1
	}

	taskChan := make(chan models.Currency, len(job.Currencies))
	resultChan := make(chan importResult, len(job.Currencies))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for currency := range taskChan {
				resultChan <- imp.importCurrency(ctx, currency, job.Refresh)
			}
		}()
	}

	for _, currency := range job.Currencies {
		taskChan <- currency
	}
	close(taskChan)

	bar := progressbar.NewOptions(len(job.Currencies),
		progressbar.OptionSetWriter(imp.progress),
		progressbar.OptionSetDescription("Importing market data"),
		progressbar.OptionSetWidth(50),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	for result := range resultChan {
		_ = bar.Add(1)
		if result.Error != nil {
			summary.Failed++
			imp.logger.WithError(result.Error).WithField("currency", result.Currency).Warn("Import failed")
			continue
		}
		summary.Succeeded++
		summary.Coins += result.Count
		imp.logger.WithFields(logrus.Fields{
			"currency": result.Currency,
			"coins":    result.Count,
		}).Debug("Imported market data")
	}
	_ = bar.Finish()

	imp.logger.WithFields(logrus.Fields{
		"total":     summary.Total,
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
		"coins":     summary.Coins,
	}).Info("Import summary")

	if summary.Failed > 0 {
		return summary, fmt.Errorf("import completed with %d failures", summary.Failed)
	}
	return summary, nil
}

func (imp *Importer) importCurrency(ctx context.Context, currency models.Currency, refresh bool) importResult {
	if refresh && imp.cache != nil {
		if err := imp.cache.Delete(ctx, currency); err != nil {
			return importResult{Currency: currency, Error: fmt.Errorf("failed to invalidate cache: %w", err)}
		}
	}

	coins, err := imp.fetcher.FetchMarkets(ctx, currency)
	if err != nil {
		return importResult{Currency: currency, Error: err}
	}
	return importResult{Currency: currency, Count: len(coins)}
}
