package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"perfumevisual/internal/bootstrap"
	"perfumevisual/internal/domain"
	"perfumevisual/internal/infra"
	"perfumevisual/internal/pipeline"
)

// generator is the slice of the pipeline the worker drives.
type generator interface {
	ImageConfigured() bool
	Generate(ctx context.Context, req domain.GenerationRequest) (*pipeline.GenerationResult, error)
}

// maxProductAttempts caps failed runs per product for the life of the process.
const maxProductAttempts = 3

// catalogWorker styles catalog products that have a main image but no
// styled image yet.
type catalogWorker struct {
	products    domain.ProductRepository
	generator   generator
	logger      infra.Logger
	poll        time.Duration
	batchSize   int
	maxAttempts int

	// settled holds products already styled by this process, whether or
	// not the catalog row was updated.
	settled  map[int64]struct{}
	failures map[int64]int
}

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := bootstrap.Build(ctx, cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to build services")
	}
	defer services.Close()

	w := &catalogWorker{
		products:  services.Products,
		generator: services.Pipeline,
		logger:    logger,
		poll:      cfg.WorkerPoll,
		batchSize: cfg.WorkerBatchSize,
	}
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}

// Run processes one batch per tick until ctx is cancelled.
func (w *catalogWorker) Run(ctx context.Context) error {
	if w.poll <= 0 {
		w.poll = 30 * time.Second
	}
	if w.batchSize <= 0 {
		w.batchSize = 5
	}
	w.logger.Info().Dur("poll", w.poll).Int("batch", w.batchSize).Msg("worker: started")

	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()
	for {
		w.runBatch(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// runBatch returns the number of products styled.
func (w *catalogWorker) runBatch(ctx context.Context) int {
	if !w.generator.ImageConfigured() {
		w.logger.Warn().Msg("worker: image provider not configured, skipping batch")
		return 0
	}
	products, err := w.products.ListPendingStyling(ctx, w.batchSize, w.excluded())
	if err != nil {
		w.logger.Error().Err(err).Msg("worker: list pending products failed")
		return 0
	}

	done := 0
	for _, p := range products {
		if ctx.Err() != nil {
			break
		}
		if w.handleProduct(ctx, p) {
			done++
		}
	}
	if len(products) > 0 {
		w.logger.Info().Int("picked", len(products)).Int("styled", done).Msg("worker: batch finished")
	}
	return done
}

// excluded lists the products the next batch must skip.
func (w *catalogWorker) excluded() []int64 {
	ids := make([]int64, 0, len(w.settled)+len(w.failures))
	for id := range w.settled {
		ids = append(ids, id)
	}
	for id, n := range w.failures {
		if n >= w.attemptCap() {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

func (w *catalogWorker) attemptCap() int {
	if w.maxAttempts <= 0 {
		return maxProductAttempts
	}
	return w.maxAttempts
}

func (w *catalogWorker) recordFailure(id int64) int {
	if w.failures == nil {
		w.failures = make(map[int64]int)
	}
	w.failures[id]++
	return w.failures[id]
}

func (w *catalogWorker) settle(id int64) {
	if w.settled == nil {
		w.settled = make(map[int64]struct{})
	}
	w.settled[id] = struct{}{}
	delete(w.failures, id)
}

func (w *catalogWorker) handleProduct(ctx context.Context, p domain.Product) bool {
	log := w.logger.With().Int64("product_id", p.ID).Str("brand", p.BrandName()).Logger()
	log.Info().Msg("worker: picked product")
	res, err := w.generator.Generate(ctx, domain.GenerationRequest{
		Brand:       p.BrandName(),
		Name:        p.ProductName(),
		Description: p.DescriptionText(),
		ImagePath:   p.MainImage(),
		ProductID:   p.ID,
	})
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		attempts := w.recordFailure(p.ID)
		ev := log.Error().Err(err).Int("attempt", attempts)
		if attempts >= w.attemptCap() {
			ev = ev.Bool("giving_up", true)
		}
		ev.Msg("worker: product failed")
		return false
	}
	if res.RequiresManualProcessing {
		return false
	}
	w.settle(p.ID)
	log.Info().Str("file", res.FinalFilename).Strs("fallbacks", stageNames(res.Fallbacks)).Msg("worker: product styled")
	return true
}

func stageNames(stages []domain.Stage) []string {
	out := make([]string, 0, len(stages))
	for _, s := range stages {
		out = append(out, string(s))
	}
	return out
}
