package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/TGSE-nepuro/cloudsign-APImok/internal/cloudsign"
	"github.com/TGSE-nepuro/cloudsign-APImok/internal/config"
	"github.com/TGSE-nepuro/cloudsign-APImok/internal/database"
	"github.com/TGSE-nepuro/cloudsign-APImok/internal/document"
	"github.com/TGSE-nepuro/cloudsign-APImok/internal/document/repository"
	"github.com/TGSE-nepuro/cloudsign-APImok/internal/document/service"
	"github.com/TGSE-nepuro/cloudsign-APImok/pkg/logger"
)

// statuspoller periodically reconciles sent, non-terminal cases against the
// remote signing service. It covers deployments where the webhook channel is
// not reachable, and catches events a webhook delivery missed. Remote calls
// are rate-limited so a large backlog cannot exhaust the API quota.
func main() {
	logger.Init(os.Getenv("LOG_LEVEL"))
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	if cfg.MongoDB.URI == "" {
		logger.Fatalf("MONGODB_URI is required, the poller is stateless without it")
	}

	interval := 60 * time.Second
	if v := os.Getenv("POLL_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			interval = time.Duration(n) * time.Second
		}
	}
	rps := 2.0
	if v := os.Getenv("POLL_REMOTE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			rps = f
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := database.ConnectMongoWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, 5, time.Second)
	if err != nil {
		logger.Fatalf("cannot connect to MongoDB: %v", err)
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	repo := repository.NewMongoRepo(client.Database(cfg.MongoDB.Database).Collection("cases"))
	svc := service.New(cloudsign.NewClient(&cfg.CloudSign), repo)
	limiter := rate.NewLimiter(rate.Limit(rps), 1)

	logger.Infof("status poller started: interval=%s rps=%.1f", interval, rps)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		pollOnce(ctx, svc, repo, limiter)
		select {
		case <-ctx.Done():
			logger.Info("status poller shutting down")
			return
		case <-ticker.C:
		}
	}
}

func pollOnce(ctx context.Context, svc *service.Service, repo repository.Repository, limiter *rate.Limiter) {
	docs, err := repo.ListUnfinished(ctx)
	if err != nil {
		logger.Errorf("list unfinished cases: %v", err)
		return
	}
	if len(docs) == 0 {
		return
	}
	logger.Debugf("polling %d unfinished cases", len(docs))

	for _, d := range docs {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		updated, err := svc.RefreshStatus(ctx, d.ID)
		if err != nil {
			// one failed case must not stop the sweep
			var serr *document.InvalidStateError
			if errors.As(err, &serr) {
				logger.Warnf("case %s: remote status not applicable: %v", d.ID, err)
			} else {
				logger.Errorf("case %s: refresh failed: %v", d.ID, err)
			}
			continue
		}
		if updated.Status != d.Status {
			logger.Infof("case %s advanced %s -> %s", d.ID, d.Status, updated.Status)
		}
	}
}
