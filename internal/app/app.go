package app

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"bybit-scan-bot/internal/account"
	"bybit-scan-bot/internal/alerts"
	"bybit-scan-bot/internal/bybit/rest"
	"bybit-scan-bot/internal/bybit/ws"
	"bybit-scan-bot/internal/config"
	"bybit-scan-bot/internal/exec"
	"bybit-scan-bot/internal/features"
	"bybit-scan-bot/internal/market"
	"bybit-scan-bot/internal/metrics"
	"bybit-scan-bot/internal/model"
	"bybit-scan-bot/internal/scanner"
	persist "bybit-scan-bot/internal/state"
	"bybit-scan-bot/internal/state/sqlite"
	"bybit-scan-bot/internal/strategy"
	"bybit-scan-bot/internal/timescale"

	"go.uber.org/zap"
)

type App struct {
	cfg        *config.Config
	log        *zap.Logger
	store      *sqlite.Store
	rest       *rest.Client
	ws         *ws.Client
	market     *market.MarketData
	account    *account.Account
	registry   *exec.Registry
	controller *exec.Controller
	scanner    *scanner.Scanner
	metrics    *metrics.Metrics
	prom       *metrics.Prometheus
	alerts     *alerts.Telegram
	classifier *model.Classifier
	timescale  *timescale.Writer
}

func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	creds, err := config.LoadCredentials()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.State.SQLitePath), 0o755); err != nil {
		return nil, err
	}
	store, err := sqlite.New(cfg.State.SQLitePath)
	if err != nil {
		return nil, err
	}

	restClient := rest.New(cfg.REST.BaseURL, creds.APIKey, creds.APISecret, cfg.REST.Timeout, log)
	wsClient := ws.New(cfg.WS.URL, cfg.WS.ReconnectDelay, cfg.WS.PingInterval, log)
	marketData := market.New(restClient, wsClient, log)
	accountClient := account.New(restClient, log)
	var featureSource exec.FeatureSource = features.NewClient(cfg.Features.BaseURL, cfg.Features.Timeout)
	if cfg.Features.Source == "kline" {
		featureSource = features.NewKlineSource(marketData, cfg.Scanner.KlineLimit)
		log.Warn("feature sidecar disabled, neutral kline snapshots only")
	}

	var scorer strategy.Scorer
	var classifier *model.Classifier
	if cfg.Model.Path != "" {
		classifier, err = model.NewClassifier(cfg.Model.Path, cfg.Model.ScalerPath)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		scorer = classifier
	} else {
		log.Warn("no model configured, trading on rules alone")
	}
	evaluator := strategy.NewEvaluator(scorer, cfg.Risk.ConfidenceFloor)

	m := metrics.NewNoop()
	var prom *metrics.Prometheus
	if cfg.Metrics.Listen != "" {
		prom = metrics.NewPrometheus()
		m = prom.Metrics
	}
	alertsClient := alerts.NewTelegram(cfg.Telegram, log)

	registry := exec.NewRegistry(cfg.Risk.MaxOpenTrades)
	controller := exec.NewController(
		marketData, accountClient, featureSource, evaluator,
		registry, store, m, alertsClient,
		exec.Config{
			RiskPercent:   cfg.Risk.RiskPercent,
			QtyStep:       cfg.Risk.QtyStep,
			KlineInterval: cfg.Scanner.KlineInterval,
			KlineLimit:    cfg.Scanner.KlineLimit,
		},
		log,
	)

	tsWriter, err := timescale.New(cfg.Timescale, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	if tsWriter != nil {
		controller.SetRecorder(&timescaleRecorder{writer: tsWriter})
	}

	return &App{
		cfg:        cfg,
		log:        log,
		store:      store,
		rest:       restClient,
		ws:         wsClient,
		market:     marketData,
		account:    accountClient,
		registry:   registry,
		controller: controller,
		scanner:    scanner.New(marketData, controller, cfg.Scanner, m, log),
		metrics:    m,
		prom:       prom,
		alerts:     alertsClient,
		classifier: classifier,
		timescale:  tsWriter,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	defer a.store.Close()
	if a.classifier != nil {
		defer a.classifier.Close()
	}
	defer a.timescale.Close()
	a.timescale.Start(ctx)

	if flagged, err := persist.OrdersNeedingReview(ctx, a.store); err != nil {
		a.log.Warn("order journal scan failed", zap.Error(err))
	} else if len(flagged) > 0 {
		for _, record := range flagged {
			a.log.Warn("order awaiting manual reconciliation",
				zap.String("symbol", record.Symbol),
				zap.String("link_id", record.LinkID),
			)
		}
	}

	if err := a.market.Start(ctx); err != nil {
		// Live quotes degrade to REST snapshots until the stream recovers.
		a.log.Warn("ticker stream unavailable", zap.Error(err))
	}
	if err := a.controller.Reconcile(ctx); err != nil {
		return err
	}
	if a.prom != nil && a.cfg.Metrics.Listen != "" {
		a.serveMetrics(ctx)
	}
	a.log.Info("scanning started",
		zap.Duration("interval", a.cfg.Scanner.Interval),
		zap.Int("workers", a.cfg.Scanner.Workers),
		zap.Int("max_open_trades", a.cfg.Risk.MaxOpenTrades),
	)
	return a.scanner.Run(ctx)
}

func (a *App) serveMetrics(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.prom.Handler())
	srv := &http.Server{Addr: a.cfg.Metrics.Listen, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.log.Warn("metrics server failed", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}
