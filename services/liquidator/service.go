package liquidator

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"stablecore/core/events"
	"stablecore/core/state"
	"stablecore/core/types"
	"stablecore/crypto"
	"stablecore/native/liquidation"
	"stablecore/native/liquidation/automation"
	"stablecore/native/oracle"
	"stablecore/native/swap"
	"stablecore/observability/logging"
	"stablecore/observability/metrics"
	telemetry "stablecore/observability/otel"
	"stablecore/services/liquidator/config"
	"stablecore/storage"
)

const routerFeeBps = 30

// Main runs the liquidator daemon using the provided command line flags.
func Main() error {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/liquidator/config.yaml", "path to liquidator config")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("STABLE_ENV"))
	logger := logging.Setup("liquidatord", env)

	otlpEndpoint := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	otlpHeaders := telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	insecure := true
	if value := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE")); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			insecure = parsed
		}
	}
	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "liquidatord",
		Environment: env,
		Endpoint:    otlpEndpoint,
		Insecure:    insecure,
		Headers:     otlpHeaders,
		Metrics:     true,
		Traces:      true,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	svc, err := New(cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	stopCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return svc.Run(stopCtx)
}

// Service wires the liquidation engine, its scanner and the HTTP surface into
// a long-running daemon.
type Service struct {
	cfg     config.Config
	log     *slog.Logger
	db      storage.Database
	ledger  *state.Ledger
	engine  *liquidation.Engine
	scanner *automation.Scanner
	metrics *metrics.LiquidationMetrics
}

// New builds a fully wired service from its configuration.
func New(cfg config.Config, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	moduleCfg, err := liquidation.LoadConfig(cfg.ModuleConfig)
	if err != nil {
		return nil, fmt.Errorf("load module config: %w", err)
	}

	prices := oracle.NewManualOracle()
	for asset, quote := range cfg.Prices {
		value, ok := new(big.Int).SetString(strings.TrimSpace(quote), 10)
		if !ok {
			return nil, fmt.Errorf("prices: invalid quote %q for %s", quote, asset)
		}
		if err := prices.SetPrice(asset, value); err != nil {
			return nil, fmt.Errorf("prices: %s: %w", asset, err)
		}
	}

	ledger := state.NewLedger(prices)
	for _, asset := range moduleCfg.AllowedAssets {
		ledger.RegisterAsset(asset)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "scan"))
	if err != nil {
		return nil, fmt.Errorf("open scan store: %w", err)
	}

	liquidationMetrics := metrics.Liquidation()
	emitter := &observingEmitter{log: logger, metrics: liquidationMetrics}

	protocolAddr := crypto.ModuleAddress("liquidation/treasury")
	vaultAddr := crypto.ModuleAddress("liquidation/funding-vault")
	fundingToken := moduleCfg.AllowedAssets[0]

	engine := liquidation.NewEngine(protocolAddr, liquidation.NewAssetRegistry(moduleCfg.AllowedAssets), moduleCfg.RiskParameters())
	engine.SetState(ledger)
	engine.SetEmitter(emitter)
	engine.SetRouter(swap.NewOracleRouter(ledger, prices, routerFeeBps))
	engine.SetFundingRegistry(swap.NewFundingVault(ledger, vaultAddr, protocolAddr, fundingToken), cfg.ProtocolJobID)

	scanner := automation.NewScanner(engine, automation.NewCursorStore(db), cfg.ScanWindow)
	scanner.SetEmitter(emitter)

	return &Service{
		cfg:     cfg,
		log:     logger,
		db:      db,
		ledger:  ledger,
		engine:  engine,
		scanner: scanner,
		metrics: liquidationMetrics,
	}, nil
}

// Engine exposes the wired liquidation engine.
func (s *Service) Engine() *liquidation.Engine { return s.engine }

// Ledger exposes the backing position ledger.
func (s *Service) Ledger() *state.Ledger { return s.ledger }

// Close releases the persistent resources held by the service.
func (s *Service) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

// Run serves the HTTP surface and drives the scan loop until the context is
// cancelled.
func (s *Service) Run(ctx context.Context) error {
	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:         s.cfg.ListenAddress,
		Handler:      otelhttp.NewHandler(router, "liquidatord"),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		s.log.Info("liquidatord listening", "address", s.cfg.ListenAddress)
		errs <- httpServer.ListenAndServe()
	}()

	loopCtx, cancelLoop := context.WithCancel(ctx)
	defer cancelLoop()
	go s.scanLoop(loopCtx)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			_ = httpServer.Close()
			return err
		}
		return nil
	case err := <-errs:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Service) scanLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.ScanInterval.Duration)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runCycle()
		}
	}
}

func (s *Service) runCycle() {
	workNeeded, payload, err := s.scanner.Scan()
	if err != nil {
		s.log.Error("scan cycle failed", "error", err)
		return
	}
	if offset, err := s.scanner.Cursor(); err == nil {
		s.metrics.SetScanCursor(offset)
	}
	if !workNeeded {
		return
	}
	results, err := s.scanner.Execute(payload)
	if err != nil {
		s.log.Error("scan execution failed", "error", err)
		return
	}
	for _, result := range results {
		s.metrics.ObserveProtocolAttempt(result.Success())
		if result.Err != nil {
			s.metrics.ObserveRejected(rejectionReason(result.Err))
			s.log.Warn("protocol liquidation attempt failed",
				"user", result.User,
				"seizedAsset", result.SeizedAsset,
				"debtAsset", result.DebtAsset,
				"error", result.Err)
			continue
		}
		s.log.Info("protocol liquidation committed",
			"user", result.User,
			"seizedAsset", result.SeizedAsset,
			"debtAsset", result.DebtAsset,
			"repaid", result.Repaid.String())
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, liquidation.ErrPositionHealthy):
		return "healthy"
	case errors.Is(err, liquidation.ErrBonusShortfall):
		return "bonus_shortfall"
	case errors.Is(err, liquidation.ErrHealthNotImproved):
		return "health_not_improved"
	case errors.Is(err, liquidation.ErrSlippageExceeded):
		return "slippage"
	case errors.Is(err, liquidation.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, liquidation.ErrNoDebt):
		return "no_debt"
	default:
		return "other"
	}
}

// observingEmitter turns engine events into structured logs and Prometheus
// series.
type observingEmitter struct {
	log     *slog.Logger
	metrics *metrics.LiquidationMetrics
}

func (e *observingEmitter) Emit(evt events.Event) {
	switch payload := evt.(type) {
	case events.LiquidationExecuted:
		route := "market"
		if payload.ToProtocol {
			route = "protocol"
		}
		e.metrics.ObserveExecuted(route)
		e.logEvent(payload.Event(), "route", route)
	case events.ProtocolFeeCollected:
		e.logEvent(payload.Event())
	case events.ScanCompleted:
		e.metrics.ObserveScan(payload.Flagged)
		e.logEvent(payload.Event())
	default:
		e.log.Debug("event emitted", "type", evt.EventType())
	}
}

// logEvent renders a broadcastable event as a structured log line, attribute
// keys sorted for stable output.
func (e *observingEmitter) logEvent(evt *types.Event, extra ...any) {
	keys := make([]string, 0, len(evt.Attributes))
	for key := range evt.Attributes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2+len(extra))
	for _, key := range keys {
		args = append(args, key, evt.Attributes[key])
	}
	args = append(args, extra...)
	e.log.Info(evt.Type, args...)
}
