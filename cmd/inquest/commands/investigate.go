package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"inquest/internal/config"
	"inquest/internal/engine"
	"inquest/internal/hypothesis"
	"inquest/internal/kb"
	"inquest/internal/logging"
	"inquest/internal/metrics"
	"inquest/internal/models"
	"inquest/internal/registry"
	"inquest/internal/tracing"
)

var (
	incidentPath        string
	kbPath              string
	catalogPath         string
	outputPath          string
	maxIterations       int
	confidenceThreshold float64
	adapterTimeout      time.Duration
	investigationBudget time.Duration
	modelName           string
	metricsPort         int
	tracingEnabled      bool
	tracingEndpoint     string
	tracingTLSCAPath    string
	tracingTLSInsecure  bool
)

var investigateCmd = &cobra.Command{
	Use:   "investigate",
	Short: "Run one investigation and emit an RCA report",
	Long: `Investigate reads an incident description from a JSON file, runs the
collect/generate/score loop against the providers bound to the affected
subject, and writes the resulting RCA report as JSON.`,
	Run: runInvestigate,
}

func init() {
	investigateCmd.Flags().StringVar(&incidentPath, "incident", "", "Path to the incident JSON file (required)")
	investigateCmd.Flags().StringVar(&kbPath, "kb", "kb/subjects.yaml", "Path to the KB subjects YAML file")
	investigateCmd.Flags().StringVar(&catalogPath, "catalog", "kb/providers.yaml", "Path to the provider catalog YAML file")
	investigateCmd.Flags().StringVar(&outputPath, "output", "", "Path to write the RCA report JSON (default: stdout)")
	investigateCmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "Override the iteration budget (default: from config)")
	investigateCmd.Flags().Float64Var(&confidenceThreshold, "confidence-threshold", 0, "Override the early-termination confidence threshold")
	investigateCmd.Flags().DurationVar(&adapterTimeout, "adapter-timeout", 0, "Override the per-adapter-call timeout")
	investigateCmd.Flags().DurationVar(&investigationBudget, "budget", 0, "Override the wall-clock budget for the whole investigation")
	investigateCmd.Flags().StringVar(&modelName, "model", "", "Override the reasoning service model identifier")
	investigateCmd.Flags().IntVar(&metricsPort, "metrics-port", 0, "Serve Prometheus metrics on this port while the investigation runs (0 = disabled)")
	investigateCmd.Flags().BoolVar(&tracingEnabled, "tracing-enabled", false, "Enable OpenTelemetry tracing (default: false)")
	investigateCmd.Flags().StringVar(&tracingEndpoint, "tracing-endpoint", "", "OTLP gRPC endpoint for traces (e.g., otel-collector:4317)")
	investigateCmd.Flags().StringVar(&tracingTLSCAPath, "tracing-tls-ca", "", "Path to CA certificate for TLS verification (optional)")
	investigateCmd.Flags().BoolVar(&tracingTLSInsecure, "tracing-tls-insecure", false, "Skip TLS certificate verification (insecure, use only for testing)")

	_ = investigateCmd.MarkFlagRequired("incident")
}

func runInvestigate(cmd *cobra.Command, args []string) {
	if err := setupLog(logLevelFlags); err != nil {
		HandleError(err, "Logging error")
	}
	logger := logging.GetLogger("cli")

	cfg := buildConfig()
	if err := cfg.Validate(); err != nil {
		HandleError(err, "Configuration error")
	}

	incident, err := readIncident(incidentPath)
	HandleError(err, "Incident error")

	store, err := kb.NewStore(cfg.KBPath, cfg.CatalogPath)
	HandleError(err, "KB error")
	snapshot := store.Snapshot()

	tracingProvider, err := tracing.NewProvider(tracing.Config{
		Enabled:     cfg.TracingEnabled,
		Endpoint:    cfg.TracingEndpoint,
		TLSCAPath:   tracingTLSCAPath,
		TLSInsecure: tracingTLSInsecure,
	})
	HandleError(err, "Tracing error")
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracingProvider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("failed to shut down tracing: %v", err)
		}
	}()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	if metricsPort > 0 {
		serveMetrics(reg, metricsPort, logger)
	}

	provider := hypothesis.NewAnthropicProvider(cfg.Model)

	eng, err := engine.New(cfg, snapshot, registry.DefaultFactories(), provider, m, tracingProvider.Tracer("engine"))
	HandleError(err, "Engine error")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := eng.Run(ctx, incident)
	HandleError(err, "Investigation error")

	HandleError(writeReport(report, outputPath), "Report error")
}

// buildConfig starts from the documented defaults and applies only the
// flags the user actually set.
func buildConfig() config.Config {
	cfg := config.Default()
	cfg.KBPath = kbPath
	cfg.CatalogPath = catalogPath
	cfg.TracingEnabled = tracingEnabled
	cfg.TracingEndpoint = tracingEndpoint

	if maxIterations > 0 {
		cfg.MaxIterations = maxIterations
	}
	if confidenceThreshold > 0 {
		cfg.ConfidenceThreshold = confidenceThreshold
	}
	if adapterTimeout > 0 {
		cfg.AdapterTimeout = adapterTimeout
	}
	if investigationBudget > 0 {
		cfg.InvestigationBudget = investigationBudget
	}
	if modelName != "" {
		cfg.Model = modelName
	}
	return cfg
}

func readIncident(path string) (models.IncidentInput, error) {
	var incident models.IncidentInput
	data, err := os.ReadFile(path)
	if err != nil {
		return incident, fmt.Errorf("failed to read incident file %q: %w", path, err)
	}
	if err := json.Unmarshal(data, &incident); err != nil {
		return incident, fmt.Errorf("failed to parse incident file %q: %w", path, err)
	}
	return incident, nil
}

func writeReport(report *models.RCAReport, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	data = append(data, '\n')

	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report to %q: %w", path, err)
	}
	return nil
}

// serveMetrics exposes the registry for scraping while the investigation
// runs. The server dies with the process; a one-shot CLI has no graceful
// shutdown story worth having.
func serveMetrics(reg *prometheus.Registry, port int, logger *logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics server exited: %v", err)
		}
	}()
	logger.Info("serving metrics on :%d/metrics", port)
}
