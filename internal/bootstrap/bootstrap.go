package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/asn-portal/internal/config"
	"github.com/kirillkom/asn-portal/internal/core/ports"
	"github.com/kirillkom/asn-portal/internal/core/usecase"
	"github.com/kirillkom/asn-portal/internal/infrastructure/imaging"
	"github.com/kirillkom/asn-portal/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/asn-portal/internal/infrastructure/ocr/gemini"
	"github.com/kirillkom/asn-portal/internal/infrastructure/queue/nats"
	"github.com/kirillkom/asn-portal/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/asn-portal/internal/infrastructure/requirements"
	"github.com/kirillkom/asn-portal/internal/infrastructure/resilience"
	"github.com/kirillkom/asn-portal/internal/infrastructure/storage/tempfs"
)

// Options selects which parts of the graph a process needs.
type Options struct {
	Database bool
	Bus      bool
	Verifier bool

	ClientName      string
	Metrics         ports.VerificationMetrics
	BreakerListener resilience.StateListener
}

type App struct {
	Config config.Config

	Verifier  *usecase.VerifyDocumentUseCase
	Checklist *usecase.ChecklistUseCase
	Reviews   *usecase.ReviewQueueUseCase
	Bus       *nats.Bus
	Temp      *tempfs.Storage

	closeFns []func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	app := &App{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	var applicants ports.ApplicantRepository
	if opts.Database {
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		app.onClose(func() { _ = db.Close() })
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		applicants = postgres.NewApplicantRepository(db)
		app.Reviews = usecase.NewReviewQueueUseCase(postgres.NewReviewRepository(db))
	}

	reqs, err := requirements.NewSource(cfg.RequirementsFile, requirements.Defaults{
		SimilarityPass: cfg.SimilarityPass,
		SimilarityWarn: cfg.SimilarityWarn,
	}).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load requirements: %w", err)
	}
	app.Checklist = usecase.NewChecklistUseCase(reqs, applicants, opts.Metrics)

	providerExec := resilience.NewExecutor(providerResilience(cfg))
	if opts.BreakerListener != nil {
		providerExec.OnStateChange(opts.BreakerListener)
	}

	if opts.Bus && cfg.NATSEnabled {
		bus, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ClientName:         opts.ClientName,
			ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig()),
		})
		if err != nil {
			return nil, fmt.Errorf("init message bus: %w", err)
		}
		app.onClose(bus.Close)
		app.Bus = bus
	}

	if opts.Verifier {
		if err := app.buildVerifier(ctx, cfg, opts, providerExec); err != nil {
			return nil, err
		}
	}

	ok = true
	return app, nil
}

func (a *App) buildVerifier(ctx context.Context, cfg config.Config, opts Options, exec *resilience.Executor) error {
	temp, err := tempfs.New(cfg.TempDir)
	if err != nil {
		return fmt.Errorf("init temp storage: %w", err)
	}
	a.Temp = temp

	ocr, err := a.buildOCR(ctx, cfg, exec)
	if err != nil {
		return err
	}

	deps := usecase.VerifyDeps{
		Storage:   temp,
		OCR:       ocr,
		Inspector: imaging.NewInspector(),
		Checklist: a.Checklist,
		Metrics:   opts.Metrics,
	}
	if cfg.ClassifierEnabled {
		client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaTimeout, exec)
		deps.Classifier = ollama.NewDocumentClassifier(client)
	}
	if a.Bus != nil {
		deps.Publisher = a.Bus
	}

	a.Verifier = usecase.NewVerifyDocumentUseCase(deps, verifyPolicy(cfg))
	return nil
}

func (a *App) buildOCR(ctx context.Context, cfg config.Config, exec *resilience.Executor) (ports.OCREngine, error) {
	switch cfg.OCRProvider {
	case "", "tesseract":
		return newTesseractOCR(exec, cfg.OCRMaxConcurrent)
	case "gemini":
		engine, err := gemini.New(ctx, gemini.Config{
			ProjectID: cfg.GoogleCloudProject,
			Location:  cfg.GoogleCloudLocation,
			Model:     cfg.GeminiModel,
		}, exec)
		if err != nil {
			return nil, fmt.Errorf("init gemini ocr: %w", err)
		}
		a.onClose(func() { _ = engine.Close() })
		return engine, nil
	default:
		return nil, fmt.Errorf("unknown OCR_PROVIDER %q", cfg.OCRProvider)
	}
}

func providerResilience(cfg config.Config) resilience.Config {
	rc := resilience.DefaultConfig()
	rc.RetryMaxAttempts = cfg.ProviderRetryMaxAttempts
	rc.AttemptTimeout = cfg.ProviderCallTimeout
	rc.BreakerEnabled = cfg.ProviderBreakerEnabled
	if cfg.ProviderBreakerMinRequests > 0 {
		rc.BreakerMinRequests = uint32(cfg.ProviderBreakerMinRequests)
	}
	rc.BreakerFailureRatio = cfg.ProviderBreakerRatio
	rc.BreakerOpenTimeout = cfg.ProviderBreakerOpenTimeout
	return rc
}

func verifyPolicy(cfg config.Config) usecase.Policy {
	policy := usecase.DefaultPolicy()
	policy.Verdict = usecase.VerdictPolicy{Low: cfg.VerdictThresholdLow, High: cfg.VerdictThresholdHigh}
	policy.Fraud = usecase.FraudPolicy{
		SuspicionThreshold: cfg.FraudSuspicionThreshold,
		MismatchConfidence: cfg.DetectionMismatchConfidence,
		MinWidth:           cfg.ImageMinWidth,
		MinHeight:          cfg.ImageMinHeight,
	}
	policy.Detection = usecase.DetectionPolicy{MinConfidence: cfg.DetectionMinConfidence}
	if cfg.UploadMaxBytes > 0 {
		policy.MaxUploadBytes = cfg.UploadMaxBytes
	}
	if len(cfg.OCRLanguages) > 0 {
		policy.Languages = cfg.OCRLanguages
	}
	return policy
}

// RunTempJanitor removes temp files older than maxAge until ctx is done.
// Request handlers remove their own files; this catches crashes.
func (a *App) RunTempJanitor(ctx context.Context, maxAge time.Duration) {
	if a.Temp == nil || maxAge <= 0 {
		return
	}
	ticker := time.NewTicker(maxAge)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := a.Temp.Sweep(ctx, maxAge)
			if err != nil {
				slog.Warn("temp_sweep_failed", "error", err)
				continue
			}
			if removed > 0 {
				slog.Info("temp_sweep", "removed", removed)
			}
		}
	}
}

func (a *App) onClose(fn func()) {
	a.closeFns = append(a.closeFns, fn)
}

func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}
