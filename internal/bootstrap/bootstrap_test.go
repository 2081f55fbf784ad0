package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/kirillkom/asn-portal/internal/config"
)

func TestVerifyPolicyFollowsConfig(t *testing.T) {
	cfg := config.Config{
		VerdictThresholdLow:         0.5,
		VerdictThresholdHigh:        0.9,
		FraudSuspicionThreshold:     0.4,
		DetectionMinConfidence:      0.25,
		DetectionMismatchConfidence: 0.6,
		ImageMinWidth:               800,
		ImageMinHeight:              500,
		UploadMaxBytes:              2 << 20,
		OCRLanguages:                []string{"ind"},
	}

	policy := verifyPolicy(cfg)
	if policy.Verdict.Low != 0.5 || policy.Verdict.High != 0.9 {
		t.Fatalf("unexpected verdict policy %+v", policy.Verdict)
	}
	if policy.Fraud.SuspicionThreshold != 0.4 || policy.Fraud.MismatchConfidence != 0.6 || policy.Fraud.MinWidth != 800 || policy.Fraud.MinHeight != 500 {
		t.Fatalf("unexpected fraud policy %+v", policy.Fraud)
	}
	if policy.Detection.MinConfidence != 0.25 || policy.MaxUploadBytes != 2<<20 || len(policy.Languages) != 1 {
		t.Fatalf("unexpected policy %+v", policy)
	}
}

func TestProviderResilienceFollowsConfig(t *testing.T) {
	rc := providerResilience(config.Config{
		ProviderRetryMaxAttempts:   2,
		ProviderCallTimeout:        5 * time.Second,
		ProviderBreakerEnabled:     true,
		ProviderBreakerMinRequests: 10,
		ProviderBreakerRatio:       0.3,
		ProviderBreakerOpenTimeout: time.Minute,
	})
	if rc.RetryMaxAttempts != 2 || !rc.BreakerEnabled || rc.BreakerMinRequests != 10 || rc.BreakerFailureRatio != 0.3 || rc.BreakerOpenTimeout != time.Minute || rc.AttemptTimeout != 5*time.Second {
		t.Fatalf("unexpected resilience config %+v", rc)
	}
}

func TestNewWithoutExternalServicesLoadsChecklist(t *testing.T) {
	app, err := New(context.Background(), config.Config{}, Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	if app.Checklist == nil || len(app.Checklist.Requirements()) == 0 {
		t.Fatalf("expected default requirement set")
	}
	if app.Verifier != nil || app.Reviews != nil || app.Bus != nil {
		t.Fatalf("unrequested components were built")
	}
}

func TestBuildOCRRejectsUnknownProvider(t *testing.T) {
	app := &App{}
	if _, err := app.buildOCR(context.Background(), config.Config{OCRProvider: "abbyy"}, nil); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
