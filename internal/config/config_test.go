package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func lookupMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func noEnv(string) (string, bool) { return "", false }

func TestDefaultsDev(t *testing.T) {
	cfg, err := load(noEnv, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode != ModeDev {
		t.Fatalf("mode=%q, want %q", cfg.Mode, ModeDev)
	}
	if cfg.LogFormat != LogFormatText {
		t.Fatalf("logFormat=%q, want %q", cfg.LogFormat, LogFormatText)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("logLevel=%v, want debug", cfg.LogLevel)
	}
	if cfg.ListenAddr != DefaultListenAddr {
		t.Fatalf("listenAddr=%q, want %q", cfg.ListenAddr, DefaultListenAddr)
	}
	if cfg.ShutdownTimeout != DefaultShutdown {
		t.Fatalf("shutdownTimeout=%v, want %v", cfg.ShutdownTimeout, DefaultShutdown)
	}
	if cfg.MaxSignalingMessageBytes != DefaultMaxSignalingMessageBytes {
		t.Fatalf("maxSignalingMessageBytes=%d, want %d", cfg.MaxSignalingMessageBytes, DefaultMaxSignalingMessageBytes)
	}
	if cfg.MaxSignalingMessagesPerSecond != DefaultMaxSignalingMessagesPerSecond {
		t.Fatalf("maxSignalingMessagesPerSecond=%d, want %d", cfg.MaxSignalingMessagesPerSecond, DefaultMaxSignalingMessagesPerSecond)
	}
	if cfg.TranslationProvider != TranslationProviderNone {
		t.Fatalf("translationProvider=%q, want none", cfg.TranslationProvider)
	}
	if cfg.TranslateTimeout != DefaultTranslateTimeout {
		t.Fatalf("translateTimeout=%v, want %v", cfg.TranslateTimeout, DefaultTranslateTimeout)
	}
	if cfg.DefaultTargetLanguage != DefaultTargetLanguage {
		t.Fatalf("defaultTargetLanguage=%q, want %q", cfg.DefaultTargetLanguage, DefaultTargetLanguage)
	}
	if len(cfg.AllowedOrigins) != 0 {
		t.Fatalf("allowedOrigins=%v, want empty", cfg.AllowedOrigins)
	}
}

func TestDefaultsProdWhenModeFlagSet(t *testing.T) {
	cfg, err := load(noEnv, []string{"--mode", "prod"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogFormat != LogFormatJSON {
		t.Fatalf("logFormat=%q, want json in prod", cfg.LogFormat)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Fatalf("logLevel=%v, want info in prod", cfg.LogLevel)
	}
}

func TestExplicitLogFormatWinsOverMode(t *testing.T) {
	cfg, err := load(lookupMap(map[string]string{
		envVarMode:      "prod",
		envVarLogFormat: "text",
	}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogFormat != LogFormatText {
		t.Fatalf("logFormat=%q, want explicit text", cfg.LogFormat)
	}
}

func TestAllowedOrigins_NormalizedFromEnv(t *testing.T) {
	cfg, err := load(lookupMap(map[string]string{
		envVarAllowedOrigins: "HTTPS://App.Example.com:443, http://localhost:3000",
	}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := []string{"https://app.example.com", "http://localhost:3000"}
	if len(cfg.AllowedOrigins) != len(want) {
		t.Fatalf("allowedOrigins=%v, want %v", cfg.AllowedOrigins, want)
	}
	for i := range want {
		if cfg.AllowedOrigins[i] != want[i] {
			t.Fatalf("allowedOrigins[%d]=%q, want %q", i, cfg.AllowedOrigins[i], want[i])
		}
	}
}

func TestAllowedOrigins_InvalidEntryRejected(t *testing.T) {
	_, err := load(lookupMap(map[string]string{
		envVarAllowedOrigins: "ftp://files.example.com",
	}), nil)
	if err == nil || !strings.Contains(err.Error(), envVarAllowedOrigins) {
		t.Fatalf("err=%v, want invalid allowlist error naming %s", err, envVarAllowedOrigins)
	}
}

func TestTranslationProvider_GoogleRequiresKey(t *testing.T) {
	_, err := load(lookupMap(map[string]string{
		envVarTranslationProvider: "google",
	}), nil)
	if err == nil || !strings.Contains(err.Error(), envVarGoogleTranslateAPIKey) {
		t.Fatalf("err=%v, want error naming %s", err, envVarGoogleTranslateAPIKey)
	}

	cfg, err := load(lookupMap(map[string]string{
		envVarTranslationProvider:   "google",
		envVarGoogleTranslateAPIKey: "k",
	}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TranslationProvider != TranslationProviderGoogle || cfg.GoogleTranslateAPIKey != "k" {
		t.Fatalf("cfg=%+v", cfg)
	}
}

func TestTranslationProvider_AzureRequiresKeyAndRegion(t *testing.T) {
	_, err := load(lookupMap(map[string]string{
		envVarTranslationProvider: "azure",
		envVarAzureTranslatorKey:  "k",
	}), nil)
	if err == nil || !strings.Contains(err.Error(), envVarAzureTranslatorRegion) {
		t.Fatalf("err=%v, want error naming %s", err, envVarAzureTranslatorRegion)
	}

	cfg, err := load(lookupMap(map[string]string{
		envVarTranslationProvider:     "azure",
		envVarAzureTranslatorKey:      "k",
		envVarAzureTranslatorRegion:   "eastus",
		envVarAzureTranslatorEndpoint: "https://alt.example.com",
	}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AzureTranslatorEndpoint != "https://alt.example.com" {
		t.Fatalf("azureEndpoint=%q", cfg.AzureTranslatorEndpoint)
	}
}

func TestTranslationProvider_UnknownRejected(t *testing.T) {
	_, err := load(lookupMap(map[string]string{
		envVarTranslationProvider: "babelfish",
	}), nil)
	if err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

func TestFlagOverridesEnv(t *testing.T) {
	cfg, err := load(lookupMap(map[string]string{
		envVarListenAddr: "127.0.0.1:9999",
	}), []string{"--listen-addr", "0.0.0.0:8080"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != "0.0.0.0:8080" {
		t.Fatalf("listenAddr=%q, want flag value", cfg.ListenAddr)
	}
}

func TestInvalidDurationsRejected(t *testing.T) {
	for _, env := range []string{envVarShutdownTimeout, envVarTranslateTimeout} {
		_, err := load(lookupMap(map[string]string{env: "soon"}), nil)
		if err == nil || !strings.Contains(err.Error(), env) {
			t.Fatalf("err=%v, want parse error naming %s", err, env)
		}
	}
}

func TestShutdownTimeoutMustBePositive(t *testing.T) {
	_, err := load(lookupMap(map[string]string{envVarShutdownTimeout: "-1s"}), nil)
	if err == nil {
		t.Fatalf("expected error for negative shutdown timeout")
	}
	if _, err := load(noEnv, []string{"--shutdown-timeout", "30s"}); err != nil {
		t.Fatalf("load: %v", err)
	}
}

func TestRateLimitsMustBePositive(t *testing.T) {
	if _, err := load(lookupMap(map[string]string{envVarMaxSignalingMessageBytes: "0"}), nil); err == nil {
		t.Fatalf("expected error for zero message size cap")
	}
	if _, err := load(lookupMap(map[string]string{envVarMaxSignalingMessagesPerSecond: "-1"}), nil); err == nil {
		t.Fatalf("expected error for negative message rate cap")
	}
}

func TestTranslateTimeoutOverride(t *testing.T) {
	cfg, err := load(lookupMap(map[string]string{envVarTranslateTimeout: "3s"}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TranslateTimeout != 3*time.Second {
		t.Fatalf("translateTimeout=%v, want 3s", cfg.TranslateTimeout)
	}
}
