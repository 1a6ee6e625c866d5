package config

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/voxmeet/signal-relay/internal/origin"
)

const (
	envVarListenAddr      = "SIGNAL_RELAY_LISTEN_ADDR"
	envVarMode            = "SIGNAL_RELAY_MODE"
	envVarLogFormat       = "SIGNAL_RELAY_LOG_FORMAT"
	envVarLogLevel        = "SIGNAL_RELAY_LOG_LEVEL"
	envVarShutdownTimeout = "SIGNAL_RELAY_SHUTDOWN_TIMEOUT"
	envVarAllowedOrigins  = "ALLOWED_ORIGINS"

	// WebSocket hardening.
	envVarMaxSignalingMessageBytes      = "MAX_SIGNALING_MESSAGE_BYTES"
	envVarMaxSignalingMessagesPerSecond = "MAX_SIGNALING_MESSAGES_PER_SECOND"

	// Translation provider selection and credentials.
	envVarTranslationProvider     = "TRANSLATION_PROVIDER"
	envVarGoogleTranslateAPIKey   = "GOOGLE_TRANSLATE_API_KEY"
	envVarAzureTranslatorKey      = "AZURE_TRANSLATOR_KEY"
	envVarAzureTranslatorRegion   = "AZURE_TRANSLATOR_REGION"
	envVarAzureTranslatorEndpoint = "AZURE_TRANSLATOR_ENDPOINT"
	envVarTranslateTimeout        = "TRANSLATE_TIMEOUT"
	envVarDefaultTargetLanguage   = "DEFAULT_TARGET_LANGUAGE"
)

const (
	DefaultListenAddr      = "127.0.0.1:8080"
	DefaultShutdown        = 15 * time.Second
	DefaultMode       Mode = ModeDev

	DefaultMaxSignalingMessageBytes      = int64(64 * 1024)
	DefaultMaxSignalingMessagesPerSecond = 50

	DefaultTranslationProvider TranslationProvider = TranslationProviderNone
	DefaultTranslateTimeout                        = 10 * time.Second
	DefaultTargetLanguage                          = "en"
)

type Mode string

const (
	ModeDev  Mode = "dev"
	ModeProd Mode = "prod"
)

type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

type TranslationProvider string

const (
	TranslationProviderNone   TranslationProvider = "none"
	TranslationProviderGoogle TranslationProvider = "google"
	TranslationProviderAzure  TranslationProvider = "azure"
)

type Config struct {
	ListenAddr      string
	AllowedOrigins  []string
	LogFormat       LogFormat
	LogLevel        slog.Level
	ShutdownTimeout time.Duration
	Mode            Mode

	MaxSignalingMessageBytes      int64
	MaxSignalingMessagesPerSecond int

	TranslationProvider     TranslationProvider
	GoogleTranslateAPIKey   string
	AzureTranslatorKey      string
	AzureTranslatorRegion   string
	AzureTranslatorEndpoint string
	TranslateTimeout        time.Duration
	DefaultTargetLanguage   string
}

func Load(args []string) (Config, error) {
	return load(os.LookupEnv, args)
}

func load(lookup func(string) (string, bool), args []string) (Config, error) {
	envMode, _ := lookup(envVarMode)
	modeDefault := string(DefaultMode)
	if envMode != "" {
		modeDefault = envMode
	}

	envLogFormat, envLogFormatOK := lookup(envVarLogFormat)
	envLogFormatSet := envLogFormatOK && envLogFormat != ""
	logFormatDefault := envLogFormat
	if !envLogFormatSet {
		logFormatDefault = defaultLogFormatForMode(modeDefault)
	}

	envLogLevel, envLogLevelOK := lookup(envVarLogLevel)
	envLogLevelSet := envLogLevelOK && envLogLevel != ""
	logLevelDefault := envLogLevel
	if !envLogLevelSet {
		logLevelDefault = defaultLogLevelForMode(modeDefault)
	}

	listenAddr := envOrDefault(lookup, envVarListenAddr, DefaultListenAddr)
	allowedOriginsStr := envOrDefault(lookup, envVarAllowedOrigins, "")

	shutdownTimeout := DefaultShutdown
	if raw, ok := lookup(envVarShutdownTimeout); ok && raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s %q: %w", envVarShutdownTimeout, raw, err)
		}
		shutdownTimeout = d
	}

	maxSignalingMessageBytes := DefaultMaxSignalingMessageBytes
	if raw, ok := lookup(envVarMaxSignalingMessageBytes); ok && strings.TrimSpace(raw) != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s %q: %w", envVarMaxSignalingMessageBytes, raw, err)
		}
		maxSignalingMessageBytes = n
	}

	maxSignalingMessagesPerSecond, err := envIntOrDefault(lookup, envVarMaxSignalingMessagesPerSecond, DefaultMaxSignalingMessagesPerSecond)
	if err != nil {
		return Config{}, err
	}

	providerDefault := string(DefaultTranslationProvider)
	if raw, ok := lookup(envVarTranslationProvider); ok && strings.TrimSpace(raw) != "" {
		providerDefault = strings.TrimSpace(raw)
	}

	googleAPIKey := envOrDefault(lookup, envVarGoogleTranslateAPIKey, "")
	azureKey := envOrDefault(lookup, envVarAzureTranslatorKey, "")
	azureRegion := envOrDefault(lookup, envVarAzureTranslatorRegion, "")
	azureEndpoint := envOrDefault(lookup, envVarAzureTranslatorEndpoint, "")

	translateTimeout := DefaultTranslateTimeout
	if raw, ok := lookup(envVarTranslateTimeout); ok && strings.TrimSpace(raw) != "" {
		d, err := time.ParseDuration(strings.TrimSpace(raw))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s %q: %w", envVarTranslateTimeout, raw, err)
		}
		translateTimeout = d
	}

	defaultTargetLanguage := envOrDefault(lookup, envVarDefaultTargetLanguage, DefaultTargetLanguage)

	fs := flag.NewFlagSet("signal-relay", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		modeStr      string
		logFormatStr string
		logLevelStr  string
		providerStr  string
	)

	fs.StringVar(&listenAddr, "listen-addr", listenAddr, "HTTP listen address (host:port)")
	fs.StringVar(&allowedOriginsStr, "allowed-origins", allowedOriginsStr, "Comma-separated list of allowed browser origins (env "+envVarAllowedOrigins+")")
	fs.StringVar(&modeStr, "mode", modeDefault, "Run mode: dev or prod")
	fs.StringVar(&logFormatStr, "log-format", logFormatDefault, "Log format: text or json")
	fs.StringVar(&logLevelStr, "log-level", logLevelDefault, "Log level: debug, info, warn, error")
	fs.DurationVar(&shutdownTimeout, "shutdown-timeout", shutdownTimeout, "Graceful shutdown timeout (e.g. 15s)")
	fs.Int64Var(&maxSignalingMessageBytes, "max-signaling-message-bytes", maxSignalingMessageBytes, "Max inbound signaling WS message size in bytes (env "+envVarMaxSignalingMessageBytes+")")
	fs.IntVar(&maxSignalingMessagesPerSecond, "max-signaling-messages-per-second", maxSignalingMessagesPerSecond, "Max inbound signaling WS messages per second (env "+envVarMaxSignalingMessagesPerSecond+")")
	fs.StringVar(&providerStr, "translation-provider", providerDefault, "Translation provider: none, google, or azure (env "+envVarTranslationProvider+")")
	fs.StringVar(&googleAPIKey, "google-translate-api-key", googleAPIKey, "Google Cloud Translation API key (env "+envVarGoogleTranslateAPIKey+")")
	fs.StringVar(&azureKey, "azure-translator-key", azureKey, "Azure Translator subscription key (env "+envVarAzureTranslatorKey+")")
	fs.StringVar(&azureRegion, "azure-translator-region", azureRegion, "Azure Translator resource region (env "+envVarAzureTranslatorRegion+")")
	fs.StringVar(&azureEndpoint, "azure-translator-endpoint", azureEndpoint, "Azure Translator endpoint override (env "+envVarAzureTranslatorEndpoint+")")
	fs.DurationVar(&translateTimeout, "translate-timeout", translateTimeout, "Per-request translation provider timeout (env "+envVarTranslateTimeout+")")
	fs.StringVar(&defaultTargetLanguage, "default-target-language", defaultTargetLanguage, "Fallback target language for utterance fan-out (env "+envVarDefaultTargetLanguage+")")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	setFlags := map[string]bool{}
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	mode, err := parseMode(modeStr)
	if err != nil {
		return Config{}, err
	}

	if !envLogFormatSet && !setFlags["log-format"] {
		logFormatStr = defaultLogFormatForMode(string(mode))
	}
	if !envLogLevelSet && !setFlags["log-level"] {
		logLevelStr = defaultLogLevelForMode(string(mode))
	}

	logFormat, err := parseLogFormat(logFormatStr)
	if err != nil {
		return Config{}, err
	}

	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	provider, err := parseTranslationProvider(providerStr)
	if err != nil {
		return Config{}, err
	}

	allowedOrigins, ok := origin.ParseAllowlist(allowedOriginsStr)
	if !ok {
		return Config{}, fmt.Errorf("invalid %s/--allowed-origins %q", envVarAllowedOrigins, allowedOriginsStr)
	}

	if listenAddr == "" {
		return Config{}, fmt.Errorf("listen address must not be empty")
	}
	if shutdownTimeout <= 0 {
		return Config{}, fmt.Errorf("shutdown timeout must be > 0")
	}
	if maxSignalingMessageBytes <= 0 {
		return Config{}, fmt.Errorf("%s/--max-signaling-message-bytes must be > 0", envVarMaxSignalingMessageBytes)
	}
	if maxSignalingMessagesPerSecond <= 0 {
		return Config{}, fmt.Errorf("%s/--max-signaling-messages-per-second must be > 0", envVarMaxSignalingMessagesPerSecond)
	}
	if translateTimeout <= 0 {
		return Config{}, fmt.Errorf("%s/--translate-timeout must be > 0", envVarTranslateTimeout)
	}
	if strings.TrimSpace(defaultTargetLanguage) == "" {
		return Config{}, fmt.Errorf("%s/--default-target-language must not be empty", envVarDefaultTargetLanguage)
	}
	if provider == TranslationProviderGoogle && strings.TrimSpace(googleAPIKey) == "" {
		return Config{}, fmt.Errorf("%s must be set when %s=%s", envVarGoogleTranslateAPIKey, envVarTranslationProvider, TranslationProviderGoogle)
	}
	if provider == TranslationProviderAzure {
		if strings.TrimSpace(azureKey) == "" {
			return Config{}, fmt.Errorf("%s must be set when %s=%s", envVarAzureTranslatorKey, envVarTranslationProvider, TranslationProviderAzure)
		}
		if strings.TrimSpace(azureRegion) == "" {
			return Config{}, fmt.Errorf("%s must be set when %s=%s", envVarAzureTranslatorRegion, envVarTranslationProvider, TranslationProviderAzure)
		}
	}

	return Config{
		ListenAddr:      listenAddr,
		AllowedOrigins:  allowedOrigins,
		LogFormat:       logFormat,
		LogLevel:        level,
		ShutdownTimeout: shutdownTimeout,
		Mode:            mode,

		MaxSignalingMessageBytes:      maxSignalingMessageBytes,
		MaxSignalingMessagesPerSecond: maxSignalingMessagesPerSecond,

		TranslationProvider:     provider,
		GoogleTranslateAPIKey:   googleAPIKey,
		AzureTranslatorKey:      azureKey,
		AzureTranslatorRegion:   azureRegion,
		AzureTranslatorEndpoint: azureEndpoint,
		TranslateTimeout:        translateTimeout,
		DefaultTargetLanguage:   strings.TrimSpace(defaultTargetLanguage),
	}, nil
}

func NewLogger(cfg Config) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	switch cfg.LogFormat {
	case LogFormatText:
		handler = slog.NewTextHandler(os.Stdout, opts)
	case LogFormatJSON:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		return nil, fmt.Errorf("unsupported log format %q", cfg.LogFormat)
	}

	return slog.New(handler), nil
}

func envOrDefault(lookup func(string) (string, bool), key, fallback string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(lookup func(string) (string, bool), key string, fallback int) (int, error) {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return n, nil
}

func defaultLogFormatForMode(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case string(ModeProd), "production":
		return string(LogFormatJSON)
	default:
		return string(LogFormatText)
	}
}

func defaultLogLevelForMode(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case string(ModeProd), "production":
		return "info"
	default:
		return "debug"
	}
}

func parseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(ModeDev), "development":
		return ModeDev, nil
	case string(ModeProd), "production":
		return ModeProd, nil
	default:
		return "", fmt.Errorf("invalid mode %q (expected dev or prod)", raw)
	}
}

func parseLogFormat(raw string) (LogFormat, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(LogFormatText):
		return LogFormatText, nil
	case string(LogFormatJSON):
		return LogFormatJSON, nil
	default:
		return "", fmt.Errorf("invalid log format %q (expected text or json)", raw)
	}
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q (expected debug, info, warn, error)", raw)
	}
}

func parseTranslationProvider(raw string) (TranslationProvider, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(TranslationProviderNone), "":
		return TranslationProviderNone, nil
	case string(TranslationProviderGoogle):
		return TranslationProviderGoogle, nil
	case string(TranslationProviderAzure):
		return TranslationProviderAzure, nil
	default:
		return "", fmt.Errorf("invalid translation provider %q (expected none, google, or azure)", raw)
	}
}
