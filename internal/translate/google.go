package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

const defaultGoogleEndpoint = "https://translation.googleapis.com/language/translate/v2"

// Google calls the Google Cloud Translation v2 REST API using an API key.
type Google struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// GoogleConfig holds Google client configuration.
type GoogleConfig struct {
	APIKey string
	// Endpoint overrides the public API endpoint. Tests point this at a fake
	// server.
	Endpoint string
	// HTTPClient overrides the default client, e.g. to set a timeout.
	HTTPClient *http.Client
}

func NewGoogle(cfg GoogleConfig) (*Google, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("translate: google api key is not set")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultGoogleEndpoint
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	return &Google{
		apiKey:   cfg.APIKey,
		endpoint: cfg.Endpoint,
		client:   cfg.HTTPClient,
	}, nil
}

type googleRequest struct {
	Q      string `json:"q"`
	Target string `json:"target"`
	Format string `json:"format"`
	Source string `json:"source,omitempty"`
}

type googleResponse struct {
	Data struct {
		Translations []struct {
			TranslatedText         string `json:"translatedText"`
			DetectedSourceLanguage string `json:"detectedSourceLanguage"`
		} `json:"translations"`
	} `json:"data"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (g *Google) Translate(ctx context.Context, text, targetLang, sourceLang string) (Result, error) {
	if text == "" {
		return Result{Text: "", DetectedSource: sourceLang}, nil
	}
	if targetLang == "" {
		return Result{}, errMissingTarget
	}

	body := googleRequest{
		Q:      text,
		Target: targetLang,
		Format: "text",
	}
	if sourceLang != "" && sourceLang != SourceAuto {
		body.Source = sourceLang
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return Result{}, fmt.Errorf("translate: marshal request: %w", err)
	}

	u := g.endpoint + "?key=" + url.QueryEscape(g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("translate: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("translate: google request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("translate: read google response: %w", err)
	}

	var decoded googleResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Result{}, fmt.Errorf("translate: decode google response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := decoded.Error.Message
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return Result{}, fmt.Errorf("translate: google api error: %s", msg)
	}
	if len(decoded.Data.Translations) == 0 {
		return Result{}, errors.New("translate: google response has no translations")
	}

	tr := decoded.Data.Translations[0]
	detected := tr.DetectedSourceLanguage
	if detected == "" {
		detected = sourceLang
	}
	return Result{Text: tr.TranslatedText, DetectedSource: detected}, nil
}
