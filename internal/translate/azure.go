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

const defaultAzureEndpoint = "https://api.cognitive.microsofttranslator.com"

// Azure calls the Azure Translator v3 REST API.
type Azure struct {
	key      string
	region   string
	endpoint string
	client   *http.Client
}

// AzureConfig holds Azure client configuration.
type AzureConfig struct {
	Key    string
	Region string
	// Endpoint overrides the public cloud endpoint, e.g. for sovereign clouds
	// or tests.
	Endpoint   string
	HTTPClient *http.Client
}

func NewAzure(cfg AzureConfig) (*Azure, error) {
	if cfg.Key == "" {
		return nil, errors.New("translate: azure key is not set")
	}
	if cfg.Region == "" {
		return nil, errors.New("translate: azure region is not set")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultAzureEndpoint
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	return &Azure{
		key:      cfg.Key,
		region:   cfg.Region,
		endpoint: cfg.Endpoint,
		client:   cfg.HTTPClient,
	}, nil
}

type azureItem struct {
	DetectedLanguage struct {
		Language string `json:"language"`
	} `json:"detectedLanguage"`
	Translations []struct {
		Text string `json:"text"`
		To   string `json:"to"`
	} `json:"translations"`
}

type azureError struct {
	Error struct {
		Message    string `json:"message"`
		InnerError struct {
			Message string `json:"message"`
		} `json:"innererror"`
	} `json:"error"`
}

func (a *Azure) Translate(ctx context.Context, text, targetLang, sourceLang string) (Result, error) {
	if text == "" {
		return Result{Text: "", DetectedSource: sourceLang}, nil
	}
	if targetLang == "" {
		return Result{}, errMissingTarget
	}

	params := url.Values{}
	params.Set("api-version", "3.0")
	params.Set("to", targetLang)
	params.Set("textType", "plain")
	if sourceLang != "" && sourceLang != SourceAuto {
		params.Set("from", sourceLang)
	}

	payload, err := json.Marshal([]map[string]string{{"Text": text}})
	if err != nil {
		return Result{}, fmt.Errorf("translate: marshal request: %w", err)
	}

	u := a.endpoint + "/translate?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("translate: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Ocp-Apim-Subscription-Key", a.key)
	req.Header.Set("Ocp-Apim-Subscription-Region", a.region)

	resp, err := a.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("translate: azure request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("translate: read azure response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr azureError
		msg := fmt.Sprintf("status %d", resp.StatusCode)
		if err := json.Unmarshal(raw, &apiErr); err == nil {
			switch {
			case apiErr.Error.Message != "":
				msg = apiErr.Error.Message
			case apiErr.Error.InnerError.Message != "":
				msg = apiErr.Error.InnerError.Message
			}
		}
		return Result{}, fmt.Errorf("translate: azure api error: %s", msg)
	}

	var items []azureItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return Result{}, fmt.Errorf("translate: decode azure response: %w", err)
	}
	if len(items) == 0 || len(items[0].Translations) == 0 {
		return Result{}, errors.New("translate: azure response has no translations")
	}

	detected := items[0].DetectedLanguage.Language
	if detected == "" {
		detected = sourceLang
	}
	return Result{Text: items[0].Translations[0].Text, DetectedSource: detected}, nil
}
