package bridgehttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/BearBump/FreightWatch/internal/integrations/regulator"
	"github.com/pkg/errors"
)

// Client ходит в SOAP-мост регулятора по JSON. Сам SOAP/XML конверт и
// учётные данные — забота моста.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

func New(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:9100"
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type reportResp struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (c *Client) ReportEvent(ctx context.Context, ev regulator.Event) error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return errors.Wrap(err, "parse base url")
	}
	u.Path = "/v1/events"

	b, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(b))
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("regulator bridge rate limit (429)")
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("regulator bridge http %d", resp.StatusCode)
	}

	var r reportResp
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return errors.Wrap(err, "decode")
	}
	if r.Status != "ok" {
		return fmt.Errorf("regulator bridge status=%s error=%s", r.Status, r.Error)
	}
	return nil
}

type fetchResp struct {
	Status    string                     `json:"status"`
	Error     string                     `json:"error,omitempty"`
	Manifests []regulator.ManifestRecord `json:"manifests"`
}

func (c *Client) FetchPending(ctx context.Context, manifestIDs []string) ([]regulator.ManifestRecord, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	u.Path = "/v1/manifests/pending"

	b, err := json.Marshal(map[string]any{"manifest_ids": manifestIDs})
	if err != nil {
		return nil, errors.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(b))
	if err != nil {
		return nil, errors.Wrap(err, "new request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("regulator bridge http %d", resp.StatusCode)
	}

	var r fetchResp
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, errors.Wrap(err, "decode")
	}
	if r.Status != "ok" {
		return nil, fmt.Errorf("regulator bridge status=%s error=%s", r.Status, r.Error)
	}
	return r.Manifests, nil
}
