// Package assist is the HTTP client for the generative assistant used for
// free-form chapter lookup and chapter illustrations.
//
// The endpoint contract is two JSON calls:
//
//	POST {base}/v1/locate      {"prompt": "..."}                      -> {"text": "Psalms 23"}
//	POST {base}/v1/illustrate  {"bookName","chapterNumber","prompt"}  -> image bytes
//
// Both send the API key as a bearer token.
package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/FocuswithJustin/JuniperReader/core/corpus"
	apperrors "github.com/FocuswithJustin/JuniperReader/core/errors"
	"github.com/FocuswithJustin/JuniperReader/core/nav"
	"github.com/FocuswithJustin/JuniperReader/internal/cache"
	"github.com/FocuswithJustin/JuniperReader/internal/illustration"
	"github.com/FocuswithJustin/JuniperReader/internal/logging"
)

// NotFoundAnswer is the locator's reply when it has no match.
const NotFoundAnswer = "Not found"

const (
	maxAnswerBytes = 4 << 10
	maxImageBytes  = 16 << 20
)

// LocatePrompt builds the prompt sent for a free-form query.
func LocatePrompt(query string) string {
	return fmt.Sprintf(`User search "%s". Return the most relevant Bible Book and Chapter. Format: "Book Chapter". Example: "Psalms 23". If not found, "%s".`, query, NotFoundAnswer)
}

// Config configures a Client.
type Config struct {
	BaseURL string
	APIKey  string

	// Timeout bounds each HTTP call. Zero means no client-side timeout.
	Timeout time.Duration

	// AnswerTTL is how long locate answers are reused. Zero disables reuse.
	AnswerTTL time.Duration

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to the assistant endpoint. It implements nav.Locator and
// illustration.Generator.
type Client struct {
	base    string
	key     string
	http    *http.Client
	log     *slog.Logger
	answers *cache.TTLCache[string, string]
}

var (
	_ nav.Locator            = (*Client)(nil)
	_ illustration.Generator = (*Client)(nil)
)

// New creates a client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, apperrors.NewValidation("base_url", "assist endpoint is required")
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	log := cfg.Logger
	if log == nil {
		log = logging.GetLogger()
	}
	c := &Client{
		base: strings.TrimRight(cfg.BaseURL, "/"),
		key:  cfg.APIKey,
		http: hc,
		log:  log,
	}
	if cfg.AnswerTTL > 0 {
		c.answers = cache.New[string, string](cfg.AnswerTTL, 512)
	}
	return c, nil
}

type locateRequest struct {
	Prompt string `json:"prompt"`
}

type locateResponse struct {
	Text string `json:"text"`
}

// Locate asks the assistant for the chapter best matching query. It returns
// nav.ErrLocatorNoMatch when the assistant answers "Not found".
func (c *Client) Locate(ctx context.Context, query string) (string, error) {
	cacheKey := corpus.Fold(strings.TrimSpace(query))
	if c.answers != nil {
		if answer, ok := c.answers.Get(cacheKey); ok {
			return c.answer(answer)
		}
	}

	body, err := json.Marshal(locateRequest{Prompt: LocatePrompt(query)})
	if err != nil {
		return "", apperrors.NewExternal("search", "locate", err)
	}

	resp, err := c.post(ctx, "/v1/locate", body)
	if err != nil {
		return "", c.fail("search", "locate", err)
	}
	defer resp.Body.Close()

	var out locateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxAnswerBytes)).Decode(&out); err != nil {
		return "", c.fail("search", "locate", fmt.Errorf("decode answer: %w", err))
	}

	answer := strings.Trim(strings.TrimSpace(out.Text), `"`)
	if c.answers != nil {
		c.answers.Set(cacheKey, answer)
	}
	return c.answer(answer)
}

func (c *Client) answer(text string) (string, error) {
	if text == "" || strings.EqualFold(text, NotFoundAnswer) {
		return "", nav.ErrLocatorNoMatch
	}
	return text, nil
}

// Generate requests an illustration.
func (c *Client) Generate(ctx context.Context, req illustration.Request) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	resp, err := c.post(ctx, "/v1/illustrate", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}
	if len(data) == 0 {
		return nil, errors.New("empty image")
	}
	return data, nil
}

// post sends body and returns a 2xx response.
func (c *Client) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.key != "" {
		req.Header.Set("Authorization", "Bearer "+c.key)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	c.log.Debug("assist call", "path", path, "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	return resp, nil
}

func (c *Client) fail(capability, op string, err error) error {
	logging.ExternalCallFailed(c.log, capability, op, err)
	return apperrors.NewExternal(capability, op, err)
}

// StatusError is a non-2xx reply from the endpoint.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("assist: HTTP %d", e.Code)
	}
	return fmt.Sprintf("assist: HTTP %d: %s", e.Code, e.Body)
}
