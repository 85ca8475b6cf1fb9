package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jwhit732/vto-mvp/internal/domain"
	"github.com/jwhit732/vto-mvp/internal/infra"
)

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client is a thin facade over the Gemini generateContent endpoint for
// image-to-image try-on edits. It performs exactly one call per request: no
// retries, no caching.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

// ImagePart is one inline image attachment, already base64-encoded.
type ImagePart struct {
	MIME string
	Data string
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiSafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP"`
	TopK            int     `json:"topK"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiGenerateContentRequest struct {
	Contents         []geminiContent         `json:"contents"`
	SafetySettings   []geminiSafetySetting   `json:"safetySettings,omitempty"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

// geminiRespPart tolerates both field-naming conventions the API has used
// for inline binary data.
type geminiRespPart struct {
	Text            string            `json:"text"`
	InlineData      *geminiInlineData `json:"inlineData"`
	InlineDataSnake *geminiInlineData `json:"inline_data"`
}

type geminiRespContent struct {
	Parts []geminiRespPart `json:"parts"`
}

type geminiCandidate struct {
	Content      geminiRespContent `json:"content"`
	FinishReason string            `json:"finishReason"`
}

type geminiGenerateContentResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

// safetySettings permit content unless the provider flags it at the highest
// severity tier.
var safetySettings = []geminiSafetySetting{
	{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: "BLOCK_ONLY_HIGH"},
	{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "BLOCK_ONLY_HIGH"},
	{Category: "HARM_CATEGORY_SEXUALLY_EXPLICIT", Threshold: "BLOCK_ONLY_HIGH"},
	{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: "BLOCK_ONLY_HIGH"},
}

var generationConfig = geminiGenerationConfig{
	Temperature:     0.4,
	TopP:            0.95,
	TopK:            40,
	MaxOutputTokens: 8192,
}

// NewClient constructs a Gemini client with sane defaults. Callers may
// provide a nil HTTP client; one with a 55 second timeout is created so a
// hung provider call cannot outlive a typical gateway window.
func NewClient(opts Options) *Client {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 55 * time.Second}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}

	model := opts.Model
	if model == "" {
		model = "gemini-2.5-flash-image-preview"
	}

	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}

	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: client,
		logger:     logger,
	}
}

// Model returns the configured Gemini model identifier.
func (c *Client) Model() string {
	return c.model
}

// TryOn sends the person and garment images plus the edit instruction and
// returns the generated composite, still base64-encoded.
func (c *Client) TryOn(ctx context.Context, person, garment ImagePart, instruction string) (string, error) {
	if c.apiKey == "" {
		return "", domain.ErrMissingCredential
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{
			{
				Role: "user",
				Parts: []geminiPart{
					{InlineData: &geminiInlineData{MimeType: person.MIME, Data: person.Data}},
					{InlineData: &geminiInlineData{MimeType: garment.MIME, Data: garment.Data}},
					{Text: instruction},
				},
			},
		},
		SafetySettings:   safetySettings,
		GenerationConfig: &generationConfig,
	}

	var response geminiGenerateContentResponse
	if err := c.invoke(ctx, fmt.Sprintf("/models/%s:generateContent", url.PathEscape(c.model)), payload, &response); err != nil {
		return "", err
	}

	if len(response.Candidates) == 0 {
		return "", fmt.Errorf("empty candidate list: %w", domain.ErrNoImage)
	}
	candidate := response.Candidates[0]

	switch reason := strings.ToUpper(candidate.FinishReason); reason {
	case "", "STOP", "MAX_TOKENS":
	case "SAFETY", "IMAGE_SAFETY", "PROHIBITED_CONTENT":
		return "", &domain.ContentPolicyError{Reason: "safety"}
	case "RECITATION":
		return "", &domain.ContentPolicyError{Reason: "recitation"}
	default:
		return "", &domain.UpstreamError{Message: "generation stopped: " + reason}
	}

	data := extractImage(candidate.Content.Parts)
	if data == "" {
		return "", fmt.Errorf("no inline image in candidate: %w", domain.ErrNoImage)
	}

	c.logger.Debug().
		Str("model", c.model).
		Int("image_chars", len(data)).
		Msg("genai: extracted generated image")

	return data, nil
}

func (c *Client) invoke(ctx context.Context, path string, payload any, out any) error {
	endpoint := c.baseURL + path
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	q := req.URL.Query()
	q.Set("key", c.apiKey)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &domain.UpstreamError{Message: "call provider: " + err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.classifyErrorBody(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.UpstreamError{Status: resp.StatusCode, Message: "decode provider response: " + err.Error()}
	}
	return nil
}

func (c *Client) classifyErrorBody(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))

	if looksLikeHTML(data) {
		return &domain.UpstreamError{
			Status:     resp.StatusCode,
			Message:    "unexpected response from provider endpoint",
			Unexpected: true,
		}
	}

	var apiErr geminiErrorResponse
	if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error.Message != "" {
		return &domain.UpstreamError{Status: resp.StatusCode, Message: apiErr.Error.Message}
	}

	return &domain.UpstreamError{Status: resp.StatusCode, Message: snippet(data, 200)}
}

func looksLikeHTML(body []byte) bool {
	lower := strings.ToLower(strings.TrimSpace(string(body)))
	return strings.HasPrefix(lower, "<!doctype") || strings.HasPrefix(lower, "<html") || strings.HasPrefix(lower, "<")
}

func snippet(data []byte, max int) string {
	s := strings.TrimSpace(string(data))
	if s == "" {
		return "empty body"
	}
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

// extractor pulls base64 image data out of one response part, or returns "".
type extractor func(geminiRespPart) string

// imageExtractors is tried in a fixed priority order; the first location
// with data across all parts wins.
var imageExtractors = []extractor{
	func(p geminiRespPart) string {
		if p.InlineData != nil {
			return p.InlineData.Data
		}
		return ""
	},
	func(p geminiRespPart) string {
		if p.InlineDataSnake != nil {
			return p.InlineDataSnake.Data
		}
		return ""
	},
	extractBase64Text,
}

func extractImage(parts []geminiRespPart) string {
	for _, extract := range imageExtractors {
		for _, part := range parts {
			if data := extract(part); data != "" {
				return data
			}
		}
	}
	return ""
}

var base64Run = regexp.MustCompile(`^[A-Za-z0-9+/]+={0,2}$`)

// extractBase64Text recovers image bytes the provider occasionally embeds as
// a long base64 run inside a plain text part.
func extractBase64Text(p geminiRespPart) string {
	text := strings.TrimSpace(p.Text)
	if len(text) <= 1000 {
		return ""
	}
	if !base64Run.MatchString(text) {
		return ""
	}
	return text
}
