// Package openai is a thin client over the OpenAI HTTP API covering the three
// calls the bot makes: chat completions, audio transcription and image analysis.
package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	apperrors "github.com/lumi-labs/lumi-bot/internal/errors"
	"github.com/lumi-labs/lumi-bot/pkg/metrics"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Models names the model per call type.
type Models struct {
	Text       string
	Vision     string
	Transcribe string
}

// Client talks to the OpenAI API with a fixed per-request timeout and no retries.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	models     Models
	log        *slog.Logger
}

// NewClient builds a Client. baseURL may be empty for the public endpoint.
func NewClient(apiKey, baseURL string, models Models, timeout time.Duration, log *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
		models:     models,
		log:        log,
	}
}

// Message is one entry of a chat completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionParams carries the per-plan sampling knobs.
type CompletionParams struct {
	MaxTokens        int
	Temperature      float64
	PresencePenalty  float64
	FrequencyPenalty float64
}

type chatRequest struct {
	Model            string    `json:"model"`
	Messages         []Message `json:"messages"`
	MaxTokens        int       `json:"max_tokens,omitempty"`
	Temperature      float64   `json:"temperature,omitempty"`
	PresencePenalty  float64   `json:"presence_penalty,omitempty"`
	FrequencyPenalty float64   `json:"frequency_penalty,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Complete runs a chat completion and returns the assistant reply text.
func (c *Client) Complete(ctx context.Context, messages []Message, params CompletionParams) (string, error) {
	started := time.Now()

	body, err := json.Marshal(chatRequest{
		Model:            c.models.Text,
		Messages:         messages,
		MaxTokens:        params.MaxTokens,
		Temperature:      params.Temperature,
		PresencePenalty:  params.PresencePenalty,
		FrequencyPenalty: params.FrequencyPenalty,
	})
	if err != nil {
		return "", apperrors.NewCompletionError(err)
	}

	var parsed chatResponse
	if err := c.postJSON(ctx, "/chat/completions", body, &parsed); err != nil {
		metrics.RecordCompletionError("completion")
		return "", apperrors.NewCompletionError(err)
	}

	if parsed.Error != nil {
		metrics.RecordCompletionError("completion")
		return "", apperrors.NewCompletionError(fmt.Errorf("openai: %s", parsed.Error.Message))
	}
	if len(parsed.Choices) == 0 {
		metrics.RecordCompletionError("completion")
		return "", apperrors.NewCompletionError(fmt.Errorf("openai: empty choices"))
	}

	metrics.RecordCompletion(time.Since(started))

	return parsed.Choices[0].Message.Content, nil
}

type transcriptionResponse struct {
	Text  string    `json:"text"`
	Error *apiError `json:"error"`
}

// Transcribe converts an audio stream into text.
func (c *Client) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)

	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return "", apperrors.NewTranscriptionError(err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return "", apperrors.NewTranscriptionError(err)
	}
	if err := form.WriteField("model", c.models.Transcribe); err != nil {
		return "", apperrors.NewTranscriptionError(err)
	}
	if err := form.Close(); err != nil {
		return "", apperrors.NewTranscriptionError(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", &buf)
	if err != nil {
		return "", apperrors.NewTranscriptionError(err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordCompletionError("transcription")
		return "", apperrors.NewTranscriptionError(err)
	}
	defer closeBody(resp.Body, c.log)

	var parsed transcriptionResponse
	if err := decodeResponse(resp, &parsed); err != nil {
		metrics.RecordCompletionError("transcription")
		return "", apperrors.NewTranscriptionError(err)
	}
	if parsed.Error != nil {
		metrics.RecordCompletionError("transcription")
		return "", apperrors.NewTranscriptionError(fmt.Errorf("openai: %s", parsed.Error.Message))
	}

	return parsed.Text, nil
}

type visionRequest struct {
	Model     string          `json:"model"`
	Messages  []visionMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens,omitempty"`
}

type visionMessage struct {
	Role    string       `json:"role"`
	Content []visionPart `json:"content"`
}

type visionPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *visionImageURL `json:"image_url,omitempty"`
}

type visionImageURL struct {
	URL string `json:"url"`
}

// Describe analyzes an image and returns the model's description. The image
// is inlined as a base64 data URL, matching the API's vision content format.
func (c *Client) Describe(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))

	body, err := json.Marshal(visionRequest{
		Model: c.models.Vision,
		Messages: []visionMessage{
			{
				Role: "user",
				Content: []visionPart{
					{Type: "text", Text: prompt},
					{Type: "image_url", ImageURL: &visionImageURL{URL: dataURL}},
				},
			},
		},
		MaxTokens: 500,
	})
	if err != nil {
		return "", apperrors.NewVisionError(err)
	}

	var parsed chatResponse
	if err := c.postJSON(ctx, "/chat/completions", body, &parsed); err != nil {
		metrics.RecordCompletionError("vision")
		return "", apperrors.NewVisionError(err)
	}

	if parsed.Error != nil {
		metrics.RecordCompletionError("vision")
		return "", apperrors.NewVisionError(fmt.Errorf("openai: %s", parsed.Error.Message))
	}
	if len(parsed.Choices) == 0 {
		metrics.RecordCompletionError("vision")
		return "", apperrors.NewVisionError(fmt.Errorf("openai: empty choices"))
	}

	return parsed.Choices[0].Message.Content, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer closeBody(resp.Body, c.log)

	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	// error payloads still carry a JSON body; surface the status when they don't
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("openai: status %d: %w", resp.StatusCode, err)
	}

	return nil
}

func closeBody(body io.Closer, log *slog.Logger) {
	if err := body.Close(); err != nil {
		log.Warn("failed to close response body", slog.Any("error", err))
	}
}
