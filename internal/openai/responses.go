package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bialign/internal/llmfill"
)

const (
	defaultBaseURL    = "https://api.openai.com/v1"
	maxErrBody        = 2048
	defaultMaxRetries = 3
)

// Client binds the alignment resolver seam to the OpenAI Responses API.
type Client struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
	maxRetries int
}

var _ llmfill.Resolver = (*Client)(nil)

func NewClient(apiKey, model, baseURL string, httpClient *http.Client, maxRetries int) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	if strings.HasSuffix(baseURL, "/v1") {
		baseURL = strings.TrimSuffix(baseURL, "/v1")
	}
	if maxRetries < 0 {
		maxRetries = defaultMaxRetries
	}

	return &Client{
		apiKey:     apiKey,
		model:      model,
		endpoint:   baseURL + "/v1/responses",
		httpClient: httpClient,
		maxRetries: maxRetries,
	}
}

// Resolve sends one resolution request and parses the reply into matches.
func (c *Client) Resolve(ctx context.Context, missing []llmfill.MissingLine, candidates []llmfill.Candidate) ([]llmfill.Match, error) {
	userPrompt, err := buildUserPrompt(missing, candidates)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"model": c.model,
		"input": []map[string]any{
			{
				"type": "message",
				"role": "developer",
				"content": []map[string]any{
					{
						"type": "input_text",
						"text": systemPrompt,
					},
				},
			},
			{
				"type": "message",
				"role": "user",
				"content": []map[string]any{
					{
						"type": "input_text",
						"text": userPrompt,
					},
				},
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal OpenAI request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		output, retry, err := c.callResponses(ctx, body)
		if err == nil {
			matches, parseErr := llmfill.ParseMatches(output)
			if parseErr == nil {
				return matches, nil
			}
			// A malformed reply is as transient as a 5xx; ask again.
			err = fmt.Errorf("parse model reply: %w", parseErr)
			retry = true
		}

		lastErr = err
		if !retry || attempt == c.maxRetries {
			break
		}

		delay := backoffDelay(attempt)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if lastErr == nil {
		lastErr = errors.New("unknown resolution error")
	}
	return nil, lastErr
}

func (c *Client) callResponses(ctx context.Context, body []byte) (output string, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("build OpenAI request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("request OpenAI Responses API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, fmt.Errorf("read OpenAI response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message := parseAPIError(respBody)
		err := fmt.Errorf("OpenAI Responses API status %d: %s", resp.StatusCode, message)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			if retryAfter := parseRetryAfter(resp.Header.Get("Retry-After")); retryAfter > 0 {
				select {
				case <-time.After(retryAfter):
				case <-ctx.Done():
					return "", false, ctx.Err()
				}
			}
			return "", true, err
		}
		return "", false, err
	}

	output, err = extractOutputText(respBody)
	return output, false, err
}

const systemPrompt = "You align English transcript segments with unused Chinese candidate segments. " +
	"Match by semantics first, then by timestamp proximity. " +
	"Never invent or rewrite text. " +
	"candidateId must come from the supplied candidate list. " +
	"Use each candidate at most once. " +
	"Omit any match you are unsure about. " +
	`Reply with strict JSON only: {"matches":[{"order":n,"candidateId":"id","confidence":c}]}`

func buildUserPrompt(missing []llmfill.MissingLine, candidates []llmfill.Candidate) (string, error) {
	request := struct {
		Missing    []llmfill.MissingLine `json:"missing"`
		Candidates []llmfill.Candidate   `json:"candidates"`
	}{Missing: missing, Candidates: candidates}

	encoded, err := json.MarshalIndent(request, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal resolution request: %w", err)
	}

	var builder strings.Builder
	builder.WriteString("Unmatched English segments and unused Chinese candidates follow.\n")
	builder.WriteString("Return the matches object described in the system instructions.\n\n")
	builder.Write(encoded)
	return builder.String(), nil
}

func parseAPIError(body []byte) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(body, &parsed); err == nil && strings.TrimSpace(parsed.Error.Message) != "" {
		return parsed.Error.Message
	}

	snippet := strings.TrimSpace(string(body))
	if len(snippet) > maxErrBody {
		snippet = snippet[:maxErrBody] + "..."
	}
	if snippet == "" {
		return "empty error response"
	}
	return snippet
}

func extractOutputText(body []byte) (string, error) {
	var parsed struct {
		OutputText string `json:"output_text"`
		Output     []struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"output"`
	}

	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("parse OpenAI response JSON: %w", err)
	}

	if text := strings.TrimSpace(parsed.OutputText); text != "" {
		return text, nil
	}

	var builder strings.Builder
	for _, item := range parsed.Output {
		for _, content := range item.Content {
			if content.Type == "output_text" && content.Text != "" {
				if builder.Len() > 0 {
					builder.WriteString("\n")
				}
				builder.WriteString(content.Text)
			}
		}
	}

	if builder.Len() == 0 {
		return "", fmt.Errorf("OpenAI response missing output_text")
	}

	return strings.TrimSpace(builder.String()), nil
}

func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	if ts, err := http.ParseTime(value); err == nil {
		delta := time.Until(ts)
		if delta > 0 {
			return delta
		}
	}

	return 0
}

func backoffDelay(attempt int) time.Duration {
	base := time.Second
	delay := base * time.Duration(1<<attempt)
	jitter := time.Duration(rand.Intn(250)) * time.Millisecond
	max := 30 * time.Second
	if delay+jitter > max {
		return max
	}
	return delay + jitter
}
