package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"examstruct/internal/document"
	"examstruct/internal/marker"
)

// ClaudeClient implements Oracle against the Anthropic Messages API.
type ClaudeClient struct {
	apiKey         string
	model          string
	maxPromptChars int
	httpClient     *http.Client
	stats          *Stats
}

// NewClaudeClient builds a client. maxPromptChars bounds the document text
// sent in proposal prompts (0 selects the default of 50k characters).
func NewClaudeClient(apiKey, model string, maxPromptChars int, timeout time.Duration) *ClaudeClient {
	if maxPromptChars <= 0 {
		maxPromptChars = DefaultMaxPromptChars
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &ClaudeClient{
		apiKey:         apiKey,
		model:          model,
		maxPromptChars: maxPromptChars,
		httpClient:     &http.Client{Timeout: timeout},
		stats:          NewStats(time.Hour),
	}
}

// Stats returns the latency tracker for this client's calls.
func (c *ClaudeClient) LatencyStats() *Stats { return c.stats }

// Model returns the configured model name.
func (c *ClaudeClient) Model() string { return c.model }

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Propose asks the model for exercise boundaries over the document prefix
// and parses the answer into marker candidates, dropping entries with
// missing markers or out-of-range pages.
func (c *ClaudeClient) Propose(ctx context.Context, doc *document.Document) ([]marker.Candidate, error) {
	prompt := buildProposalPrompt(doc, c.maxPromptChars)
	text, err := c.generate(ctx, proposalSystemPrompt, prompt, 4096)
	if err != nil {
		return nil, err
	}
	return parseProposal(text, doc.LastPageNumber())
}

// MatchSolutions asks the model to pair unmatched exercises with orphan
// pages. Malformed entries are dropped here; membership validation is the
// caller's job.
func (c *ClaudeClient) MatchSolutions(ctx context.Context, exercises []ExerciseRef, pages []PagePreview) ([]Pairing, error) {
	prompt := buildMatchPrompt(exercises, pages)
	text, err := c.generate(ctx, matchSystemPrompt, prompt, 500)
	if err != nil {
		return nil, err
	}
	return parsePairings(text)
}

// generate performs one Messages API call and returns the response text
// with any markdown code fence stripped.
func (c *ClaudeClient) generate(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	reqBody := anthropicRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		System:    system,
		Messages: []anthropicMessage{
			{Role: "user", Content: prompt},
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.anthropic.com/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("oracle api: %w", err)
	}
	defer resp.Body.Close()
	c.stats.Record(time.Since(start).Milliseconds())

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", &RetryableError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("oracle api status %d: %s", resp.StatusCode, string(respBody))
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if apiResp.Error != nil {
		return "", fmt.Errorf("oracle error: %s: %s", apiResp.Error.Type, apiResp.Error.Message)
	}
	if len(apiResp.Content) == 0 {
		return "", fmt.Errorf("empty response from oracle")
	}

	return stripCodeBlock(apiResp.Content[0].Text), nil
}

var codeBlockRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

func stripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// RetryableError indicates a transient oracle failure worth retrying.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// Close releases idle connections.
func (c *ClaudeClient) Close() {
	c.httpClient.CloseIdleConnections()
}
