// Package store is the HTTP client for the external exercise store. The
// store is optional: the service runs fully without it and only pushes
// recovered structures when configured.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client communicates with the exercise store HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// DocumentRequest is the body for PUT /documents/{doc_id}.
type DocumentRequest struct {
	Filename    string `json:"filename"`
	ContentHash string `json:"content_hash"`
	Pages       int    `json:"pages"`
	Exercises   int    `json:"exercises"`
	Solutions   int    `json:"solutions"`
	CreatedAt   string `json:"created_at"`
}

// ExerciseRequest is the body for PUT /documents/{doc_id}/exercises/{id}.
type ExerciseRequest struct {
	ExerciseNumber string  `json:"exercise_number"`
	Text           string  `json:"text"`
	Page           int     `json:"page"`
	EndPage        int     `json:"end_page"`
	IsSubQuestion  bool    `json:"is_sub_question"`
	ParentNumber   string  `json:"parent_number,omitempty"`
	SubMarker      string  `json:"sub_question_marker,omitempty"`
	SolutionPage   int     `json:"solution_page,omitempty"`
	Confidence     float64 `json:"confidence,omitempty"`
	HasMath        bool    `json:"has_math,omitempty"`
}

// PutDocument stores or updates document metadata.
func (c *Client) PutDocument(ctx context.Context, docID string, req DocumentRequest) error {
	return c.put(ctx, "/documents/"+docID, req)
}

// PutExercise stores one recovered exercise span.
func (c *Client) PutExercise(ctx context.Context, docID, exerciseID string, req ExerciseRequest) error {
	return c.put(ctx, "/documents/"+docID+"/exercises/"+exerciseID, req)
}

// ExistsByHash reports whether a document with this content hash is
// already stored, and its doc id if so.
func (c *Client) ExistsByHash(ctx context.Context, hash string) (bool, string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/documents/by-hash/"+hash, nil)
	if err != nil {
		return false, "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return false, "", fmt.Errorf("hash lookup: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return false, "", nil
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return false, "", fmt.Errorf("hash lookup %s: status %d: %s", hash, resp.StatusCode, string(respBody))
	}

	var result struct {
		DocID string `json:"doc_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, "", fmt.Errorf("decode hash lookup: %w", err)
	}
	return true, result.DocID, nil
}

func (c *Client) put(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("put %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("put %s: status %d: %s", path, resp.StatusCode, string(respBody))
	}
	return nil
}

// Close releases any resources.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
