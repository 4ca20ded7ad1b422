package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"bialign/internal/llmfill"
)

var testBatch = []llmfill.MissingLine{{Order: 1, En: "Hello", EnTimestamp: "00:00:05"}}

var testCandidates = []llmfill.Candidate{{ID: "c1", Text: "你好", Timestamp: "00:00:05"}}

func TestResolveRetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/responses" {
			http.NotFound(w, r)
			return
		}

		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `{"error":{"message":"temporary failure"}}`)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"output_text":"{\"matches\":[{\"order\":1,\"candidateId\":\"c1\",\"confidence\":0.9}]}"}`)
	}))
	t.Cleanup(server.Close)

	client := NewClient("test-key", "gpt-5-mini", server.URL, &http.Client{Timeout: 3 * time.Second}, 1)

	matches, err := client.Resolve(context.Background(), testBatch, testCandidates)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(matches) != 1 || matches[0].Order != 1 || matches[0].CandidateID != "c1" {
		t.Fatalf("matches = %+v", matches)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("request calls = %d, want 2", calls)
	}
}

func TestResolveRetriesMalformedReply(t *testing.T) {
	t.Parallel()

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if atomic.AddInt32(&calls, 1) == 1 {
			_, _ = io.WriteString(w, `{"output_text":"I could not align these segments."}`)
			return
		}
		_, _ = io.WriteString(w, `{"output_text":"{\"matches\":[{\"order\":1,\"candidateId\":\"c1\"}]}"}`)
	}))
	t.Cleanup(server.Close)

	client := NewClient("test-key", "gpt-5-mini", server.URL, &http.Client{Timeout: 3 * time.Second}, 1)

	matches, err := client.Resolve(context.Background(), testBatch, testCandidates)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(matches) != 1 || matches[0].CandidateID != "c1" {
		t.Fatalf("matches = %+v", matches)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("request calls = %d, want 2", calls)
	}
}

func TestResolveFailsAfterPersistentlyMalformedReplies(t *testing.T) {
	t.Parallel()

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"output_text":"still not json"}`)
	}))
	t.Cleanup(server.Close)

	client := NewClient("test-key", "gpt-5-mini", server.URL, &http.Client{Timeout: 3 * time.Second}, 1)

	_, err := client.Resolve(context.Background(), testBatch, testCandidates)
	if err == nil {
		t.Fatalf("Resolve() error = nil, want parse failure after retries")
	}
	if !strings.Contains(err.Error(), "parse model reply") {
		t.Fatalf("Resolve() error = %v, want parse model reply", err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("request calls = %d, want 2", calls)
	}
}

func TestResolveDoesNotRetryOnBadRequest(t *testing.T) {
	t.Parallel()

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/responses" {
			http.NotFound(w, r)
			return
		}
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"bad request"}}`)
	}))
	t.Cleanup(server.Close)

	client := NewClient("test-key", "gpt-5-mini", server.URL, &http.Client{Timeout: 2 * time.Second}, 5)

	_, err := client.Resolve(context.Background(), testBatch, testCandidates)
	if err == nil {
		t.Fatalf("Resolve() error = nil, want error")
	}
	if !strings.Contains(err.Error(), "status 400") {
		t.Fatalf("Resolve() error = %v, want status 400", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("request calls = %d, want 1", calls)
	}
}

func TestResolveParsesFencedReply(t *testing.T) {
	t.Parallel()

	reply := "The alignment:\n```json\n{\"matches\":[{\"order\":1,\"candidateId\":\"c1\"}]}\n```"
	body, err := json.Marshal(map[string]string{"output_text": reply})
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(server.Close)

	client := NewClient("test-key", "gpt-5-mini", server.URL, &http.Client{Timeout: 2 * time.Second}, 0)

	matches, err := client.Resolve(context.Background(), testBatch, testCandidates)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(matches) != 1 || matches[0].CandidateID != "c1" {
		t.Fatalf("matches = %+v", matches)
	}
}

func TestResolveSendsBothPromptRoles(t *testing.T) {
	t.Parallel()

	var captured []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"output_text":"{\"matches\":[]}"}`)
	}))
	t.Cleanup(server.Close)

	client := NewClient("test-key", "gpt-5-mini", server.URL, &http.Client{Timeout: 2 * time.Second}, 0)
	if _, err := client.Resolve(context.Background(), testBatch, testCandidates); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	request := string(captured)
	for _, want := range []string{`"model":"gpt-5-mini"`, `"role":"developer"`, `"role":"user"`, "candidateId", "你好"} {
		if !strings.Contains(request, want) {
			t.Fatalf("request body missing %q:\n%s", want, request)
		}
	}
}

func TestExtractOutputTextFallsBackToOutputArray(t *testing.T) {
	t.Parallel()

	body := []byte(`{"output":[{"content":[{"type":"output_text","text":"first"},{"type":"other","text":"ignored"}]},{"content":[{"type":"output_text","text":"second"}]}]}`)
	got, err := extractOutputText(body)
	if err != nil {
		t.Fatalf("extractOutputText() error = %v", err)
	}
	if got != "first\nsecond" {
		t.Fatalf("extractOutputText() = %q, want %q", got, "first\nsecond")
	}
}

func TestExtractOutputTextReturnsErrorWhenMissingText(t *testing.T) {
	t.Parallel()

	_, err := extractOutputText([]byte(`{"output":[{"content":[{"type":"reasoning","text":"r"}]}]}`))
	if err == nil {
		t.Fatalf("extractOutputText() error = nil, want missing output error")
	}
	if !strings.Contains(err.Error(), "missing output_text") {
		t.Fatalf("extractOutputText() error = %v, want missing output_text message", err)
	}
}

func TestParseAPIErrorPrefersJSONMessage(t *testing.T) {
	t.Parallel()

	got := parseAPIError([]byte(`{"error":{"message":"quota exceeded"}}`))
	if got != "quota exceeded" {
		t.Fatalf("parseAPIError() = %q, want %q", got, "quota exceeded")
	}
}
