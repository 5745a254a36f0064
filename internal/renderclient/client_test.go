package renderclient_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bmsrender/internal/render"
	"bmsrender/internal/renderclient"
)

func TestClientDecodesStreamedDiagnostics(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT, got %s", r.Method)
		}
		if r.URL.Path != "/render/op-1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprintln(w, `{"operationId":"op-1","events":[{"time":"2026-03-01T10:00:00Z","event":"start"}]}`)
		fmt.Fprintln(w, `{"operationId":"op-1","events":[{"time":"2026-03-01T10:00:00Z","event":"start"}],"outFile":"/tmp/out.mp3","finishedAt":"2026-03-01T10:05:00Z"}`)
	}))
	defer server.Close()

	client := renderclient.New(server.URL, time.Minute)
	result, err := client.Render(context.Background(), "op-1", "http://example.com/pkg.zip")
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if result.OperationID != "op-1" {
		t.Fatalf("unexpected operation id %q", result.OperationID)
	}
	if result.OutFile != "/tmp/out.mp3" {
		t.Fatalf("expected final stream line to win, got %+v", result)
	}
	if result.FinishedAt == nil {
		t.Fatal("expected finish timestamp from final line")
	}
}

func TestClientReportsNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "source url is not valid", http.StatusBadRequest)
	}))
	defer server.Close()

	client := renderclient.New(server.URL, time.Minute)
	_, err := client.Render(context.Background(), "op-2", "ftp://example.com/pkg.zip")
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	if !strings.Contains(err.Error(), "400") || !strings.Contains(err.Error(), "source url is not valid") {
		t.Fatalf("expected status and body in error, got %q", err)
	}
}

func TestClientReportsEmptyStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := renderclient.New(server.URL, time.Minute)
	_, err := client.Render(context.Background(), "op-3", "http://example.com/pkg.zip")
	if err == nil {
		t.Fatal("expected error for empty stream")
	}
	if !strings.Contains(render.Describe(err), "no result line") {
		t.Fatalf("expected empty-stream indication, got %q", err)
	}
}
