package renderclient_test

import (
	"errors"
	"strings"
	"testing"

	"bmsrender/internal/renderclient"
)

func TestDecodeLastJSONKeepsFinalLine(t *testing.T) {
	stream := strings.Join([]string{
		`{"n":1}`,
		"",
		`{"n":2,"done":false}`,
		`{"n":3,"done":true}`,
	}, "\n")

	var out struct {
		N    int  `json:"n"`
		Done bool `json:"done"`
	}
	if err := renderclient.DecodeLastJSON(strings.NewReader(stream), &out); err != nil {
		t.Fatalf("DecodeLastJSON failed: %v", err)
	}
	if out.N != 3 || !out.Done {
		t.Fatalf("expected final line to win, got %+v", out)
	}
}

func TestDecodeLastJSONSkipsMalformedLines(t *testing.T) {
	stream := "{\"n\":1}\nnot json at all\n{\"n\":2\n"

	var out struct {
		N int `json:"n"`
	}
	if err := renderclient.DecodeLastJSON(strings.NewReader(stream), &out); err != nil {
		t.Fatalf("DecodeLastJSON failed: %v", err)
	}
	if out.N != 1 {
		t.Fatalf("expected last well-formed line, got %+v", out)
	}
}

func TestDecodeLastJSONEmptyStream(t *testing.T) {
	var out map[string]any
	err := renderclient.DecodeLastJSON(strings.NewReader("\n  \nnope\n"), &out)
	if !errors.Is(err, renderclient.ErrNoResult) {
		t.Fatalf("expected ErrNoResult, got %v", err)
	}
}
