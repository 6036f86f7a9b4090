// Package testutil holds shared test helpers.
package testutil

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/dnaeon/go-vcr.v2/cassette"
	"gopkg.in/dnaeon/go-vcr.v2/recorder"
)

// NewVCRRecorder creates a replaying VCR recorder over the named
// cassette under testdata/fixtures. Set VCR_MODE=record with a real
// GEMINI_API_KEY to re-record cassettes.
func NewVCRRecorder(t *testing.T, cassetteName string) (*recorder.Recorder, func()) {
	t.Helper()

	mode := recorder.ModeReplaying
	if os.Getenv("VCR_MODE") == "record" {
		mode = recorder.ModeRecording
	}

	cassettePath := filepath.Join("testdata", "fixtures", cassetteName)

	r, err := recorder.NewAsMode(cassettePath, mode, nil)
	if err != nil {
		t.Fatalf("Failed to create VCR recorder: %v", err)
	}

	// Match on method and URL path only: request bodies carry prompts
	// and the SDK may add query parameters.
	r.SetMatcher(func(r *http.Request, i cassette.Request) bool {
		if r.Method != i.Method {
			return false
		}
		recorded := i.URL
		if idx := strings.Index(recorded, "?"); idx != -1 {
			recorded = recorded[:idx]
		}
		return strings.HasSuffix(recorded, r.URL.Path)
	})

	cleanup := func() {
		if err := r.Stop(); err != nil {
			t.Errorf("Failed to stop VCR recorder: %v", err)
		}
	}

	return r, cleanup
}

// VCRHTTPClient returns an HTTP client that replays through r.
func VCRHTTPClient(r *recorder.Recorder) *http.Client {
	return &http.Client{
		Transport: r,
	}
}
