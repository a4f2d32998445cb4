package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/vietddude/hivekit/internal/core/domain"
)

func TestPrintStatus(t *testing.T) {
	checked := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	endpoints := []domain.EndpointStatus{
		{URL: "https://api.hive.blog", LastCheck: &checked, ConsecutiveFailures: 2, LastError: "probe timed out"},
		{URL: "https://api.deathwing.me"},
	}

	var buf bytes.Buffer
	printStatus(&buf, domain.StatusDisconnected, "", "reconnect failed", endpoints)
	out := buf.String()

	for _, want := range []string{
		"Status:   disconnected",
		"retry budget exhausted",
		"Error:    reconnect failed",
		"probe timed out",
		"https://api.deathwing.me",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Endpoint:") {
		t.Errorf("disconnected status should not print an endpoint:\n%s", out)
	}
}
