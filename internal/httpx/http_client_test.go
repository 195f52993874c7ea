package httpx

import (
	"testing"
	"time"
)

func TestConfigureExternalHTTPClient(t *testing.T) {
	original := externalHTTPClient.Timeout
	t.Cleanup(func() { externalHTTPClient.Timeout = original })

	tests := []struct {
		seconds int
		want    time.Duration
	}{
		{seconds: 0, want: defaultExternalHTTPTimeout},
		{seconds: -3, want: defaultExternalHTTPTimeout},
		{seconds: 15, want: 15 * time.Second},
		{seconds: 120, want: 2 * time.Minute},
	}
	for _, tt := range tests {
		if got := ConfigureExternalHTTPClient(tt.seconds); got != tt.want {
			t.Fatalf("ConfigureExternalHTTPClient(%d) = %s, want %s", tt.seconds, got, tt.want)
		}
		if ExternalHTTPClient().Timeout != tt.want {
			t.Fatalf("shared client timeout = %s after configuring %d", ExternalHTTPClient().Timeout, tt.seconds)
		}
	}
	if ExternalHTTPClient() != externalHTTPClient {
		t.Fatal("ExternalHTTPClient must return the shared client")
	}
}
