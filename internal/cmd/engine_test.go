package cmd

import (
	"testing"
	"time"
)

func TestProviderTimeoutFallback(t *testing.T) {
	fallback := 120 * time.Second
	tests := []struct {
		name    string
		seconds int
		want    time.Duration
	}{
		{"explicit timeout", 90, 90 * time.Second},
		{"zero uses fallback", 0, fallback},
		{"negative uses fallback", -5, fallback},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := providerTimeout(tt.seconds, fallback); got != tt.want {
				t.Errorf("providerTimeout(%d) = %v, want %v", tt.seconds, got, tt.want)
			}
		})
	}
}
