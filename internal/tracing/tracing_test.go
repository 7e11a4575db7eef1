package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name        string
		cfg         Config
		expectError bool
	}{
		{
			name: "disabled",
			cfg:  Config{Enabled: false},
		},
		{
			name:        "enabled without endpoint",
			cfg:         Config{Enabled: true},
			expectError: true,
		},
		{
			name: "insecure skip verify",
			cfg:  Config{Enabled: true, Endpoint: "localhost:4317", TLSInsecure: true},
		},
		{
			name:        "missing CA file",
			cfg:         Config{Enabled: true, Endpoint: "localhost:4317", TLSCAPath: "/nope/ca.crt"},
			expectError: true,
		},
		{
			name: "plaintext",
			cfg:  Config{Enabled: true, Endpoint: "localhost:4317"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, err := NewProvider(tc.cfg)
			if tc.expectError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.cfg.Enabled, p.Enabled())
			assert.NotNil(t, p.Tracer("test"))
			assert.NoError(t, p.Shutdown(context.Background()))
		})
	}
}
