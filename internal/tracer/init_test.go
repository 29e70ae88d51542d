package tracer

import (
	"context"
	"testing"

	"rag-chatbot-be/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTracer_DisabledIsNoop(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), config.TracingConfig{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSampleRatio(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{in: 0, want: 1},
		{in: -0.5, want: 1},
		{in: 1.5, want: 1},
		{in: 0.25, want: 0.25},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, sampleRatio(tt.in))
	}
}
