package app

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/ibeckermayer/xscrape/internal/config"
	"github.com/ibeckermayer/xscrape/internal/types"
)

func TestBuildInstallsTracerProvider(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	cfg := config.Default()
	cfg.Credentials = []types.Credential{{Username: "wile", Password: "acme"}}
	cfg.Ledger.Path = ":memory:"
	cfg.Output.Dir = t.TempDir()

	rt, err := Build(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer rt.Close()

	require.NotNil(t, rt.Telemetry.TracerProvider)
	assert.Same(t, rt.Telemetry.TracerProvider, otel.GetTracerProvider())
}
