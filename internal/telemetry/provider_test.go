package telemetry_test

import (
	"context"
	"testing"

	"github.com/ganot/feeflow/internal/telemetry"
	"github.com/stretchr/testify/require"
)

func TestSetup_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := telemetry.Setup(context.Background(), "feeflow", "")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	_, span := telemetry.Tracer().Start(context.Background(), "noop")
	span.End()
}
