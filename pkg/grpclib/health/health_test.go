package health

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestServer_SetServing(t *testing.T) {
	h := NewServer()
	ctx := context.Background()

	h.SetServing("EUR/AOA", true)
	resp, err := h.Checker().Check(ctx, &healthpb.HealthCheckRequest{Service: "EUR/AOA"})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)

	h.SetServing("EUR/AOA", false)
	resp, err = h.Checker().Check(ctx, &healthpb.HealthCheckRequest{Service: "EUR/AOA"})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)
}
