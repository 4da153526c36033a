package api

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/flightchat/internal/config"
	"github.com/miradorstack/flightchat/internal/grpc/chatv1"
)

type panickingService struct {
	chatv1.UnimplementedChatServiceServer
}

func (panickingService) Analyse(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	panic("slice bounds out of range")
}

func startServer(t *testing.T, service chatv1.ChatServiceServer) *grpc.ClientConn {
	t.Helper()
	srv, err := NewServer(config.ServerConfig{Address: "127.0.0.1:0", GracefulTimeout: time.Second}, service, nil)
	require.NoError(t, err)
	go func() { _ = srv.Start() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), srv.GracefulTimeout())
		defer cancel()
		srv.Shutdown(ctx)
	})

	conn, err := grpc.NewClient(srv.Address(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestServerServesHealth(t *testing.T) {
	conn := startServer(t, &serviceStub{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: chatv1.ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestServerRecoversHandlerPanic(t *testing.T) {
	conn := startServer(t, panickingService{})
	client := chatv1.NewChatServiceClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := client.Analyse(ctx, &structpb.Struct{})
	require.Error(t, err)
	assert.Equal(t, codes.Internal, status.Code(err))

	// The process survives and keeps serving.
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestRecoveryUnaryInterceptorPassesThrough(t *testing.T) {
	interceptor := RecoveryUnaryInterceptor(slog.Default())
	resp, err := interceptor(context.Background(), "in", &grpc.UnaryServerInfo{FullMethod: "/x"}, func(_ context.Context, req any) (any, error) {
		return req, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "in", resp)
}
