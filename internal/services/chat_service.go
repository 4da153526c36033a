package services

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/flightchat/internal/api"
	"github.com/miradorstack/flightchat/internal/conversation"
	"github.com/miradorstack/flightchat/internal/grpc/chatv1"
	"github.com/miradorstack/flightchat/internal/llm"
	"github.com/miradorstack/flightchat/internal/models"
	"github.com/miradorstack/flightchat/internal/utils"
)

// NewSessionID is the session id a client sends to be issued a fresh one.
const NewSessionID = "new"

// Orchestrator answers questions and analyses telemetry.
type Orchestrator interface {
	Process(ctx context.Context, req models.ChatRequest) (models.ChatResponse, error)
	Analyse(ctx context.Context, req models.AnalysisRequest) (models.AnalysisResponse, error)
}

// SessionStore drops conversation memories.
type SessionStore interface {
	Drop(id string) bool
}

// ChatService implements the gRPC ChatService.
type ChatService struct {
	chatv1.UnimplementedChatServiceServer

	logger       *slog.Logger
	orchestrator Orchestrator
	sessions     SessionStore
	latencies    *utils.LatencyTracker
}

// NewChatService constructs the chat service facade.
func NewChatService(logger *slog.Logger, orchestrator Orchestrator, sessions SessionStore) *ChatService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatService{
		logger:       logger,
		orchestrator: orchestrator,
		sessions:     sessions,
		latencies:    utils.NewLatencyTracker(1024),
	}
}

// Ask answers one question.
func (s *ChatService) Ask(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.orchestrator == nil {
		return nil, status.Error(codes.FailedPrecondition, "orchestrator not configured")
	}
	domainReq, err := api.FromProtoChatRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if domainReq.SessionID == NewSessionID {
		domainReq.SessionID = uuid.NewString()
	}

	s.logger.Debug("Ask called", slog.String("session_id", domainReq.SessionID), slog.Bool("telemetry", !domainReq.Telemetry.Empty()))

	start := time.Now()
	resp, err := s.orchestrator.Process(ctx, domainReq)
	if err != nil {
		return nil, s.statusFromError(err, "could not process the question")
	}
	s.observe(time.Since(start))

	out, err := api.ToProtoChatResponse(resp)
	if err != nil {
		s.logger.Error("encode chat response failed", slog.Any("error", err))
		return nil, status.Error(codes.Internal, "could not encode the answer")
	}
	return out, nil
}

// Analyse returns metrics and the telemetry sample relevant to a hint.
func (s *ChatService) Analyse(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.orchestrator == nil {
		return nil, status.Error(codes.FailedPrecondition, "orchestrator not configured")
	}
	domainReq, err := api.FromProtoAnalysisRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	resp, err := s.orchestrator.Analyse(ctx, domainReq)
	if err != nil {
		return nil, s.statusFromError(err, "could not analyse the telemetry")
	}
	out, err := api.ToProtoAnalysisResponse(resp)
	if err != nil {
		s.logger.Error("encode analysis response failed", slog.Any("error", err))
		return nil, status.Error(codes.Internal, "could not encode the analysis")
	}
	return out, nil
}

// ResetSession forgets a session's conversation memory.
func (s *ChatService) ResetSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.sessions == nil {
		return nil, status.Error(codes.FailedPrecondition, "session store not configured")
	}
	id, err := api.SessionIDFromProto(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if id == "" {
		id = conversation.DefaultSessionID
	}
	removed := s.sessions.Drop(id)
	s.logger.Info("session reset", slog.String("session_id", id), slog.Bool("removed", removed))
	return structpb.NewStruct(map[string]any{api.FieldSessionID: id, api.FieldRemoved: removed})
}

// LatencyP95 returns the current p95 answer latency.
func (s *ChatService) LatencyP95() time.Duration {
	if s.latencies == nil {
		return 0
	}
	return s.latencies.Percentile(95)
}

func (s *ChatService) observe(d time.Duration) {
	s.latencies.Observe(d)
	if count := s.latencies.Count(); count >= 20 && count%20 == 0 {
		s.logger.Info("chat latency", slog.Duration("p95", s.latencies.Percentile(95)), slog.Int("samples", count))
	}
}

// statusFromError maps orchestrator failures onto gRPC codes. Configuration
// problems surface as FailedPrecondition so clients do not retry them.
func (s *ChatService) statusFromError(err error, msg string) error {
	code := CodeOf(err)
	s.logger.Error(msg, slog.String("op", utils.OpOf(err)), slog.String("code", code.String()), slog.Any("error", err))
	switch code {
	case codes.FailedPrecondition:
		return status.Error(code, "llm is not configured: "+msg)
	default:
		return status.Error(code, msg)
	}
}

// CodeOf classifies an orchestrator error.
func CodeOf(err error) codes.Code {
	var cfgErr *llm.ConfigError
	var statusErr *llm.StatusError
	var netErr net.Error
	switch {
	case err == nil:
		return codes.OK
	case errors.As(err, &cfgErr):
		return codes.FailedPrecondition
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.Unavailable
	case errors.As(err, &statusErr):
		if statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= http.StatusInternalServerError {
			return codes.Unavailable
		}
		return codes.Internal
	case errors.As(err, &netErr):
		return codes.Unavailable
	default:
		return codes.Internal
	}
}
