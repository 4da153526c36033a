package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/flightchat/internal/api"
	"github.com/miradorstack/flightchat/internal/grpc/chatv1"
	"github.com/miradorstack/flightchat/internal/models"
)

var (
	askTelemetryPath string
	askSessionID     string
	askRemote        string
	askTimeout       time.Duration
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask one question, locally or against a running server",
	Long: `Ask answers a single question. Without --remote the orchestrator runs
in-process; with --remote the question is sent to a flightchat gRPC server.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askTelemetryPath, "telemetry", "", "Path to a telemetry JSON file")
	askCmd.Flags().StringVar(&askSessionID, "session", "", "Conversation session id")
	askCmd.Flags().StringVar(&askRemote, "remote", "", "Address of a flightchat gRPC server")
	askCmd.Flags().DurationVar(&askTimeout, "timeout", 2*time.Minute, "Overall deadline for the answer")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")
	telemetry, err := readTelemetry(askTelemetryPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), askTimeout)
	defer cancel()

	var resp models.ChatResponse
	if askRemote != "" {
		resp, err = askRemoteServer(ctx, askRemote, models.ChatRequest{SessionID: askSessionID, Question: question, Telemetry: telemetry})
	} else {
		resp, err = askLocal(ctx, models.ChatRequest{SessionID: askSessionID, Question: question, Telemetry: telemetry})
	}
	if err != nil {
		return err
	}
	printAnswer(cmd.OutOrStdout(), resp)
	return nil
}

func askLocal(ctx context.Context, req models.ChatRequest) (models.ChatResponse, error) {
	a, err := buildApp(cfg, logger)
	if err != nil {
		return models.ChatResponse{}, err
	}
	defer a.Close()
	return a.orchestrator.Process(ctx, req)
}

func askRemoteServer(ctx context.Context, addr string, req models.ChatRequest) (models.ChatResponse, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return models.ChatResponse{}, fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	payload := map[string]any{
		api.FieldSessionID: req.SessionID,
		api.FieldQuestion:  req.Question,
	}
	if !req.Telemetry.Empty() {
		payload[api.FieldTelemetry] = map[string]any(req.Telemetry)
	}
	in, err := structpb.NewStruct(payload)
	if err != nil {
		return models.ChatResponse{}, fmt.Errorf("encode request: %w", err)
	}

	out, err := chatv1.NewChatServiceClient(conn).Ask(ctx, in)
	if err != nil {
		return models.ChatResponse{}, err
	}
	fields := out.AsMap()
	resp := models.ChatResponse{}
	resp.Answer, _ = fields[api.FieldAnswer].(string)
	resp.SessionID, _ = fields[api.FieldSessionID].(string)
	if path, ok := fields[api.FieldPath].(string); ok {
		resp.Path = models.ReasoningPath(path)
	}
	if list, ok := fields[api.FieldSuggestedQuestions].([]any); ok {
		for _, item := range list {
			if s, ok := item.(string); ok {
				resp.SuggestedQuestions = append(resp.SuggestedQuestions, s)
			}
		}
	}
	return resp, nil
}

func readTelemetry(path string) (models.Telemetry, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read telemetry: %w", err)
	}
	var telemetry models.Telemetry
	if err := json.Unmarshal(data, &telemetry); err != nil {
		return nil, fmt.Errorf("parse telemetry %s: %w", path, err)
	}
	return telemetry, nil
}

func printAnswer(w io.Writer, resp models.ChatResponse) {
	fmt.Fprintln(w, resp.Answer)
	if len(resp.SuggestedQuestions) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Suggested questions:")
		for _, q := range resp.SuggestedQuestions {
			fmt.Fprintf(w, "  - %s\n", q)
		}
	}
	fmt.Fprintf(w, "\n[path=%s session=%s]\n", resp.Path, resp.SessionID)
}
