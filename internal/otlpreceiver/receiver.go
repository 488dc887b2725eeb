// Package otlpreceiver implements the OTLP trace ingest endpoint: a gRPC
// server speaking the collector trace service, handing every export payload
// to a SpanReceiver.
package otlpreceiver

import (
	"context"
	"fmt"
	"net"
	"sync"

	collectortrace "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/grpc"
)

// SpanReceiver is the sink for received spans. Implementations must be
// thread-safe; Export is called concurrently.
type SpanReceiver interface {
	ReceiveSpans(ctx context.Context, spans []*tracepb.ResourceSpans) error
}

// Config holds configuration for the OTLP receiver.
type Config struct {
	Host string // e.g. "127.0.0.1"
	Port int    // 0 for ephemeral port assignment
}

// Server is the OTLP gRPC server that receives trace data.
type Server struct {
	listener     net.Listener
	grpcServer   *grpc.Server
	spanReceiver SpanReceiver
	stopOnce     sync.Once
	stopChan     chan struct{}
	stopDone     chan struct{}
}

// NewServer creates an OTLP gRPC server bound to the configured host and
// port (port 0 picks an ephemeral one). The listener is open on return;
// call Start to begin serving.
func NewServer(cfg Config, receiver SpanReceiver) (*Server, error) {
	if receiver == nil {
		return nil, fmt.Errorf("span receiver cannot be nil")
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	grpcServer := grpc.NewServer()

	server := &Server{
		listener:     listener,
		grpcServer:   grpcServer,
		spanReceiver: receiver,
		stopChan:     make(chan struct{}),
		stopDone:     make(chan struct{}, 1),
	}

	collectortrace.RegisterTraceServiceServer(grpcServer, &traceService{receiver: receiver})

	return server, nil
}

// Start serves OTLP requests until Stop is called or the context is
// cancelled. Typically run in a goroutine.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.stopChan:
			// Stop was called directly.
		}
	}()

	err := s.grpcServer.Serve(s.listener)
	s.stopDone <- struct{}{}
	return err
}

// Stop initiates graceful shutdown. Safe to call multiple times.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.grpcServer.GracefulStop()
		close(s.stopChan)
	})
}

// StopWait stops the server and waits for shutdown to complete.
func (s *Server) StopWait() {
	s.Stop()
	<-s.stopDone
}

// Endpoint returns the actual listening address as "host:port".
// Needed when binding to an ephemeral port.
func (s *Server) Endpoint() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// traceService implements the OTLP TraceService gRPC interface.
type traceService struct {
	collectortrace.UnimplementedTraceServiceServer
	receiver SpanReceiver
}

// Export handles incoming trace export requests, preserving the full OTLP
// structure ResourceSpans -> ScopeSpans -> Spans for the receiver.
func (t *traceService) Export(
	ctx context.Context,
	req *collectortrace.ExportTraceServiceRequest,
) (*collectortrace.ExportTraceServiceResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("request cannot be nil")
	}

	if err := t.receiver.ReceiveSpans(ctx, req.ResourceSpans); err != nil {
		return nil, fmt.Errorf("failed to receive spans: %w", err)
	}

	return &collectortrace.ExportTraceServiceResponse{}, nil
}
