package otlpreceiver

import (
	"context"
	"sync"
	"testing"
	"time"

	collectortrace "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// captureReceiver records received spans for assertions.
type captureReceiver struct {
	mu    sync.Mutex
	spans []*tracepb.ResourceSpans
}

func (c *captureReceiver) ReceiveSpans(ctx context.Context, spans []*tracepb.ResourceSpans) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.spans = append(c.spans, spans...)
	return nil
}

func (c *captureReceiver) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.spans)
}

func (c *captureReceiver) first() *tracepb.ResourceSpans {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.spans) == 0 {
		return nil
	}
	return c.spans[0]
}

func TestNewServer(t *testing.T) {
	server, err := NewServer(Config{Host: "127.0.0.1", Port: 0}, &captureReceiver{})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	defer server.Stop()

	if server.Endpoint() == "" {
		t.Fatal("endpoint is empty")
	}
}

func TestNewServerNilReceiver(t *testing.T) {
	if _, err := NewServer(Config{Host: "127.0.0.1", Port: 0}, nil); err == nil {
		t.Fatal("expected error for nil receiver")
	}
}

func TestServerStartStop(t *testing.T) {
	server, err := NewServer(Config{Host: "127.0.0.1", Port: 0}, &captureReceiver{})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start(ctx)
	}()

	time.Sleep(100 * time.Millisecond)
	server.Stop()

	select {
	case <-errChan:
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop in time")
	}
}

func TestExport(t *testing.T) {
	receiver := &captureReceiver{}
	server, err := NewServer(Config{Host: "127.0.0.1", Port: 0}, receiver)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		server.Start(ctx)
	}()
	defer server.Stop()

	time.Sleep(100 * time.Millisecond)

	conn, err := grpc.NewClient(server.Endpoint(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("failed to create grpc client: %v", err)
	}
	defer conn.Close()

	client := collectortrace.NewTraceServiceClient(conn)

	req := &collectortrace.ExportTraceServiceRequest{
		ResourceSpans: []*tracepb.ResourceSpans{
			{
				Resource: &resourcepb.Resource{
					Attributes: []*commonpb.KeyValue{
						{
							Key: "service.name",
							Value: &commonpb.AnyValue{
								Value: &commonpb.AnyValue_StringValue{StringValue: "checkout"},
							},
						},
					},
				},
				ScopeSpans: []*tracepb.ScopeSpans{
					{
						Spans: []*tracepb.Span{
							{
								TraceId:           []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
								SpanId:            []byte{1, 2, 3, 4, 5, 6, 7, 8},
								Name:              "POST /orders",
								Kind:              tracepb.Span_SPAN_KIND_SERVER,
								StartTimeUnixNano: uint64(time.Now().UnixNano()),
								EndTimeUnixNano:   uint64(time.Now().UnixNano()),
							},
						},
					},
				},
			},
		},
	}

	resp, err := client.Export(context.Background(), req)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if resp == nil {
		t.Fatal("response is nil")
	}

	time.Sleep(50 * time.Millisecond)

	if receiver.count() != 1 {
		t.Fatalf("expected 1 resource span, got %d", receiver.count())
	}

	rs := receiver.first()
	if len(rs.ScopeSpans) != 1 || len(rs.ScopeSpans[0].Spans) != 1 {
		t.Fatalf("unexpected payload shape: %+v", rs)
	}
	if got := rs.ScopeSpans[0].Spans[0].Name; got != "POST /orders" {
		t.Errorf("span name = %q, want %q", got, "POST /orders")
	}
}

func TestExportMultipleRequests(t *testing.T) {
	receiver := &captureReceiver{}
	server, err := NewServer(Config{Host: "127.0.0.1", Port: 0}, receiver)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		server.Start(ctx)
	}()
	defer server.Stop()

	time.Sleep(100 * time.Millisecond)

	conn, err := grpc.NewClient(server.Endpoint(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("failed to create grpc client: %v", err)
	}
	defer conn.Close()

	client := collectortrace.NewTraceServiceClient(conn)

	for i := 0; i < 5; i++ {
		req := &collectortrace.ExportTraceServiceRequest{
			ResourceSpans: []*tracepb.ResourceSpans{
				{
					Resource: &resourcepb.Resource{},
					ScopeSpans: []*tracepb.ScopeSpans{
						{
							Spans: []*tracepb.Span{
								{
									TraceId:           []byte{byte(i + 1), 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
									SpanId:            []byte{byte(i + 1), 2, 3, 4, 5, 6, 7, 8},
									Name:              "op",
									StartTimeUnixNano: uint64(time.Now().UnixNano()),
									EndTimeUnixNano:   uint64(time.Now().UnixNano()),
								},
							},
						},
					},
				},
			},
		}
		if _, err := client.Export(context.Background(), req); err != nil {
			t.Fatalf("Export %d failed: %v", i, err)
		}
	}

	time.Sleep(100 * time.Millisecond)

	if receiver.count() != 5 {
		t.Fatalf("expected 5 resource spans, got %d", receiver.count())
	}
}
