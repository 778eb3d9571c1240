// Integration tests for the docdeps gRPC service
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/nainya/docdeps/internal/corpus"
	"github.com/nainya/docdeps/internal/logger"
	"github.com/nainya/docdeps/internal/metrics"
	"github.com/nainya/docdeps/pkg/document"
	"github.com/nainya/docdeps/pkg/resolver"
)

const bufSize = 1024 * 1024

const testCorpus = `[
  {"docId": "A", "docLabel": "Doc A", "docTitle": "Alpha", "status": {},
   "references": {"normative": ["C", "B"], "bibliographic": ["D"]}},
  {"docId": "B", "docLabel": "Doc B", "docTitle": "Bravo", "status": {"superseded": true, "withdrawn": true},
   "references": {"normative": ["C"]}},
  {"docId": "C", "docLabel": "Doc C", "docTitle": "Charlie", "status": {"withdrawn": true}},
  {"docId": "D", "docLabel": "Doc D", "docTitle": "Delta", "status": {},
   "references": {"bibliographic": ["ghost"]}}
]`

type testEnv struct {
	server  *Server
	client  *Client
	conn    *grpc.ClientConn
	metrics *metrics.Metrics
}

func setupTestServer(t *testing.T) *testEnv {
	path := filepath.Join(t.TempDir(), "documents.json")
	require.NoError(t, os.WriteFile(path, []byte(testCorpus), 0644))

	m := metrics.NewMetrics(prometheus.NewRegistry())
	log := logger.Nop()

	holder := corpus.NewHolder(path, log, m)
	require.NoError(t, holder.Load())

	srv := NewServer(holder, resolver.DefaultOptions(), log, m)

	lis := bufconn.Listen(bufSize)
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(GrpcMetricsInterceptor(m, log)))
	srv.Register(grpcServer)

	go func() {
		// Server closed is expected during cleanup
		_ = grpcServer.Serve(lis)
	}()

	bufDialer := func(context.Context, string) (net.Conn, error) {
		return lis.Dial()
	}

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(bufDialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		grpcServer.Stop()
		lis.Close()
	})

	return &testEnv{server: srv, client: NewClient(conn), conn: conn, metrics: m}
}

func TestResolveNormative(t *testing.T) {
	env := setupTestServer(t)

	resp, err := env.client.Resolve(context.Background(), ResolveRequest{DocID: "A"})
	require.NoError(t, err)

	assert.Equal(t, "A", resp.Seed)
	assert.Equal(t, "normative", resp.Category)
	assert.Equal(t, []resolver.Entry{
		{DocID: "B", Label: "Doc B", Title: "Bravo", Qualifier: "[S]"},
		{DocID: "C", Label: "Doc C", Title: "Charlie", Qualifier: "[W]"},
	}, resp.Entries)
	assert.Empty(t, resp.Missing)

	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.GrpcRequestsTotal.WithLabelValues(ResolveMethod, "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.ResolutionsTotal.WithLabelValues("normative", "success")))
}

func TestResolveBibliographicDangling(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	_, err := env.client.Resolve(ctx, ResolveRequest{DocID: "A", Category: "bibliographic"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, document.ErrNotFound))

	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, codes.NotFound, remote.Code)
	assert.Contains(t, remote.Message, "ghost")

	resp, err := env.client.Resolve(ctx, ResolveRequest{DocID: "A", Category: "bibliographic", OnMissing: "skip"})
	require.NoError(t, err)
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, "D", resp.Entries[0].DocID)
	assert.Equal(t, []string{"ghost"}, resp.Missing)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.DanglingReferencesTotal.WithLabelValues("bibliographic")))
}

func TestResolveMaxDepth(t *testing.T) {
	env := setupTestServer(t)

	resp, err := env.client.Resolve(context.Background(), ResolveRequest{DocID: "B", MaxDepth: Depth(1)})
	require.NoError(t, err)
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, "C", resp.Entries[0].DocID)
}

const chainCorpus = `[
  {"docId": "A", "docLabel": "Doc A", "docTitle": "Alpha", "status": {}, "references": {"normative": ["B"]}},
  {"docId": "B", "docLabel": "Doc B", "docTitle": "Bravo", "status": {}, "references": {"normative": ["C"]}},
  {"docId": "C", "docLabel": "Doc C", "docTitle": "Charlie", "status": {}}
]`

func TestResolveDepthOverridesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "documents.json")
	require.NoError(t, os.WriteFile(path, []byte(chainCorpus), 0644))
	holder := corpus.NewHolder(path, nil, nil)
	require.NoError(t, holder.Load())

	defaults := resolver.DefaultOptions()
	defaults.MaxDepth = 1
	srv := NewServer(holder, defaults, nil, nil)
	ctx := context.Background()

	ids := func(resp *ResolveResponse) []string {
		var out []string
		for _, e := range resp.Entries {
			out = append(out, e.DocID)
		}
		return out
	}

	tests := []struct {
		name  string
		depth *int
		want  []string
	}{
		{"server default", nil, []string{"B"}},
		{"explicit unlimited", Depth(0), []string{"B", "C"}},
		{"explicit two hops", Depth(2), []string{"B", "C"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := srv.ResolveDependencies(ctx, ResolveRequest{DocID: "A", MaxDepth: tt.depth})
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(resp))
		})
	}
}

func TestResolveErrors(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  ResolveRequest
		code codes.Code
	}{
		{"missing doc id", ResolveRequest{}, codes.InvalidArgument},
		{"unknown category", ResolveRequest{DocID: "A", Category: "informative"}, codes.InvalidArgument},
		{"unknown policy", ResolveRequest{DocID: "A", OnMissing: "ignore"}, codes.InvalidArgument},
		{"negative depth", ResolveRequest{DocID: "A", MaxDepth: Depth(-1)}, codes.InvalidArgument},
		{"unknown seed", ResolveRequest{DocID: "Z"}, codes.NotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.client.Resolve(ctx, tt.req)
			var remote *RemoteError
			require.True(t, errors.As(err, &remote), "got %v", err)
			assert.Equal(t, tt.code, remote.Code)
		})
	}
}

func TestResolveEmptyClosure(t *testing.T) {
	env := setupTestServer(t)

	resp, err := env.client.Resolve(context.Background(), ResolveRequest{DocID: "C"})
	require.NoError(t, err)
	assert.Empty(t, resp.Entries)
}

func TestHealth(t *testing.T) {
	env := setupTestServer(t)
	hc := healthpb.NewHealthClient(env.conn)

	resp, err := hc.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)

	env.server.Shutdown()
	resp, err = hc.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)
}

func TestCorpusNotLoaded(t *testing.T) {
	holder := corpus.NewHolder(filepath.Join(t.TempDir(), "absent.json"), nil, nil)
	srv := NewServer(holder, resolver.DefaultOptions(), nil, nil)

	_, err := srv.ResolveDependencies(context.Background(), ResolveRequest{DocID: "A"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corpus not loaded")
}

func TestInterceptorLogsPerMethod(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLogger(logger.Config{Level: "debug", Output: &buf})
	m := metrics.NewMetrics(prometheus.NewRegistry())
	intercept := GrpcMetricsInterceptor(m, log)

	info := &grpc.UnaryServerInfo{FullMethod: ResolveMethod}
	failing := func(context.Context, interface{}) (interface{}, error) {
		return nil, status.Error(codes.NotFound, "document not found: Z")
	}
	_, err := intercept(context.Background(), nil, info, failing)
	require.Error(t, err)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "grpc", line["component"])
	assert.Equal(t, ServiceName, line["grpc_service"])
	assert.Equal(t, "Resolve", line["grpc_method"])
	assert.Equal(t, "error", line["level"])
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GrpcRequestsTotal.WithLabelValues(ResolveMethod, "error")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.GrpcRequestsInFlight))
}

func TestObservabilityEndpoints(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	m.RecordCorpusLoad(4, nil)

	ready := false
	obs := NewObservabilityServer(0, reg, func() bool { return ready }, logger.Nop())
	h := obs.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	ready = true
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "docdeps_corpus_documents 4")
}
