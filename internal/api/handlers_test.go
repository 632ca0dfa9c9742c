package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/miradorstack/pingwatch/internal/config"
	"github.com/miradorstack/pingwatch/internal/models"
)

type fakeSource struct {
	statuses []models.TargetStatus
}

func (f *fakeSource) Snapshot() []models.TargetStatus {
	return f.statuses
}

func (f *fakeSource) Status(address string) (models.TargetStatus, bool) {
	for _, st := range f.statuses {
		if st.Target.Address == address {
			return st, true
		}
	}
	return models.TargetStatus{}, false
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "pingwatch_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	source := &fakeSource{statuses: []models.TargetStatus{
		{Target: models.Target{Address: "8.8.8.8"}, Healthy: true, RTTP50Ms: 12, RTTSampleCount: 3, LastRTTMs: models.Float(11)},
		{Target: models.Target{Name: "edge", Address: "10.0.0.1"}, Healthy: false, ConsecutiveLoss: 2, LastPacketLoss: models.Float(100)},
	}}
	return NewRouter(source, reg, nil)
}

func TestListTargets(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/targets", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body TargetsResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Targets) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(body.Targets))
	}
	if body.Targets[1].ConsecutiveLoss != 2 || body.Targets[1].Healthy {
		t.Fatalf("unexpected second target: %+v", body.Targets[1])
	}
	if body.Targets[0].LastRTTMs == nil || *body.Targets[0].LastRTTMs != 11 {
		t.Fatalf("expected last rtt 11, got %+v", body.Targets[0])
	}
}

func TestGetTarget(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/targets/10.0.0.1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var status models.TargetStatus
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Target.Name != "edge" {
		t.Fatalf("unexpected target: %+v", status.Target)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/targets/192.0.2.1", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHealthzAndMetrics(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("unexpected healthz response %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "pingwatch_test_total 1") {
		t.Fatalf("metrics endpoint did not expose registry: %q", rec.Body.String())
	}
}

func TestHealthServerTracksTargets(t *testing.T) {
	targets := []models.Target{{Address: "8.8.8.8"}, {Address: "1.1.1.1"}}
	srv, err := NewServer(config.ServerConfig{GRPCAddress: "127.0.0.1:0", GracefulTimeout: time.Second}, targets)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	go func() { _ = srv.Start() }()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	conn, err := grpc.NewClient(srv.Address(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	check := func(service string) healthpb.HealthCheckResponse_ServingStatus {
		t.Helper()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
		if err != nil {
			t.Fatalf("check %q: %v", service, err)
		}
		return resp.GetStatus()
	}

	if got := check(TargetService("8.8.8.8")); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING before first tick, got %v", got)
	}

	srv.ObserveStatus(models.TargetStatus{Target: targets[0], Healthy: false})
	if got := check(TargetService("8.8.8.8")); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected NOT_SERVING after lossy tick, got %v", got)
	}
	if got := check(TargetService("1.1.1.1")); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("other targets must be unaffected, got %v", got)
	}
	if got := check(""); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("overall status should stay SERVING, got %v", got)
	}
}
