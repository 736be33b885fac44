package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ysa/internal/adapters/http/perf"
)

func serveTimed(collector *perf.Collector, method, path string, h http.HandlerFunc) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	Timing(collector, 0)(h).ServeHTTP(rr, httptest.NewRequest(method, path, nil))
	return rr
}

func ok(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

func TestTiming_RecordsPageRequests(t *testing.T) {
	collector := perf.NewCollector(10)
	serveTimed(collector, "POST", "/athlete/a1/requirements/r1", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusSeeOther)
	})

	snap := collector.Snapshot(time.Now().Add(-time.Minute), 10)
	if len(snap.SlowestPaths) != 1 {
		t.Fatalf("SlowestPaths len = %d, want 1", len(snap.SlowestPaths))
	}
	if got := snap.SlowestPaths[0].Path; got != "POST /athlete/a1/requirements/r1" {
		t.Errorf("Path = %q", got)
	}
	if snap.SlowestPaths[0].AvgMs < 0 {
		t.Errorf("AvgMs = %v, want >= 0", snap.SlowestPaths[0].AvgMs)
	}
}

func TestTiming_SkipsStaticAndLive(t *testing.T) {
	collector := perf.NewCollector(10)
	for _, p := range []string{"/static/app.js", "/live"} {
		var hijackable bool
		serveTimed(collector, "GET", p, func(w http.ResponseWriter, _ *http.Request) {
			_, hijackable = w.(*httptest.ResponseRecorder)
			w.WriteHeader(http.StatusOK)
		})
		if !hijackable {
			t.Errorf("%s: writer was wrapped", p)
		}
	}
	if collector.TotalRecorded() != 0 {
		t.Errorf("TotalRecorded = %d, want 0", collector.TotalRecorded())
	}
}

func TestTiming_CapturesStatusWithoutLeaking(t *testing.T) {
	collector := perf.NewCollector(10)
	rr := serveTimed(collector, "GET", "/admin", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	if rr.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rr.Code)
	}

	// Implicit 200 after a pooled writer saw 403.
	rr = serveTimed(collector, "GET", "/dashboard", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
	if collector.TotalRecorded() != 2 {
		t.Errorf("TotalRecorded = %d, want 2", collector.TotalRecorded())
	}
}

func TestTiming_NilCollector(t *testing.T) {
	if rr := serveTimed(nil, "GET", "/", ok); rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
}

// A panicking handler still records its timing before the panic propagates.
func TestTiming_HandlerPanic(t *testing.T) {
	collector := perf.NewCollector(10)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic to propagate")
		}
		if collector.TotalRecorded() != 1 {
			t.Errorf("TotalRecorded = %d, want 1", collector.TotalRecorded())
		}
	}()
	serveTimed(collector, "GET", "/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })
}

func BenchmarkTiming(b *testing.B) {
	handler := Timing(perf.NewCollector(perf.DefaultRingSize), 0)(http.HandlerFunc(ok))
	req := httptest.NewRequest("GET", "/dashboard", nil)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
}
