package lim

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetRealIPNoProxies(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.7:54321"
	r.Header.Set("X-Forwarded-For", "198.51.100.1")
	// Without trusted proxies the XFF header is attacker-controlled and ignored.
	if ip := GetRealIP(r, nil); ip != "203.0.113.7" {
		t.Errorf("ip = %q, want 203.0.113.7", ip)
	}
}

func TestGetRealIPTrustedProxy(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:443"
	r.Header.Set("X-Forwarded-For", "198.51.100.1, 10.0.0.2")
	ip := GetRealIP(r, []string{"10.0.0.1", "10.0.0.2"})
	if ip != "198.51.100.1" {
		t.Errorf("ip = %q, want first untrusted hop 198.51.100.1", ip)
	}
}

func TestGetRealIPTrustedCIDR(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.1.2.3:443"
	r.Header.Set("X-Forwarded-For", "198.51.100.9")
	ip := GetRealIP(r, []string{"10.0.0.0/8"})
	if ip != "198.51.100.9" {
		t.Errorf("ip = %q, want 198.51.100.9", ip)
	}
}

func TestGetRealIPUntrustedRemote(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.7:1"
	r.Header.Set("X-Forwarded-For", "198.51.100.1")
	if ip := GetRealIP(r, []string{"10.0.0.1"}); ip != "203.0.113.7" {
		t.Errorf("ip = %q, spoofed XFF honored from untrusted remote", ip)
	}
}

func TestGetRealIPMalformedXFF(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:443"
	r.Header.Set("X-Forwarded-For", "garbage, , also-garbage")
	if ip := GetRealIP(r, []string{"10.0.0.1"}); ip != "10.0.0.1" {
		t.Errorf("ip = %q, want fallback to remote addr", ip)
	}
}

func TestLocalFallbackThrottles(t *testing.T) {
	l := New(60, 10, 3, nil, nil)
	defer l.Stop()
	r := httptest.NewRequest(http.MethodPost, "/add", nil)
	r.RemoteAddr = "203.0.113.7:1"
	w := httptest.NewRecorder()
	allowed := 0
	for i := 0; i < 10; i++ {
		if l.CheckLimit(w, r, "create").Allowed {
			allowed++
		}
	}
	// Burst equals the conservative limit; refill is too slow to matter here.
	if allowed != 3 {
		t.Errorf("allowed = %d, want 3", allowed)
	}
}

func TestLocalFallbackIsolatesEndpoints(t *testing.T) {
	l := New(60, 10, 2, nil, nil)
	defer l.Stop()
	r := httptest.NewRequest(http.MethodPost, "/add", nil)
	r.RemoteAddr = "203.0.113.8:1"
	w := httptest.NewRecorder()
	for i := 0; i < 5; i++ {
		l.CheckLimit(w, r, "create")
	}
	if !l.CheckLimit(w, r, "read").Allowed {
		t.Error("read budget exhausted by create traffic")
	}
}

func TestAdaptiveModeHalvesLimit(t *testing.T) {
	l := New(60, 10, 4, nil, nil)
	defer l.Stop()
	l.TriggerAdaptiveMode()
	r := httptest.NewRequest(http.MethodPost, "/add", nil)
	r.RemoteAddr = "203.0.113.9:1"
	w := httptest.NewRecorder()
	allowed := 0
	for i := 0; i < 10; i++ {
		if l.CheckLimit(w, r, "create").Allowed {
			allowed++
		}
	}
	if allowed != 2 {
		t.Errorf("allowed = %d under adaptive mode, want 2", allowed)
	}
}

func TestNewPanicsOnBadProxy(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("bad trusted proxy accepted")
		}
	}()
	New(60, 10, 5, nil, []string{"not-an-ip"})
}
