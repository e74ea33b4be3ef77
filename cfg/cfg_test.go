package cfg

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if c.Port != "4000" {
		t.Errorf("Port = %q, want 4000", c.Port)
	}
	if c.DatabasePath != "clipbin.db" {
		t.Errorf("DatabasePath = %q", c.DatabasePath)
	}
	if c.MaxPasteSize != 64*1024 {
		t.Errorf("MaxPasteSize = %d", c.MaxPasteSize)
	}
	if c.MaxPastes != 1_000_000 {
		t.Errorf("MaxPastes = %d", c.MaxPastes)
	}
	if c.SweepInterval != 10*time.Minute {
		t.Errorf("SweepInterval = %v", c.SweepInterval)
	}
	if c.RateLimit.RPM != 60 || c.RateLimit.Burst != 10 || c.RateLimit.ConservativeLimit != 5 {
		t.Errorf("RateLimit = %+v", c.RateLimit)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("MAX_PASTE_SIZE", "2048")
	t.Setenv("SWEEP_INTERVAL", "5m")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.1, 192.168.0.0/16")
	c, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if c.Port != "8080" {
		t.Errorf("Port = %q", c.Port)
	}
	if c.MaxPasteSize != 2048 {
		t.Errorf("MaxPasteSize = %d", c.MaxPasteSize)
	}
	if c.SweepInterval != 5*time.Minute {
		t.Errorf("SweepInterval = %v", c.SweepInterval)
	}
	if len(c.TrustedProxies) != 2 || c.TrustedProxies[0] != "10.0.0.1" || c.TrustedProxies[1] != "192.168.0.0/16" {
		t.Errorf("TrustedProxies = %v", c.TrustedProxies)
	}
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Setenv("MAX_PASTES", "lots")
	if _, err := Load(); err == nil {
		t.Error("malformed MAX_PASTES accepted")
	}
}

func validCfg() *Cfg {
	return &Cfg{
		Port:          "4000",
		Environment:   "development",
		DatabasePath:  ":memory:",
		LRUCacheSize:  100,
		RateLimit:     RateLimitCfg{RPM: 60, Burst: 10, ConservativeLimit: 5},
		MaxPasteSize:  64 * 1024,
		MaxPastes:     1000,
		MaxFieldLen:   100,
		SweepInterval: 10 * time.Minute,
	}
}

func TestValidateAccepts(t *testing.T) {
	if err := Validate(validCfg()); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Cfg)
		want   string
	}{
		{"empty port", func(c *Cfg) { c.Port = "" }, "PORT"},
		{"non-numeric port", func(c *Cfg) { c.Port = "http" }, "PORT"},
		{"empty db path", func(c *Cfg) { c.DatabasePath = "" }, "DATABASE_PATH"},
		{"db path escapes workdir", func(c *Cfg) { c.DatabasePath = "/etc/clipbin.db" }, "DATABASE_PATH"},
		{"bad redis scheme", func(c *Cfg) { c.RedisURL = "http://localhost:6379" }, "REDIS_URL"},
		{"rediss without tls", func(c *Cfg) { c.RedisURL = "rediss://host:6380"; c.RedisTLS = false }, "REDIS_TLS"},
		{"zero cache", func(c *Cfg) { c.LRUCacheSize = 0 }, "LRU_CACHE_SIZE"},
		{"zero rpm", func(c *Cfg) { c.RateLimit.RPM = 0 }, "RATE_LIMIT_RPM"},
		{"zero paste size", func(c *Cfg) { c.MaxPasteSize = 0 }, "MAX_PASTE_SIZE"},
		{"oversized paste size", func(c *Cfg) { c.MaxPasteSize = 11 * 1024 * 1024 }, "MAX_PASTE_SIZE"},
		{"unbounded store", func(c *Cfg) { c.MaxPastes = 0 }, "MAX_PASTES"},
		{"sweep too frequent", func(c *Cfg) { c.SweepInterval = 10 * time.Second }, "SWEEP_INTERVAL"},
		{"sweep too rare", func(c *Cfg) { c.SweepInterval = 2 * time.Hour }, "SWEEP_INTERVAL"},
		{"bad trusted proxy ip", func(c *Cfg) { c.TrustedProxies = []string{"not-an-ip"} }, "TRUSTED_PROXIES"},
		{"bad trusted proxy cidr", func(c *Cfg) { c.TrustedProxies = []string{"10.0.0.0/99"} }, "TRUSTED_PROXIES"},
		{"prod without metrics auth", func(c *Cfg) { c.Environment = "production" }, "METRICS"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := validCfg()
			tc.mutate(c)
			err := Validate(c)
			if err == nil {
				t.Fatal("invalid config accepted")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %s", err, tc.want)
			}
		})
	}
}

func TestSecretRedaction(t *testing.T) {
	s := NewSecret("hunter2")
	if s.String() != "***REDACTED***" {
		t.Errorf("String() = %q", s.String())
	}
	if s.Value() != "hunter2" {
		t.Errorf("Value() = %q", s.Value())
	}
	s.Wipe()
	if s.Value() == "hunter2" {
		t.Error("secret survived Wipe")
	}
}
