package test

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"clipbin/cfg"
	"clipbin/svc/cache"
	"clipbin/svc/db"
	"clipbin/svc/svc"

	"github.com/joho/godotenv"
)

var envLoadOnce sync.Once

func loadTestEnv() {
	envLoadOnce.Do(func() {
		paths := []string{
			".env.test",
			"../.env.test",
			"../../.env.test",
		}
		for _, p := range paths {
			if absPath, err := filepath.Abs(p); err == nil {
				if _, err := os.Stat(absPath); err == nil {
					if err := godotenv.Load(absPath); err == nil {
						return
					}
				}
			}
		}
	})
}

func createTestConfig() *cfg.Cfg {
	loadTestEnv()
	c, err := cfg.Load()
	if err != nil {
		return &cfg.Cfg{
			Port:         "0",
			Environment:  "test",
			LogLevel:     "error",
			DatabasePath: ":memory:",
			LRUCacheSize: 1000,
			RateLimit: cfg.RateLimitCfg{
				RPM:               100000,
				Burst:             10000,
				ConservativeLimit: 50000,
			},
			MaxPasteSize:   1024 * 1024,
			MaxPastes:      100000,
			MaxFieldLen:    100,
			SweepInterval:  time.Minute,
			ContextTimeout: 30 * time.Second,
			DBQueryTimeout: 10 * time.Second,
		}
	}
	c.Port = "0"
	c.Environment = "test"
	c.LogLevel = "error"
	c.DatabasePath = ":memory:"
	c.MaxPasteSize = 1024 * 1024
	c.RateLimit = cfg.RateLimitCfg{RPM: 100000, Burst: 10000, ConservativeLimit: 50000}
	return c
}

func createTestDB(t *testing.T, c *cfg.Cfg) *db.SQLite {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("clipbin%d.db", time.Now().UnixNano()))
	maxOpenConns := c.DBMaxOpenConns
	if maxOpenConns == 0 {
		maxOpenConns = 50
	}
	maxIdleConns := c.DBMaxIdleConns
	if maxIdleConns == 0 {
		maxIdleConns = 10
	}
	queryTimeout := c.DBQueryTimeout
	if queryTimeout == 0 {
		queryTimeout = 10 * time.Second
	}
	sqlDB, err := db.NewSQLiteWithConfig(dsn, c.MaxPastes, maxOpenConns, maxIdleConns, queryTimeout)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	return sqlDB
}

func createTestLRU(t *testing.T, size int) *cache.LRU {
	t.Helper()
	lru, err := cache.NewLRU(size)
	if err != nil {
		t.Fatalf("failed to create test LRU: %v", err)
	}
	return lru
}

func createTestService(t *testing.T) (*svc.Paste, *db.SQLite, *cfg.Cfg) {
	t.Helper()
	c := createTestConfig()
	sqlDB := createTestDB(t, c)
	lru := createTestLRU(t, c.LRUCacheSize)
	pasteSvc := svc.NewPaste(sqlDB, lru, nil, c)
	t.Cleanup(pasteSvc.Shutdown)
	return pasteSvc, sqlDB, c
}
