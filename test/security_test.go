package test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"clipbin/pkg/domain"

	"github.com/pkg/errors"
)

func TestTokensAreUniqueAndUnguessable(t *testing.T) {
	pasteSvc, _, _ := createTestService(t)
	ctx := context.Background()

	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		_, token, err := pasteSvc.Create(ctx, domain.CreateParams{Content: "x", Keeping: "5min"})
		if err != nil {
			t.Fatal(err)
		}
		if len(token) != 43 {
			t.Fatalf("token length = %d, want 43", len(token))
		}
		if _, dup := seen[token]; dup {
			t.Fatal("token issued twice")
		}
		seen[token] = struct{}{}
	}
}

func TestTokenNotDerivableFromRecord(t *testing.T) {
	pasteSvc, _, _ := createTestService(t)
	ctx := context.Background()

	created, token, err := pasteSvc.Create(ctx, domain.CreateParams{Content: "x", Keeping: "5min"})
	if err != nil {
		t.Fatal(err)
	}
	// The serialized record must contain neither the token nor its digest.
	fetched, err := pasteSvc.Get(ctx, created.ID)
	if err != nil {
		t.Fatal(err)
	}
	raw, err := json.Marshal(fetched)
	if err != nil {
		t.Fatal(err)
	}
	body := string(raw)
	if strings.Contains(body, token) {
		t.Error("serialized paste contains the deletion token")
	}
	if strings.Contains(body, "token") {
		t.Errorf("serialized paste exposes a token field: %s", body)
	}
	// Guessing with the id itself must fail: the token is random, not derived.
	if err := pasteSvc.Delete(ctx, created.ID, created.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("id-as-token delete: err = %v, want ErrForbidden", err)
	}
}

func TestDeleteRejectionsAreUniform(t *testing.T) {
	pasteSvc, _, _ := createTestService(t)
	ctx := context.Background()

	created, _, err := pasteSvc.Create(ctx, domain.CreateParams{Content: "x", Keeping: "5min"})
	if err != nil {
		t.Fatal(err)
	}
	badToken := strings.Repeat("B", 43)

	errWrongToken := pasteSvc.Delete(ctx, created.ID, badToken)
	errUnknownID := pasteSvc.Delete(ctx, "aaaabbbb", badToken)
	if !errors.Is(errWrongToken, domain.ErrForbidden) {
		t.Errorf("wrong token: %v", errWrongToken)
	}
	if !errors.Is(errUnknownID, domain.ErrForbidden) {
		t.Errorf("unknown id: %v", errUnknownID)
	}
	if errWrongToken.Error() != errUnknownID.Error() {
		t.Errorf("rejection messages differ: %q vs %q", errWrongToken, errUnknownID)
	}
}

func TestDeleteTimingFloor(t *testing.T) {
	pasteSvc, _, _ := createTestService(t)
	ctx := context.Background()

	created, token, err := pasteSvc.Create(ctx, domain.CreateParams{Content: "x", Keeping: "5min"})
	if err != nil {
		t.Fatal(err)
	}
	measure := func(id, tok string) time.Duration {
		start := time.Now()
		_ = pasteSvc.Delete(ctx, id, tok)
		return time.Since(start)
	}
	// Every path, hit or miss, pays at least the floor.
	if d := measure("aaaabbbb", token); d < 50*time.Millisecond {
		t.Errorf("unknown-id delete returned in %v", d)
	}
	if d := measure(created.ID, strings.Repeat("C", 43)); d < 50*time.Millisecond {
		t.Errorf("wrong-token delete returned in %v", d)
	}
	if d := measure(created.ID, token); d < 50*time.Millisecond {
		t.Errorf("valid delete returned in %v", d)
	}
}

func TestContentStoredVerbatim(t *testing.T) {
	pasteSvc, _, _ := createTestService(t)
	ctx := context.Background()

	payloads := []string{
		"<script>alert(1)</script>",
		"line\r\nwindows endings\r\n",
		"unicode: éè€ \U0001F600",
		"null byte \x00 inside",
		strings.Repeat("A", 64*1024),
	}
	for _, content := range payloads {
		created, _, err := pasteSvc.Create(ctx, domain.CreateParams{Content: content, Keeping: "5min"})
		if err != nil {
			t.Fatalf("create failed for %q...: %v", content[:min(20, len(content))], err)
		}
		fetched, err := pasteSvc.Get(ctx, created.ID)
		if err != nil {
			t.Fatal(err)
		}
		if fetched.Content != content {
			t.Errorf("content altered in storage: got %d bytes, want %d", len(fetched.Content), len(content))
		}
	}
}
