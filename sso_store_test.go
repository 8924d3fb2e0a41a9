package crossAuth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func newSSOStore(t *testing.T) (*redisSSOTokenStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return newRedisSSOTokenStore(rdb, "xa"), mr
}

func testSSORecord(websiteID uuid.UUID, ttl time.Duration) *SSOTokenRecord {
	now := time.Now().UTC().Truncate(time.Second)
	return &SSOTokenRecord{
		UserID:    "user-42",
		WebsiteID: websiteID,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
		IPAddress: "198.51.100.4",
		UserAgent: "test-agent/1.0",
	}
}

func TestSSOTokenCodecRoundTrip(t *testing.T) {
	record := testSSORecord(uuid.New(), 5*time.Minute)
	record.Used = true
	record.UsedAt = time.Now().UTC().Truncate(time.Second)

	encoded, err := encodeSSOToken(record)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	got, err := decodeSSOToken(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if got.UserID != record.UserID || got.WebsiteID != record.WebsiteID {
		t.Fatalf("identity mismatch: %+v", got)
	}
	if !got.Used || !got.UsedAt.Equal(record.UsedAt) {
		t.Fatalf("used state mismatch: %+v", got)
	}
	if !got.IssuedAt.Equal(record.IssuedAt) || !got.ExpiresAt.Equal(record.ExpiresAt) {
		t.Fatalf("timestamp mismatch: %+v", got)
	}
	if got.IPAddress != record.IPAddress || got.UserAgent != record.UserAgent {
		t.Fatalf("client fields mismatch: %+v", got)
	}
}

func TestSSOTokenCodecZeroUsedAt(t *testing.T) {
	record := testSSORecord(uuid.New(), time.Minute)

	encoded, err := encodeSSOToken(record)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	got, err := decodeSSOToken(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got.Used {
		t.Fatal("expected unused record")
	}
	if !got.UsedAt.IsZero() {
		t.Fatalf("expected zero UsedAt, got %v", got.UsedAt)
	}
}

func TestSSOTokenCodecRejectsGarbage(t *testing.T) {
	if _, err := decodeSSOToken(nil); err == nil {
		t.Fatal("expected error for empty payload")
	}
	if _, err := decodeSSOToken([]byte{0x7f, 0x00}); err == nil {
		t.Fatal("expected error for unknown version")
	}

	encoded, err := encodeSSOToken(testSSORecord(uuid.New(), time.Minute))
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if _, err := decodeSSOToken(encoded[:len(encoded)-1]); err == nil {
		t.Fatal("expected error for truncated payload")
	}
}

func TestSSORedeemHappyPath(t *testing.T) {
	store, _ := newSSOStore(t)
	ctx := context.Background()
	websiteID := uuid.New()

	if err := store.Create(ctx, "tok-1", testSSORecord(websiteID, 5*time.Minute), 5*time.Minute); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	record, err := store.AtomicRedeem(ctx, "tok-1", websiteID)
	if err != nil {
		t.Fatalf("AtomicRedeem failed: %v", err)
	}
	if !record.Used {
		t.Fatal("expected redeemed record to be flagged used")
	}
	if record.UsedAt.IsZero() {
		t.Fatal("expected redeemed record to carry a used-at stamp")
	}
	if record.UserID != "user-42" {
		t.Fatalf("user id mismatch: %q", record.UserID)
	}
}

func TestSSORedeemSecondCallReturnsConsumed(t *testing.T) {
	store, _ := newSSOStore(t)
	ctx := context.Background()
	websiteID := uuid.New()

	if err := store.Create(ctx, "tok-1", testSSORecord(websiteID, 5*time.Minute), 5*time.Minute); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := store.AtomicRedeem(ctx, "tok-1", websiteID); err != nil {
		t.Fatalf("first redeem failed: %v", err)
	}

	record, err := store.AtomicRedeem(ctx, "tok-1", websiteID)
	if !errors.Is(err, errSSOTokenConsumed) {
		t.Fatalf("expected errSSOTokenConsumed, got %v", err)
	}
	// The consumed record still comes back so callers can audit the replay.
	if record == nil || record.UserID != "user-42" {
		t.Fatalf("expected consumed record alongside the error, got %+v", record)
	}
}

func TestSSORedeemWebsiteMismatchLeavesTokenLive(t *testing.T) {
	store, _ := newSSOStore(t)
	ctx := context.Background()
	websiteID := uuid.New()

	if err := store.Create(ctx, "tok-1", testSSORecord(websiteID, 5*time.Minute), 5*time.Minute); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := store.AtomicRedeem(ctx, "tok-1", uuid.New()); !errors.Is(err, errSSOWebsiteMismatch) {
		t.Fatalf("expected errSSOWebsiteMismatch, got %v", err)
	}
	// A mismatch must not consume the token.
	if _, err := store.AtomicRedeem(ctx, "tok-1", websiteID); err != nil {
		t.Fatalf("redeem at the bound website failed after mismatch: %v", err)
	}
}

func TestSSORedeemUnknownToken(t *testing.T) {
	store, _ := newSSOStore(t)

	if _, err := store.AtomicRedeem(context.Background(), "no-such", uuid.New()); !errors.Is(err, errSSOTokenNotFound) {
		t.Fatalf("expected errSSOTokenNotFound, got %v", err)
	}
}

func TestSSORedeemExpiredRecord(t *testing.T) {
	store, mr := newSSOStore(t)
	ctx := context.Background()
	websiteID := uuid.New()

	// Expired by record timestamp while the Redis TTL is still generous.
	if err := store.Create(ctx, "tok-stale", testSSORecord(websiteID, -time.Second), time.Hour); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := store.AtomicRedeem(ctx, "tok-stale", websiteID); !errors.Is(err, errSSOTokenExpired) {
		t.Fatalf("expected errSSOTokenExpired, got %v", err)
	}
	if mr.Exists(store.tokenKey("tok-stale")) {
		t.Fatal("expected expired token to be deleted by the script")
	}
}

func TestSSORedeemAtExactExpiryInstant(t *testing.T) {
	store, mr := newSSOStore(t)
	ctx := context.Background()
	websiteID := uuid.New()

	// ExpiresAt stamped to the current second: the boundary instant must
	// already count as expired, not as the last valid moment.
	if err := store.Create(ctx, "tok-edge", testSSORecord(websiteID, 0), time.Hour); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := store.AtomicRedeem(ctx, "tok-edge", websiteID); !errors.Is(err, errSSOTokenExpired) {
		t.Fatalf("expected errSSOTokenExpired, got %v", err)
	}
	if mr.Exists(store.tokenKey("tok-edge")) {
		t.Fatal("expected boundary-expired token to be deleted by the script")
	}
}

func TestSSOPeekDoesNotConsume(t *testing.T) {
	store, _ := newSSOStore(t)
	ctx := context.Background()
	websiteID := uuid.New()

	if err := store.Create(ctx, "tok-1", testSSORecord(websiteID, 5*time.Minute), 5*time.Minute); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		record, err := store.Peek(ctx, "tok-1")
		if err != nil {
			t.Fatalf("Peek %d failed: %v", i, err)
		}
		if record.Used {
			t.Fatal("Peek must not flip the used flag")
		}
	}
	if _, err := store.AtomicRedeem(ctx, "tok-1", websiteID); err != nil {
		t.Fatalf("redeem after peeks failed: %v", err)
	}
}

func TestSSOPeekLazyExpiry(t *testing.T) {
	store, _ := newSSOStore(t)
	ctx := context.Background()

	if err := store.Create(ctx, "tok-stale", testSSORecord(uuid.New(), -time.Second), time.Hour); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := store.Peek(ctx, "tok-stale"); !errors.Is(err, errSSOTokenExpired) {
		t.Fatalf("expected errSSOTokenExpired, got %v", err)
	}
	if _, err := store.Peek(ctx, "tok-stale"); !errors.Is(err, errSSOTokenNotFound) {
		t.Fatalf("expected errSSOTokenNotFound after cleanup, got %v", err)
	}
}

func TestSSOInvalidateAllForUser(t *testing.T) {
	store, _ := newSSOStore(t)
	ctx := context.Background()
	websiteID := uuid.New()

	if err := store.Create(ctx, "tok-1", testSSORecord(websiteID, 5*time.Minute), 5*time.Minute); err != nil {
		t.Fatalf("Create tok-1 failed: %v", err)
	}
	if err := store.Create(ctx, "tok-2", testSSORecord(websiteID, 5*time.Minute), 5*time.Minute); err != nil {
		t.Fatalf("Create tok-2 failed: %v", err)
	}

	n, err := store.InvalidateAllForUser(ctx, "user-42")
	if err != nil {
		t.Fatalf("InvalidateAllForUser failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 invalidated tokens, got %d", n)
	}

	for _, tok := range []string{"tok-1", "tok-2"} {
		if _, err := store.AtomicRedeem(ctx, tok, websiteID); !errors.Is(err, errSSOTokenConsumed) {
			t.Fatalf("expected %s to be consumed, got %v", tok, err)
		}
	}

	// The per-user index is dropped with the sweep.
	n, err = store.InvalidateAllForUser(ctx, "user-42")
	if err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected empty second sweep, got %d", n)
	}
}

func TestSSOTokenTTLExpiresKey(t *testing.T) {
	store, mr := newSSOStore(t)
	ctx := context.Background()
	websiteID := uuid.New()

	if err := store.Create(ctx, "tok-1", testSSORecord(websiteID, time.Minute), time.Minute); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	mr.FastForward(time.Minute + time.Second)

	if _, err := store.AtomicRedeem(ctx, "tok-1", websiteID); !errors.Is(err, errSSOTokenNotFound) {
		t.Fatalf("expected errSSOTokenNotFound after TTL, got %v", err)
	}
}
