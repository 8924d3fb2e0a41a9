package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"
)

func hs256Config() Config {
	return Config{
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    24 * time.Hour,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
		Issuer:        "crossauth-test",
	}
}

func TestCreateAndParseAccess(t *testing.T) {
	mgr, err := NewManager(hs256Config())
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}

	token, err := mgr.CreateAccess("u1", "w1", "s1")
	if err != nil {
		t.Fatalf("CreateAccess error: %v", err)
	}

	claims, err := mgr.ParseAccess(token)
	if err != nil {
		t.Fatalf("ParseAccess error: %v", err)
	}
	if claims.UID != "u1" || claims.WID != "w1" || claims.SID != "s1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestRefreshRejectedAsAccess(t *testing.T) {
	mgr, err := NewManager(hs256Config())
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}

	refresh, err := mgr.CreateRefresh("u1", "", "s1")
	if err != nil {
		t.Fatalf("CreateRefresh error: %v", err)
	}

	if _, err := mgr.ParseAccess(refresh); !errors.Is(err, ErrWrongTokenType) {
		t.Fatalf("ParseAccess(refresh) = %v, want ErrWrongTokenType", err)
	}
	if _, err := mgr.ParseRefresh(refresh); err != nil {
		t.Fatalf("ParseRefresh error: %v", err)
	}

	access, err := mgr.CreateAccess("u1", "", "s1")
	if err != nil {
		t.Fatalf("CreateAccess error: %v", err)
	}
	if _, err := mgr.ParseRefresh(access); !errors.Is(err, ErrWrongTokenType) {
		t.Fatalf("ParseRefresh(access) = %v, want ErrWrongTokenType", err)
	}
}

func TestEd25519RoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey error: %v", err)
	}

	mgr, err := NewManager(Config{
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
	})
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}

	token, err := mgr.CreateAccess("u2", "w2", "s2")
	if err != nil {
		t.Fatalf("CreateAccess error: %v", err)
	}
	claims, err := mgr.ParseAccess(token)
	if err != nil {
		t.Fatalf("ParseAccess error: %v", err)
	}
	if claims.UID != "u2" {
		t.Fatalf("unexpected uid: %s", claims.UID)
	}
}

func TestTamperedTokenRejected(t *testing.T) {
	mgr, err := NewManager(hs256Config())
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}

	token, err := mgr.CreateAccess("u1", "", "s1")
	if err != nil {
		t.Fatalf("CreateAccess error: %v", err)
	}
	tampered := token[:len(token)-2] + "xx"
	if _, err := mgr.ParseAccess(tampered); err == nil {
		t.Fatal("expected tampered token to fail verification")
	}
}

func TestNewManagerConfigValidation(t *testing.T) {
	bad := hs256Config()
	bad.RefreshTTL = bad.AccessTTL
	if _, err := NewManager(bad); err == nil {
		t.Fatal("expected refresh <= access TTL to be rejected")
	}

	bad = hs256Config()
	bad.PrivateKey = nil
	if _, err := NewManager(bad); err == nil {
		t.Fatal("expected hs256 without key to be rejected")
	}

	bad = hs256Config()
	bad.SigningMethod = "rs512"
	if _, err := NewManager(bad); err == nil {
		t.Fatal("expected unsupported method to be rejected")
	}
}
