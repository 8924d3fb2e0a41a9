package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
)

type SessionID [16]byte

const opaqueTokenSize = 32

func NewSessionID() (SessionID, error) {
	var sid SessionID
	_, err := rand.Read(sid[:])
	return sid, err
}

func (s SessionID) Bytes() []byte {
	return s[:]
}

func (s SessionID) String() string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(s[:])
}

func ParseSessionID(sessionID string) (SessionID, error) {
	var sid SessionID

	raw, err := base64.RawURLEncoding.DecodeString(sessionID)
	if err != nil {
		return sid, err
	}
	if len(raw) != len(sid) {
		return sid, errors.New("invalid session id size")
	}

	copy(sid[:], raw)
	return sid, nil
}

// NewOpaqueToken returns 32 random bytes as unpadded base64url, the shape
// used for SSO tokens and MFA challenge handles.
func NewOpaqueToken() (string, error) {
	var raw [opaqueTokenSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// HashToken returns the SHA-256 digest of a token string. Stores keep the
// digest so a dumped keyspace never reveals live tokens.
func HashToken(token string) [32]byte {
	return sha256.Sum256([]byte(token))
}

const backupCodeBytes = 4

// NewBackupCodes generates count recovery codes, each 8 uppercase hex
// characters.
func NewBackupCodes(count int) ([]string, error) {
	codes := make([]string, 0, count)
	var raw [backupCodeBytes]byte
	for i := 0; i < count; i++ {
		if _, err := rand.Read(raw[:]); err != nil {
			return nil, err
		}
		codes = append(codes, strings.ToUpper(hex.EncodeToString(raw[:])))
	}
	return codes, nil
}

// HashBackupCode digests a normalized backup code for storage and lookup.
func HashBackupCode(code string) [32]byte {
	return sha256.Sum256([]byte(strings.ToUpper(strings.TrimSpace(code))))
}
