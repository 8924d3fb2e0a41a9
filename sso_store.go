package crossAuth

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/crossAuth/internal"
)

const ssoRecordVersion1 = 1

var (
	errSSOTokenNotFound   = errors.New("sso token not found")
	errSSOTokenConsumed   = errors.New("sso token already consumed")
	errSSOTokenExpired    = errors.New("sso token expired")
	errSSOWebsiteMismatch = errors.New("sso token website mismatch")
	errSSOTokenBackend    = errors.New("sso token backend unavailable")
)

// Record layout, all offsets 1-based for Lua:
//
//	1      version
//	2      used flag
//	3-10   issued at, unix seconds, big endian
//	11-18  expires at
//	19-26  used at
//	27-42  website id, raw uuid bytes
//	then   u16-length-prefixed user id, ip, user agent
//
// The redeem script flips the used flag and stamps used-at in place, so
// the fixed-width fields must stay at these offsets.
const redeemSSOTokenScript = `
local function read_be64(s, i)
  local b1 = string.byte(s, i)
  local b2 = string.byte(s, i + 1)
  local b3 = string.byte(s, i + 2)
  local b4 = string.byte(s, i + 3)
  local b5 = string.byte(s, i + 4)
  local b6 = string.byte(s, i + 5)
  local b7 = string.byte(s, i + 6)
  local b8 = string.byte(s, i + 7)
  if not b8 then
    return nil
  end
  return ((((((((b1 * 256) + b2) * 256 + b3) * 256 + b4) * 256 + b5) * 256 + b6) * 256 + b7) * 256 + b8)
end

local data = redis.call('GET', KEYS[1])
if not data then
  return {0}
end
if string.byte(data, 1) ~= 1 then
  return {0}
end
if string.byte(data, 2) == 1 then
  return {2, data}
end

local expires = read_be64(data, 11)
local now = read_be64(ARGV[3], 1)
if not expires or not now then
  return {0}
end
if now >= expires then
  redis.call('DEL', KEYS[1])
  return {4}
end

if string.sub(data, 27, 42) ~= ARGV[1] then
  return {3}
end

local updated = string.sub(data, 1, 1) .. '\1' .. string.sub(data, 3, 18) .. ARGV[2] .. string.sub(data, 27)
redis.call('SET', KEYS[1], updated, 'KEEPTTL')
return {1, updated}
`

var redeemSSOTokenLua = redis.NewScript(redeemSSOTokenScript)

const invalidateSSOTokensScript = `
local members = redis.call('SMEMBERS', KEYS[1])
local n = 0
for _, digest in ipairs(members) do
  local key = ARGV[1] .. digest
  local data = redis.call('GET', key)
  if data and string.byte(data, 1) == 1 and string.byte(data, 2) == 0 then
    local updated = string.sub(data, 1, 1) .. '\1' .. string.sub(data, 3, 18) .. ARGV[2] .. string.sub(data, 27)
    redis.call('SET', key, updated, 'KEEPTTL')
    n = n + 1
  end
end
redis.call('DEL', KEYS[1])
return n
`

var invalidateSSOTokensLua = redis.NewScript(invalidateSSOTokensScript)

// redisSSOTokenStore keys records by the SHA-256 digest of the opaque
// token, so a Redis dump never exposes redeemable tokens. A per-user set
// of digests backs InvalidateAllForUser.
type redisSSOTokenStore struct {
	redis  *redis.Client
	prefix string
}

func newRedisSSOTokenStore(redisClient *redis.Client, prefix string) *redisSSOTokenStore {
	return &redisSSOTokenStore{redis: redisClient, prefix: prefix}
}

func (s *redisSSOTokenStore) tokenKey(token string) string {
	digest := internal.HashToken(token)
	return s.prefix + ":sso:t:" + hex.EncodeToString(digest[:])
}

func (s *redisSSOTokenStore) userKey(userID string) string {
	return s.prefix + ":sso:u:" + userID
}

func (s *redisSSOTokenStore) Create(
	ctx context.Context,
	token string,
	record *SSOTokenRecord,
	ttl time.Duration,
) error {
	encoded, err := encodeSSOToken(record)
	if err != nil {
		return err
	}

	digest := internal.HashToken(token)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.tokenKey(token), encoded, ttl)
		pipe.SAdd(ctx, s.userKey(record.UserID), hex.EncodeToString(digest[:]))
		pipe.Expire(ctx, s.userKey(record.UserID), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", errSSOTokenBackend, err)
	}
	return nil
}

func (s *redisSSOTokenStore) AtomicRedeem(
	ctx context.Context,
	token string,
	websiteID uuid.UUID,
) (*SSOTokenRecord, error) {
	var nowArg [8]byte
	binary.BigEndian.PutUint64(nowArg[:], uint64(time.Now().Unix()))
	var usedAtArg [8]byte
	binary.BigEndian.PutUint64(usedAtArg[:], uint64(time.Now().Unix()))

	res, err := redeemSSOTokenLua.Run(
		ctx,
		s.redis,
		[]string{s.tokenKey(token)},
		string(websiteID[:]),
		string(usedAtArg[:]),
		string(nowArg[:]),
	).Slice()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errSSOTokenBackend, err)
	}
	if len(res) == 0 {
		return nil, errSSOTokenNotFound
	}

	status, ok := res[0].(int64)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected script reply", errSSOTokenBackend)
	}
	switch status {
	case 1:
		record, err := decodeSSOTokenReply(res)
		if err != nil {
			return nil, err
		}
		return record, nil
	case 2:
		record, err := decodeSSOTokenReply(res)
		if err != nil {
			return nil, errSSOTokenConsumed
		}
		return record, errSSOTokenConsumed
	case 3:
		return nil, errSSOWebsiteMismatch
	case 4:
		return nil, errSSOTokenExpired
	default:
		return nil, errSSOTokenNotFound
	}
}

func (s *redisSSOTokenStore) Peek(ctx context.Context, token string) (*SSOTokenRecord, error) {
	data, err := s.redis.Get(ctx, s.tokenKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errSSOTokenNotFound
		}
		return nil, fmt.Errorf("%w: %v", errSSOTokenBackend, err)
	}

	record, err := decodeSSOToken(data)
	if err != nil {
		return nil, err
	}
	// Valid strictly before expiry; the boundary instant is already stale.
	if !time.Now().Before(record.ExpiresAt) {
		_, _ = s.redis.Del(ctx, s.tokenKey(token)).Result()
		return nil, errSSOTokenExpired
	}
	return record, nil
}

func (s *redisSSOTokenStore) InvalidateAllForUser(ctx context.Context, userID string) (int, error) {
	var usedAtArg [8]byte
	binary.BigEndian.PutUint64(usedAtArg[:], uint64(time.Now().Unix()))

	n, err := invalidateSSOTokensLua.Run(
		ctx,
		s.redis,
		[]string{s.userKey(userID)},
		s.prefix+":sso:t:",
		string(usedAtArg[:]),
	).Int()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errSSOTokenBackend, err)
	}
	return n, nil
}

func decodeSSOTokenReply(res []interface{}) (*SSOTokenRecord, error) {
	if len(res) < 2 {
		return nil, fmt.Errorf("%w: unexpected script reply", errSSOTokenBackend)
	}
	raw, ok := res[1].(string)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected script reply", errSSOTokenBackend)
	}
	return decodeSSOToken([]byte(raw))
}

func encodeSSOToken(record *SSOTokenRecord) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(ssoRecordVersion1)
	if record.Used {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}

	writeUnix := func(t time.Time) error {
		var sec int64
		if !t.IsZero() {
			sec = t.Unix()
		}
		return binary.Write(&buf, binary.BigEndian, sec)
	}
	if err := writeUnix(record.IssuedAt); err != nil {
		return nil, err
	}
	if err := writeUnix(record.ExpiresAt); err != nil {
		return nil, err
	}
	if err := writeUnix(record.UsedAt); err != nil {
		return nil, err
	}
	buf.Write(record.WebsiteID[:])

	for _, field := range []string{record.UserID, record.IPAddress, record.UserAgent} {
		if len(field) > 65535 {
			return nil, errors.New("sso token field length exceeded")
		}
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(field))); err != nil {
			return nil, err
		}
		buf.WriteString(field)
	}

	return buf.Bytes(), nil
}

func decodeSSOToken(data []byte) (*SSOTokenRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != ssoRecordVersion1 {
		return nil, errors.New("invalid sso token version")
	}

	used, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}

	record := &SSOTokenRecord{Used: used == 1}

	readUnix := func() (time.Time, error) {
		var sec int64
		if err := binary.Read(reader, binary.BigEndian, &sec); err != nil {
			return time.Time{}, err
		}
		if sec == 0 {
			return time.Time{}, nil
		}
		return time.Unix(sec, 0).UTC(), nil
	}
	if record.IssuedAt, err = readUnix(); err != nil {
		return nil, err
	}
	if record.ExpiresAt, err = readUnix(); err != nil {
		return nil, err
	}
	if record.UsedAt, err = readUnix(); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(reader, record.WebsiteID[:]); err != nil {
		return nil, err
	}

	readField := func() (string, error) {
		var n uint16
		if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
			return "", err
		}
		b := make([]byte, n)
		if _, err := io.ReadFull(reader, b); err != nil {
			return "", err
		}
		return string(b), nil
	}
	if record.UserID, err = readField(); err != nil {
		return nil, err
	}
	if record.IPAddress, err = readField(); err != nil {
		return nil, err
	}
	if record.UserAgent, err = readField(); err != nil {
		return nil, err
	}

	return record, nil
}
