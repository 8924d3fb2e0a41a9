package crossAuth

import (
	"context"
	"crypto/subtle"
	"encoding/base32"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/crossAuth/password"
	"github.com/MrEthical07/crossAuth/permission"
)

func testConfig() Config {
	cfg := defaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("test-signing-secret-0123456789abcdef")
	cfg.JWT.Issuer = "crossauth-test"
	cfg.TOTP.Issuer = "crossauth-test"
	cfg.Security.MaxLoginAttempts = 3
	cfg.Security.LoginCooldownDuration = time.Minute
	return cfg
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func newTestHasher(t *testing.T, cfg Config) *password.Hasher {
	t.Helper()

	h, err := password.NewHasher(password.Params{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	return h
}

func hashPassword(t *testing.T, cfg Config, plain string) string {
	t.Helper()

	hash, err := newTestHasher(t, cfg).Hash(plain)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	return hash
}

type mockUserProvider struct {
	mu           sync.Mutex
	users        map[string]UserRecord
	byIdentifier map[string]string
}

func newMockUserProvider() *mockUserProvider {
	return &mockUserProvider{
		users:        map[string]UserRecord{},
		byIdentifier: map[string]string{},
	}
}

func (m *mockUserProvider) add(user UserRecord, identifiers ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.UserID] = user
	for _, id := range identifiers {
		m.byIdentifier[id] = user.UserID
	}
}

func (m *mockUserProvider) setActive(userID string, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user := m.users[userID]
	user.Active = active
	m.users[userID] = user
}

func (m *mockUserProvider) GetUserByIdentifier(_ context.Context, identifier string) (UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	userID, ok := m.byIdentifier[identifier]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return m.users[userID], nil
}

func (m *mockUserProvider) GetUserByID(_ context.Context, userID string) (UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return user, nil
}

type mockMFAProvider struct {
	mu      sync.Mutex
	devices map[string]*MFADeviceRecord
}

func newMockMFAProvider() *mockMFAProvider {
	return &mockMFAProvider{devices: map[string]*MFADeviceRecord{}}
}

func cloneDevice(device *MFADeviceRecord) *MFADeviceRecord {
	out := *device
	out.Secret = append([]byte(nil), device.Secret...)
	out.BackupCodes = append([]BackupCodeRecord(nil), device.BackupCodes...)
	return &out
}

func (m *mockMFAProvider) GetDevice(_ context.Context, userID string) (*MFADeviceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	device, ok := m.devices[userID]
	if !ok {
		return nil, nil
	}
	return cloneDevice(device), nil
}

func (m *mockMFAProvider) SaveDevice(_ context.Context, device *MFADeviceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices[device.UserID] = cloneDevice(device)
	return nil
}

func (m *mockMFAProvider) DeleteDevice(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.devices, userID)
	return nil
}

func (m *mockMFAProvider) ReplaceBackupCodes(_ context.Context, userID string, codes []BackupCodeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	device, ok := m.devices[userID]
	if !ok {
		return ErrMFANotConfigured
	}
	device.BackupCodes = append([]BackupCodeRecord(nil), codes...)
	return nil
}

func (m *mockMFAProvider) ConsumeBackupCode(_ context.Context, userID string, codeHash [32]byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	device, ok := m.devices[userID]
	if !ok {
		return false, nil
	}
	matchIndex := -1
	for i := range device.BackupCodes {
		if subtle.ConstantTimeCompare(device.BackupCodes[i].Hash[:], codeHash[:]) == 1 && matchIndex == -1 {
			matchIndex = i
		}
	}
	if matchIndex < 0 {
		return false, nil
	}
	device.BackupCodes = append(device.BackupCodes[:matchIndex], device.BackupCodes[matchIndex+1:]...)
	return true, nil
}

func (m *mockMFAProvider) TouchDevice(_ context.Context, userID string, usedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if device, ok := m.devices[userID]; ok {
		device.LastUsedAt = usedAt
	}
	return nil
}

type mockWebsiteProvider struct {
	mu       sync.Mutex
	websites map[uuid.UUID]WebsiteRecord
	access   map[string]map[uuid.UUID]bool
}

func newMockWebsiteProvider() *mockWebsiteProvider {
	return &mockWebsiteProvider{
		websites: map[uuid.UUID]WebsiteRecord{},
		access:   map[string]map[uuid.UUID]bool{},
	}
}

func (m *mockWebsiteProvider) add(site WebsiteRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.websites[site.ID] = site
}

func (m *mockWebsiteProvider) grant(userID string, websiteID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.access[userID] == nil {
		m.access[userID] = map[uuid.UUID]bool{}
	}
	m.access[userID][websiteID] = true
}

func (m *mockWebsiteProvider) hasAccess(userID string, websiteID uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.access[userID][websiteID]
}

func (m *mockWebsiteProvider) GetWebsite(_ context.Context, id uuid.UUID) (WebsiteRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	site, ok := m.websites[id]
	if !ok {
		return WebsiteRecord{}, ErrWebsiteNotFound
	}
	return site, nil
}

func (m *mockWebsiteProvider) EnsureAccess(_ context.Context, userID string, websiteID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	site, ok := m.websites[websiteID]
	if !ok {
		return ErrWebsiteNotFound
	}
	if m.access[userID][websiteID] {
		return nil
	}
	if !site.AutoRegisterUsers {
		return ErrPermissionDenied
	}
	if m.access[userID] == nil {
		m.access[userID] = map[uuid.UUID]bool{}
	}
	m.access[userID][websiteID] = true
	return nil
}

type mockPermissionProvider struct {
	mu          sync.Mutex
	assignments map[string][]permission.RoleAssignment
	grants      map[string][]permission.DirectGrant
	universe    []permission.Permission
	failWith    error
}

func newMockPermissionProvider() *mockPermissionProvider {
	return &mockPermissionProvider{
		assignments: map[string][]permission.RoleAssignment{},
		grants:      map[string][]permission.DirectGrant{},
	}
}

func (m *mockPermissionProvider) UserAssignments(_ context.Context, userID string) ([]permission.RoleAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	return m.assignments[userID], nil
}

func (m *mockPermissionProvider) UserGrants(_ context.Context, userID string) ([]permission.DirectGrant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	return m.grants[userID], nil
}

func (m *mockPermissionProvider) AllPermissions(_ context.Context) ([]permission.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	return m.universe, nil
}

type recordedSession struct {
	UserID    string
	WebsiteID string
	SessionID string
	IP        string
	UserAgent string
}

type mockSessionRecorder struct {
	mu       sync.Mutex
	sessions []recordedSession
}

func (m *mockSessionRecorder) RecordSession(_ context.Context, userID, websiteID, sessionID, ip, userAgent string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = append(m.sessions, recordedSession{
		UserID:    userID,
		WebsiteID: websiteID,
		SessionID: sessionID,
		IP:        ip,
		UserAgent: userAgent,
	})
}

func (m *mockSessionRecorder) all() []recordedSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]recordedSession(nil), m.sessions...)
}

type testFixture struct {
	engine   *Engine
	redis    *redis.Client
	mini     *miniredis.Miniredis
	users    *mockUserProvider
	mfa      *mockMFAProvider
	websites *mockWebsiteProvider
	perms    *mockPermissionProvider
	sessions *mockSessionRecorder
}

func newTestFixture(t *testing.T, cfg Config) *testFixture {
	t.Helper()

	mr, rdb := newTestRedis(t)
	t.Cleanup(mr.Close)

	f := &testFixture{
		redis:    rdb,
		mini:     mr,
		users:    newMockUserProvider(),
		mfa:      newMockMFAProvider(),
		websites: newMockWebsiteProvider(),
		perms:    newMockPermissionProvider(),
		sessions: &mockSessionRecorder{},
	}

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserProvider(f.users).
		WithMFAProvider(f.mfa).
		WithWebsiteProvider(f.websites).
		WithPermissionProvider(f.perms).
		WithSessionRecorder(f.sessions).
		WithMetricsEnabled(true).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	f.engine = engine
	return f
}

func (f *testFixture) addUser(t *testing.T, cfg Config, userID, identifier, plainPassword string) {
	t.Helper()

	f.users.add(UserRecord{
		UserID:       userID,
		Email:        identifier + "@example.test",
		Username:     identifier,
		PasswordHash: hashPassword(t, cfg, plainPassword),
		Active:       true,
	}, identifier)
}

func enableMFA(t *testing.T, f *testFixture, userID string) (string, []string) {
	t.Helper()

	setup, err := f.engine.BeginMFASetup(context.Background(), userID)
	if err != nil {
		t.Fatalf("BeginMFASetup failed: %v", err)
	}
	code := codeForNow(t, f.engine, setup.SecretBase32)
	if err := f.engine.ConfirmMFASetup(context.Background(), userID, code); err != nil {
		t.Fatalf("ConfirmMFASetup failed: %v", err)
	}
	return setup.SecretBase32, setup.BackupCodes
}

func codeForNow(t *testing.T, engine *Engine, secretBase32 string) string {
	t.Helper()
	return codeForOffset(t, engine, secretBase32, 0)
}

func codeForOffset(t *testing.T, engine *Engine, secretBase32 string, offset int64) string {
	t.Helper()

	key, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.ToUpper(secretBase32))
	if err != nil {
		t.Fatalf("decode secret failed: %v", err)
	}
	cfg := engine.config.TOTP
	counter := time.Now().Unix()/int64(cfg.Period) + offset
	code, err := hotpCode(key, counter, cfg.Digits, cfg.Algorithm)
	if err != nil {
		t.Fatalf("hotpCode failed: %v", err)
	}
	return code
}
