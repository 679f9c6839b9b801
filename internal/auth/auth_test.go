package auth

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/slotbook/slotbook-cli/internal/api"
	"github.com/slotbook/slotbook-cli/internal/output"
	"github.com/slotbook/slotbook-cli/internal/session"
	"github.com/slotbook/slotbook-cli/internal/testutil"
)

func TestStoreFileBackend(t *testing.T) {
	tmpDir := t.TempDir()
	store := &Store{useKeyring: false, fallbackDir: tmpDir}

	origin := "https://api.slotbook.test"
	creds := &Credentials{
		Cookies: []StoredCookie{
			{Name: AccessCookie, Value: "a1", Path: "/", HttpOnly: true},
			{Name: RefreshCookie, Value: "r1", Path: "/", HttpOnly: true},
		},
		Email:     "owner@example.com",
		UpdatedAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}

	require.NoError(t, store.Save(origin, creds))

	info, err := os.Stat(filepath.Join(tmpDir, "credentials.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := store.Load(origin)
	require.NoError(t, err)
	assert.Equal(t, creds, loaded)

	ck, ok := loaded.Cookie(RefreshCookie)
	require.True(t, ok)
	assert.Equal(t, "r1", ck.Value)
}

func TestStoreMultipleOrigins(t *testing.T) {
	store := &Store{useKeyring: false, fallbackDir: t.TempDir()}

	require.NoError(t, store.Save("https://one.test", &Credentials{Email: "one@example.com"}))
	require.NoError(t, store.Save("https://two.test", &Credentials{Email: "two@example.com"}))

	one, err := store.Load("https://one.test")
	require.NoError(t, err)
	assert.Equal(t, "one@example.com", one.Email)

	require.NoError(t, store.Delete("https://one.test"))
	_, err = store.Load("https://one.test")
	assert.ErrorIs(t, err, ErrNoCredentials)

	two, err := store.Load("https://two.test")
	require.NoError(t, err)
	assert.Equal(t, "two@example.com", two.Email)
}

func TestStoreDeleteMissingIsNoop(t *testing.T) {
	store := &Store{useKeyring: false, fallbackDir: t.TempDir()}
	assert.NoError(t, store.Delete("https://nowhere.test"))
}

func TestStoreKeyringBackend(t *testing.T) {
	keyring.MockInit()
	t.Setenv("SLOTBOOK_NO_KEYRING", "")
	tmpDir := t.TempDir()

	// A plaintext session left over from a machine without a keyring.
	file := &Store{useKeyring: false, fallbackDir: tmpDir}
	require.NoError(t, file.Save("https://api.slotbook.test", &Credentials{Email: "old@example.com"}))

	store := NewStore(tmpDir)
	require.True(t, store.UsingKeyring())

	_, err := store.Load("https://api.slotbook.test")
	assert.ErrorIs(t, err, ErrNoCredentials)

	require.NoError(t, store.MigrateToKeyring())
	loaded, err := store.Load("https://api.slotbook.test")
	require.NoError(t, err)
	assert.Equal(t, "old@example.com", loaded.Email)

	_, err = os.Stat(filepath.Join(tmpDir, "credentials.json"))
	assert.True(t, os.IsNotExist(err), "plaintext file removed after migration")

	require.NoError(t, store.Delete("https://api.slotbook.test"))
	assert.NoError(t, store.Delete("https://api.slotbook.test"))
}

func TestNewStoreHonorsNoKeyringEnv(t *testing.T) {
	t.Setenv("SLOTBOOK_NO_KEYRING", "1")
	store := NewStore(t.TempDir())
	assert.False(t, store.UsingKeyring())
}

type harness struct {
	fake    *testutil.FakeAPI
	store   *Store
	dir     string
	manager *Manager
	state   *session.State
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		fake:  testutil.NewFakeAPI(t),
		store: &Store{useKeyring: false, fallbackDir: t.TempDir()},
		dir:   t.TempDir(),
	}
	h.fake.AddUser("owner@example.com", "s3cret-pass", true)
	h.manager, h.state = h.newManager(t)
	return h
}

// newManager builds a manager sharing the harness store and state dir,
// standing in for a second process.
func (h *harness) newManager(t *testing.T) (*Manager, *session.State) {
	t.Helper()
	jar, err := NewCookieJar(h.store, h.fake.URL(), nil)
	require.NoError(t, err)
	client := api.NewClient(api.Options{BaseURL: h.fake.URL(), Prefix: testutil.Prefix, Jar: jar})
	state := session.NewState()
	m := NewManager(Options{Client: client, Jar: jar, State: state, StateDir: h.dir})
	m.UseGateway(api.NewGateway(client, m, state))
	return m, state
}

func TestLoginPersistsCookies(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.manager.Login(ctx, "owner@example.com", "s3cret-pass"))
	assert.True(t, h.state.IsAuthenticated())

	creds, err := h.store.Load(h.fake.URL())
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", creds.Email)
	_, ok := creds.Cookie(AccessCookie)
	assert.True(t, ok)
	_, ok = creds.Cookie(RefreshCookie)
	assert.True(t, ok)

	rec, err := h.manager.Marker().Read()
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, session.EventLogin, rec.Event)
	assert.Equal(t, h.fake.URL(), rec.Origin)

	// A fresh process picks the session up from the store.
	other, _ := h.newManager(t)
	me, err := other.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", me.Email)
}

func TestLoginWrongPassword(t *testing.T) {
	h := newHarness(t)

	err := h.manager.Login(context.Background(), "owner@example.com", "wrong")
	require.Error(t, err)
	e := output.AsError(err)
	assert.Equal(t, output.CodeAuth, e.Code)
	assert.Contains(t, e.Hint, "email and password")
	assert.False(t, h.manager.HasSession())
}

func TestVerifyRefreshesExpiredAccess(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.manager.Login(ctx, "owner@example.com", "s3cret-pass"))
	before, _ := h.manager.Jar().Get(AccessCookie)

	h.fake.Expire()
	require.NoError(t, h.manager.Verify(ctx))

	assert.Equal(t, 1, h.fake.RefreshCalls())
	assert.Equal(t, 2, h.fake.Hits(http.MethodPost, testutil.Prefix+"/jwt/verify/"))
	after, _ := h.manager.Jar().Get(AccessCookie)
	assert.NotEqual(t, before.Value, after.Value)
	assert.True(t, h.state.IsAuthenticated())

	rec, err := h.manager.Marker().Read()
	require.NoError(t, err)
	assert.Equal(t, session.EventRefresh, rec.Event)
}

func TestVerifyFailsWhenRefreshRevoked(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.manager.Login(ctx, "owner@example.com", "s3cret-pass"))

	h.fake.Expire()
	h.fake.RevokeRefresh()
	err := h.manager.Verify(ctx)

	require.Error(t, err)
	assert.True(t, output.IsUnauthorized(err))
	assert.False(t, h.state.IsAuthenticated())
}

func TestVerifyWithoutSession(t *testing.T) {
	h := newHarness(t)

	err := h.manager.Verify(context.Background())
	require.Error(t, err)
	assert.Equal(t, output.CodeAuth, output.AsError(err).Code)
	assert.Zero(t, h.fake.Hits(http.MethodPost, testutil.Prefix+"/jwt/verify/"))
	assert.False(t, h.state.IsLoading())
}

func TestRefreshSkipsWhenAnotherProcessRefreshed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.manager.Login(ctx, "owner@example.com", "s3cret-pass"))

	other, _ := h.newManager(t)
	h.fake.Expire()

	require.NoError(t, h.manager.Refresh(ctx))
	require.Equal(t, 1, h.fake.RefreshCalls())

	require.NoError(t, other.Refresh(ctx))
	assert.Equal(t, 1, h.fake.RefreshCalls(), "second process reuses the stored refresh")
	require.NoError(t, other.Verify(ctx))
}

func TestRefreshWithoutRefreshCookie(t *testing.T) {
	h := newHarness(t)

	err := h.manager.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, output.CodeAuth, output.AsError(err).Code)
	assert.Zero(t, h.fake.RefreshCalls())
}

func TestLogoutClearsSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.manager.Login(ctx, "owner@example.com", "s3cret-pass"))

	require.NoError(t, h.manager.Logout(ctx))

	assert.False(t, h.manager.HasSession())
	assert.False(t, h.state.IsAuthenticated())
	assert.Equal(t, 1, h.fake.Hits(http.MethodPost, testutil.Prefix+"/jwt/logout/"))
	_, err := h.store.Load(h.fake.URL())
	assert.ErrorIs(t, err, ErrNoCredentials)

	rec, err := h.manager.Marker().Read()
	require.NoError(t, err)
	assert.Equal(t, session.EventLogout, rec.Event)
}

func TestRegisterActivateLogin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	u, err := h.manager.Register(ctx, RegisterParams{
		Email:     "new@example.com",
		FirstName: "Grace",
		LastName:  "Hopper",
		Password:  "pw-123456",
	})
	require.NoError(t, err)
	assert.Equal(t, "Grace", u.FirstName)

	// Not active yet.
	assert.Error(t, h.manager.Login(ctx, "new@example.com", "pw-123456"))

	uid, token := testutil.ActivationToken(u.ID)
	require.Error(t, h.manager.Activate(ctx, uid, "bogus"))
	require.NoError(t, h.manager.Activate(ctx, uid, token))
	require.NoError(t, h.manager.Login(ctx, "new@example.com", "pw-123456"))
}

func TestRegisterValidationErrors(t *testing.T) {
	h := newHarness(t)

	_, err := h.manager.Register(context.Background(), RegisterParams{
		Email:    "owner@example.com",
		Password: "pw",
	})
	require.Error(t, err)
	e := output.AsError(err)
	assert.Equal(t, output.CodeValidation, e.Code)
	assert.Contains(t, e.Fields, "email")
}

func TestResetPasswordFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.manager.ResetPassword(ctx, "owner@example.com"))

	u, err := h.manager.Register(ctx, RegisterParams{Email: "x@example.com", Password: "old-pass"})
	require.NoError(t, err)
	uid, token := testutil.ActivationToken(u.ID)
	require.NoError(t, h.manager.Activate(ctx, uid, token))
	require.NoError(t, h.manager.ResetPasswordConfirm(ctx, uid, token, "new-pass"))

	assert.Error(t, h.manager.Login(ctx, "x@example.com", "old-pass"))
	assert.NoError(t, h.manager.Login(ctx, "x@example.com", "new-pass"))
}

func TestStatusReadsAccessExpiry(t *testing.T) {
	h := newHarness(t)

	st := h.manager.Status(time.Now())
	assert.False(t, st.LoggedIn)
	assert.True(t, st.AccessExpired)
	assert.Equal(t, "file", st.Storage)

	require.NoError(t, h.manager.Login(context.Background(), "owner@example.com", "s3cret-pass"))
	st = h.manager.Status(time.Now())
	assert.True(t, st.LoggedIn)
	assert.True(t, st.HasRefresh)
	assert.Equal(t, "owner@example.com", st.Email)
	require.NotNil(t, st.AccessExpiresAt)
	assert.WithinDuration(t, time.Now().Add(testutil.AccessTTL), *st.AccessExpiresAt, 5*time.Second)
	assert.False(t, st.AccessExpired)

	later := h.manager.Status(time.Now().Add(testutil.AccessTTL + time.Minute))
	assert.True(t, later.AccessExpired)
}

func TestAccessExpiryRejectsGarbage(t *testing.T) {
	_, err := AccessExpiry("not-a-jwt")
	assert.Error(t, err)
}

func TestCookieJarDropsDeletedCookies(t *testing.T) {
	store := &Store{useKeyring: false, fallbackDir: t.TempDir()}
	jar, err := NewCookieJar(store, "http://127.0.0.1:8000", nil)
	require.NoError(t, err)

	u := jar.u
	jar.SetCookies(u, []*http.Cookie{
		{Name: AccessCookie, Value: "a", Path: "/"},
		{Name: RefreshCookie, Value: "r", Path: "/", MaxAge: 3600},
	})
	assert.Len(t, jar.Cookies(u), 2)

	rc, ok := jar.Get(RefreshCookie)
	require.True(t, ok)
	assert.False(t, rc.Expires.IsZero(), "max-age becomes an absolute expiry")

	jar.SetCookies(u, []*http.Cookie{{Name: AccessCookie, Path: "/", MaxAge: -1}})
	_, ok = jar.Get(AccessCookie)
	assert.False(t, ok)

	reloaded, err := NewCookieJar(store, "http://127.0.0.1:8000", nil)
	require.NoError(t, err)
	_, ok = reloaded.Get(AccessCookie)
	assert.False(t, ok)
	_, ok = reloaded.Get(RefreshCookie)
	assert.True(t, ok)

	require.NoError(t, reloaded.Clear())
	_, err = store.Load("http://127.0.0.1:8000")
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestNewCookieJarRejectsBadOrigin(t *testing.T) {
	_, err := NewCookieJar(&Store{fallbackDir: t.TempDir()}, "not a url", nil)
	assert.Error(t, err)
}
