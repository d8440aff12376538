package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/medtrack/internal/accounts"
	"github.com/wolfman30/medtrack/internal/records"
	"github.com/wolfman30/medtrack/pkg/logging"
)

var alice = accounts.Identity{UserID: "p-1", Name: "Alice", Email: "alice@clinic.test", Role: records.RolePatient}

func newTestManager(store Store) *Manager {
	return NewManager(store, Config{Secret: "test-secret", CookieName: "sid", TTL: time.Hour}, logging.Discard())
}

func saveAndCookie(t *testing.T, m *Manager, sess *Session) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	require.NoError(t, m.Save(context.Background(), rec, sess))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}

func requestWith(cookie *http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return req
}

func TestManager_SignInRoundTrip(t *testing.T) {
	m := newTestManager(NewMemoryStore())

	sess := m.Load(requestWith(nil))
	_, ok := sess.Identity()
	assert.False(t, ok)

	sess.SignIn(alice)
	cookie := saveAndCookie(t, m, sess)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "sid", cookie.Name)

	loaded := m.Load(requestWith(cookie))
	got, ok := loaded.Identity()
	require.True(t, ok)
	assert.Equal(t, alice, got)
	assert.True(t, loaded.HasRole(records.RolePatient))
	assert.False(t, loaded.HasRole(records.RoleDoctor))
}

func TestManager_RejectsTamperedOrForeignCookies(t *testing.T) {
	store := NewMemoryStore()
	m := newTestManager(store)
	sess := &Session{}
	sess.SignIn(alice)
	cookie := saveAndCookie(t, m, sess)

	tampered := *cookie
	tampered.Value = cookie.Value + "x"
	_, ok := m.Load(requestWith(&tampered)).Identity()
	assert.False(t, ok)

	other := NewManager(store, Config{Secret: "other-secret", CookieName: "sid"}, logging.Discard())
	_, ok = other.Load(requestWith(cookie)).Identity()
	assert.False(t, ok, "cookie signed with another key must be rejected")
}

func TestManager_ExpiredTokenIsIgnored(t *testing.T) {
	m := newTestManager(NewMemoryStore())
	sess := &Session{}
	sess.SignIn(alice)
	cookie := saveAndCookie(t, m, sess)

	m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, ok := m.Load(requestWith(cookie)).Identity()
	assert.False(t, ok)
}

func TestManager_SignInRotatesSessionID(t *testing.T) {
	store := NewMemoryStore()
	m := newTestManager(store)

	anon := &Session{}
	anon.AddFlash("Invalid credentials.")
	first := saveAndCookie(t, m, anon)
	oldID := anon.id

	sess := m.Load(requestWith(first))
	sess.SignIn(alice)
	saveAndCookie(t, m, sess)

	assert.NotEqual(t, oldID, sess.id)
	data, err := store.Load(context.Background(), oldID)
	require.NoError(t, err)
	assert.Nil(t, data, "pre-login session must be discarded")
}

func TestManager_FlashesAreConsumedOnce(t *testing.T) {
	m := newTestManager(NewMemoryStore())
	sess := &Session{}
	sess.AddFlash("Email already registered.")
	cookie := saveAndCookie(t, m, sess)

	loaded := m.Load(requestWith(cookie))
	assert.Equal(t, []string{"Email already registered."}, loaded.PopFlashes())
	assert.Nil(t, loaded.PopFlashes())

	rec := httptest.NewRecorder()
	require.NoError(t, m.Save(context.Background(), rec, loaded))
	expired := rec.Result().Cookies()
	require.Len(t, expired, 1)
	assert.Less(t, expired[0].MaxAge, 0, "empty session cookie is expired")
}

func TestManager_ClearThenFlashKeepsOnlyFlash(t *testing.T) {
	m := newTestManager(NewMemoryStore())
	sess := &Session{}
	sess.SignIn(alice)
	cookie := saveAndCookie(t, m, sess)

	loaded := m.Load(requestWith(cookie))
	loaded.Clear()
	loaded.AddFlash("You have been logged out.")
	next := saveAndCookie(t, m, loaded)

	_, ok := m.Load(requestWith(cookie)).Identity()
	assert.False(t, ok, "old cookie no longer resolves")

	after := m.Load(requestWith(next))
	_, ok = after.Identity()
	assert.False(t, ok)
	assert.Equal(t, []string{"You have been logged out."}, after.PopFlashes())
}

func TestManager_UnmodifiedSessionWritesNothing(t *testing.T) {
	m := newTestManager(NewMemoryStore())
	rec := httptest.NewRecorder()
	require.NoError(t, m.Save(context.Background(), rec, m.Load(requestWith(nil))))
	assert.Empty(t, rec.Result().Cookies())
}

func TestMiddlewarePutsSessionInContext(t *testing.T) {
	m := newTestManager(NewMemoryStore())
	sess := &Session{}
	sess.SignIn(alice)
	cookie := saveAndCookie(t, m, sess)

	var got accounts.Identity
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = FromContext(r.Context()).Identity()
	}))
	handler.ServeHTTP(httptest.NewRecorder(), requestWith(cookie))
	assert.Equal(t, alice, got)

	_, ok := FromContext(context.Background()).Identity()
	assert.False(t, ok)
}

func TestRedisStore_RoundTripAndTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client)
	ctx := context.Background()

	identity := alice
	require.NoError(t, store.Save(ctx, "abc", &Data{Identity: &identity}, time.Minute))
	assert.True(t, mr.Exists("session:abc"))

	data, err := store.Load(ctx, "abc")
	require.NoError(t, err)
	require.NotNil(t, data)
	assert.Equal(t, alice, *data.Identity)

	mr.FastForward(2 * time.Minute)
	data, err = store.Load(ctx, "abc")
	require.NoError(t, err)
	assert.Nil(t, data)

	require.NoError(t, store.Save(ctx, "def", &Data{Flashes: []string{"hi"}}, time.Minute))
	require.NoError(t, store.Delete(ctx, "def"))
	assert.False(t, mr.Exists("session:def"))
}

func TestManagerWithRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	m := newTestManager(NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()})))

	sess := &Session{}
	sess.SignIn(alice)
	cookie := saveAndCookie(t, m, sess)

	got, ok := m.Load(requestWith(cookie)).Identity()
	require.True(t, ok)
	assert.Equal(t, "Alice", got.Name)
}

func TestMemoryStore_Expiry(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	require.NoError(t, store.Save(context.Background(), "abc", &Data{Flashes: []string{"x"}}, time.Minute))

	store.now = func() time.Time { return now.Add(2 * time.Minute) }
	data, err := store.Load(context.Background(), "abc")
	require.NoError(t, err)
	assert.Nil(t, data)
}
