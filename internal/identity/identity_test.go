package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/praxislabs/readiness/internal/domain"
)

type fakeRepo struct {
	users map[string]*domain.User
}

func (f *fakeRepo) GetUser(_ context.Context, userID string) (*domain.User, error) {
	return f.users[userID], nil
}

func (f *fakeRepo) UpsertUser(_ context.Context, user *domain.User) error {
	f.users[user.UserID] = user
	return nil
}

func (f *fakeRepo) UpdateLastSeen(_ context.Context, userID string, lastSeen time.Time) error {
	if u, ok := f.users[userID]; ok {
		u.LastSeenAt = lastSeen
	}
	return nil
}

func (f *fakeRepo) GetSession(context.Context, string, string) (*domain.AssessmentSession, error) {
	return nil, nil
}
func (f *fakeRepo) SaveSession(context.Context, *domain.AssessmentSession) error { return nil }
func (f *fakeRepo) CleanupStaleSessions(context.Context, time.Duration) (int64, error) {
	return 0, nil
}
func (f *fakeRepo) Ping(context.Context) error { return nil }
func (f *fakeRepo) Close() error               { return nil }

func TestMiddlewareIssuesAnonCookie(t *testing.T) {
	repo := &fakeRepo{users: make(map[string]*domain.User)}

	var seenUserID string
	handler := Middleware(repo, true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUserID = UserIDFromContext(r.Context())
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if !isValidAnonID(seenUserID) {
		t.Fatalf("context user ID invalid: %q", seenUserID)
	}
	if repo.users[seenUserID] == nil {
		t.Error("user record not created")
	}

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == AnonCookieName {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("anon cookie not set")
	}
	if cookie.Value != seenUserID {
		t.Errorf("cookie value %q does not match context user %q", cookie.Value, seenUserID)
	}
	if !cookie.HttpOnly {
		t.Error("anon cookie must be HttpOnly")
	}
}

func TestMiddlewareReusesValidCookie(t *testing.T) {
	repo := &fakeRepo{users: make(map[string]*domain.User)}
	const existing = "anon_0123456789abcdef0123456789abcdef"
	repo.users[existing] = &domain.User{UserID: existing, Username: deriveUsername(existing)}

	var seenUserID string
	handler := Middleware(repo, true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUserID = UserIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AnonCookieName, Value: existing})
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if seenUserID != existing {
		t.Errorf("user ID = %q, want existing %q", seenUserID, existing)
	}
	if repo.users[existing].LastSeenAt.IsZero() {
		t.Error("last seen not refreshed for returning user")
	}
}

func TestMiddlewareReplacesInvalidCookie(t *testing.T) {
	repo := &fakeRepo{users: make(map[string]*domain.User)}

	var seenUserID string
	handler := Middleware(repo, true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUserID = UserIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AnonCookieName, Value: "not-a-valid-id"})
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if seenUserID == "not-a-valid-id" || !isValidAnonID(seenUserID) {
		t.Errorf("invalid cookie was not replaced: %q", seenUserID)
	}
}

func TestIsValidAnonID(t *testing.T) {
	cases := []struct {
		id   string
		want bool
	}{
		{"anon_0123456789abcdef0123456789abcdef", true},
		{"anon_0123456789ABCDEF0123456789ABCDEF", false},
		{"anon_short", false},
		{"user_0123456789abcdef0123456789abcdef", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := isValidAnonID(tc.id); got != tc.want {
			t.Errorf("isValidAnonID(%q) = %v, want %v", tc.id, got, tc.want)
		}
	}
}
