package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/dead-poets-society/internal/config"
)

// newTestServer wires the whole stack against an in-memory database and
// returns an httptest server driving the real router, middleware included.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := &config.Config{
		Port:      0,
		DBPath:    ":memory:",
		JWTSecret: "test-secret-at-least-16-chars",
		TokenTTL:  time.Hour,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	srv, err := New(cfg, logger)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

// doJSON sends a JSON request and decodes the JSON response body into a
// generic map. token may be empty for public routes.
func doJSON(t *testing.T, ts *httptest.Server, method, path, token string, body any) (int, map[string]any) {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, ts.URL+path, reqBody)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), "body: %s", raw)
	}
	return resp.StatusCode, decoded
}

// doJSONList is doJSON for endpoints that return a top-level JSON array.
func doJSONList(t *testing.T, ts *httptest.Server, path, token string) (int, []map[string]any) {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, ts.URL+path, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

func register(t *testing.T, ts *httptest.Server, username, password string) {
	t.Helper()
	status, body := doJSON(t, ts, http.MethodPost, "/identities", "", map[string]string{
		"username": username,
		"password": password,
	})
	require.Equal(t, http.StatusCreated, status, "register %s: %v", username, body)
}

func login(t *testing.T, ts *httptest.Server, username, password string) (token, userID string) {
	t.Helper()
	status, body := doJSON(t, ts, http.MethodPost, "/identities/session", "", map[string]string{
		"username": username,
		"password": password,
	})
	require.Equal(t, http.StatusOK, status)
	token, ok := body["token"].(string)
	require.True(t, ok, "login response missing token: %v", body)

	user, ok := body["user"].(map[string]any)
	require.True(t, ok)
	userID, ok = user["id"].(string)
	require.True(t, ok)
	return token, userID
}

// TestFullLifecycle walks the whole API the way two users would: alice
// publishes a poem, bob likes and comments on it, alice moderates the
// comment as the poem's owner, and bob is refused when he tries to
// delete a poem that is not his.
func TestFullLifecycle(t *testing.T) {
	ts := newTestServer(t)

	register(t, ts, "alice", "correct-horse-battery")
	register(t, ts, "bob", "staple-battery-horse")

	aliceToken, aliceID := login(t, ts, "alice", "correct-horse-battery")
	bobToken, bobID := login(t, ts, "bob", "staple-battery-horse")
	require.NotEqual(t, aliceID, bobID)

	// Alice publishes a poem.
	status, poem := doJSON(t, ts, http.MethodPost, "/poems", aliceToken, map[string]string{
		"title":   "Ode",
		"content": "line one",
	})
	require.Equal(t, http.StatusCreated, status)
	poemID, _ := poem["id"].(string)
	require.NotEmpty(t, poemID)
	assert.Equal(t, "alice", poem["authorName"])
	assert.Equal(t, float64(0), poem["likes"])

	// Bob likes it.
	status, likeState := doJSON(t, ts, http.MethodPost, "/poems/"+poemID+"/likes", bobToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), likeState["likes"])
	assert.Equal(t, true, likeState["isLiked"])

	// The like annotation is viewer-relative: alice sees the count but
	// not isLiked, because she has not liked her own poem.
	status, fromAlice := doJSONList(t, ts, "/poems", aliceToken)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, fromAlice, 1)
	assert.Equal(t, float64(1), fromAlice[0]["likes"])
	assert.Equal(t, false, fromAlice[0]["isLiked"])

	// Bob comments.
	status, comment := doJSON(t, ts, http.MethodPost, "/poems/"+poemID+"/comments", bobToken, map[string]string{
		"content": "nice",
	})
	require.Equal(t, http.StatusCreated, status)
	commentID, _ := comment["id"].(string)
	require.NotEmpty(t, commentID)
	assert.Equal(t, "bob", comment["authorName"])

	// Alice removes bob's comment: she owns the poem, so she may.
	status, _ = doJSON(t, ts, http.MethodDelete, "/poems/"+poemID+"/comments/"+commentID, aliceToken, nil)
	require.Equal(t, http.StatusOK, status)

	status, poems := doJSONList(t, ts, "/poems", aliceToken)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, poems, 1)
	comments, _ := poems[0]["comments"].([]any)
	assert.Empty(t, comments)

	// Bob cannot delete alice's poem.
	status, errBody := doJSON(t, ts, http.MethodDelete, "/poems/"+poemID, bobToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "forbidden", errBody["error"])

	// Alice can.
	status, _ = doJSON(t, ts, http.MethodDelete, "/poems/"+poemID, aliceToken, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestAuthBoundary(t *testing.T) {
	ts := newTestServer(t)

	// Protected routes refuse requests without a token.
	status, body := doJSON(t, ts, http.MethodGet, "/poems", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "unauthenticated", body["error"])

	// A duplicate username is rejected without leaking internals.
	register(t, ts, "alice", "correct-horse-battery")
	status, body = doJSON(t, ts, http.MethodPost, "/identities", "", map[string]string{
		"username": "alice",
		"password": "another-password",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "duplicate_identity", body["error"])

	// Wrong password and unknown username fail identically.
	status, body = doJSON(t, ts, http.MethodPost, "/identities/session", "", map[string]string{
		"username": "alice",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_credentials", body["error"])

	status, body = doJSON(t, ts, http.MethodPost, "/identities/session", "", map[string]string{
		"username": "nobody",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_credentials", body["error"])
}

func TestMeAndProfileRoutes(t *testing.T) {
	ts := newTestServer(t)

	register(t, ts, "alice", "correct-horse-battery")
	token, userID := login(t, ts, "alice", "correct-horse-battery")

	status, me := doJSON(t, ts, http.MethodGet, "/identities/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, userID, me["id"])
	assert.Equal(t, "alice", me["username"])
	_, leaked := me["passwordHash"]
	assert.False(t, leaked)

	status, profile := doJSON(t, ts, http.MethodGet, "/identities/"+userID, token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alice", profile["username"])
}
