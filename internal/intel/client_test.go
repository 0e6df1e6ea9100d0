package intel

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nivekithan/gig-marketplace/internal/execution"
	"github.com/nivekithan/gig-marketplace/internal/models"
)

type fakeIntel struct {
	t        *testing.T
	calls    atomic.Int32
	lastPath string
	lastBody map[string]any
	respond  func(path string, body map[string]any) (int, string)
}

func (f *fakeIntel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.calls.Add(1)
	assert.Equal(f.t, "Bearer test-token", r.Header.Get("Authorization"))
	var body map[string]any
	require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
	f.lastPath = r.URL.Path
	f.lastBody = body
	status, resp := f.respond(r.URL.Path, body)
	w.WriteHeader(status)
	_, _ = w.Write([]byte(resp))
}

func newTestClient(t *testing.T, respond func(string, map[string]any) (int, string)) (*Client, *fakeIntel) {
	t.Helper()
	fake := &fakeIntel{t: t, respond: respond}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{Token: "test-token", BaseURL: srv.URL, CacheSize: 16}, nil)
	require.NoError(t, err)
	return c, fake
}

func TestNewClientRequiresToken(t *testing.T) {
	_, err := NewClient(Config{Domain: "example.test"}, nil)
	assert.Error(t, err)
	_, err = NewClient(Config{Token: "x"}, nil)
	assert.Error(t, err)
}

func TestURLIsSafe(t *testing.T) {
	cases := []struct {
		score int
		safe  bool
	}{
		{score: 0, safe: true},
		{score: 90, safe: true},
		{score: 91, safe: false},
		{score: 100, safe: false},
	}
	for _, tc := range cases {
		c, fake := newTestClient(t, func(string, map[string]any) (int, string) {
			return http.StatusOK, `{"status":"Success","result":{"data":{"score":` + itoa(tc.score) + `,"verdict":"x"}}}`
		})
		safe, err := c.URLIsSafe(context.Background(), "https://evil.example")
		require.NoError(t, err)
		assert.Equal(t, tc.safe, safe, "score %d", tc.score)
		assert.Equal(t, "/url-intel/v1/reputation", fake.lastPath)
		assert.Equal(t, "https://evil.example", fake.lastBody["url"])
	}
}

func TestVerdictsAreCached(t *testing.T) {
	c, fake := newTestClient(t, func(string, map[string]any) (int, string) {
		return http.StatusOK, `{"status":"Success","result":{"data":{"score":10}}}`
	})
	for i := 0; i < 3; i++ {
		safe, err := c.URLIsSafe(context.Background(), "https://docs.example")
		require.NoError(t, err)
		assert.True(t, safe)
	}
	assert.Equal(t, int32(1), fake.calls.Load())
}

func TestErrorsAreNotCached(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	c, fake := newTestClient(t, func(string, map[string]any) (int, string) {
		if fail.Load() {
			return http.StatusBadGateway, `{"status":"ProviderError","summary":"upstream down"}`
		}
		return http.StatusOK, `{"status":"Success","result":{"data":{"score":1}}}`
	})

	_, err := c.URLIsSafe(context.Background(), "https://a.example")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream down")

	fail.Store(false)
	safe, err := c.URLIsSafe(context.Background(), "https://a.example")
	require.NoError(t, err)
	assert.True(t, safe)
	assert.Equal(t, int32(2), fake.calls.Load())
}

func TestIPChecks(t *testing.T) {
	c, _ := newTestClient(t, func(path string, body map[string]any) (int, string) {
		switch path {
		case "/embargo/v1/ip/check":
			if body["ip"] == "175.45.176.1" {
				return http.StatusOK, `{"status":"Success","result":{"count":1,"sanctions":[{"embargoed_country_name":"North Korea"}]}}`
			}
			return http.StatusOK, `{"status":"Success","result":{"count":0,"sanctions":[]}}`
		case "/ip-intel/v1/reputation":
			if body["ip"] == "203.0.113.9" {
				return http.StatusOK, `{"status":"Success","result":{"data":{"score":95}}}`
			}
			return http.StatusOK, `{"status":"Success","result":{"data":{"score":0}}}`
		}
		return http.StatusNotFound, `{"status":"NotFound"}`
	})
	ctx := context.Background()

	embargoed, err := c.IPIsEmbargoed(ctx, "175.45.176.1")
	require.NoError(t, err)
	assert.True(t, embargoed)

	embargoed, err = c.IPIsEmbargoed(ctx, "198.51.100.7")
	require.NoError(t, err)
	assert.False(t, embargoed)

	ok, err := c.IPIsReputable(ctx, "203.0.113.9")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.IPIsReputable(ctx, "198.51.100.7")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPasswordBreachedSendsOnlyHashPrefix(t *testing.T) {
	c, fake := newTestClient(t, func(string, map[string]any) (int, string) {
		return http.StatusOK, `{"status":"Success","result":{"data":{"found_in_breach":true,"breach_count":3}}}`
	})

	breached, err := c.PasswordBreached(context.Background(), "hunter2")
	require.NoError(t, err)
	assert.True(t, breached)

	sum := sha256.Sum256([]byte("hunter2"))
	assert.Equal(t, hex.EncodeToString(sum[:])[:5], fake.lastBody["hash_prefix"])
	assert.Equal(t, "sha256", fake.lastBody["hash_type"])
	assert.NotContains(t, fake.lastBody, "password")
}

func TestLogCreditChange(t *testing.T) {
	c, fake := newTestClient(t, func(string, map[string]any) (int, string) {
		return http.StatusOK, `{"status":"Success","result":{"hash":"abc"}}`
	})
	gigID := uuid.New()
	args := execution.AuditCreditArgs{
		UserID:     uuid.New(),
		GigID:      &gigID,
		EntryKind:  models.LedgerKindCreditSettlement,
		OldBalance: 10,
		NewBalance: 60,
		At:         time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, c.LogCreditChange(context.Background(), args))

	assert.Equal(t, "/audit/v1/log", fake.lastPath)
	event, ok := fake.lastBody["event"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "10", event["old"])
	assert.Equal(t, "60", event["new"])
	assert.Equal(t, "User was rewarded with credits", event["message"])
	assert.Equal(t, "2026-01-02T03:04:05Z", event["timestamp"])
	assert.Equal(t, "gig:"+gigID.String(), event["source"])
}

func TestOfflineAllowsEverything(t *testing.T) {
	ctx := context.Background()
	var o Offline
	safe, _ := o.URLIsSafe(ctx, "https://x")
	ok, _ := o.IPIsReputable(ctx, "1.2.3.4")
	embargoed, _ := o.IPIsEmbargoed(ctx, "1.2.3.4")
	breached, _ := o.PasswordBreached(ctx, "pw")
	assert.True(t, safe)
	assert.True(t, ok)
	assert.False(t, embargoed)
	assert.False(t, breached)
	assert.NoError(t, o.LogCreditChange(ctx, execution.AuditCreditArgs{}))
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}
