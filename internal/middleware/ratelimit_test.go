package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseClient(t *testing.T) {
	cases := []struct {
		name    string
		headers map[string]string
		remote  string
		want    ClientInfo
	}{
		{"remote addr", nil, "10.0.0.1:5555", ClientInfo{IP: "10.0.0.1"}},
		{"forwarded first hop", map[string]string{"X-Forwarded-For": "1.2.3.4, 10.0.0.1"}, "10.0.0.1:1", ClientInfo{IP: "1.2.3.4"}},
		{"edgeone", map[string]string{"X-EO-Client-IP": "5.6.7.8", "X-EO-Geo-CountryCodeAlpha2": "in"}, "", ClientInfo{IP: "5.6.7.8", Country: "IN"}},
		{"cloudflare unknown country", map[string]string{"X-Real-IP": "9.9.9.9", "CF-IPCountry": "XX"}, "", ClientInfo{IP: "9.9.9.9"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tc.remote
			for k, v := range tc.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tc.want, parseClient(r))
		})
	}
}

func TestWrapInjectsClientInfo(t *testing.T) {
	var got ClientInfo
	h := Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
	}), 0)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("CF-IPCountry", "jp")
	h.ServeHTTP(httptest.NewRecorder(), r)
	assert.Equal(t, "JP", got.Country)
	assert.Equal(t, ClientInfo{}, FromContext(r.Context()))
}

func TestTokenBucket(t *testing.T) {
	now := time.Unix(100, 0)
	tb := NewTokenBucket(2)
	tb.now = func() time.Time { return now }
	tb.lastSec = now.Unix()

	assert.True(t, tb.allow())
	assert.True(t, tb.allow())
	assert.False(t, tb.allow())
	now = now.Add(time.Second)
	assert.True(t, tb.allow(), "refilled on the next second")
}

func TestWrapRateLimited(t *testing.T) {
	h := Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}), 1)
	w1 := httptest.NewRecorder()
	h.ServeHTTP(w1, httptest.NewRequest(http.MethodGet, "/", nil))
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/", nil))
	statuses := []int{w1.Code, w2.Code}
	assert.Contains(t, statuses, http.StatusOK)
}
