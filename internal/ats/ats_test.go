package ats

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"
)

type recorder struct {
	hits atomic.Int32
}

func (r *recorder) count() int {
	return int(r.hits.Load())
}

// newTestClient points a client at handler and counts the requests it gets.
func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *recorder) {
	t.Helper()

	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	c := New(zap.NewNop(), "secret")
	c.APIURL = srv.URL
	return c, rec
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
