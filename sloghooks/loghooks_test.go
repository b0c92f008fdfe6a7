package sloghooks

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/unkn0wn-root/dealscache"
)

func newBufLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func TestKeysAreRedactedByDefault(t *testing.T) {
	l, buf := newBufLogger()
	h := New(l, Options{})

	h.FetchFailed("search:my secret query", dealscache.KindTransport, true)
	out := buf.String()
	require.Contains(t, out, "dealscache.fetch_failed")
	require.Contains(t, out, "served_stale=true")
	require.NotContains(t, out, "secret")
}

func TestCustomRedactor(t *testing.T) {
	l, buf := newBufLogger()
	h := New(l, Options{Redact: func(k string) string { return strings.ToUpper(k) }})

	h.LateWrite("health")
	require.Contains(t, buf.String(), "key=HEALTH")
}

func TestSampling(t *testing.T) {
	l, buf := newBufLogger()
	h := New(l, Options{HitEvery: 3})

	for range 9 {
		h.CacheHit("k")
	}
	require.Equal(t, 3, strings.Count(buf.String(), "dealscache.hit"))
}

func TestNilLoggerIsSilent(t *testing.T) {
	h := New(nil, Options{})
	require.NotPanics(t, func() {
		h.CacheHit("k")
		h.Swept("search", 1)
		h.SelfHeal("k", "corrupt")
		h.ProviderSetRejected("k")
	})
}
