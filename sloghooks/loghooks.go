// Package sloghooks reports dealscache hook events through log/slog. Hot-path
// events are sampled and keys are redacted unless Redact says otherwise.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/dealscache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	HitEvery      uint64
	MissEvery     uint64
	CoalesceEvery uint64
	SelfHealEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	hitCtr      atomic.Uint64
	missCtr     atomic.Uint64
	coalesceCtr atomic.Uint64
	selfHealCtr atomic.Uint64
}

var _ dealscache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) CacheHit(key string) {
	if h.l == nil || !sample(h.opts.HitEvery, &h.hitCtr) {
		return
	}
	h.l.Debug("dealscache.hit", "key", h.redact(key))
}

func (h *Hooks) CacheMiss(key string, latency time.Duration) {
	if h.l == nil || !sample(h.opts.MissEvery, &h.missCtr) {
		return
	}
	h.l.Debug("dealscache.miss",
		"key", h.redact(key),
		"latency", latency)
}

func (h *Hooks) Coalesced(key string) {
	if h.l == nil || !sample(h.opts.CoalesceEvery, &h.coalesceCtr) {
		return
	}
	h.l.Debug("dealscache.coalesced", "key", h.redact(key))
}

func (h *Hooks) FetchFailed(key string, kind dealscache.ErrorKind, servedStale bool) {
	if h.l == nil {
		return
	}
	h.l.Warn("dealscache.fetch_failed",
		"key", h.redact(key),
		"kind", kind.String(),
		"served_stale", servedStale)
}

func (h *Hooks) LateWrite(key string) {
	if h.l == nil {
		return
	}
	h.l.Info("dealscache.late_write", "key", h.redact(key))
}

func (h *Hooks) SelfHeal(storageKey, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("dealscache.self_heal",
		"key", h.redact(storageKey),
		"reason", reason)
}

func (h *Hooks) ProviderSetRejected(storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Warn("dealscache.provider_set_rejected", "key", h.redact(storageKey))
}

func (h *Hooks) Swept(namespace string, removed int) {
	if h.l == nil {
		return
	}
	h.l.Info("dealscache.swept",
		"ns", namespace,
		"removed", removed)
}
