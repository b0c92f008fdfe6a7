// Package memory is the default in-process Provider: a plain map with
// per-entry expiry and no admission policy, so every Set is kept.
package memory

import (
	"context"
	"sync"
	"time"

	pr "github.com/unkn0wn-root/dealscache/provider"
)

type entry struct {
	v   []byte
	exp time.Time // zero => no TTL
}

type Provider struct {
	mu sync.RWMutex
	m  map[string]entry
}

var _ pr.Provider = (*Provider)(nil)

func New() *Provider {
	return &Provider{m: make(map[string]entry)}
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.RLock()
	e, ok := p.m[key]
	p.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		p.mu.Lock()
		if cur, ok := p.m[key]; ok && cur.exp.Equal(e.exp) {
			delete(p.m, key)
		}
		p.mu.Unlock()
		return nil, false, nil
	}
	return e.v, true, nil
}

// Set copies value; ttl<=0 means no expiry.
func (p *Provider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	v := make([]byte, len(value))
	copy(v, value)

	p.mu.Lock()
	p.m[key] = entry{v: v, exp: exp}
	p.mu.Unlock()
	return true, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	delete(p.m, key)
	p.mu.Unlock()
	return nil
}

// Len reports resident entries, including expired ones not yet read.
func (p *Provider) Len() int {
	p.mu.RLock()
	n := len(p.m)
	p.mu.RUnlock()
	return n
}

func (p *Provider) Close(_ context.Context) error {
	p.mu.Lock()
	p.m = make(map[string]entry)
	p.mu.Unlock()
	return nil
}
