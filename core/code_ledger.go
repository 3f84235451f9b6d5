package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

const defaultCodeTTL = 15 * time.Minute

// MemoryCodeLedger remembers consumed authorization codes so a code can be
// exchanged at most once. Entries are pruned after ttl.
type MemoryCodeLedger struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      Clock
	consumed map[string]time.Time
}

func NewMemoryCodeLedger(ttl time.Duration) *MemoryCodeLedger {
	if ttl <= 0 {
		ttl = defaultCodeTTL
	}
	return &MemoryCodeLedger{
		ttl:      ttl,
		now:      systemClock,
		consumed: map[string]time.Time{},
	}
}

func (l *MemoryCodeLedger) Consume(_ context.Context, code AuthorizationCode) error {
	if l == nil {
		return fmt.Errorf("core: code ledger is not configured")
	}
	value := strings.TrimSpace(code.Code)
	if value == "" {
		return fmt.Errorf("core: authorization code is required")
	}

	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pruneLocked(now)
	if _, seen := l.consumed[value]; seen {
		return ErrCodeConsumed
	}
	l.consumed[value] = now.Add(l.ttl)
	return nil
}

func (l *MemoryCodeLedger) pruneLocked(now time.Time) {
	for code, expiresAt := range l.consumed {
		if now.After(expiresAt) {
			delete(l.consumed, code)
		}
	}
}

var _ CodeLedger = (*MemoryCodeLedger)(nil)
