package keyrotation

import (
	"context"
	"fmt"

	"github.com/yungbote/scoolish-backend/internal/observability"
	"github.com/yungbote/scoolish-backend/internal/platform/ctxutil"
	"github.com/yungbote/scoolish-backend/internal/platform/logger"
)

// Slot is one (API key, endpoint) credential pair.
type Slot struct {
	Index    int
	APIKey   string
	Endpoint string
}

// Manager hands out credential slots round-robin. With a shared counter the
// rotation is coordinated across processes; when the shared counter errors
// the call falls back to the process-local sequence.
type Manager struct {
	log    *logger.Logger
	slots  []Slot
	shared Counter
	local  *localCounter
}

func New(cfg Config, shared Counter, log *logger.Logger) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	slots := make([]Slot, len(cfg.Keys))
	for i := range cfg.Keys {
		slots[i] = Slot{Index: i, APIKey: cfg.Keys[i], Endpoint: cfg.Endpoints[i]}
	}
	return &Manager{
		log:    log.With("service", "KeyManager", "slots", len(slots), "mode", cfg.Mode),
		slots:  slots,
		shared: shared,
		local:  &localCounter{},
	}, nil
}

func (m *Manager) Size() int { return len(m.slots) }

// Next returns the slot for the next outbound call.
func (m *Manager) Next(ctx context.Context) Slot {
	ctx = ctxutil.Default(ctx)
	if m.shared != nil {
		n, err := m.shared.Incr(ctx)
		if err == nil {
			slot := m.slots[m.index(n)]
			observability.Current().IncKeySelection(slot.Index, "redis")
			return slot
		}
		m.log.Warn("shared key counter unavailable; using local rotation", "error", err)
	}
	n, _ := m.local.Incr(ctx)
	slot := m.slots[m.index(n)]
	observability.Current().IncKeySelection(slot.Index, "local")
	return slot
}

func (m *Manager) index(n int64) int {
	size := int64(len(m.slots))
	return int(((n % size) + size) % size)
}
