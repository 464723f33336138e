package zpacket

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	gen "github.com/unkn0wn-root/zpacket/genstore"
	"github.com/unkn0wn-root/zpacket/internal/wire"
	pr "github.com/unkn0wn-root/zpacket/provider"
)

const (
	defaultMailboxTTL   = 10 * time.Minute
	defaultGenRetention = 30 * 24 * time.Hour
	defaultSweep        = time.Hour

	// lock stripes over the 64*64 mailboxes of a bus
	mailboxStripes = 64
)

// MailboxOptions tune a Mailbox.
// Only Namespace and Provider are required; others have sensible defaults.
type MailboxOptions struct {
	// Required
	Namespace string // isolates buses sharing one store. e.g. "bus0", "rs485:plant1"
	Provider  pr.Provider

	Logger          Logger        // if nil, NopLogger is used
	Hooks           Hooks         // if nil, NopHooks is used
	TTL             time.Duration // stored packets; 0 => 10m
	CleanupInterval time.Duration // local GenStore sweep; 0 => 1h
	GenRetention    time.Duration // local GenStore retention; 0 => 30d
	GenStore        gen.GenStore  // nil => LocalGenStore (in-process)
	Disabled        bool          // default false (enabled)
}

// Mailbox keeps the latest Packet per (destination, source) pair, for hosts
// that collect bus traffic on behalf of other consumers. Entries are stored
// as wire frames and re-validated on read. A delivery bumps the mailbox
// generation; Ack consumes a packet only if nothing newer arrived since it
// was read. Safe for concurrent use.
//
// Writes to one mailbox (Deliver, Ack) are serialized inside the process so
// the stored entry always carries the newest generation. Mailboxes shared
// through RedisGenStore across processes need a single writing process per
// mailbox, typically the gateway that owns the bus.
type Mailbox struct {
	ns       string
	provider pr.Provider
	gen      gen.GenStore
	log      Logger
	hooks    Hooks
	ttl      time.Duration
	enabled  bool

	locks [mailboxStripes]sync.Mutex
}

func NewMailbox(opts MailboxOptions) (*Mailbox, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("zpacket: provider is required")
	}
	if opts.Namespace == "" {
		return nil, fmt.Errorf("zpacket: namespace is required")
	}

	m := &Mailbox{
		ns:       opts.Namespace,
		provider: opts.Provider,
		enabled:  !opts.Disabled,
	}
	m.log = coalesce[Logger](opts.Logger, NopLogger{})
	m.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	m.ttl = coalesce[time.Duration](opts.TTL, defaultMailboxTTL)

	if opts.GenStore != nil {
		m.gen = opts.GenStore
	} else {
		sweep := coalesce[time.Duration](opts.CleanupInterval, defaultSweep)
		retention := coalesce[time.Duration](opts.GenRetention, defaultGenRetention)
		m.gen = gen.NewLocalGenStore(sweep, retention)
	}
	return m, nil
}

func (m *Mailbox) Enabled() bool { return m.enabled }

func (m *Mailbox) Close(ctx context.Context) error {
	// Close gen store first (best effort)
	if m.gen != nil {
		_ = m.gen.Close(ctx)
	}
	if m.provider != nil {
		return m.provider.Close(ctx)
	}
	return nil
}

// Deliver stores p as the latest packet of its mailbox and returns the new
// generation. A disabled Mailbox drops p and returns 0.
func (m *Mailbox) Deliver(ctx context.Context, p Packet) (uint64, error) {
	if !m.enabled {
		return 0, nil
	}
	k := m.key(p.dst, p.src)
	mu := m.lock(p.dst, p.src)
	mu.Lock()
	defer mu.Unlock()

	g, err := m.gen.Bump(ctx, k)
	if err != nil {
		m.hooks.GenError(k, err)
		return 0, fmt.Errorf("zpacket: deliver %s: %w", p, err)
	}
	entry, err := wire.EncodeEntry(g, Marshal(p))
	if err != nil {
		return 0, fmt.Errorf("zpacket: deliver %s: %w", p, err)
	}
	ok, err := m.provider.Set(ctx, k, entry, int64(len(entry)), m.ttl)
	if err != nil {
		return 0, fmt.Errorf("zpacket: deliver %s: %w", p, err)
	}
	if !ok {
		m.hooks.ProviderSetRejected(k)
		m.log.Debug("delivery rejected by provider (pressure)", Fields{"key": k})
	}
	return g, nil
}

// Get returns the latest packet from src to dst and the generation to pass
// to Ack. Entries that fail validation are deleted and reported as a miss.
func (m *Mailbox) Get(ctx context.Context, dst, src uint8) (Packet, uint64, bool, error) {
	if !m.enabled {
		return Packet{}, 0, false, nil
	}
	if err := checkAddrs(dst, src); err != nil {
		return Packet{}, 0, false, err
	}
	k := m.key(dst, src)
	cur, err := m.gen.Snapshot(ctx, k)
	if err != nil {
		m.hooks.GenError(k, err)
		return Packet{}, 0, false, err
	}
	return m.load(ctx, k, dst, src, cur)
}

func (m *Mailbox) load(ctx context.Context, k string, dst, src uint8, cur uint64) (Packet, uint64, bool, error) {
	raw, ok, err := m.provider.Get(ctx, k)
	if err != nil || !ok {
		return Packet{}, 0, false, err
	}
	p, ok := m.check(ctx, k, raw, dst, src, cur)
	if !ok {
		return Packet{}, 0, false, nil
	}
	return p, cur, true, nil
}

// check validates a stored entry against the mailbox it was read from.
func (m *Mailbox) check(ctx context.Context, k string, raw []byte, dst, src uint8, cur uint64) (Packet, bool) {
	g, frame, err := wire.DecodeEntry(raw)
	if err != nil {
		m.heal(ctx, k, "corrupt")
		return Packet{}, false
	}
	if g != cur {
		m.heal(ctx, k, "gen_mismatch")
		return Packet{}, false
	}
	p, err := Unmarshal(frame)
	if err != nil || p.dst != dst || p.src != src {
		m.heal(ctx, k, "frame")
		return Packet{}, false
	}
	return p, true
}

// Ack consumes the packet read at generation observed. It returns false if
// a newer packet was delivered in the meantime; that packet stays readable.
func (m *Mailbox) Ack(ctx context.Context, dst, src uint8, observed uint64) (bool, error) {
	if !m.enabled {
		return false, nil
	}
	if err := checkAddrs(dst, src); err != nil {
		return false, err
	}
	k := m.key(dst, src)
	mu := m.lock(dst, src)
	mu.Lock()
	defer mu.Unlock()

	newGen, ok, err := m.gen.CompareAndBump(ctx, k, observed)
	if err != nil {
		m.hooks.GenError(k, err)
		return false, err
	}
	if !ok {
		m.log.Debug("ack skipped (gen moved)", Fields{"key": k, "obs": observed, "gen": newGen})
		return false, nil
	}
	// the stored entry is now stale; Get would drop it anyway. Holding the
	// lock keeps this from deleting a delivery that raced the ack.
	_ = m.provider.Del(ctx, k)
	return true, nil
}

// Inbox returns every live packet addressed to dst, ordered by source.
func (m *Mailbox) Inbox(ctx context.Context, dst uint8) ([]Packet, error) {
	if !m.enabled {
		return nil, nil
	}
	if dst > MaxAddress {
		return nil, ErrDestinationAddressOutOfRange
	}
	keys := make([]string, MaxAddress+1)
	for src := range keys {
		keys[src] = m.key(dst, uint8(src))
	}
	gens, err := m.gen.SnapshotMany(ctx, keys)
	if err != nil {
		m.hooks.GenError(m.ns, err)
		return nil, err
	}
	live := make([]string, 0, len(keys))
	for _, k := range keys {
		if gens[k] != 0 {
			live = append(live, k)
		}
	}
	if len(live) == 0 {
		return nil, nil
	}

	// one round trip when the store supports it
	var batch map[string][]byte
	bg, batched := m.provider.(pr.BatchGetter)
	if batched {
		if batch, err = bg.GetMany(ctx, live); err != nil {
			return nil, fmt.Errorf("zpacket: inbox %d: %w", dst, err)
		}
	}

	var out []Packet
	for src, k := range keys {
		g := gens[k]
		if g == 0 {
			continue
		}
		var (
			raw []byte
			hit bool
		)
		if batched {
			raw, hit = batch[k]
		} else if raw, hit, err = m.provider.Get(ctx, k); err != nil {
			return out, err
		}
		if !hit {
			continue
		}
		if p, ok := m.check(ctx, k, raw, dst, uint8(src), g); ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// SnapshotGen returns the current generation of a mailbox.
func (m *Mailbox) SnapshotGen(ctx context.Context, dst, src uint8) (uint64, error) {
	if err := checkAddrs(dst, src); err != nil {
		return 0, err
	}
	return m.gen.Snapshot(ctx, m.key(dst, src))
}

func (m *Mailbox) lock(dst, src uint8) *sync.Mutex {
	return &m.locks[(int(dst)*31+int(src))%mailboxStripes]
}

func (m *Mailbox) heal(ctx context.Context, k, reason string) {
	_ = m.provider.Del(ctx, k)
	m.hooks.SelfHeal(k, reason)
	m.log.Debug("mailbox entry dropped", Fields{"key": k, "reason": reason})
}

func (m *Mailbox) key(dst, src uint8) string {
	// isolate by namespace
	return "mbox:" + m.ns + ":" + strconv.Itoa(int(dst)) + ":" + strconv.Itoa(int(src))
}

func checkAddrs(dst, src uint8) error {
	if dst > MaxAddress {
		return ErrDestinationAddressOutOfRange
	}
	if src > MaxAddress {
		return ErrSenderAddressOutOfRange
	}
	return nil
}
