package zpacket

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	gen "github.com/unkn0wn-root/zpacket/genstore"
	"github.com/unkn0wn-root/zpacket/internal/wire"
	pr "github.com/unkn0wn-root/zpacket/provider"
)

type memEntry struct {
	v   []byte
	exp time.Time // zero => no TTL
}

type memProvider struct {
	m      map[string]memEntry
	reject bool
}

var _ pr.Provider = (*memProvider)(nil)

func newMemProvider() *memProvider { return &memProvider{m: make(map[string]memEntry)} }

func (p *memProvider) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := p.m[key]
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		delete(p.m, key)
		return nil, false, nil
	}
	return e.v, true, nil
}

func (p *memProvider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	if p.reject {
		return false, nil
	}
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	p.m[key] = memEntry{v: value, exp: exp}
	return true, nil
}

func (p *memProvider) Del(_ context.Context, key string) error { delete(p.m, key); return nil }
func (p *memProvider) Close(_ context.Context) error           { return nil }

// batchProvider counts how Inbox reaches the store.
type batchProvider struct {
	*memProvider
	gets, batches int
}

var _ pr.BatchGetter = (*batchProvider)(nil)

func (p *batchProvider) Get(ctx context.Context, key string) ([]byte, bool, error) {
	p.gets++
	return p.memProvider.Get(ctx, key)
}

func (p *batchProvider) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	p.batches++
	out := make(map[string][]byte)
	for _, k := range keys {
		if v, ok, _ := p.memProvider.Get(ctx, k); ok {
			out[k] = v
		}
	}
	return out, nil
}

type healHooks struct {
	NopHooks
	heals    []string
	rejected int
	genErrs  int
}

func (h *healHooks) SelfHeal(_, reason string)  { h.heals = append(h.heals, reason) }
func (h *healHooks) ProviderSetRejected(string) { h.rejected++ }
func (h *healHooks) GenError(string, error)     { h.genErrs++ }

func newTestMailbox(t *testing.T, mp pr.Provider, optsOpt func(*MailboxOptions)) *Mailbox {
	t.Helper()
	opts := MailboxOptions{Namespace: "bus0", Provider: mp}
	if optsOpt != nil {
		optsOpt(&opts)
	}
	m, err := NewMailbox(opts)
	if err != nil {
		t.Fatalf("NewMailbox: %v", err)
	}
	t.Cleanup(func() { _ = m.Close(context.Background()) })
	return m
}

func TestNewMailboxRequiresProviderAndNamespace(t *testing.T) {
	if _, err := NewMailbox(MailboxOptions{Namespace: "x"}); err == nil {
		t.Fatalf("expected provider error")
	}
	if _, err := NewMailbox(MailboxOptions{Provider: newMemProvider()}); err == nil {
		t.Fatalf("expected namespace error")
	}
}

func TestMailboxDeliverGetAck(t *testing.T) {
	ctx := context.Background()
	m := newTestMailbox(t, newMemProvider(), nil)

	if _, _, ok, err := m.Get(ctx, 1, 2); ok || err != nil {
		t.Fatalf("expected miss, ok=%v err=%v", ok, err)
	}

	first := MustNew(1, 2, []byte("a"))
	g1, err := m.Deliver(ctx, first)
	if err != nil || g1 != 1 {
		t.Fatalf("Deliver: gen=%d err=%v", g1, err)
	}
	got, g, ok, err := m.Get(ctx, 1, 2)
	if err != nil || !ok || g != g1 || !got.Equal(first) {
		t.Fatalf("Get: got=%v gen=%d ok=%v err=%v", got, g, ok, err)
	}

	// a newer delivery makes the observed generation stale
	second := MustNew(1, 2, []byte("b"))
	if _, err := m.Deliver(ctx, second); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if acked, err := m.Ack(ctx, 1, 2, g); err != nil || acked {
		t.Fatalf("stale ack: acked=%v err=%v", acked, err)
	}
	got, g, ok, _ = m.Get(ctx, 1, 2)
	if !ok || !got.Equal(second) {
		t.Fatalf("newer packet lost: got=%v ok=%v", got, ok)
	}

	if acked, err := m.Ack(ctx, 1, 2, g); err != nil || !acked {
		t.Fatalf("ack: acked=%v err=%v", acked, err)
	}
	if _, _, ok, _ := m.Get(ctx, 1, 2); ok {
		t.Fatalf("acked packet still readable")
	}
}

func TestMailboxInbox(t *testing.T) {
	ctx := context.Background()
	m := newTestMailbox(t, newMemProvider(), nil)

	for _, src := range []uint8{40, 3, 63, 0} {
		if _, err := m.Deliver(ctx, MustNew(7, src, []byte{src})); err != nil {
			t.Fatalf("Deliver: %v", err)
		}
	}
	if _, err := m.Deliver(ctx, MustNew(8, 1, nil)); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	g, _ := m.SnapshotGen(ctx, 7, 3)
	if ok, _ := m.Ack(ctx, 7, 3, g); !ok {
		t.Fatalf("ack failed")
	}

	in, err := m.Inbox(ctx, 7)
	if err != nil {
		t.Fatalf("Inbox: %v", err)
	}
	var srcs []uint8
	for _, p := range in {
		if p.Destination() != 7 {
			t.Fatalf("foreign packet in inbox: %v", p)
		}
		srcs = append(srcs, p.Source())
	}
	if len(srcs) != 3 || srcs[0] != 0 || srcs[1] != 40 || srcs[2] != 63 {
		t.Fatalf("inbox sources=%v want [0 40 63]", srcs)
	}
	if _, err := m.Inbox(ctx, 64); !errors.Is(err, ErrDestinationAddressOutOfRange) {
		t.Fatalf("expected address error, got %v", err)
	}
}

func TestMailboxInboxBatched(t *testing.T) {
	ctx := context.Background()
	bp := &batchProvider{memProvider: newMemProvider()}
	hooks := &healHooks{}
	m := newTestMailbox(t, bp, func(o *MailboxOptions) { o.Hooks = hooks })

	for _, src := range []uint8{9, 2} {
		if _, err := m.Deliver(ctx, MustNew(1, src, []byte("x"))); err != nil {
			t.Fatalf("Deliver: %v", err)
		}
	}
	// a damaged entry is healed on the batch path too
	bp.m[m.key(1, 9)] = memEntry{v: []byte("garbage")}

	in, err := m.Inbox(ctx, 1)
	if err != nil {
		t.Fatalf("Inbox: %v", err)
	}
	if len(in) != 1 || in[0].Source() != 2 {
		t.Fatalf("inbox=%v", in)
	}
	if bp.batches != 1 || bp.gets != 0 {
		t.Fatalf("batches=%d gets=%d, want one batch and no single gets", bp.batches, bp.gets)
	}
	if len(hooks.heals) != 1 || hooks.heals[0] != "corrupt" {
		t.Fatalf("heals=%v", hooks.heals)
	}

	empty, err := m.Inbox(ctx, 2)
	if err != nil || len(empty) != 0 || bp.batches != 1 {
		t.Fatalf("empty inbox=%v err=%v batches=%d", empty, err, bp.batches)
	}
}

func TestMailboxSelfHeal(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	hooks := &healHooks{}
	m := newTestMailbox(t, mp, func(o *MailboxOptions) { o.Hooks = hooks })
	k := m.key(5, 6)

	// not an envelope at all
	_, _ = mp.Set(ctx, k, []byte("garbage"), 1, 0)
	if _, _, ok, err := m.Get(ctx, 5, 6); ok || err != nil {
		t.Fatalf("corrupt: ok=%v err=%v", ok, err)
	}
	if _, ok, _ := mp.Get(ctx, k); ok {
		t.Fatalf("corrupt entry not deleted")
	}

	// valid envelope, stale generation
	if _, err := m.Deliver(ctx, MustNew(5, 6, []byte("x"))); err != nil {
		t.Fatal(err)
	}
	stale, _ := wire.EncodeEntry(0, Marshal(MustNew(5, 6, []byte("old"))))
	_, _ = mp.Set(ctx, k, stale, 1, 0)
	if _, _, ok, _ := m.Get(ctx, 5, 6); ok {
		t.Fatalf("stale entry served")
	}

	// current generation, damaged frame
	cur, _ := m.SnapshotGen(ctx, 5, 6)
	frame := Marshal(MustNew(5, 6, []byte("y")))
	frame[3] ^= 0x01
	bad, _ := wire.EncodeEntry(cur, frame)
	_, _ = mp.Set(ctx, k, bad, 1, 0)
	if _, _, ok, _ := m.Get(ctx, 5, 6); ok {
		t.Fatalf("damaged frame served")
	}

	// frame for another mailbox stored under this key
	wrong, _ := wire.EncodeEntry(cur, Marshal(MustNew(9, 9, nil)))
	_, _ = mp.Set(ctx, k, wrong, 1, 0)
	if _, _, ok, _ := m.Get(ctx, 5, 6); ok {
		t.Fatalf("misfiled frame served")
	}

	want := []string{"corrupt", "gen_mismatch", "frame", "frame"}
	if len(hooks.heals) != len(want) {
		t.Fatalf("heals=%v want %v", hooks.heals, want)
	}
	for i := range want {
		if hooks.heals[i] != want[i] {
			t.Fatalf("heals=%v want %v", hooks.heals, want)
		}
	}
}

func TestMailboxProviderRejection(t *testing.T) {
	mp := newMemProvider()
	mp.reject = true
	hooks := &healHooks{}
	m := newTestMailbox(t, mp, func(o *MailboxOptions) { o.Hooks = hooks })
	if _, err := m.Deliver(context.Background(), MustNew(1, 1, nil)); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if hooks.rejected != 1 {
		t.Fatalf("rejected hooks=%d", hooks.rejected)
	}
}

type brokenGenStore struct{ gen.GenStore }

var errGen = errors.New("gen down")

func (brokenGenStore) Snapshot(context.Context, string) (uint64, error) { return 0, errGen }
func (brokenGenStore) Bump(context.Context, string) (uint64, error)     { return 0, errGen }
func (brokenGenStore) Close(context.Context) error                      { return nil }

func TestMailboxGenStoreErrors(t *testing.T) {
	ctx := context.Background()
	hooks := &healHooks{}
	m := newTestMailbox(t, newMemProvider(), func(o *MailboxOptions) {
		o.Hooks = hooks
		o.GenStore = brokenGenStore{}
	})
	if _, err := m.Deliver(ctx, MustNew(1, 1, nil)); !errors.Is(err, errGen) {
		t.Fatalf("Deliver: %v", err)
	}
	if _, _, _, err := m.Get(ctx, 1, 1); !errors.Is(err, errGen) {
		t.Fatalf("Get: %v", err)
	}
	if hooks.genErrs != 2 {
		t.Fatalf("gen error hooks=%d", hooks.genErrs)
	}
}

func TestMailboxDisabled(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	m := newTestMailbox(t, mp, func(o *MailboxOptions) { o.Disabled = true })
	if m.Enabled() {
		t.Fatalf("expected disabled")
	}
	if g, err := m.Deliver(ctx, MustNew(1, 1, nil)); g != 0 || err != nil {
		t.Fatalf("Deliver: gen=%d err=%v", g, err)
	}
	if len(mp.m) != 0 {
		t.Fatalf("disabled mailbox wrote to provider")
	}
}

func TestMailboxAddressValidation(t *testing.T) {
	ctx := context.Background()
	m := newTestMailbox(t, newMemProvider(), nil)
	if _, _, _, err := m.Get(ctx, 64, 0); !errors.Is(err, ErrDestinationAddressOutOfRange) {
		t.Fatalf("Get dst: %v", err)
	}
	if _, err := m.Ack(ctx, 0, 64, 1); !errors.Is(err, ErrSenderAddressOutOfRange) {
		t.Fatalf("Ack src: %v", err)
	}
	if _, err := m.SnapshotGen(ctx, 99, 0); !errors.Is(err, ErrDestinationAddressOutOfRange) {
		t.Fatalf("SnapshotGen dst: %v", err)
	}
	if _, err := m.SnapshotGen(ctx, 0, 64); !errors.Is(err, ErrSenderAddressOutOfRange) {
		t.Fatalf("SnapshotGen src: %v", err)
	}
}

// gateProvider parks the first Set until release is closed.
type gateProvider struct {
	mu      sync.Mutex
	inner   *memProvider
	sets    int
	entered chan struct{}
	release chan struct{}
}

func newGateProvider() *gateProvider {
	return &gateProvider{
		inner:   newMemProvider(),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (p *gateProvider) Get(ctx context.Context, key string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inner.Get(ctx, key)
}

func (p *gateProvider) Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (bool, error) {
	p.mu.Lock()
	p.sets++
	first := p.sets == 1
	p.mu.Unlock()
	if first {
		close(p.entered)
		<-p.release
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inner.Set(ctx, key, value, cost, ttl)
}

func (p *gateProvider) Del(ctx context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inner.Del(ctx, key)
}

func (p *gateProvider) Close(context.Context) error { return nil }

func TestMailboxConcurrentDeliveriesKeepLatest(t *testing.T) {
	ctx := context.Background()
	gp := newGateProvider()
	m := newTestMailbox(t, gp, nil)

	firstDone := make(chan error, 1)
	go func() {
		_, err := m.Deliver(ctx, MustNew(1, 2, []byte("old")))
		firstDone <- err
	}()
	<-gp.entered

	secondDone := make(chan uint64, 1)
	go func() {
		g, _ := m.Deliver(ctx, MustNew(1, 2, []byte("new")))
		secondDone <- g
	}()
	select {
	case g := <-secondDone:
		t.Fatalf("second delivery (gen %d) overtook a delivery still writing", g)
	case <-time.After(20 * time.Millisecond):
	}

	close(gp.release)
	if err := <-firstDone; err != nil {
		t.Fatalf("first Deliver: %v", err)
	}
	if g := <-secondDone; g != 2 {
		t.Fatalf("second gen=%d want 2", g)
	}

	p, g, ok, err := m.Get(ctx, 1, 2)
	if err != nil || !ok || g != 2 || string(p.Payload()) != "new" {
		t.Fatalf("Get=%q gen=%d ok=%v err=%v, want the newest packet", p.Payload(), g, ok, err)
	}
}

func TestMailboxAckDoesNotDropRacingDelivery(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	m := newTestMailbox(t, mp, nil)

	if _, err := m.Deliver(ctx, MustNew(4, 5, []byte("a"))); err != nil {
		t.Fatal(err)
	}
	_, g, ok, _ := m.Get(ctx, 4, 5)
	if !ok {
		t.Fatalf("first packet missing")
	}

	// hold the mailbox while a delivery queues up behind the ack
	mu := m.lock(4, 5)
	mu.Lock()
	delivered := make(chan struct{})
	go func() {
		defer close(delivered)
		_, _ = m.Deliver(ctx, MustNew(4, 5, []byte("b")))
	}()
	acked := make(chan bool, 1)
	go func() {
		ok, _ := m.Ack(ctx, 4, 5, g)
		acked <- ok
	}()
	time.Sleep(10 * time.Millisecond)
	mu.Unlock()
	<-delivered
	<-acked

	// whichever ran first, "b" must survive: either Ack consumed "a" and
	// "b" landed after it, or "b" moved the generation and Ack was refused
	p, _, ok, err := m.Get(ctx, 4, 5)
	if err != nil || !ok || string(p.Payload()) != "b" {
		t.Fatalf("Get=%q ok=%v err=%v, want the racing delivery", p.Payload(), ok, err)
	}
}

func TestMailboxWithLinkTraffic(t *testing.T) {
	ctx := context.Background()
	var stream []byte
	for _, p := range testPackets() {
		stream = AppendFrame(stream, p)
	}
	rx := newLink(bytes.NewReader(stream), nil, LinkOptions{})
	m := newTestMailbox(t, newMemProvider(), nil)
	for range testPackets() {
		p, err := rx.ReadPacket(ctx)
		if err != nil {
			t.Fatalf("ReadPacket: %v", err)
		}
		if _, err := m.Deliver(ctx, p); err != nil {
			t.Fatalf("Deliver: %v", err)
		}
	}
	for _, want := range testPackets() {
		got, _, ok, err := m.Get(ctx, want.Destination(), want.Source())
		if err != nil || !ok || !got.Equal(want) {
			t.Fatalf("Get %v: got=%v ok=%v err=%v", want, got, ok, err)
		}
	}
}
