package zpacket

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking; Link calls them inline
// with reads and writes. Wrap with hooks/async when they are not.
type Hooks interface {
	// A frame passed validation.
	FrameReceived(dst, src uint8, payloadLen int)

	// A complete frame was dropped (bad checksum or invalid packet).
	FrameRejected(err error)

	// n bytes were discarded while seeking a start marker.
	NoiseDiscarded(n int)

	// A frame was fully written to the link.
	FrameSent(dst, src uint8, payloadLen int)

	// Mailbox deleted a stored entry on read.
	// reason ∈ {"corrupt", "gen_mismatch", "frame"}
	SelfHeal(storageKey, reason string)

	// Provider returned ok=false on Set (backpressure/eviction).
	ProviderSetRejected(storageKey string)

	// GenStore errors (snapshot or bump).
	GenError(storageKey string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) FrameReceived(uint8, uint8, int) {}
func (NopHooks) FrameRejected(error)             {}
func (NopHooks) NoiseDiscarded(int)              {}
func (NopHooks) FrameSent(uint8, uint8, int)     {}
func (NopHooks) SelfHeal(string, string)         {}
func (NopHooks) ProviderSetRejected(string)      {}
func (NopHooks) GenError(string, error)          {}
