// Package zpacket implements a small addressed framing protocol for byte links
// such as serial buses, where frames arrive split across reads of any size.
//
// Wire frame (4 + N bytes):
//
//	0      1 | 0 | dst(6)      start marker + destination address
//	1      0 | 0 | src(6)      sender address
//	2      N                   payload length, 0..255
//	3..    payload(N)
//	3+N    xor of bytes 0..2+N
//
// Components:
//   - Packet: immutable, validated addresses + payload.
//   - Serializer: pulls a frame out one byte at a time (or via io.Reader).
//   - Deserializer: resumable parser; Feed it chunks, get back the number of
//     bytes consumed and, once a frame completes, a Packet or a *FrameError.
//   - Link: binds both codecs to an io.ReadWriter with logging and hooks.
//   - Mailbox: latest packet per (destination, source) kept in a byte
//     Provider (ristretto, bigcache, redis) with generation-checked acks.
//
// Receive loop:
//
//	d := zpacket.NewDeserializer()
//	for len(chunk) > 0 {
//	    n, p, err := d.Feed(chunk)
//	    chunk = chunk[n:]
//	    switch {
//	    case err != nil: // frame dropped, d is already seeking the next start
//	    case p != nil:   // use *p
//	    }
//	}
package zpacket
