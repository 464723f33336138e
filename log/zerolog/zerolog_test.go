package zerolog

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/unkn0wn-root/zpacket"
)

func TestZerologLogger(t *testing.T) {
	var buf bytes.Buffer
	l := New(zerolog.New(&buf).Level(zerolog.InfoLevel))

	l.Debug("frame received", zpacket.Fields{"dst": uint8(1)})
	if buf.Len() != 0 {
		t.Fatalf("debug written at info level: %q", buf.String())
	}

	l.Warn("frame rejected", zpacket.Fields{"err": errors.New("bad crc"), "src": uint8(50)})
	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not json: %v (%q)", err, buf.String())
	}
	want := map[string]any{
		"level":     "warn",
		"component": "zpacket",
		"message":   "frame rejected",
		"err":       "bad crc",
		"src":       float64(50),
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s=%v want %v", k, got[k], v)
		}
	}
}
