package icy

import (
	"bytes"
	"fmt"
	"math/rand"
	"net/http"
	"testing"
)

// buildStream interleaves metadata blocks into audio every metaint bytes and
// returns the raw stream.
func buildStream(audio []byte, metaint int, blocks [][]byte) []byte {
	var out bytes.Buffer
	block := 0
	for len(audio) > 0 {
		n := min(metaint, len(audio))
		out.Write(audio[:n])
		audio = audio[n:]
		if n < metaint {
			break
		}
		if block < len(blocks) && blocks[block] != nil {
			out.Write(metaBlock(blocks[block]))
		} else {
			out.WriteByte(0)
		}
		block++
	}
	return out.Bytes()
}

func metaBlock(text []byte) []byte {
	blocks := (len(text) + 15) / 16
	out := make([]byte, 1+blocks*16)
	out[0] = byte(blocks)
	copy(out[1:], text)
	return out
}

func TestSplitterRemovesMetadataForAnyChunking(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	audio := make([]byte, 5000)
	rng.Read(audio)

	blocks := [][]byte{
		[]byte("StreamTitle='First';"),
		nil,
		[]byte("StreamTitle='Second';StreamUrl='';"),
		[]byte(""),
	}
	for i := 0; i < 40; i++ {
		blocks = append(blocks, []byte(fmt.Sprintf("StreamTitle='Track %d';", i)))
	}

	for _, metaint := range []int{1, 16, 100, 333, 8192} {
		raw := buildStream(audio, metaint, blocks)
		for _, chunk := range []int{1, 2, 7, 100, 4096, len(raw)} {
			t.Run(fmt.Sprintf("metaint_%d_chunk_%d", metaint, chunk), func(t *testing.T) {
				var got bytes.Buffer
				s := NewSplitter(metaint, func(p []byte) { got.Write(p) }, nil)

				for off := 0; off < len(raw); off += chunk {
					end := min(off+chunk, len(raw))
					n, err := s.Write(raw[off:end])
					if err != nil || n != end-off {
						t.Fatalf("Write = (%d, %v)", n, err)
					}
				}

				if !bytes.Equal(got.Bytes(), audio) {
					t.Fatalf("audio output (%d bytes) differs from input audio (%d bytes)", got.Len(), len(audio))
				}
				if s.AudioBytes() != int64(len(audio)) {
					t.Errorf("AudioBytes() = %d, want %d", s.AudioBytes(), len(audio))
				}
				if s.Remaining() < 0 {
					t.Errorf("Remaining() = %d, must never be negative", s.Remaining())
				}
			})
		}
	}
}

func TestSplitterWithoutMetaIntPassesEverything(t *testing.T) {
	var got bytes.Buffer
	s := NewSplitter(0, func(p []byte) { got.Write(p) }, func(string) {
		t.Error("no titles expected without metaint")
	})

	raw := []byte("StreamTitle='Not metadata';\x02abc")
	s.Write(raw)

	if !bytes.Equal(got.Bytes(), raw) {
		t.Errorf("got %q, want %q", got.Bytes(), raw)
	}
}

func TestSplitterMetaIntHundredScenario(t *testing.T) {
	audio := bytes.Repeat([]byte{0xAA}, 150)

	tests := []struct {
		name      string
		block     []byte
		wantTitle string
		wantCalls int
	}{
		{
			name:      "no marker",
			block:     []byte("StreamUrl='http://example.com';"),
			wantCalls: 0,
		},
		{
			name:      "with marker",
			block:     []byte("StreamTitle='Artist - Song';"),
			wantTitle: "Artist - Song",
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := make([]byte, 32)
			copy(payload, tt.block)

			raw := append([]byte{}, audio[:100]...)
			raw = append(raw, 2)
			raw = append(raw, payload...)
			raw = append(raw, audio[100:]...)

			var got bytes.Buffer
			var titles []string
			s := NewSplitter(100, func(p []byte) { got.Write(p) }, func(title string) {
				titles = append(titles, title)
			})
			s.Write(raw)

			if len(titles) != tt.wantCalls {
				t.Fatalf("title callbacks = %d, want %d", len(titles), tt.wantCalls)
			}
			if tt.wantCalls > 0 && titles[0] != tt.wantTitle {
				t.Errorf("title = %q, want %q", titles[0], tt.wantTitle)
			}
			if !bytes.Equal(got.Bytes(), audio) {
				t.Errorf("audio = %d bytes, want %d untouched bytes", got.Len(), len(audio))
			}
			if s.Remaining() != 50 {
				t.Errorf("Remaining() = %d, want 50", s.Remaining())
			}
		})
	}
}

func TestSplitterMetadataStraddlingReads(t *testing.T) {
	block := metaBlock([]byte("StreamTitle='Split across reads';"))
	raw := append(bytes.Repeat([]byte{1}, 10), block...)
	raw = append(raw, bytes.Repeat([]byte{2}, 10)...)

	var titles []string
	var got bytes.Buffer
	s := NewSplitter(10, func(p []byte) { got.Write(p) }, func(title string) {
		titles = append(titles, title)
	})

	s.Write(raw[:15])
	if len(titles) != 0 {
		t.Fatal("title published before the block was complete")
	}
	s.Write(raw[15:])

	if len(titles) != 1 || titles[0] != "Split across reads" {
		t.Errorf("titles = %q", titles)
	}
	if got.Len() != 20 {
		t.Errorf("audio bytes = %d, want 20", got.Len())
	}
}

func TestParseMetaInt(t *testing.T) {
	tests := []struct {
		value    string
		expected int
	}{
		{"", 0},
		{"16000", 16000},
		{" 8192 ", 8192},
		{"abc", 0},
		{"-5", 0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.value), func(t *testing.T) {
			h := http.Header{}
			if tt.value != "" {
				h.Set("icy-metaint", tt.value)
			}
			if got := ParseMetaInt(h); got != tt.expected {
				t.Errorf("ParseMetaInt(%q) = %d, want %d", tt.value, got, tt.expected)
			}
		})
	}
}
