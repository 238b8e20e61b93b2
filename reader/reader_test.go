package reader

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serialFrame(tag uint32) []byte {
	data := []byte{0x09, 0x00, byte(tag >> 24), byte(tag >> 16), byte(tag >> 8), byte(tag)}
	xor := data[0]
	for _, b := range data[1:] {
		xor ^= b
	}
	frame := append([]byte{0x02}, data...)
	return append(frame, xor, 0x03)
}

func TestParseSerialFrame(t *testing.T) {
	frame := serialFrame(0xdeadbeef)
	require.Len(t, frame, 9)

	tag, ok := parseSerialFrame(frame)
	require.True(t, ok)
	assert.Equal(t, uint64(0xdeadbeef), tag)

	bad := append([]byte(nil), frame...)
	bad[7] ^= 0xff
	_, ok = parseSerialFrame(bad)
	assert.False(t, ok, "checksum mismatch")

	bad = append([]byte(nil), frame...)
	bad[8] = 0x00
	_, ok = parseSerialFrame(bad)
	assert.False(t, ok, "bad terminator")

	_, ok = parseSerialFrame(frame[:8])
	assert.False(t, ok, "short frame")
}

// fakePort serves canned bytes to Serial.
type fakePort struct {
	chunks [][]byte
	closed bool
}

func (f *fakePort) Read(p []byte) (int, error) {
	if len(f.chunks) == 0 {
		return 0, nil
	}
	n := copy(p, f.chunks[0])
	f.chunks = f.chunks[1:]
	return n, nil
}

func (f *fakePort) Close() error {
	f.closed = true
	return nil
}

func TestSerialSession(t *testing.T) {
	port := &fakePort{chunks: [][]byte{serialFrame(0x1a2b3c4d)}}
	s := &Serial{port: port}
	ctx := context.Background()

	_, err := s.ReadSerial(ctx)
	assert.ErrorIs(t, err, ErrNoCard)

	require.True(t, s.Present(ctx))
	assert.True(t, s.Present(ctx), "card stays present until released")

	uid, err := s.ReadSerial(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x1a, 0x2b, 0x3c, 0x4d}, uid)

	require.NoError(t, s.Release())
	require.NoError(t, s.Release())
	assert.False(t, s.Present(ctx))

	require.NoError(t, s.Close())
	assert.True(t, port.closed)
}

func TestParseWiegandBody(t *testing.T) {
	tag, err := parseWiegandBody("0001ABCDEF")
	require.NoError(t, err)
	assert.Equal(t, uint64(0xabcdef), tag)

	// Short ids are left padded.
	tag, err = parseWiegandBody("1234")
	require.NoError(t, err)
	assert.Equal(t, uint64(0x001234), tag)

	// 0x00 ^ 0x01 ^ 0xab ^ 0xcd ^ 0xef = 0x88
	tag, err = parseWiegandBody("0001ABCDEF88")
	require.NoError(t, err)
	assert.Equal(t, uint64(0xabcdef), tag)

	_, err = parseWiegandBody("0001ABCDEF00")
	assert.Error(t, err)

	_, err = parseWiegandBody("00G1ABCDEF")
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	n, hex, f := parseFormat("")
	assert.Equal(t, 10, n)
	assert.True(t, hex)
	assert.Equal(t, "10h", f)

	n, hex, _ = parseFormat("8D")
	assert.Equal(t, 8, n)
	assert.False(t, hex)

	n, hex, _ = parseFormat("6")
	assert.Equal(t, 6, n)
	assert.True(t, hex)
}

func TestParseBadge(t *testing.T) {
	uid, err := parseBadge("00DEADBEEF", 10, true)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, uid)

	uid, err = parseBadge("0001234567", 10, false)
	require.NoError(t, err)
	assert.Equal(t, uidFromNumber(1234567), uid)

	_, err = parseBadge("123", 10, false)
	assert.Error(t, err)

	_, err = parseBadge("ZZZZZZZZZZ", 10, true)
	assert.Error(t, err)
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		line    string
		want    []byte
		wantErr bool
	}{
		{line: "tag 0xdeadbeef", want: []byte{0xde, 0xad, 0xbe, 0xef}},
		{line: "RFID de:ad:be:ef", want: []byte{0xde, 0xad, 0xbe, 0xef}},
		{line: "tag 3735928559", want: []byte{0xde, 0xad, 0xbe, 0xef}},
		{line: "tag 04123456789abc", want: []byte{0x04, 0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc}},
		{line: "tag", wantErr: true},
		{line: "tag nothex", wantErr: true},
		{line: "rotary press", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := parseLine(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPipeReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tags")
	p, err := NewPipe(path)
	require.NoError(t, err)

	w, err := os.OpenFile(path, os.O_WRONLY, 0)
	require.NoError(t, err)
	defer w.Close()

	_, err = w.WriteString("# bench\ntag 0xdeadbeef\nbogus\ntag 0x01020304\n")
	require.NoError(t, err)

	ctx := context.Background()
	require.Eventually(t, func() bool { return p.Present(ctx) }, 2*time.Second, 5*time.Millisecond)

	uid, err := p.ReadSerial(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, uid)
	require.NoError(t, p.Release())

	require.Eventually(t, func() bool { return p.Present(ctx) }, 2*time.Second, 5*time.Millisecond)
	uid, err = p.ReadSerial(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, uid)
	require.NoError(t, p.Release())
	require.NoError(t, p.Release())

	assert.False(t, p.Present(ctx))
	require.NoError(t, p.Close())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestNewUnknownType(t *testing.T) {
	_, err := New(Config{Type: "carrier-pigeon"})
	assert.Error(t, err)
}
