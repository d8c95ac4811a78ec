package bcs

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	enc := NewEncoder().
		WriteByte(7).
		WriteU32(42).
		WriteU64(1 << 40).
		WriteI64(-5).
		WriteString("hello").
		WriteBytes([]byte{1, 2, 3})

	dec := NewDecoder(enc.Bytes())

	b, err := dec.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte(7), b)

	u32, err := dec.ReadU32()
	require.NoError(t, err)
	require.Equal(t, uint32(42), u32)

	u64, err := dec.ReadU64()
	require.NoError(t, err)
	require.Equal(t, uint64(1<<40), u64)

	i64, err := dec.ReadI64()
	require.NoError(t, err)
	require.Equal(t, int64(-5), i64)

	s, err := dec.ReadString()
	require.NoError(t, err)
	require.Equal(t, "hello", s)

	bs, err := dec.ReadBytes()
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, bs)

	require.Zero(t, dec.Remaining())
}

func TestULEB128Values(t *testing.T) {
	cases := []uint64{0, 1, 127, 128, 300, 1 << 20, 1 << 40}
	for _, v := range cases {
		enc := NewEncoder().WriteULEB128(v)
		dec := NewDecoder(enc.Bytes())
		got, err := dec.ReadULEB128()
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}

func TestReadULEB128RejectsNonCanonical(t *testing.T) {
	// A trailing zero byte after a non-zero continuation is not how the
	// canonical encoder would ever produce a 0, so decoding must reject it.
	dec := NewDecoder([]byte{0x80, 0x00})
	_, err := dec.ReadULEB128()
	require.Error(t, err)
}

// weatherIntentMessage reproduces the exact byte layout a weather
// application's signed payload takes: an intent byte, an 8-byte
// little-endian millisecond timestamp, and the BCS encoding of a struct
// with a location string followed by a temperature reading.
func weatherIntentMessage(intent byte, timestampMs uint64, location string, temperature int64) []byte {
	return NewEncoder().
		WriteByte(intent).
		WriteU64(timestampMs).
		WriteString(location).
		WriteI64(temperature).
		Bytes()
}

func TestWeatherIntentMessageVector(t *testing.T) {
	want, err := hex.DecodeString("0020b1d110960100000d53616e204672616e636973636f0d00000000000000")
	require.NoError(t, err)

	got := weatherIntentMessage(0, 1744038900000, "San Francisco", 13)
	require.Equal(t, want, got)
}
