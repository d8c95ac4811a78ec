// Package bcs implements a minimal encoder and decoder for Binary Canonical
// Serialization, the fixed-layout wire format used to build the message a
// signing request's signature actually covers. BCS has no self-describing
// tags: every writer and reader of a given type must agree on field order
// and width out of band, the same way the registry's Move structs do.
//
// Only the subset BCS uses in this codebase is implemented: fixed-width
// little-endian integers (unsigned u32 and u64, and two's complement i64),
// ULEB128-prefixed byte strings and strings,
// and structs encoded as their fields in declaration order with no padding.
package bcs

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/nautilus-tee/enclave-signer/internal/errs"
)

// Encoder accumulates a BCS-encoded byte stream.
type Encoder struct {
	buf bytes.Buffer
}

// NewEncoder returns an empty Encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Bytes returns the accumulated encoding.
func (e *Encoder) Bytes() []byte {
	return e.buf.Bytes()
}

// WriteByte writes a single byte, e.g. an intent tag or an enum variant.
func (e *Encoder) WriteByte(b byte) *Encoder {
	e.buf.WriteByte(b)
	return e
}

// WriteU32 writes v as a fixed-width 4-byte little-endian integer.
func (e *Encoder) WriteU32(v uint32) *Encoder {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	e.buf.Write(tmp[:])
	return e
}

// WriteU64 writes v as a fixed-width 8-byte little-endian integer.
func (e *Encoder) WriteU64(v uint64) *Encoder {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	e.buf.Write(tmp[:])
	return e
}

// WriteI64 writes v as a fixed-width 8-byte little-endian two's complement
// integer.
func (e *Encoder) WriteI64(v int64) *Encoder {
	return e.WriteU64(uint64(v))
}

// WriteULEB128 writes v as a ULEB128-encoded unsigned integer, used for all
// BCS length prefixes.
func (e *Encoder) WriteULEB128(v uint64) *Encoder {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		e.buf.WriteByte(b)
		if v == 0 {
			return e
		}
	}
}

// WriteBytes writes a ULEB128 length prefix followed by b's raw contents.
func (e *Encoder) WriteBytes(b []byte) *Encoder {
	e.WriteULEB128(uint64(len(b)))
	e.buf.Write(b)
	return e
}

// WriteString writes a ULEB128 length prefix followed by s's UTF-8 bytes.
func (e *Encoder) WriteString(s string) *Encoder {
	return e.WriteBytes([]byte(s))
}

// Decoder reads a BCS-encoded byte stream sequentially. A Decoder is
// exhausted once every field of the expected type has been read; trailing
// bytes are a caller error, not a decoder error, and must be checked for
// explicitly with Remaining.
type Decoder struct {
	buf []byte
	pos int
}

// NewDecoder returns a Decoder positioned at the start of buf.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// Remaining returns the number of unconsumed bytes.
func (d *Decoder) Remaining() int {
	return len(d.buf) - d.pos
}

func (d *Decoder) need(n int) error {
	if d.Remaining() < n {
		return fmt.Errorf("%w: need %d bytes, have %d", errs.InvalidLength, n, d.Remaining())
	}
	return nil
}

// ReadByte reads a single byte.
func (d *Decoder) ReadByte() (byte, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	b := d.buf[d.pos]
	d.pos++
	return b, nil
}

// ReadU32 reads a fixed-width 4-byte little-endian integer.
func (d *Decoder) ReadU32() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(d.buf[d.pos : d.pos+4])
	d.pos += 4
	return v, nil
}

// ReadU64 reads a fixed-width 8-byte little-endian integer.
func (d *Decoder) ReadU64() (uint64, error) {
	if err := d.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(d.buf[d.pos : d.pos+8])
	d.pos += 8
	return v, nil
}

// ReadI64 reads a fixed-width 8-byte little-endian two's complement integer.
func (d *Decoder) ReadI64() (int64, error) {
	v, err := d.ReadU64()
	return int64(v), err
}

// ReadULEB128 reads a ULEB128-encoded unsigned integer.
func (d *Decoder) ReadULEB128() (uint64, error) {
	var result uint64
	var shift uint
	for {
		b, err := d.ReadByte()
		if err != nil {
			return 0, err
		}
		if shift >= 64 {
			return 0, fmt.Errorf("%w: uleb128 overflow", errs.InvalidFormat)
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			// BCS rejects non-canonical encodings: a final byte of 0 is
			// only valid when it's the sole byte (i.e. the value is 0).
			if b == 0 && shift != 0 {
				return 0, fmt.Errorf("%w: non-canonical uleb128", errs.InvalidFormat)
			}
			return result, nil
		}
		shift += 7
	}
}

// ReadBytes reads a ULEB128 length prefix followed by that many raw bytes.
func (d *Decoder) ReadBytes() ([]byte, error) {
	n, err := d.ReadULEB128()
	if err != nil {
		return nil, err
	}
	if n > math.MaxInt32 {
		return nil, fmt.Errorf("%w: byte string too long (%d)", errs.InvalidLength, n)
	}
	if err := d.need(int(n)); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	copy(b, d.buf[d.pos:d.pos+int(n)])
	d.pos += int(n)
	return b, nil
}

// ReadString reads a ULEB128 length prefix followed by that many UTF-8
// bytes.
func (d *Decoder) ReadString() (string, error) {
	b, err := d.ReadBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}
