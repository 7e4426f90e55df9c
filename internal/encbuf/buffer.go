// Copyright 2024 The Cuckoo Index Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

// Package encbuf provides a growable byte buffer with the append-style
// primitive, varint, and string writers that the cuckoo index's on-disk
// format relies on, plus a matching reader that walks a byte slice with an
// explicit read position.
package encbuf

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
)

// Buffer is a growable byte buffer supporting little-endian fixed-width and
// varint writes. It doubles its backing array on growth, mirroring the
// growth strategy used throughout the column-block writers this format is
// modeled on.
type Buffer struct {
	buf []byte
}

// NewBuffer returns a Buffer with the given initial capacity reserved.
func NewBuffer(capacityHint int) *Buffer {
	return &Buffer{buf: make([]byte, 0, capacityHint)}
}

// Len returns the number of bytes written so far.
func (b *Buffer) Len() int { return len(b.buf) }

// Cap returns the buffer's current capacity.
func (b *Buffer) Cap() int { return cap(b.buf) }

// Bytes returns the accumulated bytes. The returned slice aliases the
// buffer's backing array and is invalidated by further writes.
func (b *Buffer) Bytes() []byte { return b.buf }

// EnsureCapacity grows the backing array, if necessary, so that at least n
// additional bytes can be appended without reallocation.
func (b *Buffer) EnsureCapacity(n int) {
	if cap(b.buf)-len(b.buf) >= n {
		return
	}
	need := len(b.buf) + n
	newCap := max(cap(b.buf)*2, 256)
	for newCap < need {
		newCap *= 2
	}
	grown := make([]byte, len(b.buf), newCap)
	copy(grown, b.buf)
	b.buf = grown
}

// WriteByte appends a single byte.
func (b *Buffer) WriteByte(v byte) {
	b.EnsureCapacity(1)
	b.buf = append(b.buf, v)
}

// WriteBytes appends a raw byte slice verbatim, with no length prefix.
func (b *Buffer) WriteBytes(v []byte) {
	b.EnsureCapacity(len(v))
	b.buf = append(b.buf, v...)
}

// WriteUint32 appends a 4-byte little-endian unsigned integer.
func (b *Buffer) WriteUint32(v uint32) {
	b.EnsureCapacity(4)
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
}

// WriteUint64 appends an 8-byte little-endian unsigned integer.
func (b *Buffer) WriteUint64(v uint64) {
	b.EnsureCapacity(8)
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
}

// WriteVarint32 appends v as an unsigned base-128 varint (encoding/binary's
// Uvarint format: 7 bits per byte, low bits first, continuation bit on every
// byte but the last), using at most 5 bytes. It is not a prefix-varint: the
// first byte does not carry the encoded length.
func (b *Buffer) WriteVarint32(v uint32) {
	b.EnsureCapacity(binary.MaxVarintLen32)
	var tmp [binary.MaxVarintLen32]byte
	n := binary.PutUvarint(tmp[:], uint64(v))
	b.buf = append(b.buf, tmp[:n]...)
}

// WriteVarint64 appends v as an unsigned base-128 varint (the same format as
// WriteVarint32), using at most 10 bytes (binary.MaxVarintLen64).
func (b *Buffer) WriteVarint64(v uint64) {
	b.EnsureCapacity(binary.MaxVarintLen64)
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	b.buf = append(b.buf, tmp[:n]...)
}

// WriteString appends a length-prefixed string: varint(len(s)) || s.
func (b *Buffer) WriteString(s string) {
	b.WriteVarint32(uint32(len(s)))
	b.WriteBytes([]byte(s))
}

// WriteLenPrefixed appends a length-prefixed byte slice: varint(len(v)) || v.
func (b *Buffer) WriteLenPrefixed(v []byte) {
	b.WriteVarint32(uint32(len(v)))
	b.WriteBytes(v)
}

// Reader walks a byte slice sequentially, tracking a read position. It
// mirrors Buffer's write primitives on the decode side.
type Reader struct {
	buf []byte
	pos int
}

// NewReader returns a Reader over buf, starting at position 0.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Pos returns the current read offset.
func (r *Reader) Pos() int { return r.pos }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

// ErrTruncated is returned when a read runs past the end of the buffer.
var ErrTruncated = errors.New("encbuf: truncated buffer")

func (r *Reader) need(n int) error {
	if r.Remaining() < n {
		return errors.Wrapf(ErrTruncated, "need %d bytes, have %d", n, r.Remaining())
	}
	return nil
}

// ReadByte reads a single byte.
func (r *Reader) ReadByte() (byte, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

// ReadBytes reads n raw bytes.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	v := r.buf[r.pos : r.pos+n]
	r.pos += n
	return v, nil
}

// ReadUint32 reads a 4-byte little-endian unsigned integer.
func (r *Reader) ReadUint32() (uint32, error) {
	b, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadUint64 reads an 8-byte little-endian unsigned integer.
func (r *Reader) ReadUint64() (uint64, error) {
	b, err := r.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// ReadVarint32 reads an unsigned base-128 varint into a uint32.
func (r *Reader) ReadVarint32() (uint32, error) {
	v, err := r.ReadVarint64()
	if err != nil {
		return 0, err
	}
	if v > uint64(^uint32(0)) {
		return 0, errors.Newf("encbuf: varint32 overflow: %d", v)
	}
	return uint32(v), nil
}

// ReadVarint64 reads an unsigned base-128 varint into a uint64.
func (r *Reader) ReadVarint64() (uint64, error) {
	v, n := binary.Uvarint(r.buf[r.pos:])
	if n <= 0 {
		return 0, errors.Wrapf(ErrTruncated, "invalid varint at pos %d", r.pos)
	}
	r.pos += n
	return v, nil
}

// ReadString reads a length-prefixed string.
func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadVarint32()
	if err != nil {
		return "", err
	}
	b, err := r.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadLenPrefixed reads a length-prefixed byte slice.
func (r *Reader) ReadLenPrefixed() ([]byte, error) {
	n, err := r.ReadVarint32()
	if err != nil {
		return nil, err
	}
	return r.ReadBytes(int(n))
}
