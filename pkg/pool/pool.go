// Reusable scratch values for G-code parsing and tool reports
//
// Every console line fills a parameter map and every report line is
// formatted into a scratch buffer. Both are recycled here. The step
// distributor does not use this package.
//
// Copyright (C) 2026 Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package pool

import (
	"strconv"
	"sync"
)

// Parameter maps for parsed G-code lines.
var argsMapPool = sync.Pool{
	New: func() any {
		return make(map[string]string, 8)
	},
}

// GetArgsMap returns an empty parameter map.
func GetArgsMap() map[string]string {
	return argsMapPool.Get().(map[string]string)
}

// PutArgsMap clears m and makes it available to the next parsed line.
func PutArgsMap(m map[string]string) {
	if m == nil {
		return
	}
	clear(m)
	argsMapPool.Put(m)
}

// ByteBuffer collects one tool report line.
type ByteBuffer struct {
	buf []byte
}

var byteBufferPool = sync.Pool{
	New: func() any {
		return &ByteBuffer{
			buf: make([]byte, 0, 64),
		}
	},
}

// GetByteBuffer returns an empty buffer.
func GetByteBuffer() *ByteBuffer {
	b := byteBufferPool.Get().(*ByteBuffer)
	b.buf = b.buf[:0]
	return b
}

// PutByteBuffer recycles b. Buffers grown past 4 KiB are left to the
// garbage collector.
func PutByteBuffer(b *ByteBuffer) {
	if b == nil {
		return
	}
	if cap(b.buf) > 4096 {
		return
	}
	byteBufferPool.Put(b)
}

// Bytes aliases the buffer contents until the next write.
func (b *ByteBuffer) Bytes() []byte {
	return b.buf
}

// String copies the line out.
func (b *ByteBuffer) String() string {
	return string(b.buf)
}

// Write implements io.Writer and never fails.
func (b *ByteBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *ByteBuffer) WriteByte(c byte) error {
	b.buf = append(b.buf, c)
	return nil
}

// WriteString implements io.StringWriter.
func (b *ByteBuffer) WriteString(s string) (int, error) {
	b.buf = append(b.buf, s...)
	return len(s), nil
}

// AppendFloat writes f with prec decimals, as in a tool percentage.
func (b *ByteBuffer) AppendFloat(f float64, prec int) {
	b.buf = strconv.AppendFloat(b.buf, f, 'f', prec, 64)
}

// AppendInt writes a tool or channel number.
func (b *ByteBuffer) AppendInt(i int) {
	b.buf = strconv.AppendInt(b.buf, int64(i), 10)
}

func (b *ByteBuffer) Len() int {
	return len(b.buf)
}

// Reset empties the line while keeping its capacity.
func (b *ByteBuffer) Reset() {
	b.buf = b.buf[:0]
}
