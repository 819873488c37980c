// Copyright 2020 - present Alex Dukhno
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package pgwire

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/cockroachdb/errors"
)

// Per-message cap, far above anything a sane client sends.
const maxMessageSize = 1 << 24

// readBuffer holds the body of the message currently being decoded.
// The get methods consume from the front of the buffer.
type readBuffer struct {
	msg []byte
	tmp [4]byte
}

// reset sizes b.msg to exactly size, reusing spare capacity at the end
// of the previous message when possible.
func (b *readBuffer) reset(size int) {
	if b.msg != nil {
		b.msg = b.msg[len(b.msg):]
	}
	if cap(b.msg) >= size {
		b.msg = b.msg[:size]
		return
	}
	allocSize := size
	if allocSize < 4096 {
		allocSize = 4096
	}
	b.msg = make([]byte, size, allocSize)
}

// readUntypedMsg reads a length-prefixed message body. Used directly
// only for the startup phase, which carries no type byte.
func (b *readBuffer) readUntypedMsg(rd io.Reader) error {
	if _, err := io.ReadFull(rd, b.tmp[:]); err != nil {
		return err
	}
	// The size prefix includes itself.
	size := int(binary.BigEndian.Uint32(b.tmp[:])) - 4
	if size < 0 || size > maxMessageSize {
		return errors.Newf("message size %d out of bounds (0..%d)", size, maxMessageSize)
	}
	b.reset(size)
	_, err := io.ReadFull(rd, b.msg)
	return err
}

// readTypedMsg reads one message, returning its type code with the
// body left in the buffer.
func (b *readBuffer) readTypedMsg(rd io.Reader) (messageType, error) {
	if _, err := io.ReadFull(rd, b.tmp[:1]); err != nil {
		return 0, err
	}
	typ := messageType(b.tmp[0])
	return typ, b.readUntypedMsg(rd)
}

// getString consumes a NUL-terminated string.
func (b *readBuffer) getString() (string, error) {
	pos := bytes.IndexByte(b.msg, 0)
	if pos == -1 {
		return "", errors.New("NUL terminator not found")
	}
	s := string(b.msg[:pos])
	b.msg = b.msg[pos+1:]
	return s, nil
}

func (b *readBuffer) getBytes(n int) ([]byte, error) {
	if len(b.msg) < n {
		return nil, errors.Newf("insufficient data: %d", len(b.msg))
	}
	v := b.msg[:n]
	b.msg = b.msg[n:]
	return v, nil
}

func (b *readBuffer) getByte() (byte, error) {
	v, err := b.getBytes(1)
	if err != nil {
		return 0, err
	}
	return v[0], nil
}

func (b *readBuffer) getInt16() (int16, error) {
	v, err := b.getBytes(2)
	if err != nil {
		return 0, err
	}
	return int16(binary.BigEndian.Uint16(v)), nil
}

func (b *readBuffer) getInt32() (int32, error) {
	v, err := b.getBytes(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(v)), nil
}

// writeBuffer assembles one outgoing message. initMsg starts the
// message, the put methods append the body, finishMsg back-patches the
// length prefix and flushes the bytes to the writer.
type writeBuffer struct {
	bytes.Buffer
	putbuf [64]byte
}

// writeString writes a NUL-terminated string.
func (b *writeBuffer) writeString(s string) {
	b.WriteString(s)
	b.WriteByte(0)
}

func (b *writeBuffer) putInt16(v int16) {
	binary.BigEndian.PutUint16(b.putbuf[:], uint16(v))
	b.Write(b.putbuf[:2])
}

func (b *writeBuffer) putInt32(v int32) {
	binary.BigEndian.PutUint32(b.putbuf[:], uint32(v))
	b.Write(b.putbuf[:4])
}

func (b *writeBuffer) initMsg(typ messageType) {
	b.Reset()
	b.putbuf[0] = byte(typ)
	b.Write(b.putbuf[:5]) // type byte + length placeholder
}

func (b *writeBuffer) finishMsg(w io.Writer) error {
	msg := b.Bytes()
	binary.BigEndian.PutUint32(msg[1:5], uint32(b.Len()-1))
	_, err := w.Write(msg)
	b.Reset()
	return err
}
