package parser

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Provides utilities for reading class file data in big-endian format
type BinaryReader struct {
	reader    *bufio.Reader
	bytesRead int64
}

func NewBinaryReader(reader io.Reader) *BinaryReader {
	return &BinaryReader{
		reader: bufio.NewReader(reader),
	}
}

func newBytesReader(data []byte) *BinaryReader {
	return NewBinaryReader(bytes.NewReader(data))
}

func (br *BinaryReader) BytesRead() int64 {
	return br.bytesRead
}

// ReadNBytes reads exactly n bytes and tracks position
func (br *BinaryReader) ReadNBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("invalid length: %d", n)
	}
	buf := make([]byte, n)
	bytesRead, err := io.ReadFull(br.reader, buf)
	br.bytesRead += int64(bytesRead)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadU1 reads a single unsigned byte
func (br *BinaryReader) ReadU1() (uint8, error) {
	b, err := br.reader.ReadByte()
	if err != nil {
		return 0, err
	}
	br.bytesRead++
	return b, nil
}

// ReadU2 reads a 2-byte unsigned integer (big-endian)
func (br *BinaryReader) ReadU2() (uint16, error) {
	buf, err := br.ReadNBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buf), nil
}

// ReadU4 reads a 4-byte unsigned integer (big-endian)
func (br *BinaryReader) ReadU4() (uint32, error) {
	buf, err := br.ReadNBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf), nil
}

// Skip skips n bytes in the stream
func (br *BinaryReader) Skip(n int) error {
	discarded, err := br.reader.Discard(n)
	br.bytesRead += int64(discarded)
	if err != nil {
		return fmt.Errorf("failed to skip %d bytes: %w", n, err)
	}
	return nil
}

// ReadU2List reads a u2 count followed by that many u2 values
func (br *BinaryReader) ReadU2List() ([]uint16, error) {
	count, err := br.ReadU2()
	if err != nil {
		return nil, err
	}
	values := make([]uint16, count)
	for i := range values {
		if values[i], err = br.ReadU2(); err != nil {
			return nil, err
		}
	}
	return values, nil
}
