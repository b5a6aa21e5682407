// Package classtest assembles real class file bytes for tests.
package classtest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unicode/utf16"
)

type pool struct {
	buf   bytes.Buffer
	count uint16 // next free index
	index map[string]uint16
}

func newPool() *pool {
	return &pool{count: 1, index: make(map[string]uint16)}
}

func (p *pool) intern(key string, slots uint16, write func(b *bytes.Buffer)) uint16 {
	if i, ok := p.index[key]; ok {
		return i
	}
	i := p.count
	write(&p.buf)
	p.count += slots
	p.index[key] = i
	return i
}

func (p *pool) utf8(s string) uint16 {
	return p.intern("U"+s, 1, func(b *bytes.Buffer) {
		enc := encodeModifiedUTF8(s)
		b.WriteByte(1)
		writeU2(b, uint16(len(enc)))
		b.Write(enc)
	})
}

func (p *pool) class(name string) uint16 {
	nameIndex := p.utf8(name)
	return p.intern("C"+name, 1, func(b *bytes.Buffer) {
		b.WriteByte(7)
		writeU2(b, nameIndex)
	})
}

func (p *pool) nameAndType(name, desc string) uint16 {
	n, d := p.utf8(name), p.utf8(desc)
	return p.intern("N"+name+" "+desc, 1, func(b *bytes.Buffer) {
		b.WriteByte(12)
		writeU2(b, n)
		writeU2(b, d)
	})
}

func (p *pool) member(tag byte, owner, name, desc string) uint16 {
	c, nt := p.class(owner), p.nameAndType(name, desc)
	return p.intern(fmt.Sprintf("M%d %s.%s%s", tag, owner, name, desc), 1, func(b *bytes.Buffer) {
		b.WriteByte(tag)
		writeU2(b, c)
		writeU2(b, nt)
	})
}

func (p *pool) fieldRef(owner, name, desc string) uint16 {
	return p.member(9, owner, name, desc)
}

func (p *pool) methodRef(owner, name, desc string, iface bool) uint16 {
	if iface {
		return p.member(11, owner, name, desc)
	}
	return p.member(10, owner, name, desc)
}

func (p *pool) methodHandle(h Handle) uint16 {
	var ref uint16
	if h.Kind >= 1 && h.Kind <= 4 {
		ref = p.fieldRef(h.Owner, h.Name, h.Descriptor)
	} else {
		ref = p.methodRef(h.Owner, h.Name, h.Descriptor, h.Interface)
	}
	return p.intern(fmt.Sprintf("H%d %d", h.Kind, ref), 1, func(b *bytes.Buffer) {
		b.WriteByte(15)
		b.WriteByte(h.Kind)
		writeU2(b, ref)
	})
}

func (p *pool) methodType(desc string) uint16 {
	d := p.utf8(desc)
	return p.intern("T"+desc, 1, func(b *bytes.Buffer) {
		b.WriteByte(16)
		writeU2(b, d)
	})
}

func (p *pool) invokeDynamic(bsm uint16, name, desc string) uint16 {
	nt := p.nameAndType(name, desc)
	return p.intern(fmt.Sprintf("D%d %d", bsm, nt), 1, func(b *bytes.Buffer) {
		b.WriteByte(18)
		writeU2(b, bsm)
		writeU2(b, nt)
	})
}

func (p *pool) long(v int64) uint16 {
	return p.intern(fmt.Sprintf("J%d", v), 2, func(b *bytes.Buffer) {
		b.WriteByte(5)
		_ = binary.Write(b, binary.BigEndian, v)
	})
}

func (p *pool) integer(v int32) uint16 {
	return p.intern(fmt.Sprintf("I%d", v), 1, func(b *bytes.Buffer) {
		b.WriteByte(3)
		_ = binary.Write(b, binary.BigEndian, v)
	})
}

func writeU2(b *bytes.Buffer, v uint16) {
	b.WriteByte(byte(v >> 8))
	b.WriteByte(byte(v))
}

func writeU4(b *bytes.Buffer, v uint32) {
	writeU2(b, uint16(v>>16))
	writeU2(b, uint16(v))
}

func encodeModifiedUTF8(s string) []byte {
	var out []byte
	for _, unit := range utf16.Encode([]rune(s)) {
		switch {
		case unit != 0 && unit < 0x80:
			out = append(out, byte(unit))
		case unit < 0x800:
			out = append(out, 0xC0|byte(unit>>6), 0x80|byte(unit&0x3F))
		default:
			out = append(out, 0xE0|byte(unit>>12), 0x80|byte((unit>>6)&0x3F), 0x80|byte(unit&0x3F))
		}
	}
	return out
}
