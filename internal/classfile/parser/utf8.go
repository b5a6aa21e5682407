package parser

import (
	"unicode/utf16"
	"unicode/utf8"
)

/*
decodeModifiedUTF8 decodes a CONSTANT_Utf8 payload (JVMS 4.4.7)

Differences from standard UTF-8:
  - U+0000 is encoded as the two bytes 0xC0 0x80
  - supplementary characters are encoded as surrogate pairs, 3 bytes each
  - there are no 4-byte forms
*/
func decodeModifiedUTF8(b []byte) string {
	ascii := true
	for _, c := range b {
		if c == 0 || c >= utf8.RuneSelf {
			ascii = false
			break
		}
	}
	if ascii {
		return string(b)
	}

	units := make([]uint16, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c < 0x80:
			units = append(units, uint16(c))
			i++
		case c&0xE0 == 0xC0 && i+1 < len(b):
			units = append(units, uint16(c&0x1F)<<6|uint16(b[i+1]&0x3F))
			i += 2
		case c&0xF0 == 0xE0 && i+2 < len(b):
			units = append(units, uint16(c&0x0F)<<12|uint16(b[i+1]&0x3F)<<6|uint16(b[i+2]&0x3F))
			i += 3
		default:
			units = append(units, utf8.RuneError)
			i++
		}
	}

	return string(utf16.Decode(units))
}
