package binpack

import "unicode/utf16"

// EncodeString encodes s unit by unit. NUL code units produce no bytes,
// which keeps zero free to terminate static strings.
func EncodeString(s string) []byte {
	units := utf16.Encode([]rune(s))
	out := make([]byte, 0, len(units))
	for _, u := range units {
		c := uint32(u)
		for c != 0 {
			b := byte(c & 0x7f)
			c >>= 7
			if c != 0 {
				b |= 0x80
			}
			out = append(out, b)
		}
	}
	return out
}

// DecodeString reverses EncodeString. Decoding stops at a unit whose value
// is zero.
func DecodeString(p []byte) string {
	units := make([]uint16, 0, len(p))
	var sum uint32
	var shift uint
	for _, b := range p {
		sum |= uint32(b&0x7f) << shift
		if b&0x80 != 0 {
			shift += 7
			continue
		}
		if sum == 0 {
			break
		}
		units = append(units, uint16(sum))
		sum, shift = 0, 0
	}
	return string(utf16.Decode(units))
}

// TruncateEncoded cuts enc to at most n bytes without splitting the byte
// sequence of a code unit.
func TruncateEncoded(enc []byte, n int) []byte {
	if len(enc) <= n {
		return enc
	}
	end := 0
	for i := 0; i < n; i++ {
		if enc[i]&0x80 == 0 {
			end = i + 1
		}
	}
	return enc[:end]
}
