// Package encoding packs and unpacks the byte-level shapes Modbus PDUs carry:
// boolean arrays into bit fields, and numeric register values into big-endian
// words.
package encoding

// PackBits packs a sequence of booleans into octets, LSB-first within each
// octet: the first bit of each group of 8 occupies bit 0 of its byte. The
// final octet is zero-padded. Output length is ceil(len(bits)/8).
// Ref: Modbus_Application_Protocol_V1_1b3.pdf, Section 6.1 (Read Coils Response)
// "the coil/input status in the response message is packed as one coil/input
// per bit of the data field."
func PackBits(bits []bool) []byte {
	byteCount := (len(bits) + 7) / 8
	out := make([]byte, byteCount)
	for i, b := range bits {
		if b {
			out[i/8] |= 1 << uint(i%8)
		}
	}
	return out
}

// UnpackBits reverses PackBits, reading count bits out of data in the same
// LSB-first order.
func UnpackBits(data []byte, count int) []bool {
	out := make([]bool, count)
	for i := 0; i < count; i++ {
		byteIndex := i / 8
		bitOffset := uint(i % 8)
		if byteIndex >= len(data) {
			break
		}
		out[i] = data[byteIndex]&(1<<bitOffset) != 0
	}
	return out
}
