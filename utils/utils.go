// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: utils.go — Small alloc-conscious helpers shared by every package
//
// Purpose:
//   - Integer formatting for log lines without fmt.
//   - Direct stderr writes for the debug package.
//   - Strict lowercase-hex decoding for pool-supplied header blobs.
//
// Notes:
//   - Nothing here may be called from the trim or search hot loops.
// ─────────────────────────────────────────────────────────────────────────────

package utils

import (
	"syscall"
	"unsafe"
)

///////////////////////////////////////////////////////////////////////////////
// Integer Formatting
///////////////////////////////////////////////////////////////////////////////

// Itoa formats a signed integer in base 10.
//
//go:inline
func Itoa(n int) string {
	if n < 0 {
		return "-" + Utoa(uint64(-n))
	}
	return Utoa(uint64(n))
}

// Utoa formats an unsigned 64-bit integer in base 10 using a stack buffer.
//
//go:inline
func Utoa(n uint64) string {
	var buf [20]byte
	i := len(buf)
	for n >= 10 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	i--
	buf[i] = byte('0' + n)
	return string(buf[i:])
}

///////////////////////////////////////////////////////////////////////////////
// Output
///////////////////////////////////////////////////////////////////////////////

// PrintWarning writes msg straight to file descriptor 2.
// Short writes are ignored: diagnostics are best effort.
//
//go:nosplit
func PrintWarning(msg string) {
	if len(msg) == 0 {
		return
	}
	syscall.Write(2, unsafe.Slice(unsafe.StringData(msg), len(msg)))
}

///////////////////////////////////////////////////////////////////////////////
// Hex Decoders — Early Exit on Malformed Input
///////////////////////////////////////////////////////////////////////////////

// DecodeLowerHex decodes src into dst and reports success only when src is
// exactly 2*len(dst) lowercase hex digits. Uppercase digits are rejected
// because pools emit lowercase and a mixed-case blob means a corrupt frame.
//
//go:inline
func DecodeLowerHex(dst []byte, src []byte) bool {
	if len(src) != len(dst)*2 {
		return false
	}
	for i := 0; i < len(dst); i++ {
		hi, ok1 := lowerNibble(src[2*i])
		lo, ok2 := lowerNibble(src[2*i+1])
		if !ok1 || !ok2 {
			return false
		}
		dst[i] = hi<<4 | lo
	}
	return true
}

// EncodeLowerHex returns the lowercase hex form of b.
func EncodeLowerHex(b []byte) string {
	const digits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[2*i] = digits[c>>4]
		out[2*i+1] = digits[c&0x0f]
	}
	return string(out)
}

//go:nosplit
//go:inline
func lowerNibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	}
	return 0, false
}
