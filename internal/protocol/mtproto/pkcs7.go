package mtproto

import (
	"crypto/aes"
	"crypto/subtle"
)

func pkcs7Pad(b []byte) []byte {
	n := aes.BlockSize - len(b)%aes.BlockSize
	out := make([]byte, len(b)+n)
	copy(out, b)
	for i := len(b); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

// pkcs7Unpad strips padding from b, whose length must be a positive multiple of
// the block size. All padding bytes are inspected regardless of where a
// mismatch occurs.
func pkcs7Unpad(b []byte) ([]byte, error) {
	if len(b) == 0 || len(b)%aes.BlockSize != 0 {
		return nil, ErrBadPadding
	}
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize {
		return nil, ErrBadPadding
	}
	good := 1
	for i := len(b) - aes.BlockSize; i < len(b); i++ {
		inPad := subtle.ConstantTimeLessOrEq(len(b)-n, i)
		match := subtle.ConstantTimeByteEq(b[i], byte(n))
		// Bytes inside the padding must equal n; bytes before it are ignored.
		good &= subtle.ConstantTimeSelect(inPad, match, 1)
	}
	if good != 1 {
		return nil, ErrBadPadding
	}
	return b[:len(b)-n], nil
}
