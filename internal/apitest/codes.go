package apitest

import (
	"math/bits"
)

const (
	base62Chars = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	codeLength  = 7

	// 62^6 and 62^7-1 bound the values that encode to exactly seven characters
	minCodeValue = uint64(56800235584)
	maxCodeValue = uint64(3521614606207)
)

// codec turns sequential link ids into seven character base62 codes that
// do not reveal the sequence
type codec struct {
	multiplier uint64
	salt       uint64
}

func newCodec() codec {
	return codec{
		multiplier: 0x5DEECE66D,
		salt:       0x9E3779B97F4A7C15,
	}
}

func (c codec) encode(id uint64) string {
	rangeSize := maxCodeValue - minCodeValue + 1
	return toBase62(c.scramble(id)%rangeSize + minCodeValue)
}

// scramble is a bijection on uint64
func (c codec) scramble(v uint64) uint64 {
	v ^= c.salt
	v *= c.multiplier
	v = bits.RotateLeft64(v, 21)
	v ^= v >> 32
	return v
}

func toBase62(n uint64) string {
	if n == 0 {
		return "0"
	}

	buf := make([]byte, 0, codeLength)
	for n > 0 {
		buf = append(buf, base62Chars[n%62])
		n /= 62
	}
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf)
}
