package retry

import (
	"crypto/rand"
	"encoding/binary"
	"math/bits"
	"time"
)

// Jitter returns a random duration in [0, max].
type Jitter func(max time.Duration) time.Duration

// CryptoJitter draws jitter from crypto/rand.
func CryptoJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return time.Duration(time.Now().UnixNano() % (int64(max) + 1))
	}

	n := binary.BigEndian.Uint64(buf[:]) % (uint64(max) + 1)
	return time.Duration(n)
}

// NoJitter always returns zero
func NoJitter(time.Duration) time.Duration {
	return 0
}

// Delay computes the wait before the attempt following attempt (1-based):
//
//	min(BaseDelay * 2^(attempt-1) + jitter, MaxDelay), jitter in [0, BaseDelay/2]
//
// A nil jitter source means CryptoJitter.
func Delay(attempt int, cfg Config, jitter Jitter) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if jitter == nil {
		jitter = CryptoJitter
	}

	exp := uint(attempt - 1)
	base := uint64(cfg.BaseDelay)
	if base == 0 {
		return 0
	}
	// base << exp overflows int64 once the shifted value needs more than 63 bits
	if exp >= 63 || bits.Len64(base)+int(exp) > 62 {
		return cfg.MaxDelay
	}

	delay := time.Duration(base << exp)
	if delay >= cfg.MaxDelay {
		return cfg.MaxDelay
	}

	j := jitter(cfg.BaseDelay / 2)
	if j < 0 {
		j = 0
	}
	if delay+j >= cfg.MaxDelay {
		return cfg.MaxDelay
	}
	return delay + j
}
