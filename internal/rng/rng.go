// Package rng draws the random values behind captchas and session secrets
package rng

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
)

// Source reads from an entropy stream, crypto/rand unless told otherwise
type Source struct {
	entropy io.Reader
	mu      sync.Mutex
	drawn   int64
}

// New creates a source over entropy, or over crypto/rand when entropy is nil
func New(entropy io.Reader) *Source {
	if entropy == nil {
		entropy = rand.Reader
	}
	return &Source{entropy: entropy}
}

// Bytes returns n random bytes
func (s *Source) Bytes(n int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := make([]byte, n)
	if _, err := io.ReadFull(s.entropy, buf); err != nil {
		return nil, fmt.Errorf("failed to read random bytes: %w", err)
	}
	s.drawn++
	return buf, nil
}

// Hex returns n random bytes as lowercase hex
func (s *Source) Hex(n int) (string, error) {
	b, err := s.Bytes(n)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Int returns a uniform integer in [0, max)
func (s *Source) Int(max int64) (int64, error) {
	if max <= 0 {
		return 0, fmt.Errorf("max must be positive, got %d", max)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// values at or above threshold would bias the modulo
	threshold := uint64(1<<63-1) - (uint64(1<<63-1) % uint64(max))

	var buf [8]byte
	for {
		if _, err := io.ReadFull(s.entropy, buf[:]); err != nil {
			return 0, fmt.Errorf("failed to read random int: %w", err)
		}
		n := binary.BigEndian.Uint64(buf[:]) >> 1
		if n < threshold {
			s.drawn++
			return int64(n % uint64(max)), nil
		}
	}
}

// Between returns a uniform integer in [min, max]
func (s *Source) Between(min, max int64) (int64, error) {
	if min > max {
		return 0, fmt.Errorf("min %d is above max %d", min, max)
	}
	n, err := s.Int(max - min + 1)
	if err != nil {
		return 0, err
	}
	return min + n, nil
}

// Drawn counts the values handed out so far
func (s *Source) Drawn() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drawn
}
