package rng

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestBytes(t *testing.T) {
	s := New(nil)

	for _, size := range []int{1, 16, 32} {
		b, err := s.Bytes(size)
		if err != nil {
			t.Fatalf("Failed to generate %d bytes: %v", size, err)
		}
		if len(b) != size {
			t.Errorf("Expected %d bytes, got %d", size, len(b))
		}
	}

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		b, err := s.Bytes(16)
		if err != nil {
			t.Fatalf("Failed to generate bytes: %v", err)
		}
		if seen[string(b)] {
			t.Fatal("Duplicate 128-bit value generated")
		}
		seen[string(b)] = true
	}
}

func TestHex(t *testing.T) {
	s := New(bytes.NewReader([]byte{0xde, 0xad, 0xbe, 0xef}))

	got, err := s.Hex(4)
	if err != nil {
		t.Fatalf("Hex failed: %v", err)
	}
	if got != "deadbeef" {
		t.Errorf("Expected deadbeef, got %s", got)
	}

	if _, err := s.Hex(1); err == nil {
		t.Error("Expected an error once the entropy runs out")
	}
}

func TestInt(t *testing.T) {
	s := New(nil)

	for _, max := range []int64{1, 2, 9, 100} {
		for i := 0; i < 500; i++ {
			n, err := s.Int(max)
			if err != nil {
				t.Fatalf("Int(%d) failed: %v", max, err)
			}
			if n < 0 || n >= max {
				t.Fatalf("Int(%d) returned %d", max, n)
			}
		}
	}

	for _, max := range []int64{0, -5} {
		if _, err := s.Int(max); err == nil {
			t.Errorf("Expected an error for max %d", max)
		}
	}
}

func TestIntDeterministic(t *testing.T) {
	// 0x00..0a shifted right by one is 5
	s := New(bytes.NewReader([]byte{0, 0, 0, 0, 0, 0, 0, 0x0a}))

	n, err := s.Int(9)
	if err != nil {
		t.Fatalf("Int failed: %v", err)
	}
	if n != 5 {
		t.Errorf("Expected 5, got %d", n)
	}
	if s.Drawn() != 1 {
		t.Errorf("Expected 1 draw, got %d", s.Drawn())
	}
}

func TestIntRejectsBiasedValues(t *testing.T) {
	// the first word lands above the threshold for max 3 and is thrown away
	stream := append(bytes.Repeat([]byte{0xff}, 8), 0, 0, 0, 0, 0, 0, 0, 0x04)
	s := New(bytes.NewReader(stream))

	n, err := s.Int(3)
	if err != nil {
		t.Fatalf("Int failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2, got %d", n)
	}
}

func TestBetween(t *testing.T) {
	s := New(nil)

	counts := make(map[int64]int)
	for i := 0; i < 2000; i++ {
		n, err := s.Between(1, 9)
		if err != nil {
			t.Fatalf("Between failed: %v", err)
		}
		if n < 1 || n > 9 {
			t.Fatalf("Between(1, 9) returned %d", n)
		}
		counts[n]++
	}
	if len(counts) != 9 {
		t.Errorf("Expected all 9 values to show up, got %v", counts)
	}

	if _, err := s.Between(5, 1); err == nil {
		t.Error("Expected an error when min is above max")
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("no entropy") }

func TestEntropyFailure(t *testing.T) {
	s := New(failingReader{})

	if _, err := s.Int(10); err == nil || !strings.Contains(err.Error(), "no entropy") {
		t.Errorf("Expected the entropy error, got %v", err)
	}
	if _, err := s.Bytes(4); err == nil {
		t.Error("Expected Bytes to fail")
	}
	if s.Drawn() != 0 {
		t.Errorf("Expected no draws, got %d", s.Drawn())
	}
}
