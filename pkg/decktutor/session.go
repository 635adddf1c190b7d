package decktutor

import (
	"crypto/md5"
	"encoding/hex"
	"net/http"
	"strconv"
	"time"
)

// Session is the authentication state obtained from a login
type Session struct {
	Token      string    `json:"token" yaml:"token"`
	Secret     string    `json:"secret" yaml:"secret"`
	Sequence   int64     `json:"sequence" yaml:"sequence"`
	Expiration time.Time `json:"expiration" yaml:"expiration"`
}

// Expired reports whether the session expiration is known and past
func (s *Session) Expired(now time.Time) bool {
	return !s.Expiration.IsZero() && !now.Before(s.Expiration)
}

// Signature computes the x-dt-Signature value for a sequence number
func Signature(sequence int64, secret string) string {
	sum := md5.Sum([]byte(strconv.FormatInt(sequence, 10) + ":" + secret))
	return hex.EncodeToString(sum[:])
}

// sign attaches the auth headers for the current sequence and advances it.
// Callers hold the client lock.
func (s *Session) sign(h http.Header) int64 {
	seq := s.Sequence
	h.Set(HeaderAuthToken, s.Token)
	h.Set(HeaderSequence, strconv.FormatInt(seq, 10))
	h.Set(HeaderSignature, Signature(seq, s.Secret))
	s.Sequence++
	return seq
}
