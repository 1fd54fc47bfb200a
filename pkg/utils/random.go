package utils

import (
	"math/rand"
	"sync"
	"time"
)

const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var (
	seedMu     sync.Mutex
	seededRand = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// GenerateShortCode generates a random string of fixed length
func GenerateShortCode(length int) string {
	b := make([]byte, length)
	seedMu.Lock()
	for i := range b {
		b[i] = charset[seededRand.Intn(len(charset))]
	}
	seedMu.Unlock()
	return string(b)
}
