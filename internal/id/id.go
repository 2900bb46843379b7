// Package id creates run identifiers for fetch logs.
package id

import (
	cryptoRand "crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator issues ULIDs that stay lexicographically increasing even when
// several are issued within the same millisecond.
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader
}

func NewGenerator(entropy io.Reader) *Generator {
	return &Generator{entropy: ulid.Monotonic(entropy, 0)}
}

// At returns an ID stamped with t.
func (g *Generator) At(t time.Time) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(t.UTC()), g.entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

var std = NewGenerator(cryptoRand.Reader)

// New returns a run ID for the current time.
func New() string {
	id, err := std.At(time.Now())
	if err != nil {
		// only possible if crypto/rand fails or the clock predates 1970
		panic(err)
	}
	return id
}
