// Package testutil provides fixtures shared by the protocol tests: an
// in-memory connection pair and generators for random budget figures.
package testutil

import (
	"math/rand"
	"net"

	"github.com/naurayesh/fhe-cloud-financial-tool/budget"
)

// ConnPair returns two ends of an in-memory, synchronous connection.
// Both ends are closed when the test finishes.
func ConnPair(t interface{ Cleanup(func()) }) (clientConn, serverConn net.Conn) {
	clientConn, serverConn = net.Pipe()
	t.Cleanup(func() {
		clientConn.Close()
		serverConn.Close()
	})
	return clientConn, serverConn
}

// RandomAmount returns a random amount in [-bound, bound] with two
// decimal digits, so it is exactly representable in fixed point.
func RandomAmount(rng *rand.Rand, bound int64) float64 {
	cents := rng.Int63n(2*bound*100+1) - bound*100
	return float64(cents) / 100
}

// RandomInputs generates a full set of session inputs with up to
// maxEntries non-negative income entries. Amounts are kept small enough
// that the income total times the savings rate stays inside the
// plaintext space at scale order 2.
func RandomInputs(rng *rand.Rand, maxEntries int) budget.Inputs {
	entries := make([]float64, 1+rng.Intn(maxEntries))
	for i := range entries {
		entries[i] = float64(rng.Int63n(30000)) / 100
	}
	return budget.Inputs{
		IncomeEntries:     entries,
		EssentialTotal:    float64(rng.Int63n(200000)) / 100,
		NonEssentialTotal: float64(rng.Int63n(100000)) / 100,
		SavingsGoal:       float64(rng.Int63n(100000)) / 100,
	}
}
