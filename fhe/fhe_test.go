package fhe

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naurayesh/fhe-cloud-financial-tool/fixedpoint"
)

const testSpan = 8

var (
	sessionOnce sync.Once
	testSession *Session
	sessionErr  error
)

// clientSession returns one shared client session; key generation at
// ring degree 2^14 is too slow to repeat per test.
func clientSession(t *testing.T) *Session {
	sessionOnce.Do(func() {
		testSession, sessionErr = NewClientSession(testSpan)
	})
	require.NoError(t, sessionErr)
	return testSession
}

// adoptedFrom reconstructs a server-side session from s's serialized
// context and key material, the way the wire does.
func adoptedFrom(t *testing.T, s *Session) *Session {
	paramBytes, err := s.MarshalParams()
	require.NoError(t, err)
	pkBytes, err := s.MarshalPublicKey()
	require.NoError(t, err)
	rlkBytes, err := s.MarshalRelinKey()
	require.NoError(t, err)
	gkBytes, err := s.MarshalGaloisKeys()
	require.NoError(t, err)

	adopted, err := AdoptContext(paramBytes)
	require.NoError(t, err)
	require.NoError(t, adopted.AdoptKeys(pkBytes, rlkBytes, gkBytes))
	return adopted
}

func encryptScalar(t *testing.T, s *Session, scaled int64) *Ciphertext {
	pt, err := s.EncodeScaled([]int64{scaled}, fixedpoint.OrderLinear)
	require.NoError(t, err)
	ct, err := s.Encrypt(pt)
	require.NoError(t, err)
	return ct
}

func decryptSlot0(t *testing.T, s *Session, ct *Ciphertext) int64 {
	pt, err := s.Decrypt(ct)
	require.NoError(t, err)
	slots, err := s.Decode(pt)
	require.NoError(t, err)
	return slots[0]
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	s := clientSession(t)
	rng := rand.New(rand.NewSource(1))

	values := []int64{0, 1, -1, s.MaxMagnitude(), -s.MaxMagnitude()}
	for i := 0; i < 20; i++ {
		values = append(values, rng.Int63n(2_000_001)-1_000_000)
	}

	for _, v := range values {
		ct := encryptScalar(t, s, v)
		assert.Equal(t, v, decryptSlot0(t, s, ct), "value %d", v)
	}
}

func TestAdoptedSessionEvaluates(t *testing.T) {
	s := clientSession(t)
	server := adoptedFrom(t, s)

	a := encryptScalar(t, s, 150075)
	b := encryptScalar(t, s, 45050)

	// Move the ciphertexts across the serialization boundary.
	aBytes, err := s.MarshalCiphertext(a)
	require.NoError(t, err)
	bBytes, err := s.MarshalCiphertext(b)
	require.NoError(t, err)
	aRemote, err := server.UnmarshalCiphertext(aBytes, fixedpoint.OrderLinear)
	require.NoError(t, err)
	bRemote, err := server.UnmarshalCiphertext(bBytes, fixedpoint.OrderLinear)
	require.NoError(t, err)

	sum, err := server.Add(aRemote, bRemote)
	require.NoError(t, err)
	diff, err := server.Sub(aRemote, bRemote)
	require.NoError(t, err)

	sumBytes, err := server.MarshalCiphertext(sum)
	require.NoError(t, err)
	sumLocal, err := s.UnmarshalCiphertext(sumBytes, fixedpoint.OrderLinear)
	require.NoError(t, err)

	assert.Equal(t, int64(195125), decryptSlot0(t, s, sumLocal))

	diffBytes, err := server.MarshalCiphertext(diff)
	require.NoError(t, err)
	diffLocal, err := s.UnmarshalCiphertext(diffBytes, fixedpoint.OrderLinear)
	require.NoError(t, err)

	assert.Equal(t, int64(105025), decryptSlot0(t, s, diffLocal))
}

func TestSubRandomPairs(t *testing.T) {
	s := clientSession(t)
	rng := rand.New(rand.NewSource(2))

	for i := 0; i < 20; i++ {
		x := rng.Int63n(2_000_001) - 1_000_000
		y := rng.Int63n(2_000_001) - 1_000_000

		diff, err := s.Sub(encryptScalar(t, s, x), encryptScalar(t, s, y))
		require.NoError(t, err)
		assert.Equal(t, x-y, decryptSlot0(t, s, diff), "%d - %d", x, y)
	}
}

func TestSubPlain(t *testing.T) {
	s := clientSession(t)

	ct := encryptScalar(t, s, 93025)
	pt, err := s.EncodeScaled([]int64{50000}, fixedpoint.OrderLinear)
	require.NoError(t, err)

	diff, err := s.SubPlain(ct, pt)
	require.NoError(t, err)
	assert.Equal(t, int64(43025), decryptSlot0(t, s, diff))
}

func TestMulPlainCompoundsScaleOrder(t *testing.T) {
	s := clientSession(t)

	// 1500.75 * 0.15 in fixed point: both at order 1, product at order 2.
	ct := encryptScalar(t, s, 150075)
	rate, err := s.EncodeScaled([]int64{15}, fixedpoint.OrderLinear)
	require.NoError(t, err)

	prod, err := s.MulPlain(ct, rate)
	require.NoError(t, err)
	assert.Equal(t, fixedpoint.OrderQuadratic, prod.Order)

	scaled := decryptSlot0(t, s, prod)
	assert.Equal(t, int64(150075*15), scaled)
	assert.InDelta(t, 225.1125, fixedpoint.Decode(scaled, prod.Order), 1e-4)

	// Reading the same slot at the linear order is off by a factor of 100.
	assert.InDelta(t, 22511.25, fixedpoint.Decode(scaled, fixedpoint.OrderLinear), 1e-4)
}

func TestInnerSumFoldsSpan(t *testing.T) {
	s := clientSession(t)

	slots := make([]int64, testSpan)
	var want int64
	for i := range slots {
		slots[i] = int64(100 * (i + 1))
		want += slots[i]
	}

	pt, err := s.EncodeScaled(slots, fixedpoint.OrderLinear)
	require.NoError(t, err)
	ct, err := s.Encrypt(pt)
	require.NoError(t, err)

	total, err := s.InnerSum(ct, testSpan)
	require.NoError(t, err)
	assert.Equal(t, want, decryptSlot0(t, s, total))
}

func TestScaleOrderMismatchRejected(t *testing.T) {
	s := clientSession(t)

	linear := encryptScalar(t, s, 100)
	rate, err := s.EncodeScaled([]int64{15}, fixedpoint.OrderLinear)
	require.NoError(t, err)
	quadratic, err := s.MulPlain(linear, rate)
	require.NoError(t, err)

	_, err = s.Add(linear, quadratic)
	assert.ErrorIs(t, err, fixedpoint.ErrScaleMismatch)
	_, err = s.Sub(linear, quadratic)
	assert.ErrorIs(t, err, fixedpoint.ErrScaleMismatch)

	goalPt, err := s.EncodeScaled([]int64{50}, fixedpoint.OrderLinear)
	require.NoError(t, err)
	_, err = s.SubPlain(quadratic, goalPt)
	assert.ErrorIs(t, err, fixedpoint.ErrScaleMismatch)
}

func TestEncodeScaledMagnitudeBound(t *testing.T) {
	s := clientSession(t)

	_, err := s.EncodeScaled([]int64{s.MaxMagnitude() + 1}, fixedpoint.OrderLinear)
	assert.ErrorIs(t, err, fixedpoint.ErrMagnitude)
	_, err = s.EncodeScaled([]int64{-s.MaxMagnitude() - 1}, fixedpoint.OrderLinear)
	assert.ErrorIs(t, err, fixedpoint.ErrMagnitude)
}

func TestAdoptContextRejectsGarbage(t *testing.T) {
	_, err := AdoptContext([]byte("not a parameter set"))
	assert.ErrorIs(t, err, ErrContextMismatch)
}

func TestAdoptKeysRejectsCorruptMaterial(t *testing.T) {
	s := clientSession(t)

	paramBytes, err := s.MarshalParams()
	require.NoError(t, err)
	pkBytes, err := s.MarshalPublicKey()
	require.NoError(t, err)
	rlkBytes, err := s.MarshalRelinKey()
	require.NoError(t, err)
	gkBytes, err := s.MarshalGaloisKeys()
	require.NoError(t, err)

	adopted, err := AdoptContext(paramBytes)
	require.NoError(t, err)
	err = adopted.AdoptKeys(pkBytes[:len(pkBytes)/2], rlkBytes, gkBytes)
	assert.ErrorIs(t, err, ErrContextMismatch)

	adopted, err = AdoptContext(paramBytes)
	require.NoError(t, err)
	err = adopted.AdoptKeys(pkBytes, rlkBytes[:16], gkBytes)
	assert.ErrorIs(t, err, ErrContextMismatch)
}

func TestUnmarshalCiphertextRejectsCorruptBlob(t *testing.T) {
	s := clientSession(t)

	ct := encryptScalar(t, s, 123)
	blob, err := s.MarshalCiphertext(ct)
	require.NoError(t, err)

	_, err = s.UnmarshalCiphertext(blob[:len(blob)/2], fixedpoint.OrderLinear)
	assert.ErrorIs(t, err, ErrContextMismatch)
}

func TestUnmarshalPlaintextRejectsWrongSize(t *testing.T) {
	s := clientSession(t)

	pt, err := s.EncodeScaled([]int64{42}, fixedpoint.OrderLinear)
	require.NoError(t, err)
	blob, err := s.MarshalPlaintext(pt)
	require.NoError(t, err)

	_, err = s.UnmarshalPlaintext(blob[:len(blob)-8], fixedpoint.OrderLinear)
	assert.ErrorIs(t, err, ErrContextMismatch)
}

func TestAdoptedSessionCannotDecrypt(t *testing.T) {
	s := clientSession(t)
	server := adoptedFrom(t, s)

	ct := encryptScalar(t, s, 777)
	blob, err := s.MarshalCiphertext(ct)
	require.NoError(t, err)
	remote, err := server.UnmarshalCiphertext(blob, fixedpoint.OrderLinear)
	require.NoError(t, err)

	_, err = server.Decrypt(remote)
	assert.ErrorIs(t, err, ErrNoSecretKey)
}

func TestFingerprintIsStable(t *testing.T) {
	s := clientSession(t)

	paramBytes, err := s.MarshalParams()
	require.NoError(t, err)

	fp := Fingerprint(paramBytes)
	assert.Len(t, fp, 16)
	assert.Equal(t, fp, Fingerprint(paramBytes))
	assert.NotEqual(t, fp, Fingerprint(append([]byte{0}, paramBytes...)))
}
