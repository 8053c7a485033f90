// Package fhe wraps the lattigo collaborator: context bootstrap on the
// client, context adoption on the server, and the handful of homomorphic
// operations the budget computation needs.
//
// A Session owns one immutable cryptographic context and the key material
// bound to it. The client creates a Session with a full key bundle; the
// server reconstructs an equivalent Session from the serialized
// parameters and the public key material it receives, and never holds a
// secret key. Ciphertexts and plaintexts handled here carry their
// fixed-point scale order, and the arithmetic entry points reject
// mismatched orders before anything reaches the scheme, which has no way
// to detect the resulting garbage itself.
package fhe

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/tuneinsight/lattigo/v5/core/rlwe"
	"github.com/tuneinsight/lattigo/v5/he/heint"
	"golang.org/x/crypto/blake2b"

	"github.com/naurayesh/fhe-cloud-financial-tool/fixedpoint"
)

// ErrContextMismatch reports key or ciphertext bytes that do not validate
// against the locally reconstructed context. It indicates a protocol or
// parameter-selection bug and is always fatal to the session.
var ErrContextMismatch = errors.New("fhe: material does not match context")

// ErrNoSecretKey reports a decrypt attempt on a session that adopted a
// remote context. Only the client-created session ever decrypts.
var ErrNoSecretKey = errors.New("fhe: session holds no secret key")

// ParametersLiteral returns the fixed scheme parameters both roles use:
// ring degree 2^14 with a 26-bit batching-friendly plaintext modulus,
// which leaves ample headroom for scaled amounts at order 2 and offers
// 128-bit security. The server never chooses parameters; it reconstructs
// this set from the bytes the client sends.
func ParametersLiteral() heint.ParametersLiteral {
	return heint.ParametersLiteral{
		LogN:             14,
		LogQ:             []int{56, 55, 55, 54, 54, 54},
		LogP:             []int{55, 55},
		PlaintextModulus: 0x3ee0001,
	}
}

// KeyBundle holds the key material of one session. Secret is nil on the
// server side and must never be serialized onto the channel.
type KeyBundle struct {
	Secret *rlwe.SecretKey
	Public *rlwe.PublicKey
	Relin  *rlwe.RelinearizationKey
	Galois []*rlwe.GaloisKey
}

// Ciphertext is an opaque encrypted vector bound to one context and one
// fixed-point scale order at creation.
type Ciphertext struct {
	Ct    *rlwe.Ciphertext
	Order fixedpoint.ScaleOrder
}

// Plaintext is an encoded (but not encrypted) slot vector with its scale order.
type Plaintext struct {
	Pt    *rlwe.Plaintext
	Order fixedpoint.ScaleOrder
}

// Session owns an immutable cryptographic context, its key bundle, and
// the engines bound to them. Sessions are single-use and must not be
// shared across connections; two sessions on separate goroutines are
// independent because no cryptographic state is global.
type Session struct {
	params    heint.Parameters
	keys      KeyBundle
	encoder   *heint.Encoder
	encryptor *rlwe.Encryptor
	decryptor *rlwe.Decryptor
	evaluator *heint.Evaluator
}

// NewClientSession constructs the context from the fixed parameters and
// generates the full key bundle: secret, public, relinearization, and the
// rotation keys needed to fold rotationSpan slots. A parameter set that
// fails validation is a programming error, not a runtime condition.
func NewClientSession(rotationSpan int) (*Session, error) {
	params, err := heint.NewParametersFromLiteral(ParametersLiteral())
	if err != nil {
		return nil, fmt.Errorf("fhe: invalid fixed parameters: %w", err)
	}

	kgen := rlwe.NewKeyGenerator(params)
	sk, pk := kgen.GenKeyPairNew()
	rlk := kgen.GenRelinearizationKeyNew(sk)
	gks := kgen.GenGaloisKeysNew(rlwe.GaloisElementsForInnerSum(params, 1, rotationSpan), sk)

	return &Session{
		params:    params,
		keys:      KeyBundle{Secret: sk, Public: pk, Relin: rlk, Galois: gks},
		encoder:   heint.NewEncoder(params),
		encryptor: rlwe.NewEncryptor(params, pk),
		decryptor: rlwe.NewDecryptor(params, sk),
	}, nil
}

// AdoptContext reconstructs a server-side session from serialized
// parameters. The resulting session can encode and decode but holds no
// keys yet; AdoptKeys completes it. It can never decrypt.
func AdoptContext(paramBytes []byte) (*Session, error) {
	var params heint.Parameters
	if err := params.UnmarshalBinary(paramBytes); err != nil {
		return nil, fmt.Errorf("%w: parameters: %w", ErrContextMismatch, err)
	}
	return &Session{
		params:  params,
		encoder: heint.NewEncoder(params),
	}, nil
}

// AdoptKeys deserializes the received key material against the adopted
// context and wires up the evaluator. A byte stream that does not match
// the context's parameter set fails loudly and fatally; the session must
// not be used after an adoption failure.
func (s *Session) AdoptKeys(pkBytes, rlkBytes, gkBytes []byte) error {
	pk := rlwe.NewPublicKey(s.params)
	if err := pk.UnmarshalBinary(pkBytes); err != nil {
		return fmt.Errorf("%w: public key: %w", ErrContextMismatch, err)
	}

	rlk := rlwe.NewRelinearizationKey(s.params)
	if err := rlk.UnmarshalBinary(rlkBytes); err != nil {
		return fmt.Errorf("%w: relinearization key: %w", ErrContextMismatch, err)
	}

	gkSet := new(rlwe.MemEvaluationKeySet)
	if err := gkSet.UnmarshalBinary(gkBytes); err != nil {
		return fmt.Errorf("%w: rotation keys: %w", ErrContextMismatch, err)
	}
	gks := make([]*rlwe.GaloisKey, 0, len(gkSet.GaloisKeys))
	for _, gk := range gkSet.GaloisKeys {
		gks = append(gks, gk)
	}

	s.keys = KeyBundle{Public: pk, Relin: rlk, Galois: gks}
	s.evaluator = heint.NewEvaluator(s.params, rlwe.NewMemEvaluationKeySet(rlk, gks...))
	return nil
}

// SlotCount returns the batch width of the plaintext space.
func (s *Session) SlotCount() int {
	return s.params.MaxSlots()
}

// MaxMagnitude returns the largest scaled integer representable in a
// slot. Values beyond it wrap silently inside the scheme, so encoding
// treats the bound as a hard precondition.
func (s *Session) MaxMagnitude() int64 {
	return int64(s.params.PlaintextModulus() / 2)
}

// EncodeScaled batches scaled integers into a plaintext tagged with the
// given scale order. Slots beyond len(slots) are zero. Every value must
// fit the plaintext modulus after scaling.
func (s *Session) EncodeScaled(slots []int64, order fixedpoint.ScaleOrder) (*Plaintext, error) {
	if len(slots) > s.SlotCount() {
		return nil, fmt.Errorf("fhe: %d values exceed %d slots", len(slots), s.SlotCount())
	}
	bound := s.MaxMagnitude()
	for _, n := range slots {
		if err := fixedpoint.CheckMagnitude(n, bound); err != nil {
			return nil, err
		}
	}

	padded := make([]int64, s.SlotCount())
	copy(padded, slots)

	pt := heint.NewPlaintext(s.params, s.params.MaxLevel())
	pt.Scale = s.params.DefaultScale()
	if err := s.encoder.Encode(padded, pt); err != nil {
		return nil, fmt.Errorf("fhe: encode: %w", err)
	}
	return &Plaintext{Pt: pt, Order: order}, nil
}

// Decode recovers the scaled integer slot vector of a plaintext. The
// values are centered, so negatives decode as negatives.
func (s *Session) Decode(pt *Plaintext) ([]int64, error) {
	slots := make([]int64, s.SlotCount())
	if err := s.encoder.Decode(pt.Pt, slots); err != nil {
		return nil, fmt.Errorf("fhe: decode: %w", err)
	}
	return slots, nil
}

// Encrypt encrypts an encoded plaintext under the session's public key,
// preserving its scale order.
func (s *Session) Encrypt(pt *Plaintext) (*Ciphertext, error) {
	ct, err := s.encryptor.EncryptNew(pt.Pt)
	if err != nil {
		return nil, fmt.Errorf("fhe: encrypt: %w", err)
	}
	return &Ciphertext{Ct: ct, Order: pt.Order}, nil
}

// Decrypt decrypts a ciphertext with the secret key. Only the session
// that generated the key bundle can do this.
func (s *Session) Decrypt(ct *Ciphertext) (*Plaintext, error) {
	if s.decryptor == nil {
		return nil, ErrNoSecretKey
	}
	return &Plaintext{Pt: s.decryptor.DecryptNew(ct.Ct), Order: ct.Order}, nil
}

// Add returns a+b. Operands must share a scale order.
func (s *Session) Add(a, b *Ciphertext) (*Ciphertext, error) {
	if a.Order != b.Order {
		return nil, fmt.Errorf("%w: %d vs %d", fixedpoint.ErrScaleMismatch, a.Order, b.Order)
	}
	ct, err := s.evaluator.AddNew(a.Ct, b.Ct)
	if err != nil {
		return nil, fmt.Errorf("fhe: add: %w", err)
	}
	return &Ciphertext{Ct: ct, Order: a.Order}, nil
}

// Sub returns a-b. Operands must share a scale order.
func (s *Session) Sub(a, b *Ciphertext) (*Ciphertext, error) {
	if a.Order != b.Order {
		return nil, fmt.Errorf("%w: %d vs %d", fixedpoint.ErrScaleMismatch, a.Order, b.Order)
	}
	ct, err := s.evaluator.SubNew(a.Ct, b.Ct)
	if err != nil {
		return nil, fmt.Errorf("fhe: sub: %w", err)
	}
	return &Ciphertext{Ct: ct, Order: a.Order}, nil
}

// SubPlain returns a-b for an encoded plaintext operand. Operands must
// share a scale order.
func (s *Session) SubPlain(a *Ciphertext, b *Plaintext) (*Ciphertext, error) {
	if a.Order != b.Order {
		return nil, fmt.Errorf("%w: %d vs %d", fixedpoint.ErrScaleMismatch, a.Order, b.Order)
	}
	ct, err := s.evaluator.SubNew(a.Ct, b.Pt)
	if err != nil {
		return nil, fmt.Errorf("fhe: sub plain: %w", err)
	}
	return &Ciphertext{Ct: ct, Order: a.Order}, nil
}

// MulPlain returns a*b for an encoded plaintext operand. The product's
// scale order is the sum of the operands' orders. If the multiplication
// raised the ciphertext degree it is relinearized back to degree one so
// the result stays usable in further operations.
func (s *Session) MulPlain(a *Ciphertext, b *Plaintext) (*Ciphertext, error) {
	ct, err := s.evaluator.MulNew(a.Ct, b.Pt)
	if err != nil {
		return nil, fmt.Errorf("fhe: mul plain: %w", err)
	}
	if ct.Degree() > 1 {
		if ct, err = s.evaluator.RelinearizeNew(ct); err != nil {
			return nil, fmt.Errorf("fhe: relinearize: %w", err)
		}
	}
	return &Ciphertext{Ct: ct, Order: a.Order + b.Order}, nil
}

// InnerSum folds the first span slots of a into slot 0 using the
// session's rotation keys. The span must match the one the rotation keys
// were generated for.
func (s *Session) InnerSum(a *Ciphertext, span int) (*Ciphertext, error) {
	out := heint.NewCiphertext(s.params, 1, a.Ct.Level())
	if err := s.evaluator.InnerSum(a.Ct, 1, span, out); err != nil {
		return nil, fmt.Errorf("fhe: inner sum: %w", err)
	}
	return &Ciphertext{Ct: out, Order: a.Order}, nil
}

// Fingerprint returns a short blake2b digest of a serialized parameter
// set. Both roles log it so a context mismatch is visible in the output
// before it is fatal in the arithmetic.
func Fingerprint(paramBytes []byte) string {
	sum := blake2b.Sum256(paramBytes)
	return hex.EncodeToString(sum[:8])
}
