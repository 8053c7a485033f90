package fhe

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v5/core/rlwe"
	"github.com/tuneinsight/lattigo/v5/he/heint"

	"github.com/naurayesh/fhe-cloud-financial-tool/fixedpoint"
)

// The channel carries opaque blobs; all payload formats below are owned
// by lattigo. Scale orders are not serialized: they travel implicitly in
// the fixed positional message order both roles agree on.

// MarshalParams serializes the session's parameter set.
func (s *Session) MarshalParams() ([]byte, error) {
	data, err := s.params.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("fhe: marshal parameters: %w", err)
	}
	return data, nil
}

// MarshalPublicKey serializes the public encryption key.
func (s *Session) MarshalPublicKey() ([]byte, error) {
	data, err := s.keys.Public.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("fhe: marshal public key: %w", err)
	}
	return data, nil
}

// MarshalRelinKey serializes the relinearization key.
func (s *Session) MarshalRelinKey() ([]byte, error) {
	data, err := s.keys.Relin.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("fhe: marshal relinearization key: %w", err)
	}
	return data, nil
}

// MarshalGaloisKeys serializes the rotation keys as one evaluation-key
// set blob, so the wire carries a single message for all of them.
func (s *Session) MarshalGaloisKeys() ([]byte, error) {
	data, err := rlwe.NewMemEvaluationKeySet(nil, s.keys.Galois...).MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("fhe: marshal rotation keys: %w", err)
	}
	return data, nil
}

// MarshalCiphertext serializes a ciphertext for the channel. Ownership
// transfers by value: the receiver reconstructs an independent object.
func (s *Session) MarshalCiphertext(ct *Ciphertext) ([]byte, error) {
	data, err := ct.Ct.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("fhe: marshal ciphertext: %w", err)
	}
	return data, nil
}

// UnmarshalCiphertext deserializes a ciphertext against the session's
// context and tags it with the scale order the wire position implies.
// Material whose ring degree does not match the context is rejected.
func (s *Session) UnmarshalCiphertext(data []byte, order fixedpoint.ScaleOrder) (*Ciphertext, error) {
	ct := new(rlwe.Ciphertext)
	if err := ct.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("%w: ciphertext: %w", ErrContextMismatch, err)
	}
	if ct.Value[0].N() != s.params.N() {
		return nil, fmt.Errorf("%w: ciphertext ring degree %d, context has %d",
			ErrContextMismatch, ct.Value[0].N(), s.params.N())
	}
	if ct.Level() > s.params.MaxLevel() {
		return nil, fmt.Errorf("%w: ciphertext level %d exceeds context maximum %d",
			ErrContextMismatch, ct.Level(), s.params.MaxLevel())
	}
	return &Ciphertext{Ct: ct, Order: order}, nil
}

// MarshalPlaintext serializes an encoded plaintext for the channel.
func (s *Session) MarshalPlaintext(pt *Plaintext) ([]byte, error) {
	data, err := pt.Pt.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("fhe: marshal plaintext: %w", err)
	}
	return data, nil
}

// UnmarshalPlaintext deserializes an encoded plaintext against the
// session's context. The blob must have the exact serialized size of a
// top-level plaintext under these parameters.
func (s *Session) UnmarshalPlaintext(data []byte, order fixedpoint.ScaleOrder) (*Plaintext, error) {
	pt := heint.NewPlaintext(s.params, s.params.MaxLevel())
	if len(data) != pt.BinarySize() {
		return nil, fmt.Errorf("%w: plaintext is %d bytes, context expects %d",
			ErrContextMismatch, len(data), pt.BinarySize())
	}
	if err := pt.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("%w: plaintext: %w", ErrContextMismatch, err)
	}
	return &Plaintext{Pt: pt, Order: order}, nil
}
