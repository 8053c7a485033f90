// Package client implements the client role of the encrypted budget
// protocol. The client owns the cryptographic context for the lifetime
// of a session: it generates the keys, encrypts the figures, ships the
// public material and ciphertexts to the server in the agreed order, and
// is the only party that can decrypt the results.
package client

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/naurayesh/fhe-cloud-financial-tool/budget"
	"github.com/naurayesh/fhe-cloud-financial-tool/common"
	"github.com/naurayesh/fhe-cloud-financial-tool/fhe"
	"github.com/naurayesh/fhe-cloud-financial-tool/fixedpoint"
	"github.com/naurayesh/fhe-cloud-financial-tool/protocol"
	"github.com/naurayesh/fhe-cloud-financial-tool/wire"
)

// ErrVerification reports decrypted results that diverge from the same
// arithmetic run locally in the clear. It means the evaluation produced
// garbage; the figures must not be reported as a successful result.
var ErrVerification = errors.New("client: decrypted results diverge from local arithmetic")

// Client runs budget sessions against a server. It keeps only the
// protocol state of the most recent session; cryptographic material
// lives and dies with each RunSession call, so the secret key never
// outlives the session it served.
type Client struct {
	log     common.Logger
	state   protocol.ClientState
	timeout time.Duration
}

// New creates a client. A nil logger silences progress output.
func New(log common.Logger) *Client {
	if log == nil {
		log = common.NewQuietLogger()
	}
	return &Client{log: log}
}

// State returns the protocol state of the most recent session.
func (c *Client) State() protocol.ClientState {
	return c.state
}

// SetTimeout bounds every channel operation of subsequent sessions.
// Zero, the default, disables deadlines.
func (c *Client) SetTimeout(d time.Duration) {
	c.timeout = d
}

// RunSession executes one complete session on conn: key generation,
// input encryption, evaluation round trip, decryption. It returns the
// decrypted results and a spending recommendation derived from them.
// The connection is not closed; that stays with the caller.
func (c *Client) RunSession(conn net.Conn, in budget.Inputs) (*budget.Results, string, error) {
	c.state = protocol.ClientInit
	ch := wire.NewChannel(conn)
	ch.SetTimeout(c.timeout)

	if len(in.IncomeEntries) == 0 {
		in.IncomeEntries = []float64{0}
	}

	crypt, err := fhe.NewClientSession(protocol.IncomeSlots)
	if err != nil {
		return nil, "", c.fail(fmt.Errorf("create context: %w", err))
	}
	c.state = protocol.ClientContextReady
	c.log.Printf("Context created; keys generated.")

	packed, dropped := budget.PackEntries(in.IncomeEntries, crypt.SlotCount(), protocol.IncomeSlots)
	if dropped > 0 {
		c.log.Printf("Warning: keeping the first %d income entries, dropping %d.",
			protocol.IncomeSlots, dropped)
		// Everything downstream, verification included, works on the
		// entries actually sent.
		in.IncomeEntries = in.IncomeEntries[:len(in.IncomeEntries)-dropped]
	}
	// The server cannot detect overflow in the encrypted arithmetic, so
	// every figure it will compute is bounds-checked here, before any
	// material goes on the wire.
	if err := budget.CheckBounds(packed, in, crypt.MaxMagnitude()); err != nil {
		return nil, "", c.fail(fmt.Errorf("validate inputs: %w", err))
	}

	if err := c.sendContext(ch, crypt); err != nil {
		return nil, "", c.fail(err)
	}

	enc, err := c.encryptInputs(crypt, in, packed)
	if err != nil {
		return nil, "", c.fail(err)
	}

	if err := c.sendInputs(ch, crypt, enc); err != nil {
		return nil, "", c.fail(err)
	}
	c.state = protocol.ClientAwaitingResults

	results, err := c.receiveResults(ch, crypt)
	if err != nil {
		return nil, "", c.fail(err)
	}

	if err := c.verify(in, results); err != nil {
		return nil, "", c.fail(err)
	}
	c.state = protocol.ClientDone
	return results, budget.Recommendation(*results), nil
}

func (c *Client) fail(err error) error {
	c.log.Printf("Session failed in state %s: %v", c.state, err)
	c.state = protocol.ClientFailed
	return err
}

// sendContext ships the parameters and the public key material. The
// secret key stays in memory on this side; nothing here serializes it.
func (c *Client) sendContext(ch *wire.Channel, crypt *fhe.Session) error {
	paramBytes, err := crypt.MarshalParams()
	if err != nil {
		return err
	}
	c.log.Printf("Context fingerprint %s.", fhe.Fingerprint(paramBytes))

	for _, blob := range []struct {
		name    string
		marshal func() ([]byte, error)
	}{
		{"parameters", func() ([]byte, error) { return paramBytes, nil }},
		{"public key", crypt.MarshalPublicKey},
		{"relinearization key", crypt.MarshalRelinKey},
		{"rotation keys", crypt.MarshalGaloisKeys},
	} {
		data, err := blob.marshal()
		if err != nil {
			return fmt.Errorf("marshal %s: %w", blob.name, err)
		}
		if err := ch.Send(data); err != nil {
			return fmt.Errorf("send %s: %w", blob.name, err)
		}
	}
	c.state = protocol.ClientKeysSent
	c.log.Printf("Parameters and evaluation keys sent.")
	return nil
}

// encryptedInputs are the session inputs in their channel form.
type encryptedInputs struct {
	income       *fhe.Ciphertext
	essential    *fhe.Ciphertext
	nonEssential *fhe.Ciphertext
	goal         *fhe.Plaintext
}

func (c *Client) encryptInputs(crypt *fhe.Session, in budget.Inputs, packed []int64) (*encryptedInputs, error) {
	income, err := c.encryptVector(crypt, packed)
	if err != nil {
		return nil, fmt.Errorf("encrypt income entries: %w", err)
	}
	essential, err := c.encryptAmount(crypt, in.EssentialTotal)
	if err != nil {
		return nil, fmt.Errorf("encrypt essential total: %w", err)
	}
	nonEssential, err := c.encryptAmount(crypt, in.NonEssentialTotal)
	if err != nil {
		return nil, fmt.Errorf("encrypt non-essential total: %w", err)
	}

	// The goal is the comparison threshold, not a private figure; it
	// travels encoded but unencrypted.
	goal, err := crypt.EncodeScaled([]int64{fixedpoint.Encode(in.SavingsGoal)}, fixedpoint.OrderLinear)
	if err != nil {
		return nil, fmt.Errorf("encode savings goal: %w", err)
	}

	c.state = protocol.ClientInputsEncrypted
	c.log.Printf("Inputs encrypted (%d income entries).", min(len(in.IncomeEntries), protocol.IncomeSlots))
	return &encryptedInputs{
		income:       income,
		essential:    essential,
		nonEssential: nonEssential,
		goal:         goal,
	}, nil
}

func (c *Client) encryptVector(crypt *fhe.Session, scaled []int64) (*fhe.Ciphertext, error) {
	pt, err := crypt.EncodeScaled(scaled, fixedpoint.OrderLinear)
	if err != nil {
		return nil, err
	}
	return crypt.Encrypt(pt)
}

func (c *Client) encryptAmount(crypt *fhe.Session, v float64) (*fhe.Ciphertext, error) {
	return c.encryptVector(crypt, []int64{fixedpoint.Encode(v)})
}

func (c *Client) sendInputs(ch *wire.Channel, crypt *fhe.Session, enc *encryptedInputs) error {
	for _, field := range []struct {
		name string
		ct   *fhe.Ciphertext
	}{
		{"income entries", enc.income},
		{"essential total", enc.essential},
		{"non-essential total", enc.nonEssential},
	} {
		blob, err := crypt.MarshalCiphertext(field.ct)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", field.name, err)
		}
		if err := ch.Send(blob); err != nil {
			return fmt.Errorf("send %s: %w", field.name, err)
		}
	}

	blob, err := crypt.MarshalPlaintext(enc.goal)
	if err != nil {
		return fmt.Errorf("marshal savings goal: %w", err)
	}
	if err := ch.Send(blob); err != nil {
		return fmt.Errorf("send savings goal: %w", err)
	}

	c.state = protocol.ClientInputsSent
	c.log.Printf("Encrypted inputs sent; awaiting evaluation.")
	return nil
}

// receiveResults reads the four result ciphertexts in the agreed order,
// decrypts them, and descales each at the order its wire position
// implies: the savings contribution carries the compounded order of a
// ciphertext-plaintext product, the rest stay linear.
func (c *Client) receiveResults(ch *wire.Channel, crypt *fhe.Session) (*budget.Results, error) {
	type resultField struct {
		name  string
		order fixedpoint.ScaleOrder
		dst   *float64
	}
	results := new(budget.Results)
	fields := []resultField{
		{"total expenses", fixedpoint.OrderLinear, &results.TotalExpenses},
		{"net income", fixedpoint.OrderLinear, &results.NetIncome},
		{"goal difference", fixedpoint.OrderLinear, &results.GoalDifference},
		{"savings contribution", fixedpoint.OrderQuadratic, &results.SavingsContribution},
	}

	for i, field := range fields {
		blob, err := ch.Receive()
		if err != nil {
			return nil, fmt.Errorf("receive %s: %w", field.name, err)
		}
		ct, err := crypt.UnmarshalCiphertext(blob, field.order)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", field.name, err)
		}
		if i == 0 {
			c.state = protocol.ClientResultsReceived
		}

		v, err := c.decodeFirstSlot(crypt, ct)
		if err != nil {
			return nil, fmt.Errorf("decrypt %s: %w", field.name, err)
		}
		*field.dst = v
	}

	c.state = protocol.ClientDecoded
	c.log.Printf("Results decrypted and descaled.")
	return results, nil
}

func (c *Client) decodeFirstSlot(crypt *fhe.Session, ct *fhe.Ciphertext) (float64, error) {
	pt, err := crypt.Decrypt(ct)
	if err != nil {
		return 0, err
	}
	slots, err := crypt.Decode(pt)
	if err != nil {
		return 0, err
	}
	return fixedpoint.Decode(slots[0], ct.Order), nil
}

// verify compares the decrypted results against the same arithmetic run
// in the clear. A mismatch means corrupted evaluation, not a user error,
// and the session must fail rather than return the wrong figures.
func (c *Client) verify(in budget.Inputs, got *budget.Results) error {
	want, err := budget.Expected(in)
	if err != nil {
		return fmt.Errorf("%w: local arithmetic: %w", ErrVerification, err)
	}
	for _, check := range []struct {
		name      string
		got, want float64
	}{
		{"total expenses", got.TotalExpenses, want.TotalExpenses},
		{"net income", got.NetIncome, want.NetIncome},
		{"goal difference", got.GoalDifference, want.GoalDifference},
		{"savings contribution", got.SavingsContribution, want.SavingsContribution},
	} {
		if diff := check.got - check.want; diff > 0.01 || diff < -0.01 {
			c.log.Printf("Verification mismatch on %s: decrypted %.2f, local %.2f.",
				check.name, check.got, check.want)
			return fmt.Errorf("%w: %s decrypted %.2f, local %.2f",
				ErrVerification, check.name, check.got, check.want)
		}
	}
	return nil
}
