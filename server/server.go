// Package server implements the server role of the encrypted budget
// protocol: it adopts the client's cryptographic context, evaluates the
// agreed arithmetic on the received ciphertexts, and returns the
// encrypted results. It never holds a secret key and never sees a
// plaintext figure; its only visibility is ciphertext sizes and
// operation timing.
package server

import (
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

// Server creates sessions for incoming connections. It holds no
// cryptographic state of its own: every session owns an independent
// context and key set, so sessions on separate connections may run
// concurrently.
type Server struct {
	log common.Logger
}

// New creates a server. A nil logger silences progress output.
func New(log common.Logger) *Server {
	if log == nil {
		log = common.NewQuietLogger()
	}
	return &Server{log: log}
}

// ServeSession runs one complete session on conn: adopt, receive,
// evaluate, reply. The connection is not closed; that stays with the
// accept loop.
func (s *Server) ServeSession(conn net.Conn) error {
	return s.NewSession(conn).Run()
}

// Session is the per-connection protocol state machine. Any channel or
// adoption failure moves it to the terminal failed state; the session
// cannot be restarted because ciphertext state is not resumable
// mid-stream.
type Session struct {
	log   common.Logger
	ch    *wire.Channel
	state protocol.ServerState
	crypt *fhe.Session
}

// NewSession wraps conn in a session in the listening state.
func (s *Server) NewSession(conn net.Conn) *Session {
	return &Session{
		log:   s.log,
		ch:    wire.NewChannel(conn),
		state: protocol.ServerListening,
	}
}

// State returns the session's current protocol state.
func (sess *Session) State() protocol.ServerState {
	return sess.state
}

// SetTimeout bounds every channel operation of the session. Zero, the
// default, disables deadlines.
func (sess *Session) SetTimeout(d time.Duration) {
	sess.ch.SetTimeout(d)
}

// Run drives the session to completion. It returns nil only after the
// final result ciphertext has been fully written to the channel.
func (sess *Session) Run() error {
	if err := sess.adoptContext(); err != nil {
		return sess.fail(err)
	}
	if err := sess.adoptKeys(); err != nil {
		return sess.fail(err)
	}
	inputs, err := sess.receiveInputs()
	if err != nil {
		return sess.fail(err)
	}
	results, err := sess.evaluate(inputs)
	if err != nil {
		return sess.fail(err)
	}
	if err := sess.sendResults(results); err != nil {
		return sess.fail(err)
	}
	sess.state = protocol.ServerDone
	sess.log.Printf("Session complete. Encrypted results sent to client.")
	return nil
}

func (sess *Session) fail(err error) error {
	sess.log.Printf("Session failed in state %s: %v", sess.state, err)
	sess.state = protocol.ServerFailed
	return err
}

func (sess *Session) adoptContext() error {
	paramBytes, err := sess.ch.Receive()
	if err != nil {
		return fmt.Errorf("receive parameters: %w", err)
	}
	if sess.crypt, err = fhe.AdoptContext(paramBytes); err != nil {
		return fmt.Errorf("adopt context: %w", err)
	}
	sess.state = protocol.ServerContextAdopted
	sess.log.Printf("Context adopted from client parameters (fingerprint %s).", fhe.Fingerprint(paramBytes))
	return nil
}

func (sess *Session) adoptKeys() error {
	pkBytes, err := sess.ch.Receive()
	if err != nil {
		return fmt.Errorf("receive public key: %w", err)
	}
	rlkBytes, err := sess.ch.Receive()
	if err != nil {
		return fmt.Errorf("receive relinearization key: %w", err)
	}
	gkBytes, err := sess.ch.Receive()
	if err != nil {
		return fmt.Errorf("receive rotation keys: %w", err)
	}
	if err := sess.crypt.AdoptKeys(pkBytes, rlkBytes, gkBytes); err != nil {
		return fmt.Errorf("adopt keys: %w", err)
	}
	sess.state = protocol.ServerKeysAdopted
	sess.log.Printf("Public, relinearization and rotation keys adopted.")
	return nil
}

// sessionInputs are the encrypted figures of one session, in the order
// they arrive on the channel.
type sessionInputs struct {
	income       *fhe.Ciphertext
	essential    *fhe.Ciphertext
	nonEssential *fhe.Ciphertext
	goal         *fhe.Plaintext
}

func (sess *Session) receiveInputs() (*sessionInputs, error) {
	in := new(sessionInputs)

	for _, field := range []struct {
		name string
		dst  **fhe.Ciphertext
	}{
		{"income entries", &in.income},
		{"essential total", &in.essential},
		{"non-essential total", &in.nonEssential},
	} {
		blob, err := sess.ch.Receive()
		if err != nil {
			return nil, fmt.Errorf("receive %s: %w", field.name, err)
		}
		if *field.dst, err = sess.crypt.UnmarshalCiphertext(blob, fixedpoint.OrderLinear); err != nil {
			return nil, fmt.Errorf("load %s: %w", field.name, err)
		}
	}

	blob, err := sess.ch.Receive()
	if err != nil {
		return nil, fmt.Errorf("receive savings goal: %w", err)
	}
	if in.goal, err = sess.crypt.UnmarshalPlaintext(blob, fixedpoint.OrderLinear); err != nil {
		return nil, fmt.Errorf("load savings goal: %w", err)
	}

	sess.state = protocol.ServerInputsReceived
	sess.log.Printf("Encrypted inputs loaded.")
	return in, nil
}

// sessionResults mirror the reply order on the channel.
type sessionResults struct {
	totalExpenses *fhe.Ciphertext
	netIncome     *fhe.Ciphertext
	goalDiff      *fhe.Ciphertext
	contribution  *fhe.Ciphertext
}

// evaluate computes the budget metrics homomorphically. The income
// entries are folded into a total, expenses are summed and subtracted,
// the goal is compared, and the savings contribution is a
// ciphertext-plaintext product that comes out at scale order 2.
func (sess *Session) evaluate(in *sessionInputs) (*sessionResults, error) {
	incomeTotal, err := sess.crypt.InnerSum(in.income, protocol.IncomeSlots)
	if err != nil {
		return nil, fmt.Errorf("fold income entries: %w", err)
	}

	totalExpenses, err := sess.crypt.Add(in.essential, in.nonEssential)
	if err != nil {
		return nil, fmt.Errorf("total expenses: %w", err)
	}

	netIncome, err := sess.crypt.Sub(incomeTotal, totalExpenses)
	if err != nil {
		return nil, fmt.Errorf("net income: %w", err)
	}

	goalDiff, err := sess.crypt.SubPlain(netIncome, in.goal)
	if err != nil {
		return nil, fmt.Errorf("goal difference: %w", err)
	}

	rate, err := sess.rateVector()
	if err != nil {
		return nil, fmt.Errorf("encode savings rate: %w", err)
	}
	contribution, err := sess.crypt.MulPlain(incomeTotal, rate)
	if err != nil {
		return nil, fmt.Errorf("savings contribution: %w", err)
	}

	sess.state = protocol.ServerEvaluated
	sess.log.Printf("Homomorphic evaluation complete (savings rate %.0f%%).", budget.SavingsRate*100)
	return &sessionResults{
		totalExpenses: totalExpenses,
		netIncome:     netIncome,
		goalDiff:      goalDiff,
		contribution:  contribution,
	}, nil
}

// rateVector encodes the savings rate into every slot at scale order 1.
func (sess *Session) rateVector() (*fhe.Plaintext, error) {
	scaled := fixedpoint.Encode(budget.SavingsRate)
	slots := make([]int64, sess.crypt.SlotCount())
	for i := range slots {
		slots[i] = scaled
	}
	return sess.crypt.EncodeScaled(slots, fixedpoint.OrderLinear)
}

func (sess *Session) sendResults(r *sessionResults) error {
	for _, field := range []struct {
		name string
		ct   *fhe.Ciphertext
	}{
		{"total expenses", r.totalExpenses},
		{"net income", r.netIncome},
		{"goal difference", r.goalDiff},
		{"savings contribution", r.contribution},
	} {
		blob, err := sess.crypt.MarshalCiphertext(field.ct)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", field.name, err)
		}
		if err := sess.ch.Send(blob); err != nil {
			return fmt.Errorf("send %s: %w", field.name, err)
		}
	}
	sess.state = protocol.ServerResultsSent
	return nil
}
