// Package protocol defines the wire contract shared by the two roles:
// the fixed positional message order and the session state machines.
//
// Message order is a convention between the roles, not negotiated and not
// self-describing. Client to server, in exactly this order:
//
//  1. serialized scheme parameters
//  2. serialized public key
//  3. serialized relinearization key
//  4. serialized rotation (Galois) key set
//  5. income entries ciphertext
//  6. essential expense total ciphertext
//  7. non-essential expense total ciphertext
//  8. savings goal, as an encoded plaintext blob (the threshold needs no
//     confidentiality, only the figures it is compared against do)
//
// Server to client, mirroring the computation performed:
//
//  1. total expenses ciphertext
//  2. net income ciphertext
//  3. goal difference ciphertext
//  4. savings contribution ciphertext (scale order 2)
//
// Both sides advance one state per channel operation. Any transport or
// deserialization failure moves the role to its terminal failed state;
// there is no recovery, resynchronization or retry, because key and
// ciphertext state cannot be safely resumed mid-stream.
package protocol

// IncomeSlots is the slot span reserved for income entries. The client
// generates rotation keys for folding exactly this many slots and the
// server sums over the same span, so the value is part of the wire
// contract. Unused slots are zero and do not affect the fold.
const IncomeSlots = 64

// ClientState tracks the client role through its linear session flow.
type ClientState int

const (
	ClientInit ClientState = iota
	ClientContextReady
	ClientKeysSent
	ClientInputsEncrypted
	ClientInputsSent
	ClientAwaitingResults
	ClientResultsReceived
	ClientDecoded
	ClientDone
	ClientFailed
)

func (s ClientState) String() string {
	switch s {
	case ClientInit:
		return "INIT"
	case ClientContextReady:
		return "CONTEXT_READY"
	case ClientKeysSent:
		return "KEYS_SENT"
	case ClientInputsEncrypted:
		return "INPUTS_ENCRYPTED"
	case ClientInputsSent:
		return "INPUTS_SENT"
	case ClientAwaitingResults:
		return "AWAITING_RESULTS"
	case ClientResultsReceived:
		return "RESULTS_RECEIVED"
	case ClientDecoded:
		return "DECODED"
	case ClientDone:
		return "DONE"
	case ClientFailed:
		return "FAILED"
	}
	return "UNKNOWN"
}

// Terminal reports whether the session has ended, successfully or not.
func (s ClientState) Terminal() bool {
	return s == ClientDone || s == ClientFailed
}

// ServerState tracks the server role through its session flow.
type ServerState int

const (
	ServerListening ServerState = iota
	ServerContextAdopted
	ServerKeysAdopted
	ServerInputsReceived
	ServerEvaluated
	ServerResultsSent
	ServerDone
	ServerFailed
)

func (s ServerState) String() string {
	switch s {
	case ServerListening:
		return "LISTENING"
	case ServerContextAdopted:
		return "CONTEXT_ADOPTED"
	case ServerKeysAdopted:
		return "KEYS_ADOPTED"
	case ServerInputsReceived:
		return "INPUTS_RECEIVED"
	case ServerEvaluated:
		return "EVALUATED"
	case ServerResultsSent:
		return "RESULTS_SENT"
	case ServerDone:
		return "DONE"
	case ServerFailed:
		return "FAILED"
	}
	return "UNKNOWN"
}

// Terminal reports whether the session has ended, successfully or not.
func (s ServerState) Terminal() bool {
	return s == ServerDone || s == ServerFailed
}
