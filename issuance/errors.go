package issuance

import "errors"

// Kind is a stable category for programmatic error handling.
//
// Callers should branch on Kind or Code rather than matching error strings.
// Use errors.As to extract *Error.
type Kind string

const (
	KindParse                Kind = "Parse"
	KindInvalidRound         Kind = "InvalidRound"
	KindProofInvalid         Kind = "ProofInvalid"
	KindAlreadyIssued        Kind = "AlreadyIssued"
	KindNotIssued            Kind = "NotIssued"
	KindDerivationMismatch   Kind = "DerivationMismatch"
	KindAuthorizationMissing Kind = "AuthorizationMissing"
	KindCollaboratorFailure  Kind = "CollaboratorFailure"
	KindInsufficientCapacity Kind = "InsufficientCapacity"
	KindInternal             Kind = "Internal"
)

// Stable codes. Each names one rejection rule.
const (
	CodeEmptyInput      = "BF-PARSE-001"
	CodeUnknownOpcode   = "BF-PARSE-002"
	CodeMalformedProof  = "BF-PARSE-003"
	CodeMalformedData   = "BF-PARSE-004"
	CodeRetiredVariant  = "BF-PARSE-005"
	CodeInvalidRound    = "BF-ROUND-001"
	CodeProofInvalid    = "BF-PROOF-001"
	CodeAlreadyIssued   = "BF-LEDGER-001"
	CodeNoCapacity      = "BF-LEDGER-002"
	CodeNotIssued       = "BF-LEDGER-003"
	CodeOccupied        = "BF-LEDGER-004"
	CodeRecordAddress   = "BF-DERIVE-001"
	CodeAuthorityAddr   = "BF-DERIVE-002"
	CodeHoldingAddress  = "BF-DERIVE-003"
	CodeMetadataAddress = "BF-DERIVE-004"
	CodeCollectionMint  = "BF-DERIVE-005"
	CodeTreasuryAddress = "BF-DERIVE-006"
	CodeMissingSigner   = "BF-AUTH-001"
	CodeNotClaimant     = "BF-AUTH-002"
	CodeTokenFailure    = "BF-COLLAB-001"
	CodeMetadataFailure = "BF-COLLAB-002"
	CodeFundsFailure    = "BF-COLLAB-003"
	CodeInsufficient    = "BF-FUNDS-001"
	CodeInternal        = "BF-INTERNAL-001"
)

// Error is the engine's structured error type.
//
// Message is intended for humans; do not match on it.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause != nil {
		return e.Code + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func newError(kind Kind, code, msg string) error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

func wrapError(kind Kind, code, msg string, cause error) error {
	if cause == nil {
		return newError(kind, code, msg)
	}
	return &Error{Kind: kind, Code: code, Message: msg, Cause: cause}
}

// IsKind reports whether err is (or wraps) a *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// KindOf returns the Kind of a structured error, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if !errors.As(err, &e) {
		return KindInternal
	}
	return e.Kind
}

// Code returns the stable code for a structured error, or "" if unknown.
func Code(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Code
}
