package distmodel

import "fmt"

// sentinel is a comparable error base that callers can wrap with context
// via fmt.Errorf("%w: ...", Err...) and still match with errors.Is.
type sentinel string

func (s sentinel) Error() string { return string(s) }

// Wrapf wraps the sentinel with a formatted message, preserving errors.Is
// matching against the sentinel itself.
func (s sentinel) Wrapf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{error(s)}, args...)...)
}

// Error kinds surfaced by the engine (§7). No error is recovered locally;
// every one of these is meant to reach the CLI and become a log.Fatalf.
const (
	ErrConfigMissing  sentinel = "config missing"
	ErrRPC            sentinel = "rpc failure"
	ErrDecode         sentinel = "decode failure"
	ErrBlobStore      sentinel = "blob store failure"
	ErrValidation     sentinel = "validation failure"
	ErrProofNotFound  sentinel = "proof not found"
	ErrSignerRequired sentinel = "signer required"
	ErrTxReverted     sentinel = "transaction reverted"
	ErrNoClaims       sentinel = "no claims to process"
)
