package wallet

import (
	"errors"
	"fmt"

	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

// Provider error codes (EIP-1193, EIP-3326 and JSON-RPC).
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnrecognizedChain = 4902
	CodeInvalidParams     = -32602
	CodeRequestPending    = -32002
)

// ProviderError is an error reported by the wallet provider.
type ProviderError struct {
	Code    int
	Message string
}

var _ gethrpc.Error = (*ProviderError)(nil)

func (e *ProviderError) Error() string {
	return e.Message
}

// ErrorCode implements rpc.Error.
func (e *ProviderError) ErrorCode() int {
	return e.Code
}

func errUserRejected(msg string) error {
	return &ProviderError{Code: CodeUserRejected, Message: msg}
}

func errUnrecognizedChain(id uint64) error {
	return &ProviderError{
		Code:    CodeUnrecognizedChain,
		Message: fmt.Sprintf("Unrecognized chain ID %q. Try adding the chain using wallet_addEthereumChain first.", FormatChainID(id)),
	}
}

// ErrorCode extracts the numeric code from a provider or JSON-RPC error.
func ErrorCode(err error) (int, bool) {
	var coded gethrpc.Error
	if errors.As(err, &coded) {
		return coded.ErrorCode(), true
	}
	return 0, false
}

// IsUserRejected reports whether err is a user rejection.
func IsUserRejected(err error) bool {
	code, ok := ErrorCode(err)
	return ok && code == CodeUserRejected
}
