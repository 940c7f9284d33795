package mcpserver

import (
	"errors"
	"fmt"

	weberrors "github.com/Aman-CERP/webkb/internal/errors"
)

// Standard JSON-RPC error codes, plus webkb-specific codes above -32000.
const (
	ErrCodeTransient  = -32001
	ErrCodeCorruption = -32002
	ErrCodeConfig     = -32003

	ErrCodeInvalidParams = -32602
	ErrCodeInternalError = -32603
)

// MCPError is an MCP protocol error with a JSON-RPC code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("mcp error %d: %s", e.Code, e.Message)
}

// NewInvalidParamsError builds an invalid-params MCPError.
func NewInvalidParamsError(message string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: message}
}

// MapError converts an internal error into an MCPError, preserving the
// webkb error kind where one is present (spec §7 error taxonomy).
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}
	var webErr *weberrors.WebKBError
	if errors.As(err, &webErr) {
		switch weberrors.GetKind(webErr) {
		case weberrors.KindConfig:
			return &MCPError{Code: ErrCodeConfig, Message: webErr.Error()}
		case weberrors.KindCorruption:
			return &MCPError{Code: ErrCodeCorruption, Message: webErr.Error()}
		case weberrors.KindTransient:
			return &MCPError{Code: ErrCodeTransient, Message: webErr.Error()}
		default:
			return &MCPError{Code: ErrCodeInternalError, Message: webErr.Error()}
		}
	}
	return &MCPError{Code: ErrCodeInternalError, Message: err.Error()}
}
