package encoder

import (
	"fmt"

	"github.com/lookbusy1344/sbpfasm/parser"
)

// EncodingError provides source-location context for an instruction that
// could not be encoded.
type EncodingError struct {
	Instruction *parser.InstructionNode
	Message     string
	Wrapped     error
}

func (e *EncodingError) Error() string {
	if e.Instruction == nil {
		if e.Wrapped != nil {
			return fmt.Sprintf("encoding error: %s: %v", e.Message, e.Wrapped)
		}
		return fmt.Sprintf("encoding error: %s", e.Message)
	}

	location := fmt.Sprintf("line %d: ", e.Instruction.Line)
	if e.Wrapped != nil {
		return fmt.Sprintf("%s%s: %v", location, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s%s", location, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *EncodingError) Unwrap() error {
	return e.Wrapped
}

// NewEncodingError creates an EncodingError with instruction context.
func NewEncodingError(inst *parser.InstructionNode, message string) *EncodingError {
	return &EncodingError{Instruction: inst, Message: message}
}

// WrapEncodingError wraps err with instruction context, leaving an
// already-wrapped EncodingError untouched.
func WrapEncodingError(inst *parser.InstructionNode, err error) error {
	if err == nil {
		return nil
	}
	if ee, ok := err.(*EncodingError); ok {
		return ee
	}
	return &EncodingError{Instruction: inst, Message: "failed to encode instruction", Wrapped: err}
}
