package bencherrors

import (
	"errors"
	"strings"
)

// Clock (C) Errors
var (
	ErrClockUnavailable = errors.New("C1|ClockUnavailable: The monotonic timer is not available.")
)

// Load (L) Errors
var (
	ErrLoad          = errors.New("L1|MalformedProgram: The program image could not be decoded.")
	ErrUnknownFormat = errors.New("L2|UnknownFormat: The program format tag is not recognized.")
	ErrBadHeader     = errors.New("L3|BadHeader: The program header is inconsistent with the image.")
)

// Verification (V) Errors
var (
	ErrVerification = errors.New("V1|VerificationFailed: The static verifier rejected the program.")
)

// Compile (J) Errors
var (
	ErrCompile                = errors.New("J1|CompileFailed: The program could not be compiled to native code.")
	ErrJitBufferFull          = errors.New("J2|JitBufferFull: The compiled code does not fit in the output buffer.")
	ErrUnresolvedHelper       = errors.New("J3|UnresolvedHelper: A helper call has no resolved address.")
	ErrUnsupportedInstruction = errors.New("J4|UnsupportedInstruction: The compiler does not support an instruction.")
	ErrInvalidObject          = errors.New("J5|InvalidObject: The relocatable object image is invalid.")
)

// Execution (E) Errors
var (
	ErrExec              = errors.New("E1|ExecutionFailed: The program did not run to completion.")
	ErrMemoryAccess      = errors.New("E2|MemoryAccess: The program accessed memory outside its permitted regions.")
	ErrUnknownHelper     = errors.New("E3|UnknownHelper: The program called a helper that is not registered.")
	ErrNativeUnsupported = errors.New("E4|NativeUnsupported: Native execution is not supported on this platform.")
	ErrReleasedFunction  = errors.New("E5|ReleasedFunction: The compiled function's code buffer was already released.")
)

// Helper (H) Errors
var (
	ErrDuplicateHelper = errors.New("H1|DuplicateHelper: Two helper entries share the same identifier.")
)

// GetErrorName extracts the error name from the error message.
func GetErrorName(err error) string {
	if err == nil {
		return "No Error"
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "|") || !strings.Contains(errStr, ":") {
		return errStr
	}
	parts := strings.SplitN(errStr, "|", 2)
	nameParts := strings.SplitN(parts[1], ":", 2)
	return strings.TrimSpace(nameParts[0])
}

// GetErrorCode extracts the error code from the error message.
func GetErrorCode(err error) string {
	if err == nil {
		return ""
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "|") {
		return ""
	}
	parts := strings.SplitN(errStr, "|", 2)
	return strings.TrimSpace(parts[0])
}

// GetErrorCodeWithName returns the error code and name in the format "Code_ErrorName".
func GetErrorCodeWithName(err error) string {
	code := GetErrorCode(err)
	name := GetErrorName(err)
	if code == "" || name == "" {
		return ""
	}
	return code + "_" + name
}
