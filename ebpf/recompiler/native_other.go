//go:build !(linux && amd64 && cgo)

package recompiler

import (
	"fmt"
	"runtime"

	"github.com/colorfulnotion/femtobench/bencherrors"
)

// NewNative is unavailable off linux/amd64 or without cgo; use the sandbox
// backend instead.
func NewNative(int) (Backend, error) {
	return nil, fmt.Errorf("%w: GOOS=%s GOARCH=%s", bencherrors.ErrNativeUnsupported, runtime.GOOS, runtime.GOARCH)
}
