//go:build !unicorn
// +build !unicorn

package recompiler

import (
	"fmt"

	"github.com/colorfulnotion/femtobench/bencherrors"
)

// NewSandbox needs the unicorn build tag and libunicorn.
func NewSandbox(int) (Backend, error) {
	return nil, fmt.Errorf("%w: sandbox backend requires building with -tags unicorn", bencherrors.ErrNativeUnsupported)
}
