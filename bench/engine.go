package bench

import (
	"github.com/colorfulnotion/femtobench/memctx"
)

// SuccessCode is the result a program returns when it computed the expected
// answer.
const SuccessCode = 1

// Execute runs u once against ctx and returns the raw result code. The empty
// context is passed as a nil region.
func Execute(u Unit, ctx *memctx.Context) (uint64, error) {
	return u.Execute(ctx.Bytes())
}
