//go:build linux && amd64 && cgo

package recompiler

// #include <stdint.h>
import "C"

// femtobenchHelper is the single entry point compiled code calls for every
// helper; the id arrives in the 6th argument and the call handle in the 7th.
//
//export femtobenchHelper
func femtobenchHelper(a1, a2, a3, a4, a5, id, env C.uint64_t) C.uint64_t {
	return C.uint64_t(dispatchHelper(uint64(a1), uint64(a2), uint64(a3), uint64(a4), uint64(a5), uint64(id), uint64(env)))
}
