//go:build !unix

package recompiler

// Without mmap the buffer is ordinary memory; it can be emulated but not run.
func mapRW(size int) ([]byte, error) {
	return make([]byte, size), nil
}

func protectRX([]byte) error { return nil }

func unmap([]byte) error { return nil }
