//go:build !linux

package memory

func allocateSwapFile(string, uint64) error {
	return ErrSwapUnsupported
}

func removeSwapFile(string) {}
