//go:build !(linux || darwin || freebsd)

package scratch

func freeBytes(string) (uint64, bool) {
	return 0, false
}
