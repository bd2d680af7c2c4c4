//go:build !darwin

package extract

// chflags is a no-op where the platform has no file flags.
func chflags(string, uint32) error {
	return nil
}
