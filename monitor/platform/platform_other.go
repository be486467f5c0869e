//go:build !windows || !amd64

package platform

// Native reports that no fault interception backend exists for this
// target. Monitoring still works against a caller-supplied Platform, such
// as the simulated one in internal/simplat.
func Native() (Platform, error) {
	return nil, ErrUnsupported
}
