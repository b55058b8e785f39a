package swrgate

// DefaultOptions returns the recommended set of options for production use:
// panic recovery, security headers with a Content-Security-Policy, and gzip
// compression above the default threshold.
func DefaultOptions() []Option {
	return []Option{
		WithRecovery(),
		WithSecureHeaders(true),
		WithCompression(0),
	}
}
