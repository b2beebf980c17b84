package orchestrators

// Stage errors wrap the underlying cause so callers can both identify the
// failing stage with errors.As and inspect the cause with errors.Is.

// SetupError reports a failure while loading configuration or preparing the
// working directory
type SetupError struct {
	Err error
}

func (e *SetupError) Error() string { return "bootstrap failed: " + e.Err.Error() }

func (e *SetupError) Unwrap() error { return e.Err }

// FetchError reports a failure while resolving or downloading a release
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string { return "fetch failed: " + e.Err.Error() }

func (e *FetchError) Unwrap() error { return e.Err }

// AssemblyError reports a failure while staging binaries or producing wheels
type AssemblyError struct {
	Err error
}

func (e *AssemblyError) Error() string { return "assembly failed: " + e.Err.Error() }

func (e *AssemblyError) Unwrap() error { return e.Err }

// VerificationError reports a wheel that failed verification. Verification
// failures are final, the pipeline never retries them.
type VerificationError struct {
	Err error
}

func (e *VerificationError) Error() string { return "verification failed: " + e.Err.Error() }

func (e *VerificationError) Unwrap() error { return e.Err }

// SmokeTestError reports a failure while exercising the packaged executable
type SmokeTestError struct {
	Err error
}

func (e *SmokeTestError) Error() string { return "smoke test failed: " + e.Err.Error() }

func (e *SmokeTestError) Unwrap() error { return e.Err }

// PublishError reports a failure while uploading wheels to the package index
type PublishError struct {
	Err error
}

func (e *PublishError) Error() string { return "publish failed: " + e.Err.Error() }

func (e *PublishError) Unwrap() error { return e.Err }
