package wheretogo

type Config struct {
	// Query holds static parameters merged into every request sent to the
	// Source. Parameters passed to GetEvents take precedence over these
	// when both name the same key.
	Query Query
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		Query: nil,
	}
}
