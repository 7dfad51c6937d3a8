package domain

// Prefixes of the engine-local tools offered to the deciding agent on
// every step. Names under these prefixes are resolved before the
// registry is consulted.
const (
	ToolPrefixTransition = "transition_to_"
	ToolPrefixRead       = "read_"
	ToolPrefixWrite      = "write_"
)
