package interfaces

// -----------------------------------------------------------------------------
// IServer is a background network surface (ops HTTP, gRPC health).
// -----------------------------------------------------------------------------

type IServer interface {
	// Start serves until Stop is called or the listener fails.
	Start() error

	// Stop the server gracefully
	Stop() error
}
