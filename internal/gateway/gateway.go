package gateway

// Messenger defines the interface for communication gateways (terminal, Telegram, etc.)
type Messenger interface {
	// Start begins the message listening loop
	Start() error
	// Send sends a message to a specific session
	Send(sessionID string, text string) error
	// Stop gracefully shuts down the gateway
	Stop() error
}
