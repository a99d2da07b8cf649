package notification

import (
	"context"
	"log/slog"
)

const (
	// KindInstallSigningAgent asks the user to install a signing agent before retrying.
	KindInstallSigningAgent = "install_signing_agent"
	// KindDonationConfirmed reports a donation that was mined.
	KindDonationConfirmed = "donation_confirmed"
	// KindDonationFailed reports a donation that was rejected or reverted.
	KindDonationFailed = "donation_failed"
)

// InstallSigningAgentPrompt is the remediation shown when no signing agent is available.
const InstallSigningAgentPrompt = "Please install a signing agent such as MetaMask and connect it to this application."

// Message describes a user-facing notification.
type Message struct {
	Kind        string
	Destination string
	Body        string
}

// Notifier delivers notifications to whoever is driving the gateway.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the structured logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification", "kind", message.Kind, "destination", message.Destination, "body", message.Body)
	return nil
}
