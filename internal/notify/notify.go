package notify

import (
	"context"

	"go.uber.org/zap"
)

// Channel identifies the delivery medium for an outbound message.
type Channel string

const (
	ChannelEmail  Channel = "email"
	ChannelSMS    Channel = "sms"
	ChannelCall   Channel = "call"
	ChannelLetter Channel = "letter"
)

// Message is a single outbound notification. Recipient is free-form
// because each channel interprets it differently.
type Message struct {
	CompanyID int64
	Channel   Channel
	Recipient string
	Subject   string
	Body      string
}

// Notifier delivers messages to clients. Implementations own retries
// and provider errors; callers treat delivery as best effort.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

type logNotifier struct {
	log *zap.Logger
}

// NewLogNotifier returns a Notifier that writes messages to the log
// instead of a gateway. It is the default delivery backend.
func NewLogNotifier(log *zap.Logger) Notifier {
	return &logNotifier{log: log.Named("notify.log")}
}

func (n *logNotifier) Send(_ context.Context, msg Message) error {
	n.log.Info("notification",
		zap.Int64("company_id", msg.CompanyID),
		zap.String("channel", string(msg.Channel)),
		zap.String("recipient", msg.Recipient),
		zap.String("subject", msg.Subject),
	)
	return nil
}
