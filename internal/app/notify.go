package app

import (
	"sync"

	"formbuilder/api/internal/email"
	"go.uber.org/zap"
)

type OwnershipGranted struct {
	To        string
	OwnerName string
	FormID    string
	FormTitle string
}

type OwnershipTransferred struct {
	To        string
	PastOwner string
	NewOwners string
	FormID    string
	FormTitle string
}

// Notifier delivers ownership-change messages. Implementations must not
// block the caller or report failures back to it.
type Notifier interface {
	NotifyOwnershipGranted(msg OwnershipGranted)
	NotifyOwnershipTransferred(msg OwnershipTransferred)
}

type nopNotifier struct{}

func (nopNotifier) NotifyOwnershipGranted(OwnershipGranted) {}

func (nopNotifier) NotifyOwnershipTransferred(OwnershipTransferred) {}

type mailer interface {
	IsConfigured() bool
	SendOwnershipGranted(to string, data email.OwnershipGrantedData) error
	SendOwnershipTransferred(to string, data email.OwnershipTransferredData) error
}

// EmailNotifier sends each message from its own goroutine.
type EmailNotifier struct {
	mailer mailer
	logger *zap.Logger
	wg     sync.WaitGroup
}

func NewEmailNotifier(m mailer, logger *zap.Logger) *EmailNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailNotifier{mailer: m, logger: logger}
}

func (n *EmailNotifier) NotifyOwnershipGranted(msg OwnershipGranted) {
	n.dispatch("ownership_granted", msg.To, msg.FormID, func() error {
		return n.mailer.SendOwnershipGranted(msg.To, email.OwnershipGrantedData{
			FormTitleEn: msg.FormTitle,
			FormTitleFr: msg.FormTitle,
			FormOwner:   msg.OwnerName,
			FormID:      msg.FormID,
		})
	})
}

func (n *EmailNotifier) NotifyOwnershipTransferred(msg OwnershipTransferred) {
	n.dispatch("ownership_transferred", msg.To, msg.FormID, func() error {
		return n.mailer.SendOwnershipTransferred(msg.To, email.OwnershipTransferredData{
			FormTitleEn: msg.FormTitle,
			FormTitleFr: msg.FormTitle,
			PastOwner:   msg.PastOwner,
			NewOwner:    msg.NewOwners,
			FormID:      msg.FormID,
		})
	})
}

func (n *EmailNotifier) dispatch(kind, to, formID string, send func() error) {
	fields := []zap.Field{zap.String("notification", kind), zap.String("to", to), zap.String("form_id", formID)}
	if n.mailer == nil || !n.mailer.IsConfigured() {
		n.logger.Debug("email not configured, skipping notification", fields...)
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := send(); err != nil {
			n.logger.Error("notification failed", append(fields, zap.Error(err))...)
			return
		}
		n.logger.Info("notification sent", fields...)
	}()
}

// Wait blocks until in-flight notifications finish.
func (n *EmailNotifier) Wait() {
	n.wg.Wait()
}
