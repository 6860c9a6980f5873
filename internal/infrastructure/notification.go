package infrastructure

import (
	"fmt"
	"os/exec"

	"github.com/yourusername/tunepack-go/internal/domain"
	"go.uber.org/zap"
)

// NotificationService sends desktop notifications for batch outcomes
type NotificationService struct {
	config *domain.NotificationConfig
	logger *zap.Logger
}

// NewNotificationService creates a new notification service
func NewNotificationService(config *domain.NotificationConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		config: config,
		logger: logger,
	}
}

// NotifyBatchCompleted announces a finished batch with its counts
func (n *NotificationService) NotifyBatchCompleted(playlistName string, succeeded, failed, excluded int) {
	message := fmt.Sprintf("%d downloaded, %d failed, %d skipped", succeeded, failed, excluded)
	if err := n.Send("TunePack: "+playlistName, message); err != nil {
		n.logger.Warn("Failed to send completion notification", zap.Error(err))
	}
}

// NotifyBatchFailed announces a batch that produced no archive
func (n *NotificationService) NotifyBatchFailed(playlistName, reason string) {
	if err := n.Send("TunePack: "+playlistName, "Download failed: "+reason); err != nil {
		n.logger.Warn("Failed to send failure notification", zap.Error(err))
	}
}

// Send sends a notification
func (n *NotificationService) Send(title, message string) error {
	if n.config == nil || !n.config.Enabled {
		n.logger.Debug("Notifications disabled, skipping",
			zap.String("title", title),
			zap.String("message", message))
		return nil
	}

	switch n.config.Method {
	case "osascript":
		return n.sendOSAScript(title, message)
	case "notify-send":
		return n.sendNotifySend(title, message)
	default:
		n.logger.Warn("Unknown notification method", zap.String("method", n.config.Method))
		return nil
	}
}

// sendOSAScript sends notification using macOS osascript
func (n *NotificationService) sendOSAScript(title, message string) error {
	script := fmt.Sprintf(`display notification "%s" with title "%s"`, message, title)
	cmd := exec.Command("osascript", "-e", script)

	if err := cmd.Run(); err != nil {
		n.logger.Error("Failed to send notification",
			zap.String("method", "osascript"),
			zap.Error(err))
		return err
	}
	return nil
}

// sendNotifySend sends notification using Linux notify-send
func (n *NotificationService) sendNotifySend(title, message string) error {
	cmd := exec.Command("notify-send", title, message)

	if err := cmd.Run(); err != nil {
		n.logger.Error("Failed to send notification",
			zap.String("method", "notify-send"),
			zap.Error(err))
		return err
	}
	return nil
}
