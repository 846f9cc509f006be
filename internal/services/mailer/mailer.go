// Package mailer defines the e-mail sending contract shared by the real and test mailers.
package mailer

import (
	"context"
)

// Mailer defines the interface for email sending functionality
type Mailer interface {
	// SendEmail renders templateName with data and sends it to a single recipient
	SendEmail(ctx context.Context, to, subject, templateName string, data map[string]interface{}) error

	// IsEnabled returns whether email functionality is enabled
	IsEnabled() bool
}
