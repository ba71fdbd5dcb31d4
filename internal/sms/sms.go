// Package sms sends transactional SMS through Kavenegar. Template messages
// go through the lookup endpoint; free-form messages through send.
package sms

import "context"

// Gateway abstracts the SMS provider so workflow handlers can be tested
// without network access.
type Gateway interface {
	// Lookup sends a templated message. token fills {token}, token2 fills
	// {token2} in the template registered with the provider.
	Lookup(ctx context.Context, receptor, token, token2, template string) error
	// Send delivers a free-form message from the given sender line.
	Send(ctx context.Context, receptor, message, sender string) error
}
