// Package email sends transactional email through a provider-agnostic
// EmailSender.
//
// Two senders are provided:
//   - the Postmark client for production delivery;
//   - DevSender, which writes each message to a directory for local development.
//
// Select one from configuration:
//
//	sender, err := email.FromConfig(cfg)
//	if err != nil {
//		return err
//	}
//	err = sender.SendEmail(ctx, email.SendEmailParams{
//		SendTo:   acc.Email,
//		Subject:  "Your trial has ended",
//		BodyHTML: body,
//		Tag:      "trial-expired",
//	})
//
// All senders validate parameters before sending and wrap provider failures
// in ErrFailedToSendEmail.
package email
