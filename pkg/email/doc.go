// Package email sends plain transactional email for the EMAIL channel.
//
// Three EmailSender implementations are available: Postmark
// (github.com/mrz1836/postmark), an SMTP relay (gopkg.in/mail.v2) and a
// DevSender that writes messages to disk. New chooses one from Config.
// IsPermanent separates rejected recipients and invalid input, which should
// not be retried, from transient provider failures.
package email
