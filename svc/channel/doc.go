// Package channel delivers notifications over EMAIL, SMS, PUSH, IN_APP and
// WEBHOOK.
//
// BuildPayload turns a notification and its recipient into one of the
// closed set of Payload types. A Registry routes each payload to the Sender
// registered for its channel. Every failure comes back as a *DeliveryError
// that says whether a retry can help.
//
// Adapters:
//
//   - Email wraps pkg/email (Postmark, SMTP or the dev file sender).
//   - SMSGateway posts signed JSON to an HTTP SMS gateway.
//   - Push sends through Firebase Cloud Messaging.
//   - InApp publishes to per-user in-process broadcasters.
//   - Webhook posts signed JSON to the user's webhook URL.
//
// RateLimited and Timeout decorate any Sender.
package channel
