// Package email implements the email channel adapter: recipient resolution,
// template or plain-to-HTML body preparation, header merging, optional
// open/click/unsubscribe tracking injection, provider transport with
// permanent-failure classification, and bounce/complaint/opt-out handling.
//
// Providers plug in through the Sender interface; Postmark, Amazon SES and
// a logging development sender ship with the package.
package email
