// Package sms implements the SMS channel adapter: phone number
// normalization with memoization, GSM-7/UCS-2 encoding detection and
// carrier segment accounting, compliance footer assembly, layered rate
// limiting and inbound STOP/START keyword handling.
//
// Providers plug in through the Sender interface; Amazon SNS and a logging
// development sender ship with the package.
package sms
