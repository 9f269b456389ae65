// Package bot is the decision core: it routes inbound addressed messages to
// command handlers with duplicate suppression, tracks net check-ins, and
// runs the periodic pass that reconciles interval and calendar-rule
// bulletins, reconnects the TNC link and drains background job results.
package bot
