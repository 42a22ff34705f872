// Package notify formats monitor events for chat platforms and posts them to
// a webhook.
//
// Delivery is fire-and-forget: a failed POST is logged and dropped. It is
// never retried and never reported back to the caller, so a broken webhook
// cannot stall a backup cycle.
//
// Supported platforms are generic (the message itself), slack, discord,
// teams (a flat payload for Power Automate flows) and teams-card (an
// Adaptive Card posted directly to an incoming webhook).
package notify
