// Package broadcast fans one notification out to many chats.
//
// Deliveries run concurrently under a bounded worker count and a global
// rate limit, and every recipient gets an individual outcome: one failed
// send never blocks or fails the others. Retrying a failed recipient is
// the caller's decision (the durable queue retries whole events; the
// inline path does not retry at all).
package broadcast
