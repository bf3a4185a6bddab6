// Package broadcast provides generic in-process publish/subscribe.
//
// MemoryBroadcaster delivers each message to every active subscriber without
// blocking: a subscriber whose buffer is full misses the message. The in-app
// notification channel keeps one broadcaster per user, and connected clients
// subscribe to it for live updates.
package broadcast
