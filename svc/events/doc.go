// Package events turns library domain events into notifications.
//
// Events arrive as JSON on a RabbitMQ topic exchange:
//
//	{"type": "loan.overdue", "userId": "u-1", "data": {"title": "Dune"}}
//
// A Dispatcher routes each event type to exactly one Handler. Most handlers
// come from a Mapping table (DefaultMappings or a YAML file read with
// LoadMappings) and create a templated notification through a Creator.
//
// The Consumer acks handled deliveries, drops malformed or unknown events
// and requeues other failures once.
package events
