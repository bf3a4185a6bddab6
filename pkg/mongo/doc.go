// Package mongo manages the MongoDB connection behind the analytics event
// log. Configuration comes from MONGODB_* environment variables; Connect
// retries until the server answers a ping and Healthcheck plugs into the
// ops server.
package mongo
