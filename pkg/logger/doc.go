// Package logger builds the notifier's *slog.Logger and provides attribute
// helpers so that every component names the same fields the same way
// (notification_id, user_id, channel, status, template, retry_count).
//
// New takes functional options for format, level, static attributes and
// context extractors. The handler it returns is wrapped with
// LogHandlerDecorator, which appends attributes pulled from context.Context
// on every record, for example the correlation id of an inbound event.
//
//	log := logger.New(
//	    logger.WithEnvironment(environment.Production, "notifier"),
//	    logger.WithContextValue("correlation_id", ctxKey{}),
//	)
//	log.LogAttrs(ctx, slog.LevelInfo, "notification sent",
//	    logger.NotificationID(n.ID),
//	    logger.Channel(n.Channel),
//	)
//
// Error and Errors return an empty attribute for nil errors, so callers do
// not need a nil check before logging.
package logger
