// Package logger builds the service-wide *slog.Logger.
//
// Request-scoped values such as the request id or the session user, registered
// through WithContextExtractors, are attached to every record logged with a
// context. Attributes named password, token, secret, signature or
// authorization are redacted:
//
//	log := logger.New(
//	    logger.WithEnvironment("production", "labgrid"),
//	    logger.WithContextExtractors(requestid.LoggerExtractor()),
//	)
//	log.InfoContext(ctx, "plan transition applied",
//	    logger.UserID(acc.ID),
//	    logger.Plan(string(acc.PlanType)),
//	)
//
// Attribute helpers in attr.go keep key names consistent across packages.
package logger
