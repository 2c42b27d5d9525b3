// Package logging configures log/slog for the relay and adds the helpers
// the pipeline and ops server share: request-ID aware loggers, field maps,
// and context propagation.
//
// LOG_LEVEL selects the minimum level (debug, info, warn, error) and the
// relay binary picks JSON or text output via LOG_FORMAT; both are read at
// construction time, not per record.
//
//	logger := logging.NewLogger()
//	logger.Info("relay started", slog.String("version", version))
//
// Inside a request, derive a scoped logger instead of threading IDs by hand:
//
//	logger := logging.WithRequestID(r.Context(), base)
//	logger.Info("draft parked")
package logging
