package types

import "log/slog"

// slogAdapter wraps *slog.Logger to implement the Logger interface.
// slog.Logger satisfies Info/Warn/Error directly but With returns
// *slog.Logger, not Logger, so an adapter is necessary.
type slogAdapter struct {
	logger *slog.Logger
}

// NewSlogLogger wraps an *slog.Logger as a Logger.
func NewSlogLogger(logger *slog.Logger) Logger {
	return &slogAdapter{logger: logger}
}

func (a *slogAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *slogAdapter) With(args ...any) Logger {
	return &slogAdapter{logger: a.logger.With(args...)}
}
