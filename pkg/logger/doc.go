// Package logger provides the structured logging interface used across the
// photo backup pipeline.
//
// It wraps zerolog and supports:
//   - Levels (debug, info, warn, error)
//   - Fields attached to derived loggers (WithField, WithFields, WithError)
//   - Colored console output on stderr, optionally duplicated to a file
//   - A process-wide logger (Initialize, GetLogger)
//
// Basic Usage:
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	logger.WithField("owner", ownerID).Info("Starting backup")
//
// Components take a Logger in their constructors and fall back to
// GetLogger when given nil. Tests use NewTestLogger to assert on warnings.
package logger
