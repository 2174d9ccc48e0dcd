package logger

// NewNopLogger creates a no-operation logger
func NewNopLogger() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Debug(string)                                     {}
func (nopLogger) Info(string)                                      {}
func (nopLogger) Warn(string)                                      {}
func (nopLogger) Error(string)                                     {}
func (n nopLogger) WithField(string, interface{}) Logger           { return n }
func (n nopLogger) WithFields(map[string]interface{}) Logger       { return n }
func (n nopLogger) WithError(error) Logger                         { return n }
func (nopLogger) DebugWithFields(string, map[string]interface{})   {}
func (nopLogger) InfoWithFields(string, map[string]interface{})    {}
func (nopLogger) WarnWithFields(string, map[string]interface{})    {}
func (nopLogger) ErrorWithFields(string, map[string]interface{})   {}
