package logger

// Console implements a console based logger.
type Console struct {
	Enabled          bool
	UseConsoleWriter bool
}

// RollingFile describes one lumberjack managed log file.
type RollingFile struct {
	Name       string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
}

// LogFile implements a file based logger.
type LogFile struct {
	Enabled bool
	Path    string

	Access RollingFile
	Error  RollingFile
	Info   RollingFile
	Trace  RollingFile
	Warn   RollingFile
}

// Log implements the logger config.
type Log struct {
	LogLevel string // trace, debug, info, warn, error.

	// EnableAccessLogToConsole if true the webservice access log is written to the console.
	// Does not overrule flag Console.Enabled!
	EnableAccessLogToConsole bool
	ReportCaller             bool

	AppName     string
	ServiceName string

	Console Console
	File    LogFile
}
