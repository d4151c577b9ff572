package config

// InvokeOperationName is the member name an invoke call site resolves.
const InvokeOperationName = "Invoke"

// Config file names, searched from the working directory upwards.
const (
	ConfigFileName    = "dynbind.yaml"
	AltConfigFileName = "dynbind.yml"
)

// Defaults applied to omitted config fields.
const (
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
	DefaultTracePath   = ".dynbind/trace.db"
	DefaultGrpcTimeout = "10s"
)
