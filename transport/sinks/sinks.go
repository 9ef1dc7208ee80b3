// Package sinks registers all built-in event sinks with the sink registry.
// Import it for its side effects:
//
//	import _ "github.com/drblury/maestro/transport/sinks"
//
// Importing individual sink packages instead keeps unused broker SDKs out of
// the binary.
package sinks

import (
	_ "github.com/drblury/maestro/transport/aws"
	_ "github.com/drblury/maestro/transport/channel"
	_ "github.com/drblury/maestro/transport/http"
	_ "github.com/drblury/maestro/transport/io"
	_ "github.com/drblury/maestro/transport/jetstream"
	_ "github.com/drblury/maestro/transport/kafka"
	_ "github.com/drblury/maestro/transport/nats"
	_ "github.com/drblury/maestro/transport/rabbitmq"
)
