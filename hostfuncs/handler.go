package hostfuncs

import (
	"context"
)

// MessageHandler handles one guest-to-host call. message is the UTF-8 content
// of the buffer the guest passed; the buffer has already been freed.
type MessageHandler func(ctx context.Context, message string) error

// SinkHandler adapts a (source, message) log sink into a MessageHandler.
func SinkHandler(source string, log func(source, message string)) MessageHandler {
	return func(_ context.Context, message string) error {
		log(source, message)
		return nil
	}
}
