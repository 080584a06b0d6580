package realtime

// Named realtime streams used across the platform.
const (
	StreamNotifications = "notifications"
	StreamThreads       = "threads"
)

// KnownStreams lists every stream a client may subscribe to.
func KnownStreams() map[string]struct{} {
	return map[string]struct{}{
		StreamNotifications: {},
		StreamThreads:       {},
	}
}
