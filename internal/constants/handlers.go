package constants

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for event channels
	EventChannelBuffer = 100
)

// File upload constants
const (
	// MaxUploadSize is the maximum file upload size in bytes (20MB)
	MaxUploadSize = 20 << 20
)

// Dashboard constants
const (
	// StatsCacheSeconds is how long computed dashboard stats are reused
	StatsCacheSeconds = 10

	// MaxFinishedSessions is the number of finished recognition sessions kept in memory
	MaxFinishedSessions = 20
)
