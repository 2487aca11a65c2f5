// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Matching constants
const (
	// DefaultMatchTolerance is the maximum Euclidean distance between two face
	// descriptors for them to be considered the same person
	DefaultMatchTolerance = 0.5

	// DefaultClassifierThreshold is the maximum classifier confidence accepted.
	// Lower confidence values mean a closer match.
	DefaultClassifierThreshold = 70.0

	// DescriptorSize is the length of a face descriptor vector
	DescriptorSize = 128

	// IndexCandidates is the number of candidates pulled from the HNSW index
	// before exact re-ranking
	IndexCandidates = 8
)

// Session constants
const (
	// DefaultMaxFrameFailures is the number of consecutive failed frame reads
	// after which a recognition session ends
	DefaultMaxFrameFailures = 30

	// DefaultSampleCount is the number of face crops captured per student
	DefaultSampleCount = 50

	// TrainingImageSize is the width and height of normalized face crops
	TrainingImageSize = 200
)

// Ledger constants
const (
	// DateLayout is the layout of the ledger date column
	DateLayout = "2006-01-02"

	// TimeLayout is the layout of the ledger time column
	TimeLayout = "15:04:05"

	// StatusPresent is the only status value written to the ledger
	StatusPresent = "P"

	// UnknownLabel is shown for faces that match no known student
	UnknownLabel = "Unknown"
)

// LedgerHeader is the canonical column order of the attendance ledger.
var LedgerHeader = []string{"date", "name", "full_name", "branch", "time", "status"}

// File names inside the data directory
const (
	StudentsFile     = "students.json"
	AttendanceFile   = "attendance.csv"
	DescriptorsFile  = "encodings.gob"
	ModelDir         = "trained_model"
	LabelsFile       = "labels.json"
	ClassifierFile   = "lbph.gob"
	RawSamplesDir    = "data/raw"
	DescriptorIndexF = "encodings.hnsw"
)
