package database

import "errors"

var (
	// ErrStorageMissing is returned when a required store file does not exist yet,
	// for example running the classifier before training.
	ErrStorageMissing = errors.New("required storage is missing")

	// ErrDeviceUnavailable is returned when the camera cannot be opened or keeps failing.
	ErrDeviceUnavailable = errors.New("camera device unavailable")

	// ErrNoFaceDetected is returned when a registration image contains no face.
	ErrNoFaceDetected = errors.New("no face detected")

	// ErrMultipleFacesDetected is returned when a registration image contains more than one face.
	ErrMultipleFacesDetected = errors.New("multiple faces detected")

	// ErrNoTrainingData is returned when no face samples exist for training.
	ErrNoTrainingData = errors.New("no training data found")

	// ErrInvalidStudent is returned when registration input fails validation.
	ErrInvalidStudent = errors.New("invalid student")
)
