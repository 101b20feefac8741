package domain

import "time"

// PermissionStatus is the OS location permission state.
type PermissionStatus string

const (
	PermissionGranted      PermissionStatus = "granted"
	PermissionDenied       PermissionStatus = "denied"
	PermissionUndetermined PermissionStatus = "undetermined"
)

// PermissionResponse is what the device reports when asked about, or
// prompted for, location permission.
type PermissionResponse struct {
	Status      PermissionStatus `json:"status"`
	CanAskAgain bool             `json:"can_ask_again"`
}

// Accuracy is the positioning accuracy tier requested from the device.
type Accuracy int

const (
	AccuracyLowest Accuracy = iota + 1
	AccuracyLow
	AccuracyBalanced
	AccuracyHigh
	AccuracyHighest
)

// Position is a device location reading.
type Position struct {
	Coordinate GeoPoint  `json:"coordinate"`
	AccuracyM  float64   `json:"accuracy_m"`
	Timestamp  time.Time `json:"timestamp"`
}

// LastKnownOptions constrain the cached-position read.
type LastKnownOptions struct {
	MaxAge            time.Duration
	RequiredAccuracyM float64
}

// CurrentOptions constrain the fresh-position read.
type CurrentOptions struct {
	Accuracy          Accuracy
	TimeInterval      time.Duration
	DistanceIntervalM float64
}

// DefaultFallback is the city-center point used when no device position
// can be obtained.
var DefaultFallback = GeoPoint{Lat: 35.681236, Lng: 139.767125}

// LocationState is a snapshot of device positioning.
type LocationState struct {
	Coordinate      *GeoPoint        `json:"coordinate"`
	Permission      PermissionStatus `json:"permission"`
	CanRequestAgain bool             `json:"can_request_again"`
	UsingFallback   bool             `json:"using_fallback"`
	Loading         bool             `json:"loading"`
	Error           *string          `json:"error,omitempty"`
}

// HasDeviceFix reports whether the coordinate came from the device.
func (s LocationState) HasDeviceFix() bool {
	return s.Coordinate != nil && !s.UsingFallback
}

// Render is what the presentation layer draws after each viewport settle
// or location change.
type Render struct {
	Shops         []Shop  `json:"shops"`
	UsingFallback bool    `json:"using_fallback"`
	Error         *string `json:"error,omitempty"`
	IsLoading     bool    `json:"is_loading"`
}
