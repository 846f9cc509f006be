package serviceinterfaces

import "context"

// MediaInspector flags explicit images attached to safety reports
type MediaInspector interface {
	// Inspect reports whether the encoded image looks explicit.
	// Undecodable data returns an INVALID_FORMAT error.
	Inspect(ctx context.Context, data []byte) (bool, error)
}
