package emulators

// ImageContainer describes an emulator container image and its service ports.
type ImageContainer struct {
	EmulatorImage    string
	EmulatorHTTPPort string
	EmulatorGRPCPort string
}

// GCImageContainer adds the Google Cloud project scoping shared by the
// GCS, Pub/Sub and Firestore emulators.
type GCImageContainer struct {
	ImageContainer
	ProjectID string
}
