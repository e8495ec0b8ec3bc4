package mediatypes

// Container represents an output container format.
type Container string

const (
	// ContainerMP4 is the MP4 container.
	ContainerMP4 Container = "mp4"
	// ContainerWebM is the WebM container.
	ContainerWebM Container = "webm"
	// ContainerMKV is the Matroska container.
	ContainerMKV Container = "mkv"
	// ContainerMOV is the QuickTime container.
	ContainerMOV Container = "mov"
)

// VideoExtensions maps file extensions to whether they are accepted as
// compression input.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".wmv":  true,
	".flv":  true,
	".webm": true,
	".m4v":  true,
	".mpeg": true,
	".mpg":  true,
	".3gp":  true,
	".ts":   true,
}

// Containers maps container names to whether they are valid output targets.
var Containers = map[Container]bool{
	ContainerMP4:  true,
	ContainerWebM: true,
	ContainerMKV:  true,
	ContainerMOV:  true,
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	".mp4":  "video/mp4",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".webm": "video/webm",
	".m4v":  "video/x-m4v",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".3gp":  "video/3gpp",
	".ts":   "video/mp2t",
}

// GetMimeType returns the MIME type for a given file extension.
// The extension should be lowercase and include the leading dot (e.g., ".mp4").
// Returns "application/octet-stream" if the extension is not recognized.
func GetMimeType(ext string) string {
	if mime, ok := MimeTypes[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}

// IsVideoFile returns true if the extension represents a supported video input.
// The extension should be lowercase and include the leading dot.
func IsVideoFile(ext string) bool {
	return VideoExtensions[ext]
}

// Ext returns the file extension for a container, including the leading dot.
func (c Container) Ext() string {
	return "." + string(c)
}

// MimeType returns the MIME type for a container.
func (c Container) MimeType() string {
	return GetMimeType(c.Ext())
}

// Valid reports whether the container is a supported output target.
func (c Container) Valid() bool {
	return Containers[c]
}

