package media

// Info holds the probed facts about a source file that the pipeline needs:
// real duration for clamping, dimensions and the container format name as
// reported by ffprobe. The output MIME type is derived from the source file
// extension, not from Format.
type Info struct {
	Duration  float64
	Width     int64
	Height    int64
	Format    string
	SizeBytes int64
}

// Frame is one still sampled from the source at a known timestamp, already
// scaled and JPEG-encoded.
type Frame struct {
	Timestamp float64
	Image     []byte
}

// Blob is an assembled media payload plus its MIME type. It only lives for the
// duration of a run; nothing is persisted.
type Blob struct {
	Bytes []byte
	MIME  string
}

var extToMIME = map[string]string{
	".mp4":  "video/mp4",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
}

// MIMEForExtension maps a container extension to its MIME type, defaulting to
// video/mp4 for anything unrecognised.
func MIMEForExtension(ext string) string {
	if mime, ok := extToMIME[ext]; ok {
		return mime
	}
	return "video/mp4"
}
