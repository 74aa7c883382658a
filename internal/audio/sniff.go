package audio

import (
	"bytes"
	"path/filepath"
	"strings"
)

// Format is a container family recognized from content or name.
type Format string

// Recognized formats.
const (
	FormatUnknown Format = ""
	FormatWAV     Format = "wav"
	FormatMP3     Format = "mp3"
	FormatFLAC    Format = "flac"
	FormatOgg     Format = "ogg"
	FormatMP4     Format = "mp4"
)

// Sniff identifies the container from its leading bytes. Content wins over
// the declared MIME type and filename, which are only consulted when the
// bytes are inconclusive.
func Sniff(data []byte, mimeType, filename string) Format {
	switch {
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return FormatWAV
	case len(data) >= 4 && bytes.Equal(data[0:4], []byte("fLaC")):
		return FormatFLAC
	case len(data) >= 4 && bytes.Equal(data[0:4], []byte("OggS")):
		return FormatOgg
	case len(data) >= 8 && bytes.Equal(data[4:8], []byte("ftyp")):
		return FormatMP4
	case len(data) >= 3 && bytes.Equal(data[0:3], []byte("ID3")):
		return FormatMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		// MPEG audio frame sync
		return FormatMP3
	}

	return fromHints(mimeType, filename)
}

func fromHints(mimeType, filename string) Format {
	switch strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0])) {
	case "audio/wav", "audio/wave", "audio/x-wav", "audio/vnd.wave":
		return FormatWAV
	case "audio/mpeg", "audio/mp3":
		return FormatMP3
	case "audio/flac", "audio/x-flac":
		return FormatFLAC
	case "audio/ogg", "audio/opus", "audio/vorbis":
		return FormatOgg
	case "audio/mp4", "audio/aac", "audio/x-m4a":
		return FormatMP4
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".wav", ".wave":
		return FormatWAV
	case ".mp3":
		return FormatMP3
	case ".flac":
		return FormatFLAC
	case ".ogg", ".oga", ".opus":
		return FormatOgg
	case ".m4a", ".mp4", ".aac":
		return FormatMP4
	}

	return FormatUnknown
}
