package catalog

import "strings"

var audioURLTokens = []string{
	"jamendo.com",
	".mp3",
	".wav",
	".ogg",
	".m4a",
	"audio",
	"trackid=",
}

// validAudioURL is a permissive shape check: http(s) scheme plus a
// recognized audio-ish token. Malformed records are dropped silently by the
// caller, not surfaced as partial errors.
func validAudioURL(url string) bool {
	if url == "" {
		return false
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return false
	}
	for _, token := range audioURLTokens {
		if strings.Contains(url, token) {
			return true
		}
	}
	return false
}
