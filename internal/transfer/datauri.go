package transfer

import (
	"encoding/base64"
	"net/http"
	"strings"
)

// ToDataURI embeds data as a base64 data URI, the form the prediction API
// accepts for input images.
func ToDataURI(data []byte, mime string) string {
	mime = strings.TrimSpace(mime)
	if mime == "" {
		mime = SniffMIME(data)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// SniffMIME guesses the media type of an artifact from its first bytes.
func SniffMIME(data []byte) string {
	mime := http.DetectContentType(data)
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}
	return mime
}
