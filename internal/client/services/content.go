package services

import (
	"mime"
	"net/http"
	"strings"
)

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/heic": ".heic",
	"image/gif":  ".gif",
	"video/mp4":  ".mp4",
}

// contentTypeOf returns declared (without parameters) or, when empty, the
// type sniffed from payload.
func contentTypeOf(payload []byte, declared string) string {
	ct := declared
	if ct == "" {
		ct = http.DetectContentType(payload)
	}
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		return mt
	}
	return strings.TrimSpace(strings.SplitN(ct, ";", 2)[0])
}

func extensionFor(contentType string) string {
	if ext, ok := extensions[contentType]; ok {
		return ext
	}
	return ".bin"
}

// RemotePath is the object-store key of an evidence payload.
func RemotePath(actorID, evidenceID, contentType string) string {
	return actorID + "/" + evidenceID + extensionFor(contentType)
}
