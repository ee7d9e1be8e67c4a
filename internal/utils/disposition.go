package utils

import (
	"mime"
	"path"
)

// AttachmentDisposition builds an RFC 6266 Content-Disposition value for a download.
// Non-ASCII names are carried in the RFC 2231 filename* form.
func AttachmentDisposition(filename string) string {
	name := path.Base(filename)
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment"
}
