package constants

import (
	"bytes"
	"strings"
)

// MediaTypePDF is the only media type accepted for uploads.
const MediaTypePDF = "application/pdf"

// MediaTypeXLSX is served by the export endpoint.
const MediaTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// UploadField is the multipart field carrying the document.
const UploadField = "file"

var pdfMagic = []byte("%PDF-")

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// NormalizeMediaType drops parameters and lowercases a Content-Type value.
func NormalizeMediaType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

// LooksLikePDF checks the leading magic bytes, tolerating a short preamble.
func LooksLikePDF(head []byte) bool {
	if len(head) > 1024 {
		head = head[:1024]
	}
	return bytes.Contains(head, pdfMagic)
}
