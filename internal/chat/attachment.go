package chat

import (
	"path/filepath"
	"strings"
)

// AcceptedExtensions is the file picker's type filter.
var AcceptedExtensions = []string{".pdf", ".doc", ".docx"}

// AcceptAttribute renders AcceptedExtensions for an <input type="file">.
func AcceptAttribute() string {
	return strings.Join(AcceptedExtensions, ",")
}

// IsAcceptedFile reports whether name carries one of the accepted extensions.
func IsAcceptedFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, a := range AcceptedExtensions {
		if ext == a {
			return true
		}
	}
	return false
}

func contentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return "application/pdf"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	}
	return "application/octet-stream"
}
