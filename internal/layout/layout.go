package layout

import (
	"fmt"
	"path/filepath"
	"strings"
)

const DefaultMemberExtension = ".jpg"

func ClusterDirName(index int) string {
	return fmt.Sprintf("%02d", index)
}

// MemberFileName names the file at rank within a cluster directory. Unless
// keepExtension is set every member uses DefaultMemberExtension.
func MemberFileName(rank int, sourcePath string, keepExtension bool) string {
	extension := DefaultMemberExtension
	if keepExtension {
		extension = NormalizeExtension(filepath.Ext(sourcePath))
	}

	return fmt.Sprintf("%03d%s", rank, extension)
}

func NormalizeExtension(value string) string {
	extension := strings.ToLower(strings.TrimSpace(value))
	if extension == "" || extension == "." {
		return DefaultMemberExtension
	}
	if !strings.HasPrefix(extension, ".") {
		extension = "." + extension
	}

	return extension
}
