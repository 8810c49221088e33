package layout

import (
	"fmt"
	"os"
	"path/filepath"
)

// Writer materializes clusters as directories of hard links under Root.
type Writer struct {
	Root          string
	KeepExtension bool
}

// Materialize creates the directory for cluster index and links every ranked
// member into it. It returns the number of links created.
func (w Writer) Materialize(index int, ranked []Ranked) (int, error) {
	if len(ranked) == 0 {
		return 0, nil
	}

	dir := filepath.Join(w.Root, ClusterDirName(index))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create cluster dir %s: %w", dir, err)
	}

	linked := 0
	for _, member := range ranked {
		target := filepath.Join(dir, MemberFileName(member.Rank, member.Path, w.KeepExtension))
		if err := os.Link(member.Path, target); err != nil {
			return linked, fmt.Errorf("link %s: %w", member.Path, err)
		}
		linked++
	}

	return linked, nil
}
