package robot

import (
	"os"
	"path/filepath"

	"github.com/rendis/uiflow/pkg/schema"
)

// WriteArtifact writes the script to <dir>/generated.robot and returns the
// artifact path. The write goes through a temp file and rename so the
// runner can never observe a partially written script.
func WriteArtifact(dir, script string) (string, error) {
	path := filepath.Join(dir, ArtifactName)

	tmp, err := os.CreateTemp(dir, ArtifactName+".tmp*")
	if err != nil {
		return "", schema.NewErrorf(schema.ErrCodeGeneration, "create artifact temp file: %v", err).WithCause(err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(script); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", schema.NewErrorf(schema.ErrCodeGeneration, "write artifact: %v", err).WithCause(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", schema.NewErrorf(schema.ErrCodeGeneration, "close artifact temp file: %v", err).WithCause(err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", schema.NewErrorf(schema.ErrCodeGeneration, "publish artifact: %v", err).WithCause(err)
	}
	return path, nil
}
