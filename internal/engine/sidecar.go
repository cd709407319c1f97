package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SidecarMetadata is persisted next to a partial download so a later run can
// validate the partial file before resuming. Removed on success and on retry
// exhaustion; deliberately kept when a transfer is cancelled.
type SidecarMetadata struct {
	ExpectedTotalSize int64  `json:"expectedTotalSize"`
	URL               string `json:"url"`
}

// sidecarPath returns outputDir/.<filename>.meta for a download at localPath.
func sidecarPath(localPath string) string {
	dir := filepath.Dir(localPath)
	return filepath.Join(dir, "."+filepath.Base(localPath)+".meta")
}

func writeSidecar(localPath string, meta SidecarMetadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encoding sidecar metadata: %w", err)
	}
	if err := os.WriteFile(sidecarPath(localPath), data, 0644); err != nil {
		return fmt.Errorf("writing sidecar metadata: %w", err)
	}
	return nil
}

func readSidecar(localPath string) (SidecarMetadata, error) {
	var meta SidecarMetadata
	data, err := os.ReadFile(sidecarPath(localPath))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("decoding sidecar metadata: %w", err)
	}
	return meta, nil
}

func removeSidecar(localPath string) error {
	err := os.Remove(sidecarPath(localPath))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
