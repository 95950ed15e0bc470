package frigate

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"
)

// StageSnapshot copies a snapshot into the agent workspace so relative MEDIA
// references resolve. Paths include the event id, so concurrent events never
// collide.
func StageSnapshot(src, stagingDir, name string) (string, error) {
	if err := os.MkdirAll(stagingDir, 0750); err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}
	dest := filepath.Join(stagingDir, name)

	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("open snapshot %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create staged copy %s: %w", dest, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("stage snapshot %s: %w", dest, err)
	}
	return dest, nil
}

// SweepStaging removes staged files older than ttl. The detection store keeps
// its own copies subject to the NVR retention policy; only the workspace
// duplicates are swept.
func SweepStaging(dir string, ttl time.Duration) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-ttl)
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, e.Name())); err == nil {
				removed++
			}
		}
	}
	if removed > 0 {
		log.Printf("[INFO] Staging: swept %d expired files from %s", removed, dir)
	}
}
