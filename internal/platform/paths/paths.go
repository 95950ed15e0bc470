package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	DefaultStorageRoot   = "/var/lib/frigate-bridge"
	DefaultWorkspaceRoot = "/var/lib/frigate-bridge/workspace"
)

// ResolveStorageRoot returns the absolute path to the bridge storage directory.
func ResolveStorageRoot(configured string) string {
	if configured != "" {
		return configured
	}
	if root := os.Getenv("BRIDGE_STORAGE_ROOT"); root != "" {
		return root
	}
	return DefaultStorageRoot
}

// ResolveWorkspaceRoot returns the agent workspace directory. Media references
// delivered to the agent are expressed relative to this root.
func ResolveWorkspaceRoot(configured string) string {
	if configured != "" {
		return configured
	}
	if root := os.Getenv("BRIDGE_WORKSPACE_ROOT"); root != "" {
		return root
	}
	return DefaultWorkspaceRoot
}

// SnapshotDir is the detection snapshot store under the storage root.
func SnapshotDir(storageRoot string) string {
	return filepath.Join(storageRoot, "ai-snapshots")
}

// ClipDir is the exported clip store under the storage root.
func ClipDir(storageRoot string) string {
	return filepath.Join(storageRoot, "ai-clips")
}

// StagingDir is the staging snapshot store inside the agent workspace.
func StagingDir(workspaceRoot string) string {
	return filepath.Join(workspaceRoot, "ai-snapshots")
}

// StagingRelPath is the workspace-relative media reference for an event
// snapshot. The agent gateway rejects absolute paths in MEDIA lines, so this
// must stay relative.
func StagingRelPath(eventID string) string {
	return "./ai-snapshots/" + eventID + ".jpg"
}

// ClipRelPath is the workspace-relative media reference for a staged clip.
func ClipRelPath(eventID string) string {
	return "./ai-clips/" + eventID + ".mp4"
}

// EnsureDirs creates the bridge storage subdirectories if they don't exist.
func EnsureDirs(storageRoot, workspaceRoot string) error {
	dirs := []string{
		SnapshotDir(storageRoot),
		ClipDir(storageRoot),
		StagingDir(workspaceRoot),
		filepath.Join(workspaceRoot, "ai-clips"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// SafeJoin joins path elements and ensures the result is within the base directory (no traversal).
func SafeJoin(base string, elements ...string) (string, error) {
	for _, el := range elements {
		if filepath.IsAbs(el) {
			return "", fmt.Errorf("absolute path not allowed in elements: %s", el)
		}
	}
	joined := filepath.Join(append([]string{base}, elements...)...)

	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", err
	}
	absJoined, err := filepath.Abs(joined)
	if err != nil {
		return "", err
	}
	if absJoined != absBase && !strings.HasPrefix(absJoined, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal attempt detected: %s is outside %s", absJoined, absBase)
	}
	return absJoined, nil
}
