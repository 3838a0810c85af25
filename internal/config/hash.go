package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/zeebo/blake3"
)

// checksumSuffix is appended to the config path for its lock file.
const checksumSuffix = ".checksums"

// ComputeHash computes the BLAKE3 hash of a file.
func ComputeHash(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Lock writes the current BLAKE3 hash of configPath to its checksum file,
// authorizing the current contents.
func Lock(configPath string) error {
	hash, err := ComputeHash(configPath)
	if err != nil {
		return fmt.Errorf("hash config: %w", err)
	}
	if err := os.WriteFile(configPath+checksumSuffix, []byte("blake3:"+hash+"\n"), 0o644); err != nil {
		return fmt.Errorf("write checksum file: %w", err)
	}
	return nil
}

// VerifyLock checks configPath against its checksum file. A missing checksum
// file passes (integrity locking is opt-in); a mismatch is a hard failure.
func VerifyLock(configPath string) error {
	data, err := os.ReadFile(configPath + checksumSuffix)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read checksum file: %w", err)
	}

	expected := strings.TrimSpace(string(data))
	expected = strings.TrimPrefix(expected, "blake3:")

	actual, err := ComputeHash(configPath)
	if err != nil {
		return fmt.Errorf("hash config: %w", err)
	}
	if actual != expected {
		return fmt.Errorf("config integrity check failed for %s: hash mismatch (run 'groundwork config lock' to authorize changes)", configPath)
	}
	return nil
}
