package runtime

import (
	"os"
	"path/filepath"
)

// writeCredentialFile writes value to a private temp file scoped to
// agentName, for short-lived bind-mounting into a container. Permissions
// are 0600 so only the owning process can read it before the mount takes
// effect.
func writeCredentialFile(agentName, value string) (string, error) {
	dir := filepath.Join(os.TempDir(), "herdctl-cred")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(dir, agentName+"-*")
	if err != nil {
		return "", err
	}
	path := f.Name()
	if _, err := f.WriteString(value); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	if err := os.Chmod(path, 0o600); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// removeCredentialFile deletes a credential file created by
// writeCredentialFile, ignoring absence.
func removeCredentialFile(path string) {
	os.Remove(path)
}
