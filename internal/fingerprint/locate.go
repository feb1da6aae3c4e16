package fingerprint

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// ErrFpcalcMissing is returned when no fpcalc binary can be found.
var ErrFpcalcMissing = errors.New("fingerprint: fpcalc not found")

// Locator resolves the fpcalc binary. Resolution order: the configured
// override, a platform-named binary next to the executable, then PATH.
type Locator struct {
	// Override, when set, is used verbatim.
	Override string
}

// Locate returns the fpcalc path to invoke, or ErrFpcalcMissing.
func (l *Locator) Locate() (string, error) {
	if l.Override != "" {
		if _, err := os.Stat(l.Override); err != nil {
			return "", fmt.Errorf("%w: configured path %s: %v", ErrFpcalcMissing, l.Override, err)
		}
		return l.Override, nil
	}

	if path := bundledPath(); path != "" {
		return path, nil
	}

	path, err := exec.LookPath("fpcalc")
	if err != nil {
		return "", ErrFpcalcMissing
	}
	return path, nil
}

// Available reports whether fpcalc can be resolved at all.
func (l *Locator) Available() bool {
	_, err := l.Locate()
	return err == nil
}

// bundledPath looks for fpcalc-<os>-<arch> next to the running executable
// and makes sure it is executable on unix.
func bundledPath() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	name := fmt.Sprintf("fpcalc-%s-%s", runtime.GOOS, runtime.GOARCH)
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	path := filepath.Join(filepath.Dir(exe), name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return ""
	}
	if runtime.GOOS != "windows" && info.Mode()&0o111 == 0 {
		if err := os.Chmod(path, info.Mode()|0o755); err != nil {
			return ""
		}
	}
	return path
}
