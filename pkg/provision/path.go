package provision

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// SetCondaEnvInPath removes any existing conda environment bin
// directories from the given PATH string, then prepends those of the
// given prefix. Passing an empty prefix just strips conda bin
// directories.
func SetCondaEnvInPath(path, prefix string) string {
	if runtime.GOOS == "windows" {
		return setCondaEnvInPath(path, prefix, windowsBindirs, isCondaBindirWindows)
	}
	return setCondaEnvInPath(path, prefix, unixBindirs, isCondaBindirUnix)
}

func setCondaEnvInPath(path, prefix string, bindirs func(string) []string, isBindir func(string) bool) string {
	var elements []string
	if prefix != "" {
		elements = bindirs(prefix)
	}
	for _, element := range strings.Split(path, string(os.PathListSeparator)) {
		if element != "" && !isBindir(element) {
			elements = append(elements, element)
		}
	}
	return strings.Join(elements, string(os.PathListSeparator))
}

func containsCondaMeta(path string) bool {
	info, err := os.Stat(filepath.Join(path, "conda-meta"))
	return err == nil && info.IsDir()
}

func unixBindirs(prefix string) []string {
	return []string{filepath.Join(prefix, "bin")}
}

func isCondaBindirUnix(path string) bool {
	path = strings.TrimSuffix(path, "/")
	if !strings.HasSuffix(path, "/bin") {
		return false
	}
	return containsCondaMeta(filepath.Dir(path))
}

// windowsBindirs follows the order activate.bat uses:
// prefix, Scripts, Library\bin.
func windowsBindirs(prefix string) []string {
	return []string{
		prefix,
		filepath.Join(prefix, "Scripts"),
		filepath.Join(prefix, "Library", "bin"),
	}
}

func pathEndsWithWindows(path, suffix string) bool {
	path = strings.TrimRight(path, `\/`)
	replaced := strings.ReplaceAll(suffix, `\`, "/")
	return strings.HasSuffix(path, `\`+suffix) ||
		strings.HasSuffix(path, "/"+suffix) ||
		strings.HasSuffix(path, `\`+replaced) ||
		strings.HasSuffix(path, "/"+replaced)
}

func isCondaBindirWindows(path string) bool {
	path = strings.TrimRight(path, `\/`)
	if containsCondaMeta(path) {
		return true
	}
	if pathEndsWithWindows(path, `Library\bin`) {
		return containsCondaMeta(filepath.Dir(filepath.Dir(path)))
	}
	if pathEndsWithWindows(path, "Scripts") {
		return containsCondaMeta(filepath.Dir(path))
	}
	return false
}
