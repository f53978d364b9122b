package libsql

import "strings"

// Version is reported to remote servers as part of the client version.
const Version = "0.1.0"

// versionString identifies this client for the given protocol, e.g.
// libsql-go-remote-0.1.0.
func versionString(protocol string) string {
	return "libsql-go-" + protocol + "-" + Version
}

// IsRemotePath reports whether path names a remote database.
func IsRemotePath(path string) bool {
	return strings.HasPrefix(path, "libsql://") ||
		strings.HasPrefix(path, "http://") ||
		strings.HasPrefix(path, "https://")
}

// redactPath drops any query string, which may carry credentials, so the
// path can be logged.
func redactPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}
