// Package misc holds small helpers shared by the auth and store packages.
package misc

import (
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

var credentialSeparator = strings.Repeat("-", 67)

// LogSavingCredentials emits a consistent log message when persisting auth material.
// location is a file path, a table name or a remote URL depending on the backend.
func LogSavingCredentials(backend, location string) {
	if location == "" {
		return
	}
	if backend == "file" || backend == "sqlite" {
		location = filepath.Clean(location)
	}
	log.WithField("store", backend).Debugf("saving credentials to %s", location)
}

// LogCredentialSeparator adds a visual separator to group auth processing logs.
func LogCredentialSeparator() {
	log.Debug(credentialSeparator)
}
