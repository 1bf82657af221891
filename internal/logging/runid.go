package logging

import (
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const runIDField = "run_id"

// NewRunID returns a short identifier correlating the log lines of one invocation.
func NewRunID() string {
	return strings.SplitN(uuid.NewString(), "-", 2)[0]
}

// runIDHook stamps every entry with the invocation's run id.
type runIDHook struct {
	id string
}

func (h *runIDHook) Levels() []log.Level { return log.AllLevels }

func (h *runIDHook) Fire(entry *log.Entry) error {
	if _, ok := entry.Data[runIDField]; !ok {
		entry.Data[runIDField] = h.id
	}
	return nil
}

// AttachRunID registers a hook adding id to every entry of logger.
func AttachRunID(logger *log.Logger, id string) {
	if logger == nil || id == "" {
		return
	}
	logger.AddHook(&runIDHook{id: id})
}
