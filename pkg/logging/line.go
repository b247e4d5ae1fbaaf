package logging

import (
	"encoding/json"
	"log"
	"os"

	golog "github.com/fclairamb/go-log"
)

// LineLogger writes one line per event to stderr. Trace and Debug are
// dropped unless Verbose is set; Quiet drops Info too.
type LineLogger struct {
	Verbose bool
	Quiet   bool
}

func (l LineLogger) log(level, event string, keyvals ...interface{}) {
	k, _ := json.Marshal(keyvals)

	log.New(os.Stderr, "", log.LstdFlags).Println(level, event, string(k))
}

func (l LineLogger) Trace(event string, keyvals ...interface{}) {
	if l.Verbose {
		l.log("TRACE", event, keyvals...)
	}
}

func (l LineLogger) Debug(event string, keyvals ...interface{}) {
	if l.Verbose {
		l.log("DEBUG", event, keyvals...)
	}
}

func (l LineLogger) Info(event string, keyvals ...interface{}) {
	if !l.Quiet {
		l.log("INFO", event, keyvals...)
	}
}

func (l LineLogger) Warn(event string, keyvals ...interface{}) {
	l.log("WARN", event, keyvals...)
}

func (l LineLogger) Error(event string, keyvals ...interface{}) {
	l.log("ERROR", event, keyvals...)
}

func (l LineLogger) With(keyvals ...interface{}) golog.Logger {
	return l
}
