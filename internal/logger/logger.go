package logger

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Flags is the layout used for every log line
const Flags = log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile

// Init points the standard logger at the file at path, appending to it.
// The caller closes the returned file.
func Init(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	log.SetOutput(f)
	log.SetFlags(Flags)
	return f, nil
}

// New returns a logger writing to w with the given prefix. A nil writer
// uses whatever the standard logger writes to.
func New(w io.Writer, prefix string) *log.Logger {
	if w == nil {
		w = log.Writer()
	}
	return log.New(w, prefix, Flags)
}
