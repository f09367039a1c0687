// Package outcome decides whether a test session passed by reducing the log
// records the test server wrote during that session.
package outcome

import "time"

// Record is one structured log entry written during a test session. Field
// names follow the columns of the server's ir_logging table.
type Record struct {
	Time    time.Time `json:"time,omitzero"`
	Level   string    `json:"level"`
	Name    string    `json:"name,omitempty"`
	Message string    `json:"message"`
	DBName  string    `json:"dbname,omitempty"`
	Type    string    `json:"type,omitempty"`
	Path    string    `json:"path,omitempty"`
	Func    string    `json:"func,omitempty"`
	ID      int64     `json:"id,omitempty"`
	Line    int       `json:"line,omitempty"`
}
