package logstore

// ParseLine exposes parseLine for tests.
var ParseLine = parseLine
