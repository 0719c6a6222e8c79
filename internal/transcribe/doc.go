// Package transcribe runs a local whisper CLI to turn audio into text.
//
// The service writes transcripts next to the audio file unless an output
// directory is given, and parses whisper's JSON output for the plain text.
// A run function is injected in tests so no model ever loads.
package transcribe
