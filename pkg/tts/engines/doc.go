// Package engines implements tts.SpeechEngine on top of command-line
// synthesizers (piper, espeak-ng).
package engines
