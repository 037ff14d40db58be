// Package audio handles the 16-bit PCM and WAV data that speech engines
// produce: parsing and writing WAV files, joining the parts of a long
// synthesis, and converting sample rates for playback.
package audio
