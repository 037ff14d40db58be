// Package tts coordinates a platform speech engine for a hosting
// application. A Session brings the engine up, funnels speak and
// synthesize-to-file requests through a single-slot queue to one consumer,
// and reports outcomes through an Observer and a Notifier.
package tts
