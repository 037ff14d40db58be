// Package notify delivers session notifications to users and other
// processes, and opens speech settings when the engine cannot start.
package notify
