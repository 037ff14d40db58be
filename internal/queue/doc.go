// Package queue carries synthesis requests from any number of producers to a
// single consumer. It holds at most one pending item; a newer item replaces an
// older one that has not been picked up yet.
package queue
