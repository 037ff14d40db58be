// Package documents resolves document references for speech tasks.
//
// Locators are plain paths, file:// URLs, or nats://bucket/key references
// into a JetStream object store. Markdown documents are reduced to their
// readable text before they are spoken.
package documents
