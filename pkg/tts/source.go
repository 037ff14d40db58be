package tts

// InputSource is where a task reads its text from. It is either a
// CharSequence or a DocumentReference.
type InputSource interface {
	// Describe returns a short label for messages.
	Describe() string
	isInputSource()
}

// CharSequence is inline text with a human readable description.
type CharSequence struct {
	Text        string
	Description string
}

// Describe returns the description, or "text" when none was given.
func (c CharSequence) Describe() string {
	if c.Description != "" {
		return c.Description
	}
	return "text"
}

func (CharSequence) isInputSource() {}

// DocumentReference points at a document resolved through a
// DocumentProvider. Locator is a path or URI such as file:///tmp/a.md or
// nats://bucket/key.
type DocumentReference struct {
	Locator     string
	DisplayName string
}

// Describe returns the display name, falling back to the locator.
func (d DocumentReference) Describe() string {
	if d.DisplayName != "" {
		return d.DisplayName
	}
	return d.Locator
}

func (DocumentReference) isInputSource() {}

var (
	_ InputSource = CharSequence{}
	_ InputSource = DocumentReference{}
)
