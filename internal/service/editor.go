package service

import (
	"sync"
	"time"

	"quillvault/internal/content"
	"quillvault/internal/domain/models"
)

// Editor is the view of a live editing surface the persistence engine
// binds to. Contents and the derived projections must stay consistent
// with each other at every observation.
type Editor interface {
	// Contents returns the current delta.
	Contents() models.Delta
	// PlainText returns the text projection of the current delta.
	PlainText() string
	// HTML returns the rendered markup projection of the current delta.
	HTML() string
	// SetContents replaces the document with a delta.
	SetContents(d models.Delta)
	// SetHTML replaces the document from markup when no delta is
	// available; the delta becomes empty.
	SetHTML(html string)
	// OnChange registers a listener invoked after every content change.
	OnChange(fn func())
}

// BufferEditor is the server-side editing surface behind an editor
// session: content updates arrive over the API and are held in memory
// between saves. Safe for concurrent use.
type BufferEditor struct {
	mu        sync.Mutex
	renderer  *content.Renderer
	delta     models.Delta
	plainText string
	html      string
	modified  time.Time
	listeners []func()
}

// NewBufferEditor creates an empty editor buffer.
func NewBufferEditor(renderer *content.Renderer) *BufferEditor {
	return &BufferEditor{renderer: renderer}
}

func (e *BufferEditor) Contents() models.Delta {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.delta
}

func (e *BufferEditor) PlainText() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.plainText
}

func (e *BufferEditor) HTML() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.html
}

// LastModified returns when the buffer last changed.
func (e *BufferEditor) LastModified() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.modified
}

func (e *BufferEditor) SetContents(d models.Delta) {
	e.mu.Lock()
	e.delta = d
	e.plainText = content.PlainText(d)
	e.html = e.renderer.HTML(d)
	e.modified = time.Now()
	listeners := append([]func(){}, e.listeners...)
	e.mu.Unlock()

	// Listeners run outside the lock: the engine's change handler takes
	// its own lock and may call back into the editor.
	for _, fn := range listeners {
		fn()
	}
}

func (e *BufferEditor) SetHTML(html string) {
	e.mu.Lock()
	e.delta = models.Delta{}
	e.plainText = content.TextFromHTML(html)
	e.html = html
	e.modified = time.Now()
	listeners := append([]func(){}, e.listeners...)
	e.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

func (e *BufferEditor) OnChange(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}
