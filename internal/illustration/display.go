package illustration

import "sync"

// Display tracks the illustration shown for the current left chapter.
// Results for any other key are stale and dropped.
type Display struct {
	mu        sync.Mutex
	current   string
	image     *Image
	observers []func(key string, img *Image)
}

// Subscribe registers fn to receive every change of the shown image.
// img is nil when the display is cleared.
func (d *Display) Subscribe(fn func(key string, img *Image)) {
	d.mu.Lock()
	d.observers = append(d.observers, fn)
	d.mu.Unlock()
}

// SetCurrent records the key of the chapter now on the left page.
func (d *Display) SetCurrent(key string) {
	d.mu.Lock()
	if d.current == key {
		d.mu.Unlock()
		return
	}
	d.current = key
	d.image = nil
	d.mu.Unlock()
	d.notify()
}

// Current returns the current key and its image, if any.
func (d *Display) Current() (string, *Image) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current, d.image
}

// Apply shows img if key is still current. It reports whether img was shown.
func (d *Display) Apply(key string, img *Image) bool {
	d.mu.Lock()
	if key != d.current {
		d.mu.Unlock()
		return false
	}
	d.image = img
	d.mu.Unlock()
	d.notify()
	return true
}

// Clear hides the shown image.
func (d *Display) Clear() {
	d.mu.Lock()
	if d.image == nil {
		d.mu.Unlock()
		return
	}
	d.image = nil
	d.mu.Unlock()
	d.notify()
}

func (d *Display) notify() {
	d.mu.Lock()
	key, img := d.current, d.image
	observers := append([]func(string, *Image){}, d.observers...)
	d.mu.Unlock()
	for _, fn := range observers {
		fn(key, img)
	}
}
