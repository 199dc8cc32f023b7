package capture

import "sync"

// captureRecord is the rendezvous between a capture command and the
// object event that delivers its image. It has its own lock so the event
// handler, which runs while the device lock is held by the pumping caller,
// never touches the device lock.
type captureRecord struct {
	mu       sync.Mutex
	armed    bool
	complete bool
	image    []byte
	err      error
}

func (r *captureRecord) arm() {
	r.mu.Lock()
	r.armed, r.complete, r.image, r.err = true, false, nil, nil
	r.mu.Unlock()
}

func (r *captureRecord) disarm() {
	r.mu.Lock()
	r.armed, r.complete, r.image, r.err = false, false, nil, nil
	r.mu.Unlock()
}

func (r *captureRecord) isArmed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.armed && !r.complete
}

func (r *captureRecord) done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.complete
}

// finish completes an armed record. Empty image data without an error is
// recorded as ErrNoData. It reports false when nothing was waiting.
func (r *captureRecord) finish(image []byte, err error) bool {
	if err == nil && len(image) == 0 {
		err = ErrNoData
	}
	if err != nil {
		image = nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.armed || r.complete {
		return false
	}
	r.complete, r.image, r.err = true, image, err
	return true
}

// take consumes a completed record. armed is false when no capture was
// started since the last consumption.
func (r *captureRecord) take() (image []byte, complete, armed bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.armed {
		return nil, false, false, nil
	}
	if !r.complete {
		return nil, false, true, nil
	}
	image, err = r.image, r.err
	r.armed, r.complete, r.image, r.err = false, false, nil, nil
	return image, true, true, err
}

// movieRecord collects the movie file downloaded after recording stops.
type movieRecord struct {
	mu       sync.Mutex
	complete bool
	path     string
	err      error
}

func (r *movieRecord) reset() {
	r.mu.Lock()
	r.complete, r.path, r.err = false, "", nil
	r.mu.Unlock()
}

func (r *movieRecord) done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.complete
}

func (r *movieRecord) finish(path string, err error) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.complete {
		return false
	}
	r.complete, r.path, r.err = true, path, err
	return true
}

func (r *movieRecord) take() (path string, complete bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.complete {
		return "", false, nil
	}
	path, err = r.path, r.err
	r.complete, r.path, r.err = false, "", nil
	return path, true, err
}
