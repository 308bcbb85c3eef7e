package trigger

import "context"

// Waker is implemented by the workflow manager.
type Waker interface {
	Wake()
}

// LocalEmitter nudges an in-process manager. The project row is already in
// status uploaded, so the manager's next poll finds it.
type LocalEmitter struct {
	waker Waker
}

// NewLocalEmitter returns an emitter that wakes w.
func NewLocalEmitter(w Waker) *LocalEmitter {
	return &LocalEmitter{waker: w}
}

// Emit implements Emitter.
func (e *LocalEmitter) Emit(ctx context.Context, event UploadEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := event.Validate(); err != nil {
		return err
	}
	if e != nil && e.waker != nil {
		e.waker.Wake()
	}
	return nil
}
