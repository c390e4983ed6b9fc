package orchestrator

// join fires once both the configuration identifier and the widget ready
// signal are known, in either order. It is owned by the event loop.
type join struct {
	identifier string
	haveID     bool
	ready      bool
	fired      bool
}

// setIdentifier records the identifier and reports whether to fire now.
func (j *join) setIdentifier(id string) bool {
	j.identifier = id
	j.haveID = true
	return j.fire()
}

// setReady records the ready signal and reports whether to fire now.
func (j *join) setReady() bool {
	j.ready = true
	return j.fire()
}

func (j *join) fire() bool {
	if j.fired || !j.haveID || !j.ready {
		return false
	}
	j.fired = true
	return true
}
