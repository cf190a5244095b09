package machine

// Try executes body in a protected region described by the clause list at
// clauseListID (0 for a region without clauses). If body completes, the
// region is exited and Try returns the error returned by body. If a fault is
// dispatched to the region, body does not complete: execution resumes by
// calling landing with the fault and the clause that matched, outside of the
// region, and Try returns the error returned by landing.
//
// A landing that ran a cleanup clause should call ResumeUnwind to continue
// the dispatch, and a landing for a filter clause should call
// CallUnexpected.
func (th *Thread) Try(clauseListID uint32, body func() error, landing func(Result) error) error {
	th.init()

	fr := th.push(clauseListID, false)
	landed, err := th.protect(fr, body)
	if !landed {
		return err
	}
	return landing(fr.Result())
}

// protect runs body with fr as the innermost region. It returns true if a
// fault was dispatched to fr, in which case the region stack was already
// unwound by the dispatch. Otherwise fr is popped.
func (th *Thread) protect(fr *Frame, body func() error) (landed bool, err error) {
	cp := fr.Checkpoint()

	var done bool
	defer func() {
		if done {
			return
		}

		r := recover()
		if t, ok := r.(transfer); ok {
			if t.to == cp {
				landed = true
				return
			}
			// dispatched to an enclosing region, the stack is already unwound
			panic(r)
		}

		// the region is exited by a foreign panic (or runtime.Goexit)
		th.unwindTo(fr.next)
		if r != nil {
			panic(r)
		}
	}()

	err = body()
	done = true
	th.pop(fr)
	return false, err
}
