package hdds

import (
	"time"

	"github.com/hdds-io/hdds/internal/hddserr"
	"github.com/hdds-io/hdds/internal/waitset"
)

// CreateWaitset builds a new, empty waitset owned by p (§6 Waitset.create,
// §4.10). It is an explicitly owned value like every other engine
// component (§9) — nothing here is a package singleton.
func (p *Participant) CreateWaitset() (WaitsetHandle, error) {
	const op = "hdds.Participant.CreateWaitset"
	if err := p.checkOpen(op); err != nil {
		return WaitsetHandle{}, err
	}

	p.mu.Lock()
	id := p.nextWS
	p.nextWS++
	p.waitsets[id] = &waitsetEntry{ws: waitset.New()}
	p.mu.Unlock()

	return WaitsetHandle{id: id}, nil
}

func (p *Participant) waitsetFor(h WaitsetHandle) (*waitsetEntry, error) {
	const op = "hdds.Waitset"
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.waitsets[h.id]
	if !ok {
		return nil, hddserr.New(op, hddserr.NotFound, "no such waitset handle")
	}
	return e, nil
}

// AttachReader attaches r's data-available condition to ws, so Wait
// returns when r has a sample ready to Take (§4.10 "reader-has-data").
func (p *Participant) AttachReader(ws WaitsetHandle, rh ReaderHandle) error {
	e, err := p.waitsetFor(ws)
	if err != nil {
		return err
	}
	r, err := p.readerFor(rh)
	if err != nil {
		return err
	}
	e.ws.Attach(r.dataAvailable)
	return nil
}

// DetachReader reverses AttachReader.
func (p *Participant) DetachReader(ws WaitsetHandle, rh ReaderHandle) error {
	e, err := p.waitsetFor(ws)
	if err != nil {
		return err
	}
	r, err := p.readerFor(rh)
	if err != nil {
		return err
	}
	e.ws.Detach(r.dataAvailable)
	return nil
}

// AttachGraphChanged attaches the participant's discovery-graph guard
// condition (§4.10 "graph changed"), so Wait returns whenever a remote
// participant, writer, or reader is discovered or lost.
func (p *Participant) AttachGraphChanged(ws WaitsetHandle) error {
	e, err := p.waitsetFor(ws)
	if err != nil {
		return err
	}
	e.ws.Attach(p.graph.GraphGuardCondition())
	return nil
}

// AttachCondition attaches any waitset.Condition, letting a caller mix
// in its own guard or predicate conditions alongside reader/graph ones.
func (p *Participant) AttachCondition(ws WaitsetHandle, c waitset.Condition) error {
	e, err := p.waitsetFor(ws)
	if err != nil {
		return err
	}
	e.ws.Attach(c)
	return nil
}

// Wait blocks until a condition attached to ws triggers or timeout
// elapses (§6 Waitset.wait). A timeout of 0 polls without blocking; a
// negative timeout waits indefinitely.
func (p *Participant) Wait(ws WaitsetHandle, timeout time.Duration) ([]waitset.Condition, TakeStatus, error) {
	e, err := p.waitsetFor(ws)
	if err != nil {
		return nil, TakeEmpty, err
	}
	triggered, ok := e.ws.Wait(timeout)
	if !ok {
		return nil, TakeTimeout, nil
	}
	return triggered, TakeOK, nil
}

// DispatchWaitset starts a background dispatcher that invokes handler
// with the triggered condition set every time ws wakes, as an
// alternative to an application polling Wait itself (§4.10 "per-reader
// callback dispatch mode").
func (p *Participant) DispatchWaitset(ws WaitsetHandle, handler func([]waitset.Condition)) error {
	e, err := p.waitsetFor(ws)
	if err != nil {
		return err
	}

	p.mu.Lock()
	if e.disp != nil {
		p.mu.Unlock()
		return hddserr.New("hdds.Participant.DispatchWaitset", hddserr.InvalidArgument, "waitset already dispatching")
	}
	e.disp = waitset.NewDispatcher(e.ws, handler)
	p.mu.Unlock()

	e.disp.Start()
	return nil
}

// DestroyWaitset stops any running dispatcher and releases ws.
func (p *Participant) DestroyWaitset(ws WaitsetHandle) error {
	e, err := p.waitsetFor(ws)
	if err != nil {
		return err
	}
	if e.disp != nil {
		e.disp.Stop()
	}

	p.mu.Lock()
	delete(p.waitsets, ws.id)
	p.mu.Unlock()
	return nil
}
