package proto

import (
	"github.com/mfsd/mfsd/engine"
	"github.com/mfsd/mfsd/mfserrors"
)

// Dispatcher parses a request frame, routes it to the engine, and formats
// the reply frame. It owns the durability discipline from the design
// notes: "persist then reply" is centralized here, in one place, so no
// individual handler can forget to flush before a success reply goes out.
type Dispatcher struct {
	Engine *engine.Engine
}

// NewDispatcher builds a Dispatcher over e.
func NewDispatcher(e *engine.Engine) *Dispatcher {
	return &Dispatcher{Engine: e}
}

// Result is what Handle produces for one request frame.
type Result struct {
	// Response is the datagram to send back to the requester.
	Response []byte
	// Shutdown is true if this request was a successful SHUTDOWN: the
	// caller should send Response and then terminate the process.
	Shutdown bool
	// Fatal is set when an IO_FATAL condition was observed; the caller
	// must abort the server rather than continue serving requests.
	Fatal error
}

// Handle parses data, dispatches it to the engine, and returns the reply
// to send. Malformed or unrecognized frames get a best-effort failure
// reply without touching the engine or terminating the server, per the
// dispatcher's contract.
func (d *Dispatcher) Handle(data []byte) Result {
	blockSize := d.Engine.Image.Superblock.BlockSize
	req, err := Parse(data, blockSize)
	if err != nil {
		return Result{Response: []byte("-1")}
	}

	switch req.Verb {
	case Lookup:
		inum, err := d.Engine.Lookup(req.Pinum, req.Name)
		return d.finish(FormatLookup(inum, err), err)

	case Stat:
		inodeType, size, err := d.Engine.Stat(req.Inum)
		var direct0 int32
		if err == nil {
			direct0 = d.Engine.FirstDataPointer(req.Inum)
		}
		return d.finish(FormatStat(inodeType, size, direct0, err), err)

	case Creat:
		err := d.Engine.Creat(req.Pinum, req.Type, req.Name)
		return d.finishMutating(FormatSimple(err), err)

	case Unlink:
		err := d.Engine.Unlink(req.Pinum, req.Name)
		return d.finishMutating(FormatSimple(err), err)

	case Write:
		err := d.Engine.Write(req.Inum, req.Payload, req.Block)
		return d.finishMutating(FormatSimple(err), err)

	case Read:
		payload, err := d.Engine.Read(req.Inum, req.Block)
		return d.finish(FormatRead(payload, err), err)

	case Shutdown:
		syncErr := d.Engine.Image.Sync()
		if syncErr != nil {
			return Result{Response: FormatSimple(syncErr), Fatal: syncErr}
		}
		return Result{Response: FormatSimple(nil), Shutdown: true}

	default:
		return Result{Response: []byte("-1")}
	}
}

// finish wraps a read-only operation's reply, surfacing IO_FATAL errors
// to the caller without otherwise treating them specially.
func (d *Dispatcher) finish(response []byte, err error) Result {
	if mfserrors.IsFatal(err) {
		return Result{Response: response, Fatal: err}
	}
	return Result{Response: response}
}

// finishMutating is the mutating-request path: on success it forces a
// sync before declaring victory, exactly as the durability contract
// requires; on IO_FATAL it aborts.
func (d *Dispatcher) finishMutating(response []byte, opErr error) Result {
	if mfserrors.IsFatal(opErr) {
		return Result{Response: response, Fatal: opErr}
	}
	if opErr != nil {
		return Result{Response: response}
	}
	if syncErr := d.Engine.Image.Sync(); syncErr != nil {
		return Result{Response: []byte("-1"), Fatal: syncErr}
	}
	return Result{Response: response}
}
