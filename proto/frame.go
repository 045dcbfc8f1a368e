// Package proto parses incoming request datagrams into a tagged Request
// variant and formats Response values back into reply datagrams, per the
// wire protocol. Parsing lives in exactly one place, as the design notes
// call for, rather than ad hoc text scans scattered across the server.
package proto

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/mfsd/mfsd/fsimage"
	"github.com/mfsd/mfsd/mfserrors"
)

// Verb identifies which of the seven operations a Request names.
type Verb string

const (
	Lookup   Verb = "LOOKUP"
	Stat     Verb = "STAT"
	Creat    Verb = "CREAT"
	Unlink   Verb = "UNLINK"
	Write    Verb = "WRITE"
	Read     Verb = "READ"
	Shutdown Verb = "SHUTDOWN"
)

// Request is the parsed form of one incoming datagram.
type Request struct {
	Verb    Verb
	Pinum   int32
	Inum    int32
	Block   int32
	Name    string
	Type    fsimage.InodeType
	Payload []byte
}

// WireTypeToInode converts the wire encoding of a CREAT type argument (0
// = DIRECTORY, 1 = REGULAR_FILE) to the internal InodeType. Any other
// value is reported as invalid by the caller.
func WireTypeToInode(wire int) (fsimage.InodeType, bool) {
	switch wire {
	case 0:
		return fsimage.TypeDirectory, true
	case 1:
		return fsimage.TypeRegularFile, true
	default:
		return fsimage.TypeFree, false
	}
}

// InodeTypeToWire is the inverse of WireTypeToInode, used to format a
// STAT reply.
func InodeTypeToWire(t fsimage.InodeType) int {
	switch t {
	case fsimage.TypeDirectory:
		return 0
	case fsimage.TypeRegularFile:
		return 1
	default:
		return -1
	}
}

// Parse splits a raw datagram into a Request. WRITE frames carry a NUL
// byte after the decimal block number followed by exactly blockSize bytes
// of payload; every other verb is pure ASCII with space-separated
// arguments.
func Parse(data []byte, blockSize uint32) (Request, error) {
	if len(data) == 0 {
		return Request{}, mfserrors.ErrInvalid.WithMessage("empty request")
	}

	if bytes.HasPrefix(data, []byte("WRITE ")) {
		return parseWrite(data, blockSize)
	}

	// Every other verb is a single ASCII line with no payload.
	text := string(data)
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return Request{}, mfserrors.ErrInvalid.WithMessage("empty request")
	}

	switch Verb(fields[0]) {
	case Lookup:
		if len(fields) != 3 {
			return Request{}, mfserrors.ErrInvalid.WithMessage("malformed LOOKUP")
		}
		pinum, err := parseInt32(fields[1])
		if err != nil {
			return Request{}, err
		}
		return Request{Verb: Lookup, Pinum: pinum, Name: fields[2]}, nil

	case Stat:
		if len(fields) != 2 {
			return Request{}, mfserrors.ErrInvalid.WithMessage("malformed STAT")
		}
		inum, err := parseInt32(fields[1])
		if err != nil {
			return Request{}, err
		}
		return Request{Verb: Stat, Inum: inum}, nil

	case Creat:
		if len(fields) != 4 {
			return Request{}, mfserrors.ErrInvalid.WithMessage("malformed CREAT")
		}
		pinum, err := parseInt32(fields[1])
		if err != nil {
			return Request{}, err
		}
		wireType, err := parseInt32(fields[2])
		if err != nil {
			return Request{}, err
		}
		inodeType, ok := WireTypeToInode(int(wireType))
		if !ok {
			return Request{}, mfserrors.ErrInvalid.WithMessage("unrecognized CREAT type")
		}
		return Request{Verb: Creat, Pinum: pinum, Type: inodeType, Name: fields[3]}, nil

	case Unlink:
		if len(fields) != 3 {
			return Request{}, mfserrors.ErrInvalid.WithMessage("malformed UNLINK")
		}
		pinum, err := parseInt32(fields[1])
		if err != nil {
			return Request{}, err
		}
		return Request{Verb: Unlink, Pinum: pinum, Name: fields[2]}, nil

	case Read:
		if len(fields) != 3 {
			return Request{}, mfserrors.ErrInvalid.WithMessage("malformed READ")
		}
		inum, err := parseInt32(fields[1])
		if err != nil {
			return Request{}, err
		}
		block, err := parseInt32(fields[2])
		if err != nil {
			return Request{}, err
		}
		return Request{Verb: Read, Inum: inum, Block: block}, nil

	case Shutdown:
		return Request{Verb: Shutdown}, nil

	default:
		return Request{}, mfserrors.ErrInvalid.WithMessage("unknown verb: " + fields[0])
	}
}

func parseWrite(data []byte, blockSize uint32) (Request, error) {
	nul := bytes.IndexByte(data, 0)
	if nul < 0 {
		return Request{}, mfserrors.ErrInvalid.WithMessage("malformed WRITE: missing NUL separator")
	}
	header := strings.Fields(string(data[:nul]))
	if len(header) != 3 {
		return Request{}, mfserrors.ErrInvalid.WithMessage("malformed WRITE header")
	}
	inum, err := parseInt32(header[1])
	if err != nil {
		return Request{}, err
	}
	block, err := parseInt32(header[2])
	if err != nil {
		return Request{}, err
	}
	payload := data[nul+1:]
	if uint32(len(payload)) != blockSize {
		return Request{}, mfserrors.ErrInvalid.WithMessage(
			fmt.Sprintf("WRITE payload is %d bytes, expected %d", len(payload), blockSize))
	}
	return Request{Verb: Write, Inum: inum, Block: block, Payload: payload}, nil
}

func parseInt32(s string) (int32, error) {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, mfserrors.ErrInvalid.WithMessage("expected a decimal integer, got " + s)
	}
	return int32(n), nil
}

////////////////////////////////////////////////////////////////////////////////
// Response formatting

// FormatLookup renders a LOOKUP reply: the inum on success, "-1" on
// failure.
func FormatLookup(inum int32, err error) []byte {
	if err != nil {
		return []byte("-1")
	}
	return []byte(strconv.FormatInt(int64(inum), 10))
}

// FormatStat renders a STAT reply: "<type> <size> <direct0>" on success,
// "-1" on failure.
func FormatStat(inodeType fsimage.InodeType, size uint32, direct0 int32, err error) []byte {
	if err != nil {
		return []byte("-1")
	}
	return []byte(fmt.Sprintf("%d %d %d", InodeTypeToWire(inodeType), size, direct0))
}

// FormatSimple renders the "0" success / "-1" failure reply shared by
// CREAT, UNLINK, WRITE, and SHUTDOWN.
func FormatSimple(err error) []byte {
	if err != nil {
		return []byte("-1")
	}
	return []byte("0")
}

// Status bytes prefixed to every READ reply, resolving the ambiguity the
// design notes flag in the original wire format (a block whose first
// bytes happen to read "-1" is otherwise indistinguishable from failure).
const (
	ReadStatusOK   byte = 0x00
	ReadStatusFail byte = 0xFF
)

// FormatRead renders a READ reply: a one-byte status followed by the
// block payload on success, or just the failure status byte.
func FormatRead(payload []byte, err error) []byte {
	if err != nil {
		return []byte{ReadStatusFail}
	}
	out := make([]byte, 0, len(payload)+1)
	out = append(out, ReadStatusOK)
	out = append(out, payload...)
	return out
}
