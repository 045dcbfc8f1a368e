// Package server runs the single-threaded datagram server loop: bind,
// receive a frame, hand it to the dispatcher, send the reply to the
// originating address. Grounded on original_source/udp.c's
// socket/bind/recvfrom/sendto loop, reworked into idiomatic Go atop
// net.ListenUDP.
package server

import (
	"fmt"
	"net"
	"net/http"

	"github.com/mfsd/mfsd/config"
	"github.com/mfsd/mfsd/fsimage"
	"github.com/mfsd/mfsd/metrics"
	"github.com/mfsd/mfsd/proto"
)

// frameHeaderSlack is the room reserved for a request's ASCII header in
// the receive buffer. Serve sizes that buffer to this plus one full block
// of the served image, the largest datagram (a WRITE) it will accept.
const frameHeaderSlack = 256

// Server owns the listening socket and the dispatcher. It is
// single-threaded by construction: Serve processes one request to
// completion, including the mutating sync, before the next ReadFrom call.
type Server struct {
	conn       *net.UDPConn
	dispatcher *proto.Dispatcher
	image      *fsimage.Image
	logger     *config.Logger
	counters   *metrics.Counters
}

// New binds a UDP socket on port (all interfaces) and wires it to a
// dispatcher driving img.
func New(port int, img *fsimage.Image, dispatcher *proto.Dispatcher, logger *config.Logger) (*Server, error) {
	addr := &net.UDPAddr{Port: port}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("bind udp port %d: %w", port, err)
	}
	return &Server{
		conn:       conn,
		dispatcher: dispatcher,
		image:      img,
		logger:     logger,
		counters:   &metrics.Counters{},
	}, nil
}

// ServeMetrics starts the ambient metrics endpoint in the background. It
// only ever reads atomic counters the request loop updates, so it never
// touches the image and does not break the single-writer model.
func (s *Server) ServeMetrics(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.counters.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			s.logger.Warnf("metrics listener stopped: %s", err)
		}
	}()
}

// Serve runs the request loop until a successful SHUTDOWN is processed
// or an IO_FATAL error forces an abort. It returns the process exit code
// the caller should use.
func (s *Server) Serve() int {
	buf := make([]byte, frameHeaderSlack+int(s.image.Superblock.BlockSize))
	for {
		n, clientAddr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			s.logger.Errorf("recvfrom failed: %s", err)
			continue
		}

		request := make([]byte, n)
		copy(request, buf[:n])

		result := s.dispatcher.Handle(request)
		s.counters.RecordRequest(firstWord(request), result.Fatal != nil || isFailureReply(result.Response))

		if _, err := s.conn.WriteToUDP(result.Response, clientAddr); err != nil {
			s.logger.Warnf("sendto %s failed: %s", clientAddr, err)
		}

		if result.Fatal != nil {
			s.logger.Errorf("io fatal, aborting: %s", result.Fatal)
			if abortErr := s.image.Abort(); abortErr != nil {
				s.logger.Errorf("abort cleanup also failed: %s", abortErr)
			}
			s.conn.Close()
			return 1
		}

		if result.Shutdown {
			s.logger.Infof("shutdown requested, exiting cleanly")
			s.conn.Close()
			return 0
		}
	}
}

func firstWord(data []byte) string {
	for i, b := range data {
		if b == ' ' || b == 0 {
			return string(data[:i])
		}
	}
	return string(data)
}

func isFailureReply(response []byte) bool {
	return len(response) > 0 && (string(response) == "-1" || response[0] == proto.ReadStatusFail)
}
