package server

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mfsd/mfsd/config"
	"github.com/mfsd/mfsd/engine"
	"github.com/mfsd/mfsd/fsimage"
	"github.com/mfsd/mfsd/mfstesting"
	"github.com/mfsd/mfsd/proto"
)

// TestServeAbortsOnIOFatalWrite drives a real WRITE request through a live
// server whose backing stream starts failing mid-flight, confirming that
// Dispatcher.Handle's Result.Fatal reaches Image.Abort() and Serve returns
// the abort exit code, rather than just unit-testing each piece in
// isolation.
func TestServeAbortsOnIOFatalWrite(t *testing.T) {
	img, stream := mfstesting.NewFaultyImage(t, fsimage.Options{})
	dispatcher := proto.NewDispatcher(engine.New(img))
	logger := config.NewLogger("error")

	srv, err := New(0, img, dispatcher, logger)
	require.NoError(t, err)

	done := make(chan int, 1)
	go func() { done <- srv.Serve() }()

	client, err := net.DialUDP("udp", nil, srv.conn.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, client.SetDeadline(time.Now().Add(2*time.Second)))

	_, err = client.Write([]byte("CREAT 0 1 first.txt"))
	require.NoError(t, err)
	reply := make([]byte, 64)
	n, err := client.Read(reply)
	require.NoError(t, err)
	require.Equal(t, "0", string(reply[:n]))

	_, err = client.Write([]byte("LOOKUP 0 first.txt"))
	require.NoError(t, err)
	n, err = client.Read(reply)
	require.NoError(t, err)
	inum := string(reply[:n])

	stream.FailWrites = true

	payload := make([]byte, img.Superblock.BlockSize)
	frame := append([]byte("WRITE "+inum+" 0\x00"), payload...)
	_, err = client.Write(frame)
	require.NoError(t, err)

	n, err = client.Read(reply)
	require.NoError(t, err)
	require.Equal(t, "-1", string(reply[:n]), "a WRITE that hits a failing stream must report failure")

	select {
	case code := <-done:
		require.Equal(t, 1, code, "an IO_FATAL write must abort the server with a non-zero exit code")
	case <-time.After(2 * time.Second):
		t.Fatal("server did not exit after an IO_FATAL write")
	}
}
