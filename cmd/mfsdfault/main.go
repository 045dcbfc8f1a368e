// mfsdfault is a small client-side fault injector: it sends one request
// frame to a running mfsd, optionally more than once and with a delay
// between copies, so the duplicate-delivery and retry paths described in
// the spec's testable properties can be exercised against a live server
// instead of only in-process.
package main

import (
	"fmt"
	"log"
	"net"
	"os"
	"time"

	"github.com/urfave/cli/v2"
)

func main() {
	app := cli.App{
		Name:  "mfsdfault",
		Usage: "Send a raw request frame to an mfsd server, optionally duplicated",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "host:port of the running mfsd", Required: true},
			&cli.StringFlag{Name: "frame", Usage: "raw request text, e.g. \"LOOKUP 0 foo.txt\"", Required: true},
			&cli.IntFlag{Name: "copies", Usage: "how many times to send the frame", Value: 1},
			&cli.DurationFlag{Name: "delay", Usage: "delay between copies", Value: 0},
		},
		Action: send,
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatalf("fatal error: %s", err.Error())
	}
}

func send(ctx *cli.Context) error {
	addr, err := net.ResolveUDPAddr("udp", ctx.String("addr"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer conn.Close()

	frame := []byte(ctx.String("frame"))
	copies := ctx.Int("copies")
	delay := ctx.Duration("delay")

	for i := 0; i < copies; i++ {
		if _, err := conn.Write(frame); err != nil {
			return cli.Exit(err.Error(), 1)
		}
		reply := make([]byte, 4096)
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		n, _, err := conn.ReadFromUDP(reply)
		if err != nil {
			fmt.Printf("copy %d: no reply: %s\n", i+1, err)
		} else {
			fmt.Printf("copy %d: reply %q\n", i+1, reply[:n])
		}
		if i < copies-1 && delay > 0 {
			time.Sleep(delay)
		}
	}
	return nil
}
