// Command serialmon opens a host serial device — a real UART during
// hardware bring-up, or the pty end of a virtual-machine-backed one —
// and tails the kernel's serial log to stdout. No teacher file does
// this (biscuit has no standalone serial-tail tool); grounded on the
// pack's gmofishsauce-wut4 example, the other user of go.bug.st/serial
// for opening and reading a serial port line by line.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"

	"go.bug.st/serial"
)

func main() {
	port := flag.String("port", "", "serial device path (e.g. /dev/ttyUSB0, /dev/pts/4)")
	baud := flag.Int("baud", 115200, "baud rate")
	flag.Parse()

	if *port == "" {
		fmt.Fprintln(os.Stderr, "usage: serialmon -port <device> [-baud <rate>]")
		os.Exit(1)
	}

	mode := &serial.Mode{
		BaudRate: *baud,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}

	p, err := serial.Open(*port, mode)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer p.Close()

	if err := tail(p, os.Stdout); err != nil && err != io.EOF {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// tail copies complete lines from src to dst as they arrive, flushing
// each line immediately rather than buffering for a block read, since a
// kernel panic log line may be the last thing written before the
// machine halts.
func tail(src io.Reader, dst io.Writer) error {
	r := bufio.NewReader(src)
	w := bufio.NewWriter(dst)
	for {
		line, err := r.ReadString('\n')
		if len(line) > 0 {
			if _, werr := w.WriteString(line); werr != nil {
				return werr
			}
			if ferr := w.Flush(); ferr != nil {
				return ferr
			}
		}
		if err != nil {
			return err
		}
	}
}
