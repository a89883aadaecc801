package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	cli "github.com/spf13/pflag"

	"joona/internal/ipc"
)

func main() {
	socket := cli.String("socket", ipc.DefaultSocketPath, "Agent control socket")
	cli.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: joona-ctl [--socket path] [trigger | ask <text...>]")
		cli.PrintDefaults()
	}
	cli.Parse()

	msg := ipc.ControlMessage{Cmd: ipc.CmdTrigger}
	if args := cli.Args(); len(args) > 0 {
		msg.Cmd = args[0]
		msg.Text = strings.Join(args[1:], " ")
	}
	if msg.Cmd == ipc.CmdAsk && msg.Text == "" {
		cli.Usage()
		os.Exit(2)
	}

	if err := ipc.SendCommand(*socket, msg, 2*time.Second); err != nil {
		fmt.Println("joona-agent:", err)
		os.Exit(1)
	}
}
