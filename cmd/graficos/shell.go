package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/example/tela/pkg/telakit"
)

const shellHelp = `Commands:
  point X Y            plot a point with the active color (PO)
  pc X Y R G B         plot a point with an explicit color (PC)
  color R G B          set the active color (CO)
  clear [N]            clear the surface and draw an N×N grid (CL, default 16)
  print                show commands sent since the last clear
  save FILE            save sent commands to FILE
  load FILE            send every command from FILE
  connect [HOST PORT]  (re)connect to a server
  close                close the connection
  help                 show this help
  quit                 exit
`

// errQuit завершает цикл оболочки.
var errQuit = errors.New("quit")

type shellOptions struct {
	readFrom string
}

// shell интерактивная оболочка поверх telakit.Client.
type shell struct {
	ctx    context.Context
	client *telakit.Client
	opts   *rootOptions
	out    io.Writer
}

func runShell(ctx context.Context, opts *rootOptions, shellOpts *shellOptions) error {
	client, err := opts.connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	fmt.Fprintf(os.Stdout, "OK! Connected to %s.\n", opts.address())

	if shellOpts.readFrom != "" {
		sent, err := client.ReplayFile(shellOpts.readFrom)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%d commands sent from %s\n", sent, shellOpts.readFrom)
	}

	sh := &shell{ctx: ctx, client: client, opts: opts}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		sh.out = os.Stdout
		return sh.runScript(os.Stdin)
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("enter raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	t := term.NewTerminal(struct {
		io.Reader
		io.Writer
	}{os.Stdin, os.Stdout}, "tela> ")
	sh.out = t
	fmt.Fprint(t, "Type 'help' for commands.\n")

	for {
		line, err := t.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := sh.exec(line); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			fmt.Fprintf(t, "error: %v\n", err)
		}
	}
}

// runScript выполняет команды оболочки из r (stdin не терминал).
// Ошибка команды печатается и не прерывает выполнение.
func (sh *shell) runScript(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if err := sh.exec(scanner.Text()); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			fmt.Fprintf(sh.out, "error: %v\n", err)
		}
	}
	return scanner.Err()
}

// exec выполняет одну команду оболочки.
func (sh *shell) exec(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	name, args := strings.ToLower(fields[0]), fields[1:]
	switch name {
	case "point", "po":
		v, err := ints(args, 2)
		if err != nil {
			return err
		}
		return sh.client.Point(v[0], v[1])

	case "pc":
		v, err := ints(args, 5)
		if err != nil {
			return err
		}
		return sh.client.PointColored(v[0], v[1], telakit.RGB{R: v[2], G: v[3], B: v[4]})

	case "color", "co":
		v, err := ints(args, 3)
		if err != nil {
			return err
		}
		return sh.client.SetColor(v[0], v[1], v[2])

	case "clear", "cl":
		n := telakit.DefaultClearGridSize
		if len(args) > 0 {
			v, err := ints(args, 1)
			if err != nil {
				return err
			}
			n = v[0]
		}
		return sh.client.Clear(n)

	case "print":
		for _, cmd := range sh.client.History() {
			fmt.Fprintf(sh.out, "%s\n", strings.TrimRight(string(cmd), "\n"))
		}
		return nil

	case "save":
		if len(args) != 1 {
			return errors.New("usage: save FILE")
		}
		if err := sh.client.SaveHistoryFile(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(sh.out, "saved %d commands to %s\n", len(sh.client.History()), args[0])
		return nil

	case "load":
		if len(args) != 1 {
			return errors.New("usage: load FILE")
		}
		sent, err := sh.client.ReplayFile(args[0])
		fmt.Fprintf(sh.out, "%d commands sent\n", sent)
		return err

	case "connect":
		address := sh.opts.address()
		switch len(args) {
		case 0:
		case 2:
			address = net.JoinHostPort(args[0], args[1])
		default:
			return errors.New("usage: connect [HOST PORT]")
		}
		if err := sh.client.Connect(sh.ctx, address); err != nil {
			return err
		}
		fmt.Fprintf(sh.out, "OK! Connected to %s.\n", address)
		return nil

	case "close":
		return sh.client.Close()

	case "help", "?":
		fmt.Fprint(sh.out, shellHelp)
		return nil

	case "quit", "exit":
		return errQuit

	default:
		return fmt.Errorf("unknown command %q (try 'help')", fields[0])
	}
}

// ints разбирает ровно n целых аргументов.
func ints(args []string, n int) ([]int, error) {
	if len(args) != n {
		return nil, fmt.Errorf("expected %d arguments, got %d", n, len(args))
	}
	out := make([]int, n)
	for i, a := range args {
		v, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("argument %d is not an integer: %q", i+1, a)
		}
		out[i] = v
	}
	return out, nil
}
