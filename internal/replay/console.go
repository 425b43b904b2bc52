package replay

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Console is the interactive replay controller. It reads commands line by
// line and drives the session cursor.
type Console struct {
	session *Session
	in      io.Reader
	out     io.Writer
}

func NewConsole(session *Session, in io.Reader, out io.Writer) *Console {
	return &Console{session: session, in: in, out: out}
}

// Run processes commands until quit or end of input.
func (c *Console) Run() {
	scanner := bufio.NewScanner(c.in)
	for {
		fmt.Fprint(c.out, "> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "" || line == "help":
			c.printHelp()
		case line == "next":
			c.report(c.session.Advance(1))
		case line == "prev":
			c.report(c.session.Advance(-1))
		case strings.HasPrefix(line, "jump "):
			c.jump(strings.TrimSpace(strings.TrimPrefix(line, "jump ")))
		case strings.HasPrefix(line, "send "):
			c.jump(strings.TrimSpace(strings.TrimPrefix(line, "send ")))
		case line == "reset":
			if _, err := c.session.SetIndex(0, false); err == nil {
				c.inspect()
			}
		case line == "inspect" || line == "current":
			c.inspect()
		case line == "quit" || line == "exit":
			return
		default:
			fmt.Fprintln(c.out, "Unknown command, type 'help'")
		}
	}
}

func (c *Console) jump(raw string) {
	idx, err := strconv.Atoi(raw)
	if err != nil {
		fmt.Fprintf(c.out, "invalid index %q: %v\n", raw, err)

		return
	}
	c.report(c.session.SetIndex(idx, true))
}

// report prints the outcome of a broadcasting move.
func (c *Console) report(step Step, err error) {
	if err != nil {
		fmt.Fprintln(c.out, err)

		return
	}
	fmt.Fprintf(c.out, "sent step %d | %s\n", step.Index, step.Summary)
}

func (c *Console) inspect() {
	step := c.session.Current()
	fmt.Fprintf(c.out, "step %d @ %s | %s\n", step.Index, step.Timestamp.Format(time.RFC3339), step.Summary)
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, "Commands:")
	fmt.Fprintln(c.out, "  next            advance to the next step and broadcast")
	fmt.Fprintln(c.out, "  prev            go back one step and broadcast")
	fmt.Fprintln(c.out, "  jump <n>        jump to step n (0-based) and broadcast")
	fmt.Fprintln(c.out, "  send <n>        alias for jump")
	fmt.Fprintln(c.out, "  reset           reset index to 0 (no broadcast)")
	fmt.Fprintln(c.out, "  inspect/current show current step summary")
	fmt.Fprintln(c.out, "  quit            exit")
}
