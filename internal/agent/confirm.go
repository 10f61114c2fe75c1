package agent

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// AutoConfirmer answers every confirmation prompt the same way. Used for
// unattended runs (--auto-accept).
type AutoConfirmer bool

func (a AutoConfirmer) Confirm(_ context.Context, _ string) (bool, error) {
	return bool(a), nil
}

// PromptConfirmer asks the operator on the terminal and reads a y/n answer.
type PromptConfirmer struct {
	In  io.Reader
	Out io.Writer
}

// Confirm prints the prompt and blocks for a line of input. Reading is done
// on a helper goroutine so a cancelled context does not leave the caller
// stuck on a dead terminal.
func (p *PromptConfirmer) Confirm(ctx context.Context, prompt string) (bool, error) {
	fmt.Fprintf(p.Out, "%s [y/N]: ", prompt)

	type answer struct {
		line string
		err  error
	}
	ch := make(chan answer, 1)
	go func() {
		r := bufio.NewReader(p.In)
		line, err := r.ReadString('\n')
		ch <- answer{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case a := <-ch:
		if a.err != nil && a.line == "" {
			return false, a.err
		}
		switch strings.ToLower(strings.TrimSpace(a.line)) {
		case "y", "yes":
			return true, nil
		default:
			return false, nil
		}
	}
}
