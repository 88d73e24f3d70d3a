// Package replay drives a recording session from a text script, for
// headless testing and demos. One step per line:
//
//	BEGAN x y    touch down
//	MOVE x y     drag
//	END [x y]    lift
//	CANCEL [x y] system cancel
//	FAIL [x y]   recognizer failure
//	STOP         stop a locked recording for review
//	SEND         send the draft
//	DISCARD      discard the draft
//	ABORT        cancel the recording
//	SLEEP ms     pause
//	QUIT         end the script
//
// Blank lines and text after # are ignored.
package replay

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"murmur/gesture"
	"murmur/recorder"
)

const source = "replay"

type Op int

const (
	OpBegan Op = iota
	OpMove
	OpEnd
	OpCancel
	OpFail
	OpStop
	OpSend
	OpDiscard
	OpAbort
	OpSleep
	OpQuit
)

var opNames = map[string]Op{
	"BEGAN":   OpBegan,
	"MOVE":    OpMove,
	"END":     OpEnd,
	"CANCEL":  OpCancel,
	"FAIL":    OpFail,
	"STOP":    OpStop,
	"SEND":    OpSend,
	"DISCARD": OpDiscard,
	"ABORT":   OpAbort,
	"SLEEP":   OpSleep,
	"QUIT":    OpQuit,
}

func (o Op) String() string {
	for name, op := range opNames {
		if op == o {
			return name
		}
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

type Step struct {
	Op     Op
	Pos    gesture.Point
	HasPos bool // the line carried coordinates
	Sleep  time.Duration
	Line   int
}

func (s Step) String() string {
	switch {
	case s.Op == OpSleep:
		return fmt.Sprintf("SLEEP %d", s.Sleep.Milliseconds())
	case s.HasPos:
		return fmt.Sprintf("%s %g %g", s.Op, s.Pos.X, s.Pos.Y)
	}
	return s.Op.String()
}

// Handler processes one input; *recorder.Session satisfies it.
type Handler interface {
	Handle(in recorder.Input) (gesture.Result, error)
}

// Parse reads a script. Errors name the offending line.
func Parse(r io.Reader) ([]Step, error) {
	var steps []Step
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}
		step, err := parseStep(fields)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		step.Line = line
		steps = append(steps, step)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return steps, nil
}

func parseStep(fields []string) (Step, error) {
	op, ok := opNames[strings.ToUpper(fields[0])]
	if !ok {
		return Step{}, fmt.Errorf("unknown step %q", fields[0])
	}
	args := fields[1:]
	step := Step{Op: op}

	switch op {
	case OpBegan, OpMove:
		if len(args) != 2 {
			return Step{}, fmt.Errorf("%s takes x y", op)
		}
	case OpEnd, OpCancel, OpFail:
		if len(args) != 0 && len(args) != 2 {
			return Step{}, fmt.Errorf("%s takes no arguments or x y", op)
		}
	case OpSleep:
		if len(args) != 1 {
			return Step{}, fmt.Errorf("SLEEP takes milliseconds")
		}
		ms, err := strconv.Atoi(args[0])
		if err != nil || ms < 0 {
			return Step{}, fmt.Errorf("bad SLEEP duration %q", args[0])
		}
		step.Sleep = time.Duration(ms) * time.Millisecond
		return step, nil
	default:
		if len(args) != 0 {
			return Step{}, fmt.Errorf("%s takes no arguments", op)
		}
		return step, nil
	}

	if len(args) == 2 {
		x, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return Step{}, fmt.Errorf("bad x %q", args[0])
		}
		y, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return Step{}, fmt.Errorf("bad y %q", args[1])
		}
		step.Pos = gesture.Point{X: x, Y: y}
		step.HasPos = true
	}
	return step, nil
}

// Run feeds steps to h and writes one line per step to out. Rejected steps
// are reported and the script continues. It returns at QUIT, at the end of
// the script, or when ctx is done.
func Run(ctx context.Context, steps []Step, h Handler, out io.Writer) error {
	var last gesture.Point
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}

		switch step.Op {
		case OpQuit:
			fmt.Fprintln(out, "QUIT")
			return nil
		case OpSleep:
			fmt.Fprintln(out, step)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(step.Sleep):
			}
			continue
		}

		if step.HasPos {
			last = step.Pos
		}
		r, err := h.Handle(input(step, last))
		fmt.Fprintln(out, format(step, r, err))
	}
	return nil
}

func input(step Step, pos gesture.Point) recorder.Input {
	sample := func(p gesture.Phase) recorder.Input {
		return recorder.SampleInput(source, gesture.Sample{Phase: p, Pos: pos})
	}
	switch step.Op {
	case OpBegan:
		return sample(gesture.Began)
	case OpMove:
		return sample(gesture.Changed)
	case OpEnd:
		return sample(gesture.Ended)
	case OpCancel:
		return sample(gesture.Cancelled)
	case OpFail:
		return sample(gesture.Failed)
	case OpStop:
		return recorder.CommandInput(source, recorder.StopAndReview)
	case OpSend:
		return recorder.CommandInput(source, recorder.SendDraft)
	case OpDiscard:
		return recorder.CommandInput(source, recorder.DiscardDraft)
	default:
		return recorder.CommandInput(source, recorder.CancelRecording)
	}
}

func format(step Step, r gesture.Result, err error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-16s state=%-6s event=%-8s cancel=%.2f lock=%.2f",
		step, r.State, r.Event, r.CancelProgress, r.LockProgress)
	if r.Debounced {
		b.WriteString(" debounced")
	}
	if r.Draft != "" {
		fmt.Fprintf(&b, " draft=%s", r.Draft)
	}
	if err != nil {
		fmt.Fprintf(&b, " error=%q", err.Error())
	}
	return b.String()
}
