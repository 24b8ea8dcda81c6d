package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrInputCancelled is returned when a prompt is abandoned through its context.
var ErrInputCancelled = errors.New("input canceled")

// Prompter asks questions on a writer and reads single-line answers.
// Reads honor context cancellation so an interrupt does not hang on stdin.
type Prompter struct {
	reader *bufio.Reader
	writer io.Writer
}

// NewPrompter creates a prompter over the given streams.
func NewPrompter(r io.Reader, w io.Writer) *Prompter {
	return &Prompter{reader: bufio.NewReader(r), writer: w}
}

// Ask prints the question and returns the trimmed answer.
func (p *Prompter) Ask(ctx context.Context, question string) (string, error) {
	if _, err := fmt.Fprint(p.writer, TitleStyle.Render(question+" → ")); err != nil {
		return "", err
	}

	type answer struct {
		err  error
		line string
	}
	ch := make(chan answer, 1)
	go func() {
		line, err := p.reader.ReadString('\n')
		ch <- answer{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ErrInputCancelled
	case a := <-ch:
		if a.err != nil && !(errors.Is(a.err, io.EOF) && a.line != "") {
			return "", a.err
		}
		return strings.TrimSpace(a.line), nil
	}
}

// Choose asks until the answer is one of the options, matched case-insensitively.
// An empty answer selects the default when one is given.
func (p *Prompter) Choose(ctx context.Context, question string, options []string, def string) (string, error) {
	prompt := fmt.Sprintf("%s [%s]", question, strings.Join(options, "/"))
	for {
		answer, err := p.Ask(ctx, prompt)
		if err != nil {
			return "", err
		}
		if answer == "" && def != "" {
			return def, nil
		}
		for _, opt := range options {
			if strings.EqualFold(answer, opt) {
				return opt, nil
			}
		}
		if _, err := fmt.Fprintln(p.writer, FormatWarning("请输入 "+strings.Join(options, "/"))); err != nil {
			return "", err
		}
	}
}
