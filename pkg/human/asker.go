package human

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Mailbox is an Asker backed by supplied answers. Ask returns
// ErrAwaitingInput until Supply has been called for the request and
// ability, which is what lets the orchestrator suspend a run and resume it
// after the answer arrives out of band.
type Mailbox struct {
	mu      sync.Mutex
	answers map[string]string
}

// NewMailbox creates an empty answer mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{answers: make(map[string]string)}
}

func mailboxKey(requestID, ability string) string {
	return requestID + "\x00" + ability
}

// Supply stores an answer for a pending prompt.
func (m *Mailbox) Supply(requestID, ability, answer string) {
	m.mu.Lock()
	m.answers[mailboxKey(requestID, ability)] = answer
	m.mu.Unlock()
}

// Ask returns the supplied answer, consuming it, or ErrAwaitingInput.
func (m *Mailbox) Ask(_ context.Context, prompt Prompt) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := mailboxKey(prompt.RequestID, prompt.Ability)
	answer, ok := m.answers[key]
	if !ok {
		return "", ErrAwaitingInput
	}
	delete(m.answers, key)
	return answer, nil
}

// Terminal is an Asker that prompts on a writer and reads one line from a
// reader, for interactive runs.
type Terminal struct {
	reader *bufio.Scanner
	writer io.Writer
}

// NewTerminal creates a terminal asker over the given streams.
func NewTerminal(r io.Reader, w io.Writer) *Terminal {
	return &Terminal{
		reader: bufio.NewScanner(r),
		writer: w,
	}
}

// Ask prints the question and blocks for one line of input.
func (t *Terminal) Ask(ctx context.Context, prompt Prompt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	fmt.Fprintf(t.writer, "\n[%s] %s\n> ", prompt.Ability, prompt.Question)
	if !t.reader.Scan() {
		if err := t.reader.Err(); err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		return "", io.EOF
	}
	return strings.TrimSpace(t.reader.Text()), nil
}
