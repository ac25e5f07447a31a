package gateway

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// ConsoleGateway is the local fallback when no chat gateway is
// enabled: a read-eval loop on the terminal.
type ConsoleGateway struct {
	In      io.Reader
	Out     io.Writer
	Handler Handler
	ChatID  string
}

func NewConsoleGateway(handler Handler) *ConsoleGateway {
	return &ConsoleGateway{
		In:      os.Stdin,
		Out:     os.Stdout,
		Handler: handler,
		ChatID:  "local",
	}
}

func (cg *ConsoleGateway) Start() error {
	fmt.Fprintln(cg.Out, "Type a request and press enter. Ctrl-D exits.")

	scanner := bufio.NewScanner(cg.In)
	for {
		fmt.Fprint(cg.Out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		rep := cg.Handler.Handle(context.Background(), cg.ChatID, input)
		fmt.Fprintln(cg.Out, formatReport(rep))
	}
}

func (cg *ConsoleGateway) Send(chatID string, text string) error {
	_, err := fmt.Fprintln(cg.Out, text)
	return err
}

func (cg *ConsoleGateway) Stop() error {
	return nil
}
