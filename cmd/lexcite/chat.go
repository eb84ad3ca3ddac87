package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/PabloGalante/lexcite/internal/adapters/clock"
	memstore "github.com/PabloGalante/lexcite/internal/adapters/storage/memory"
	"github.com/PabloGalante/lexcite/internal/app/conversation"
	"github.com/PabloGalante/lexcite/internal/domain"
)

const chatHelp = `Commands:
  /open N   open citation N of the last answer
  /close    close the document viewer
  /help     show this help
  /quit     leave`

func chatCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive research session in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliLogs(io.Discard)

			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}

			c, matcher, err := loadMatcher(cfg)
			if err != nil {
				return err
			}

			ctrl, err := conversation.NewController(domain.SessionID(uuid.NewString()), matcher, conversation.ControllerOptions{
				Scheduler: clock.Real{},
				Delay:     cfg.ResponseDelay,
				Store:     memstore.NewMessageStore(),
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			session := &chatSession{ctrl: ctrl, out: out}
			session.greet(c)

			line := liner.NewLiner()
			defer line.Close()
			line.SetCtrlCAborts(true)

			for {
				input, err := line.Prompt("you> ")
				if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
					fmt.Fprintln(out)
					return nil
				}
				if err != nil {
					return err
				}

				if strings.TrimSpace(input) != "" {
					line.AppendHistory(input)
				}

				quit, err := session.handle(cmd.Context(), input)
				if err != nil {
					return err
				}
				if quit {
					return nil
				}
			}
		},
	}
}

// chatSession turns REPL input into controller calls.
type chatSession struct {
	ctrl *conversation.Controller
	out  io.Writer
}

func (s *chatSession) greet(c domain.Corpus) {
	if c.Intro != "" {
		fmt.Fprintf(s.out, "%s: %s\n", assistantLabel("Lexcite"), c.Intro)
	}
	for _, q := range c.Suggestions {
		fmt.Fprintf(s.out, "  %s %s\n", dim("try:"), q)
	}
	fmt.Fprintln(s.out, dim("type /help for commands"))
}

func (s *chatSession) handle(ctx context.Context, input string) (quit bool, err error) {
	input = strings.TrimSpace(input)

	switch {
	case input == "":
		return false, nil
	case input == "/quit" || input == "/exit":
		return true, nil
	case input == "/help":
		fmt.Fprintln(s.out, chatHelp)
		return false, nil
	case input == "/close":
		s.ctrl.DismissViewer()
		printViewer(s.out, nil)
		return false, nil
	case input == "/open" || strings.HasPrefix(input, "/open "):
		s.open(strings.TrimSpace(strings.TrimPrefix(input, "/open")))
		return false, nil
	case strings.HasPrefix(input, "/"):
		fmt.Fprintf(s.out, "unknown command %s\n", input)
		return false, nil
	}

	if !s.ctrl.Submit(input) {
		return false, nil
	}
	fmt.Fprintln(s.out, dim("researching..."))

	if err := s.ctrl.Wait(ctx); err != nil {
		return false, err
	}

	state := s.ctrl.State()
	printMessage(s.out, state.Messages[len(state.Messages)-1])
	return false, nil
}

func (s *chatSession) open(arg string) {
	n := 1
	if arg != "" {
		v, err := strconv.Atoi(arg)
		if err != nil || v < 1 {
			fmt.Fprintf(s.out, "citation number must be a positive integer, got %q\n", arg)
			return
		}
		n = v
	}

	state := s.ctrl.State()
	var last *domain.Message
	for i := len(state.Messages) - 1; i >= 0; i-- {
		if state.Messages[i].Role == domain.RoleAssistant {
			last = &state.Messages[i]
			break
		}
	}
	if last == nil || n > len(last.Citations) {
		fmt.Fprintf(s.out, "no citation %d in the last answer\n", n)
		return
	}

	c := last.Citations[n-1]
	s.ctrl.SelectCitation(c)
	printViewer(s.out, &c)
}
