package main

import (
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/PabloGalante/lexcite/internal/adapters/clock"
	memstore "github.com/PabloGalante/lexcite/internal/adapters/storage/memory"
	"github.com/PabloGalante/lexcite/internal/app/conversation"
	"github.com/PabloGalante/lexcite/internal/domain"
)

type askCitation struct {
	QuotedText     string `json:"quoted_text"`
	SourceID       string `json:"source_id"`
	SourceLocator  string `json:"source_locator"`
	ParagraphLabel string `json:"paragraph_label,omitempty"`
	PageNumber     *int   `json:"page_number,omitempty"`
}

type askResult struct {
	Question  string        `json:"question"`
	Answer    string        `json:"answer"`
	Citations []askCitation `json:"citations"`
}

func askCmd(flags *globalFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask one question and print the cited answer",
		Example: `  lexcite ask "Are claimants entitled to future prospects when the deceased was self-employed and aged 54-55?"
  lexcite ask --json --delay 0s "motor vehicle compensation"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliLogs(cmd.ErrOrStderr())

			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}

			_, matcher, err := loadMatcher(cfg)
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

			if !ctrl.Submit(args[0]) {
				return errors.New("question must not be empty")
			}
			if err := ctrl.Wait(cmd.Context()); err != nil {
				return err
			}

			state := ctrl.State()
			question, answer := state.Messages[0], state.Messages[len(state.Messages)-1]

			out := cmd.OutOrStdout()
			if !asJSON {
				printMessage(out, answer)
				return nil
			}

			res := askResult{
				Question:  question.Text,
				Answer:    answer.Text,
				Citations: make([]askCitation, 0, len(answer.Citations)),
			}
			for _, c := range answer.Citations {
				res.Citations = append(res.Citations, askCitation{
					QuotedText:     c.QuotedText,
					SourceID:       c.SourceID,
					SourceLocator:  c.SourceLocator,
					ParagraphLabel: c.ParagraphLabel,
					PageNumber:     c.PageNumber,
				})
			}

			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the answer as JSON")
	return cmd
}
