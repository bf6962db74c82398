package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/germanamz/chatbox/pkg/chats/message"
	"github.com/germanamz/chatbox/pkg/chats/role"
	"github.com/germanamz/chatbox/pkg/config"
)

type wizardAnswers struct {
	Title       string
	Placeholder string
	Footer      string
	Greeting    string
	HostKind    string
	ReplyDelay  string
	Listen      string
}

func defaultAnswers() wizardAnswers {
	def := config.Default()
	var greeting string
	if len(def.InitialMessages) > 0 {
		greeting = def.InitialMessages[0].Content
	}
	return wizardAnswers{
		Title:       def.Title,
		Placeholder: def.Placeholder,
		Greeting:    greeting,
		HostKind:    def.Host.Kind,
		ReplyDelay:  def.Host.ReplyDelay,
		Listen:      def.Host.Listen,
	}
}

func newInitCmd() *cobra.Command {
	var (
		output string
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			existing, readErr := os.ReadFile(output) //nolint:gosec // user-provided output path
			if readErr == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", output)
			}

			a, err := runWizard()
			if err != nil {
				return err
			}

			cfg := a.config()
			if err := cfg.Validate(); err != nil {
				return err
			}

			if readErr == nil {
				data, err := cfg.Marshal()
				if err != nil {
					return err
				}
				diff := computeDiff(output, string(existing), string(data))
				if diff == "" {
					fmt.Fprintf(cmd.OutOrStdout(), "%s is unchanged\n", output)
					return nil
				}
				ok, err := confirmOverwrite(output, diff)
				if err != nil || !ok {
					return err
				}
			}

			if err := cfg.Save(output); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", defaultConfigFile, "where to write the configuration")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	return cmd
}

func runWizard() (wizardAnswers, error) {
	a := defaultAnswers()

	if err := huh.NewForm(huh.NewGroup(
		huh.NewInput().Title("Title").Value(&a.Title),
		huh.NewInput().Title("Input placeholder").Value(&a.Placeholder),
		huh.NewInput().Title("Footer text (optional)").Value(&a.Footer),
		huh.NewText().Title("Greeting (empty for none)").Value(&a.Greeting),
		huh.NewSelect[string]().
			Title("Where do replies come from?").
			Options(
				huh.NewOption("Simulated canned replies", config.HostSimulated),
				huh.NewOption("Remote host over websocket", config.HostWebsocket),
				huh.NewOption("Nowhere (replies must be pushed)", config.HostNone),
			).
			Value(&a.HostKind),
	)).Run(); err != nil {
		return a, err
	}

	switch a.HostKind {
	case config.HostSimulated:
		if err := huh.NewForm(huh.NewGroup(
			huh.NewInput().Title("Reply delay (e.g. 1s, 500ms)").Value(&a.ReplyDelay).Validate(validateDuration),
		)).Run(); err != nil {
			return a, err
		}
	case config.HostWebsocket:
		if err := huh.NewForm(huh.NewGroup(
			huh.NewInput().Title("Listen address").Value(&a.Listen).Validate(validateRequired),
		)).Run(); err != nil {
			return a, err
		}
	}

	return a, nil
}

// config turns the answers into a configuration over the defaults.
func (a wizardAnswers) config() config.Config {
	cfg := config.Default()
	cfg.Title = a.Title
	cfg.Placeholder = a.Placeholder
	cfg.Footer = a.Footer
	cfg.InitialMessages = nil
	if a.Greeting != "" {
		cfg.InitialMessages = []message.Message{message.New(role.Assistant, a.Greeting)}
	}
	cfg.Host.Kind = a.HostKind
	cfg.Host.ReplyDelay = a.ReplyDelay
	cfg.Host.Listen = a.Listen
	return cfg
}

func validateDuration(s string) error {
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	if d < 0 {
		return errors.New("must not be negative")
	}
	return nil
}

func validateRequired(s string) error {
	if s == "" {
		return errors.New("required")
	}
	return nil
}
