package collab

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/rs/zerolog"
)

// Step is one external collaborator action the coordinator sequences but
// does not own: artifact build/push readiness and infrastructure apply. Both
// are glue around third-party tooling and are never reimplemented here.
type Step interface {
	// Name identifies the step in logs and incident records.
	Name() string

	// Run executes the collaborator and returns its error verbatim.
	Run(ctx context.Context) error
}

// CommandStep runs a configured external command.
type CommandStep struct {
	name   string
	argv   []string
	logger zerolog.Logger
}

// NewCommandStep creates a step from a configured argv. An empty argv yields
// a nil Step, which the coordinator treats as "nothing to do".
func NewCommandStep(name string, argv []string, logger zerolog.Logger) *CommandStep {
	if len(argv) == 0 {
		return nil
	}
	return &CommandStep{name: name, argv: argv, logger: logger}
}

// Name identifies the step.
func (s *CommandStep) Name() string {
	return s.name
}

// Run executes the command, forwarding its combined output to the logger.
func (s *CommandStep) Run(ctx context.Context) error {
	s.logger.Info().Strs("argv", s.argv).Str("step", s.name).Msg("running collaborator")

	cmd := exec.CommandContext(ctx, s.argv[0], s.argv[1:]...)
	out, err := cmd.CombinedOutput()
	if len(out) > 0 {
		s.logger.Debug().Str("step", s.name).Bytes("output", out).Msg("collaborator output")
	}
	if err != nil {
		return fmt.Errorf("%s collaborator failed: %w", s.name, err)
	}
	return nil
}
