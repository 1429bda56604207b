package cli

import (
	"github.com/spf13/cobra"

	"voiceagent/internal/output"
	"voiceagent/internal/persona"
)

func NewPersonaCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "persona",
		Short: "Show the agent persona and rendered system instruction",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := persona.Load(deps.Config.Persona.Path)
			if err != nil {
				return err
			}
			instruction, err := p.SystemInstruction()
			if err != nil {
				return err
			}
			output.NewFormatter(deps.Stdout).Persona(p, instruction)
			return nil
		},
	}
}
