package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/yolodolo42/questline/internal/character"
)

var characterCmd = &cobra.Command{
	Use:     "character",
	Aliases: []string{"char"},
	Short:   "Inspect or edit a session's character",
}

var characterShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show the character sheet",
	Args:  cobra.ExactArgs(1),
	RunE:  runCharacterShow,
}

var characterEditCmd = &cobra.Command{
	Use:   "edit <session-id>",
	Short: "Change the character's name or backstory",
	Args:  cobra.ExactArgs(1),
	RunE:  runCharacterEdit,
}

func init() {
	rootCmd.AddCommand(characterCmd)
	characterCmd.AddCommand(characterShowCmd)
	characterCmd.AddCommand(characterEditCmd)

	characterEditCmd.Flags().String("name", "", "new character name")
	characterEditCmd.Flags().String("lore", "", "new character backstory")
}

func runCharacterShow(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.RequestTimeout)
	defer cancel()

	snap, err := newAPIClient().GetCharacter(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to load character: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), character.RenderSnapshot(snap))
	return nil
}

// runCharacterEdit keeps unspecified fields at their current values, since the
// server replaces both name and lore on every update.
func runCharacterEdit(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("name")
	lore, _ := cmd.Flags().GetString("lore")
	if !cmd.Flags().Changed("name") && !cmd.Flags().Changed("lore") {
		return fmt.Errorf("nothing to change: pass --name and/or --lore")
	}

	client := newAPIClient()
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.RequestTimeout)
	defer cancel()

	current, err := client.GetCharacter(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to load character: %w", err)
	}
	if !cmd.Flags().Changed("name") {
		name = current.Name
	}
	if !cmd.Flags().Changed("lore") {
		lore = current.Lore
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("name must not be empty")
	}

	updated, err := client.UpdateCharacter(ctx, args[0], strings.TrimSpace(name), strings.TrimSpace(lore))
	if err != nil {
		return fmt.Errorf("failed to update character: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Character updated.")
	fmt.Fprintln(out, character.RenderSnapshot(updated))
	return nil
}
