package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/yolodolo42/questline/internal/api"
)

var storyCmd = &cobra.Command{
	Use:   "story",
	Short: "Manage saved stories",
	Long:  `Create, list and delete the stories saved on the game server.`,
}

var storyNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a new story",
	RunE:  runStoryNew,
}

var storyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved stories",
	RunE:  runStoryList,
}

var storyDeleteCmd = &cobra.Command{
	Use:   "delete <story-id>",
	Short: "Delete a story",
	Args:  cobra.ExactArgs(1),
	RunE:  runStoryDelete,
}

func init() {
	rootCmd.AddCommand(storyCmd)
	storyCmd.AddCommand(storyNewCmd)
	storyCmd.AddCommand(storyListCmd)
	storyCmd.AddCommand(storyDeleteCmd)

	storyNewCmd.Flags().String("world", "", "world description")
	storyNewCmd.Flags().String("character", "", "character description")
	storyDeleteCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
}

func runStoryNew(cmd *cobra.Command, args []string) error {
	world, _ := cmd.Flags().GetString("world")
	char, _ := cmd.Flags().GetString("character")

	in := bufio.NewReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()
	var err error
	if strings.TrimSpace(world) == "" {
		if world, err = ask(in, out, "Describe the world: "); err != nil {
			return err
		}
	}
	if strings.TrimSpace(char) == "" {
		if char, err = ask(in, out, "Describe your character: "); err != nil {
			return err
		}
	}
	world, char = strings.TrimSpace(world), strings.TrimSpace(char)
	if world == "" || char == "" {
		return fmt.Errorf("both a world and a character description are required")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.RequestTimeout)
	defer cancel()

	fmt.Fprintln(out, "Creating your story. The game master is preparing the world...")
	id, err := newAPIClient().CreateStory(ctx, world, char)
	if err != nil {
		return fmt.Errorf("failed to create story: %w", err)
	}

	fmt.Fprintln(out, "\nStory created successfully!")
	fmt.Fprintf(out, "Story: %s\n", id)
	fmt.Fprintf(out, "Continue it with 'questline resume %s'.\n", id)
	return nil
}

func runStoryList(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.RequestTimeout)
	defer cancel()

	stories, err := newAPIClient().ListStories(ctx)
	if err != nil {
		return fmt.Errorf("failed to list stories: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(stories) == 0 {
		fmt.Fprintln(out, "No stories found.")
		fmt.Fprintln(out, "Use 'questline story new' to create one.")
		return nil
	}

	fmt.Fprintln(out, renderStoryTable(terminalWidth(), stories))
	return nil
}

func renderStoryTable(width int, stories []api.StorySummary) string {
	t := &table{
		Title:   fmt.Sprintf("Found %d stor%s:\n", len(stories), plural(len(stories), "y", "ies")),
		Headers: []string{"ID", "Updated", "World"},
	}
	for _, s := range stories {
		t.Rows = append(t.Rows, []string{s.ID, formatStamp(s.LastUpdated, s.CreatedAt), oneLine(s.WorldDescription)})
	}
	return renderTable(width, t)
}

func runStoryDelete(cmd *cobra.Command, args []string) error {
	id := args[0]
	yes, _ := cmd.Flags().GetBool("yes")
	out := cmd.OutOrStdout()

	if !yes {
		answer, err := ask(bufio.NewReader(cmd.InOrStdin()), out, fmt.Sprintf("Delete story %s? [y/N] ", id))
		if err != nil {
			return err
		}
		if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.RequestTimeout)
	defer cancel()
	if err := newAPIClient().DeleteStory(ctx, id); err != nil {
		return fmt.Errorf("failed to delete story: %w", err)
	}
	fmt.Fprintf(out, "Deleted story %s.\n", id)
	return nil
}

func ask(in *bufio.Reader, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	line, err := in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		if err == io.EOF {
			return "", nil
		}
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// formatStamp shows the most recent of the two server timestamps.
func formatStamp(updated, created string) string {
	s := updated
	if s == "" {
		s = created
	}
	if s == "" {
		return "-"
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02 15:04")
		}
	}
	return s
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func terminalWidth() int {
	if w, ok := termWidth(int(os.Stdout.Fd())); ok {
		return w
	}
	return 100
}
