package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var lessonsCmd = &cobra.Command{
	Use:     "lessons",
	Aliases: []string{"lesson", "l"},
	Short:   "Browse lessons",
}

var lessonsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List lessons in display order",
	Args:  cobra.NoArgs,
	RunE:  runLessonsList,
}

var lessonsShowCmd = &cobra.Command{
	Use:   "show <lesson-id>",
	Short: "Show a lesson with its example code",
	Args:  cobra.ExactArgs(1),
	RunE:  runLessonsShow,
}

func init() {
	rootCmd.AddCommand(lessonsCmd)
	lessonsCmd.AddCommand(lessonsListCmd, lessonsShowCmd)
}

func runLessonsList(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	lessons, err := c.ListLessons(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(lessons) == 0 {
		fmt.Fprintln(out, "No lessons found.")
		return nil
	}

	fmt.Fprintf(out, "%-6s %-6s %-14s %s\n", "ID", "ORDER", "DIFFICULTY", "TITLE")
	fmt.Fprintln(out, strings.Repeat("─", 70))
	for _, l := range lessons {
		fmt.Fprintf(out, "%-6d %-6d %-14s %s\n", l.ID, l.Order, l.Difficulty, l.Title)
	}
	return nil
}

func runLessonsShow(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	c, err := newClient()
	if err != nil {
		return err
	}

	lesson, found, err := c.GetLesson(cmd.Context(), id)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("lesson %d not found", id)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\033[1m%s\033[0m  (%s)\n", lesson.Title, lesson.Difficulty)
	fmt.Fprintln(out, lesson.Description)
	fmt.Fprintln(out, strings.Repeat("─", 60))
	fmt.Fprintln(out, strings.TrimRight(lesson.Content, "\n"))
	if lesson.ExampleCode != "" {
		fmt.Fprintln(out, "\nExample:")
		fmt.Fprintf(out, "\033[36m%s\033[0m\n", strings.TrimRight(lesson.ExampleCode, "\n"))
	}
	return nil
}
