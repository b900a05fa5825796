// Package cli defines the reelcut command line: analyze extracts and renders
// clips from a transcript/media pair, rerender re-executes one clip after a
// caption edit.
package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	root := &cobra.Command{
		Use:           "reelcut",
		Short:         "Cut ranked vertical clips from long-form video",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)

	root.AddCommand(analyzeCmd(), rerenderCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func analyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <transcript> <media>",
		Short: "Score a transcript, pick the top clips, and render verticals",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args[0], args[1])
		},
	}
	cmd.Flags().String("out", "out", "Output directory root")
	cmd.Flags().String("config", "reelcut.toml", "Config file path")
	cmd.Flags().String("format", "", "Transcript format: txt, srt, or vtt (default: detect)")
	cmd.Flags().Int("clips", 0, "Number of clips to keep (overrides config)")
	cmd.Flags().String("guest", "", "Guest name hint for the oracle")
	cmd.Flags().String("topic", "", "Topic hint for the oracle")
	cmd.Flags().String("tone", "", "Tone hint for the oracle")
	cmd.Flags().Bool("plan-only", false, "Write documents and plans without encoding video")
	return cmd
}

func rerenderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rerender <clip-document.json>",
		Short: "Re-render one clip from its document after a caption edit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRerender(cmd, args[0])
		},
	}
	cmd.Flags().String("out", "", "Output directory (default: next to the document)")
	cmd.Flags().String("config", "reelcut.toml", "Config file path")
	return cmd
}
