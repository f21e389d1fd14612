package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/bryanwahyu/pyq-analyzer/internal/domain/questions"
)

var flagName string

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>...",
	Short: "Extract and classify questions from PDF or image papers",
	Long: `Run the analysis pipeline over one or more files, strictly in order.

With several files a file that fails is skipped and the batch continues.
The result becomes the current result and is added to the recent list.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := readFiles(args)
		if err != nil {
			return err
		}

		app, log, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()
		defer log.Sync()

		run := app.Analysis.Start(cmd.Context(), flagTenant, flagName, files)
		for p := range run.Events() {
			printProgress(p)
		}
		res, err := run.Wait()
		if err != nil {
			return fmt.Errorf("analysis failed: %w", err)
		}

		color.New(color.FgGreen, color.Bold).Printf("\n%d question(s) extracted\n", len(res.Questions))
		printTopics(res.Topics)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&flagName, "name", "", "label for the recent list (default: file names)")
}

func readFiles(paths []string) ([]questions.File, error) {
	files := make([]questions.File, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		files = append(files, questions.File{
			Name:        filepath.Base(p),
			ContentType: mime.TypeByExtension(strings.ToLower(filepath.Ext(p))),
			Data:        data,
		})
	}
	return files, nil
}

var stageColor = map[questions.Stage]*color.Color{
	questions.StageDone:    color.New(color.FgGreen),
	questions.StageSkipped: color.New(color.FgYellow),
	questions.StageError:   color.New(color.FgRed),
}

func printProgress(p questions.Progress) {
	c, ok := stageColor[p.Stage]
	if !ok {
		c = color.New(color.FgCyan)
	}
	c.Printf("[%3d%%] ", p.Percent)
	fmt.Println(p.Label)
}

func printTopics(ts []questions.QuestionTopic) {
	if len(ts) == 0 {
		fmt.Println("No recurring topics.")
		return
	}
	bold := color.New(color.Bold)
	bold.Println("Common topics:")
	for _, t := range ts {
		fmt.Printf("  %-32s %d\n", t.Name, t.Count)
	}
}
