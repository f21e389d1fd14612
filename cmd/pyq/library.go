package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/bryanwahyu/pyq-analyzer/internal/domain/questions"
)

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List recent analysis results",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, _, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		list := app.Library.RecentResults(cmd.Context(), flagTenant)
		if len(list) == 0 {
			fmt.Println("No recent results.")
			return nil
		}
		for _, r := range list {
			fmt.Printf("%s  %s  %-40s %d question(s)\n",
				color.HiBlackString(r.ID[:min(8, len(r.ID))]),
				r.Timestamp.Local().Format("2006-01-02 15:04"),
				truncate(r.Name, 40),
				len(r.Result.Questions))
		}
		return nil
	},
}

var loadCmd = &cobra.Command{
	Use:   "load <id>",
	Short: "Make a recent result the current one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, _, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		id, err := resolveRecentID(app.Library.RecentResults(cmd.Context(), flagTenant), args[0])
		if err != nil {
			return err
		}
		r, err := app.Library.LoadRecent(cmd.Context(), flagTenant, id)
		if err != nil {
			return err
		}
		fmt.Printf("Loaded %q (%d questions).\n", r.Name, len(r.Result.Questions))
		return nil
	},
}

var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "Show common topics of the current result",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, _, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		printTopics(app.Library.Topics(cmd.Context(), flagTenant))
		return nil
	},
}

var (
	flagSubject string
	flagYear    string
	flagTopic   string
	flagQuery   string
)

var questionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "List questions of the current result",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, _, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		qs := app.Library.Questions(cmd.Context(), flagTenant, questions.Filter{
			Subject: flagSubject,
			Year:    flagYear,
			Topic:   flagTopic,
			Query:   flagQuery,
		})
		if len(qs) == 0 {
			fmt.Println("No questions match.")
			return nil
		}
		for i, q := range qs {
			fmt.Println(formatQuestion(i+1, q))
		}
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the current result (recent list is kept)",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, _, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.Library.ClearResult(cmd.Context(), flagTenant); err != nil {
			return err
		}
		fmt.Println("Cleared.")
		return nil
	},
}

func init() {
	questionsCmd.Flags().StringVar(&flagSubject, "subject", "", "filter by subject")
	questionsCmd.Flags().StringVar(&flagYear, "year", "", "filter by year")
	questionsCmd.Flags().StringVar(&flagTopic, "topic", "", "filter by topic or keyword")
	questionsCmd.Flags().StringVarP(&flagQuery, "query", "q", "", "text search")
}

func formatQuestion(n int, q questions.Question) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%3d. [%s] %s: %s", n, q.Year, q.Subject, q.Text)
	if len(q.Topics) > 0 {
		fmt.Fprintf(&b, "\n     topics: %s", strings.Join(q.Topics, ", "))
	}
	for _, v := range q.Videos {
		fmt.Fprintf(&b, "\n     video: %s https://www.youtube.com/watch?v=%s", v.Title, v.ID)
	}
	return b.String()
}

// resolveRecentID accepts a full id or a unique prefix (as printed by recent).
func resolveRecentID(list []questions.RecentResult, prefix string) (string, error) {
	var found []string
	for _, r := range list {
		if r.ID == prefix {
			return r.ID, nil
		}
		if strings.HasPrefix(r.ID, prefix) {
			found = append(found, r.ID)
		}
	}
	switch len(found) {
	case 0:
		return "", fmt.Errorf("no recent result with id %q", prefix)
	case 1:
		return found[0], nil
	}
	return "", fmt.Errorf("id prefix %q is ambiguous (%d matches)", prefix, len(found))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
