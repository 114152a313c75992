package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/nerdneilsfield/guided-translator/pkg/glossary"
)

func newGlossaryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "glossary",
		Short: "查询术语表，检查文档的术语覆盖",
	}
	cmd.AddCommand(newGlossarySearchCommand(), newGlossaryCheckCommand())
	return cmd
}

func newGlossarySearchCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <glossary.csv> <query>",
		Short: "模糊搜索术语",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := glossary.LoadCSVFile(args[0])
			if err != nil {
				return err
			}
			matcher, err := glossary.NewMatcher(entries)
			if err != nil {
				return err
			}

			query := strings.Join(args[1:], " ")
			results := matcher.Search(query, limit)
			if len(results) == 0 {
				color.Yellow("没有找到与 %q 相近的术语", query)
				return nil
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"English", "中文"})
			for _, e := range results {
				tw.AppendRow(table.Row{e.English, e.Chinese})
			}
			tw.SetStyle(table.StyleLight)
			tw.Render()
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "最多显示的条数")
	return cmd
}

func newGlossaryCheckCommand() *cobra.Command {
	var showNew bool
	cmd := &cobra.Command{
		Use:   "check <glossary.csv> <input.pdf|input.md>",
		Short: "统计文档中出现的术语和未收录的候选术语",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(false)
			if err != nil {
				return err
			}
			defer rt.close()

			entries, err := glossary.LoadCSVFile(args[0])
			if err != nil {
				return err
			}
			matcher, err := glossary.NewMatcher(entries)
			if err != nil {
				return err
			}
			doc, err := extractDocument(cmd.Context(), rt, nil, nil, false, args[1])
			if err != nil {
				return err
			}

			matches := matcher.Identify(doc.Text)
			coverage := glossary.CoverageOf(matches, matcher.Size())
			out := cmd.OutOrStdout()

			tw := table.NewWriter()
			tw.SetOutputMirror(out)
			tw.AppendHeader(table.Row{"English", "中文", "出现次数"})
			for _, m := range matches {
				tw.AppendRow(table.Row{m.English, m.Chinese, len(m.Positions)})
			}
			tw.AppendFooter(table.Row{"覆盖", fmt.Sprintf("%d/%d", coverage.Matched, coverage.Total), fmt.Sprintf("%d%%", coverage.Percentage)})
			tw.SetStyle(table.StyleLight)
			tw.Render()

			if !showNew {
				return nil
			}
			candidates := matcher.NewTermCandidates(doc.Text)
			if len(candidates) == 0 {
				return nil
			}
			color.Cyan("\n未收录的候选术语 (%d):", len(candidates))
			for _, c := range candidates {
				fmt.Fprintf(out, "  %s ×%d\n", c.English, len(c.Positions))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showNew, "new", true, "列出术语表中没有的候选术语")
	return cmd
}
