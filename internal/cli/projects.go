package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

func newProjectsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "管理已保存的翻译项目",
	}
	cmd.AddCommand(newProjectsListCommand(), newProjectsShowCommand(), newProjectsEditCommand())
	return cmd
}

func newProjectsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "列出全部项目",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(false)
			if err != nil {
				return err
			}
			defer rt.close()
			st, err := rt.openStore()
			if err != nil {
				return err
			}
			projects, err := st.List()
			if err != nil {
				return err
			}
			if len(projects) == 0 {
				color.Yellow("还没有项目 (%s)", st.Dir())
				return nil
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"ID", "名称", "进度", "失败", "更新时间"})
			for _, p := range projects {
				failed := 0
				for _, r := range p.Records {
					if r.Error != "" {
						failed++
					}
				}
				tw.AppendRow(table.Row{
					p.ID, p.Name,
					fmt.Sprintf("%d/%d", len(p.Records), len(p.Chunks)),
					failed,
					p.UpdatedAt.Format("2006-01-02 15:04"),
				})
			}
			tw.SetStyle(table.StyleLight)
			tw.Render()
			return nil
		},
	}
}

func newProjectsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <project-id>",
		Short: "逐块显示项目的原文与译文",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(false)
			if err != nil {
				return err
			}
			defer rt.close()
			st, err := rt.openStore()
			if err != nil {
				return err
			}
			records, err := st.Records(args[0])
			if err != nil {
				return err
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"ID", "原文", "译文", "术语"})
			for _, r := range records {
				translation := text.Snip(r.CurrentTranslation, 40, "…")
				if r.Error != "" {
					translation = color.RedString("%s", text.Snip(r.Error, 40, "…"))
				}
				tw.AppendRow(table.Row{r.ChunkID, text.Snip(r.OriginalText, 40, "…"), translation, len(r.MatchedTerms)})
			}
			tw.SetStyle(table.StyleLight)
			tw.Render()
			return nil
		},
	}
}

func newProjectsEditCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "edit <project-id> <chunk-id> <translation>",
		Short: "人工修订某一块的译文",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(false)
			if err != nil {
				return err
			}
			defer rt.close()
			st, err := rt.openStore()
			if err != nil {
				return err
			}
			if err := st.UpdateTranslation(args[0], args[1], args[2]); err != nil {
				return err
			}
			color.Green("已更新 %s/%s", args[0], args[1])
			return nil
		},
	}
}
