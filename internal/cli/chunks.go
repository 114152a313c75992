package cli

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/nerdneilsfield/guided-translator/pkg/chunk"
)

func newChunksCommand() *cobra.Command {
	var (
		maxTokens int
		noVision  bool
	)
	cmd := &cobra.Command{
		Use:   "chunks <input.pdf|input.md>",
		Short: "预览文档的分块结果（不调用翻译）",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(false)
			if err != nil {
				return err
			}
			defer rt.close()

			if maxTokens <= 0 {
				maxTokens = rt.cfg.Chunk.MaxTokens
			}
			client, pool := rt.optionalVision(rt.cfg.Extract.VisionEnabled && !noVision)
			doc, err := extractDocument(cmd.Context(), rt, client, pool, client != nil, args[0])
			if err != nil {
				return err
			}

			chunks := chunk.SplitIntoChunks(doc.Text, maxTokens)
			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"#", "ID", "类型", "条款", "Tokens", "预览"})
			total := 0
			for _, c := range chunks {
				tokens := chunk.EstimateTokens(c.Text)
				total += tokens
				preview := strings.Join(strings.Fields(c.Text), " ")
				tw.AppendRow(table.Row{c.Position, c.ID, c.Type, c.Metadata.ClauseNumber, tokens, text.Snip(preview, 60, "…")})
			}
			tw.AppendFooter(table.Row{"", "", "", "合计", total, ""})
			tw.SetStyle(table.StyleLight)
			tw.Render()
			return nil
		},
	}
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "每块的 token 预算 (默认取配置 chunk.max_tokens)")
	cmd.Flags().BoolVar(&noVision, "no-vision", false, "不使用视觉模型")
	return cmd
}
