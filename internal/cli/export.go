package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nerdneilsfield/guided-translator/internal/export"
	"github.com/nerdneilsfield/guided-translator/internal/store"
	"github.com/nerdneilsfield/guided-translator/pkg/translate"
)

func newExportCommand() *cobra.Command {
	var (
		output          string
		format          string
		title           string
		fontPath        string
		includeOriginal bool
	)
	cmd := &cobra.Command{
		Use:   "export <project-id>",
		Short: "把项目的译文导出为 Markdown、HTML 或 PDF",
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
			project, err := st.Load(args[0])
			if err != nil {
				return err
			}

			chunks := projectChunks(project)
			if missing := len(project.Chunks) - len(chunks); missing > 0 {
				color.Yellow("还有 %d 块未翻译，导出内容不完整", missing)
			}

			if format == "" && output == "" {
				format = string(export.FormatMarkdown)
			}
			if output == "" {
				f, err := export.ParseFormat(format)
				if err != nil {
					return err
				}
				output = project.Name + ".zh" + f.Extension()
			}
			if fontPath == "" {
				fontPath = rt.cfg.Export.FontPath
			}
			return exportChunks(rt, chunks, output, format, export.Options{
				Title:           firstNonEmpty(title, project.Name),
				IncludeOriginal: includeOriginal,
				FontPath:        fontPath,
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "输出文件 (默认 <项目名>.zh.<扩展名>)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "markdown|html|pdf (默认按输出扩展名)")
	cmd.Flags().StringVar(&title, "title", "", "文档标题")
	cmd.Flags().StringVar(&fontPath, "font", "", "PDF 使用的中文 TTF 字体 (默认取配置 export.font_path)")
	cmd.Flags().BoolVar(&includeOriginal, "include-original", false, "保留英文原文")
	return cmd
}

// projectChunks 把已保存的记录按分块列表还原为翻译结果
func projectChunks(p *store.Project) []translate.TranslatedChunk {
	byID := make(map[string]store.ChunkRecord, len(p.Records))
	for _, r := range p.Records {
		byID[r.ChunkID] = r
	}
	out := make([]translate.TranslatedChunk, 0, len(p.Records))
	for _, c := range p.Chunks {
		if r, ok := byID[c.ID]; ok {
			out = append(out, r.TranslatedChunk(c))
		}
	}
	return out
}
