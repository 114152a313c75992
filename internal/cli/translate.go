package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/guided-translator/internal/export"
	"github.com/nerdneilsfield/guided-translator/internal/store"
	"github.com/nerdneilsfield/guided-translator/pkg/batch"
	"github.com/nerdneilsfield/guided-translator/pkg/chunk"
	"github.com/nerdneilsfield/guided-translator/pkg/glossary"
	"github.com/nerdneilsfield/guided-translator/pkg/translate"
)

type translateOptions struct {
	glossaryPath    string
	name            string
	resume          string
	output          string
	format          string
	title           string
	noVision        bool
	includeOriginal bool
	verbose         bool
}

func newTranslateCommand() *cobra.Command {
	opts := &translateOptions{}
	cmd := &cobra.Command{
		Use:   "translate [input.pdf|input.md]",
		Short: "提取、分块并按术语表翻译一个文档",
		Example: `  guided-translator translate crane.pdf --glossary terms.csv -o crane.zh.md
  guided-translator translate --resume 3f0c9d1e-... -o crane.zh.html`,
		Args: func(cmd *cobra.Command, args []string) error {
			if opts.resume != "" {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(cmd, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.glossaryPath, "glossary", "g", "", "术语表 CSV (english,chinese)")
	cmd.Flags().StringVar(&opts.name, "name", "", "项目名称 (默认取输入文件名)")
	cmd.Flags().StringVar(&opts.resume, "resume", "", "续译已有项目 ID")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "翻译完成后导出到该文件")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "导出格式 markdown|html|pdf (默认按输出扩展名)")
	cmd.Flags().StringVar(&opts.title, "title", "", "导出文档标题")
	cmd.Flags().BoolVar(&opts.noVision, "no-vision", false, "不使用视觉模型，所有页面按版面重建")
	cmd.Flags().BoolVar(&opts.includeOriginal, "include-original", false, "导出时保留英文原文")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "逐块显示完成情况")
	return cmd
}

func runTranslate(cmd *cobra.Command, opts *translateOptions, args []string) error {
	rt, err := setup(true)
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := rt.keyPool()
	if err != nil {
		return err
	}
	client, err := rt.llmClient()
	if err != nil {
		return err
	}
	st, err := rt.openStore()
	if err != nil {
		return err
	}

	var (
		project   *store.Project
		completed []translate.TranslatedChunk
		entries   []glossary.Entry
	)

	if opts.resume != "" {
		project, err = st.Load(opts.resume)
		if err != nil {
			return err
		}
		glossaryPath := opts.glossaryPath
		if glossaryPath == "" {
			glossaryPath = project.GlossaryFile
		}
		if entries, err = glossary.LoadCSVFile(glossaryPath); err != nil {
			return err
		}
		completed = store.CompletedPrefix(project)
		color.Cyan("续译项目 %s: 已完成 %d/%d 块", project.ID, len(completed), len(project.Chunks))
	} else {
		if opts.glossaryPath == "" {
			return errors.New("需要通过 --glossary 指定术语表")
		}
		if entries, err = glossary.LoadCSVFile(opts.glossaryPath); err != nil {
			return err
		}

		input := args[0]
		doc, err := extractDocument(ctx, rt, client, pool, rt.cfg.Extract.VisionEnabled && !opts.noVision, input)
		if err != nil {
			return err
		}
		if err := doc.RequireEnglish(); err != nil {
			return err
		}

		chunks := chunk.SplitIntoChunks(doc.Text, rt.cfg.Chunk.MaxTokens)
		if len(chunks) == 0 {
			return errors.New("文档中没有可翻译的文本")
		}

		name := opts.name
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
		}
		project, err = st.CreateProject(name, absPath(input), absPath(opts.glossaryPath), chunks)
		if err != nil {
			return err
		}
		color.Cyan("项目 %s: %d 块, 术语 %d 条", project.ID, len(chunks), len(entries))
	}

	engine := rt.engine(client, pool)
	if pool.HasPaid() {
		go listenSkipToPaid(ctx, cmd.InOrStdin(), engine, cmd.ErrOrStderr())
	}

	coordinator := batch.NewCoordinator(engine, batch.Options{
		Delay:     rt.cfg.Batch.Delay,
		Persister: st.Persister(project.ID),
	}, rt.log)

	events, err := coordinator.Run(ctx, project.Chunks, completed, entries)
	if err != nil {
		return err
	}

	view := newProgressView(cmd.ErrOrStderr(), opts.verbose)
	var summary *batch.Summary
	for ev := range events {
		if s := view.Handle(ev); s != nil {
			summary = s
		}
	}
	renderSummary(cmd.OutOrStdout(), project.ID, summary)

	switch {
	case summary == nil:
		return errors.New("批次未正常结束")
	case summary.Err != nil:
		return summary.Err
	case summary.Canceled:
		return context.Canceled
	}

	if opts.output == "" {
		return nil
	}
	return exportChunks(rt, summary.Chunks, opts.output, opts.format, export.Options{
		Title:           firstNonEmpty(opts.title, project.Name),
		IncludeOriginal: opts.includeOriginal,
		FontPath:        rt.cfg.Export.FontPath,
	})
}

// listenSkipToPaid 从标准输入读取 "p"，打断冷却并切到付费密钥
func listenSkipToPaid(ctx context.Context, r io.Reader, engine *translate.Engine, w io.Writer) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		if !strings.EqualFold(strings.TrimSpace(scanner.Text()), "p") {
			continue
		}
		if engine.SkipToPaid() {
			color.New(color.FgCyan).Fprintln(w, "  → 已切换到付费密钥")
		} else {
			color.New(color.FgRed).Fprintln(w, "  没有可用的付费密钥")
		}
	}
}

func exportChunks(rt *runtime, chunks []translate.TranslatedChunk, output, format string, opts export.Options) error {
	if format == "" {
		format = filepath.Ext(output)
	}
	f, err := export.ParseFormat(format)
	if err != nil {
		return err
	}
	if err := export.WriteFile(output, f, chunks, opts); err != nil {
		return err
	}
	rt.log.Info("导出完成", zap.String("path", output), zap.String("format", string(f)), zap.Int("chunks", len(chunks)))
	color.Green("已导出: %s", output)
	return nil
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
