package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/fatih/color"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/nerdneilsfield/guided-translator/pkg/extract"
	"github.com/nerdneilsfield/guided-translator/pkg/keypool"
	"github.com/nerdneilsfield/guided-translator/pkg/llm"
)

type extractOptions struct {
	output   string
	noVision bool
	validate bool
}

func newExtractCommand() *cobra.Command {
	opts := &extractOptions{}
	cmd := &cobra.Command{
		Use:   "extract <input.pdf|input.md>",
		Short: "提取文档文本并报告每页的复杂度与提取方式",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(false)
			if err != nil {
				return err
			}
			defer rt.close()
			if opts.validate {
				rt.cfg.Extract.Validate = true
			}

			client, pool := rt.optionalVision(rt.cfg.Extract.VisionEnabled && !opts.noVision)
			doc, err := extractDocument(cmd.Context(), rt, client, pool, client != nil, args[0])
			if err != nil {
				return err
			}

			renderPageReport(doc)
			if opts.output != "" {
				if err := os.WriteFile(opts.output, []byte(doc.Text), 0o644); err != nil {
					return fmt.Errorf("写入输出文件失败: %w", err)
				}
				color.Green("已写入: %s", opts.output)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "把提取的 Markdown 写入该文件")
	cmd.Flags().BoolVar(&opts.noVision, "no-vision", false, "不使用视觉模型")
	cmd.Flags().BoolVar(&opts.validate, "validate", false, "视觉转写后再让模型自检一次")
	return cmd
}

// optionalVision 配置了密钥时返回视觉所需的客户端和密钥池，否则返回 nil
func (r *runtime) optionalVision(want bool) (llm.Client, *keypool.Pool) {
	if !want {
		return nil, nil
	}
	if len(r.cfg.Keys) == 0 {
		pterm.Warning.Println("未配置 API 密钥，所有页面按版面重建")
		return nil, nil
	}
	pool, err := r.keyPool()
	if err != nil {
		pterm.Warning.Println(err.Error())
		return nil, nil
	}
	client, err := r.llmClient()
	if err != nil {
		pterm.Warning.Println(err.Error())
		return nil, nil
	}
	return client, pool
}

// extractDocument 带进度提示地提取文档
func extractDocument(ctx context.Context, rt *runtime, client llm.Client, pool *keypool.Pool, visionEnabled bool, path string) (*extract.DocumentStructure, error) {
	spinner, _ := pterm.DefaultSpinner.Start("提取文档: " + filepath.Base(path))
	onProgress := func(current, total int) {
		if spinner != nil {
			spinner.UpdateText(fmt.Sprintf("提取页面 %d/%d", current, total))
		}
	}

	doc, err := rt.extractor(client, pool, visionEnabled, onProgress).ExtractFile(ctx, path)
	if err != nil {
		if spinner != nil {
			spinner.Fail("提取失败: " + err.Error())
		}
		return nil, err
	}
	if spinner != nil {
		spinner.Success(fmt.Sprintf("提取完成: %d 页, %d 词, 语言 %s", doc.Pages, doc.WordCount, doc.Language))
	}
	return doc, nil
}

func renderPageReport(doc *extract.DocumentStructure) {
	if len(doc.PageResults) == 0 {
		return
	}
	data := pterm.TableData{{"页", "复杂度", "方式", "置信度", "字符数"}}
	for _, p := range doc.PageResults {
		method := string(p.Method)
		if p.Method == extract.MethodFallback {
			method = pterm.Yellow(method)
		}
		data = append(data, []string{
			strconv.Itoa(p.Page),
			string(p.Complexity),
			method,
			strconv.Itoa(p.Confidence),
			strconv.Itoa(len([]rune(p.Text))),
		})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
