package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// 全局标志
	cfgFile   string
	debugMode bool
	logFile   string
)

// NewRootCommand 创建根命令
func NewRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "guided-translator",
		Short: "术语约束的英译中技术标准翻译工具",
		Long: `guided-translator 把英文技术标准（PDF 或 Markdown）翻译为中文。

流程：
  1. 提取：逐页判断复杂度，简单页按版面重建文本，含表格的复杂页交给视觉模型转写
  2. 分块：按章节和段落切分，保留条款编号
  3. 翻译：每块只注入出现在原文中的术语，译文必须使用术语表中的中文
  4. 持久化：每完成一块立即写入项目文件，中断后可以续译
  5. 导出：按位置重组为 Markdown、HTML 或 PDF

密钥通过配置文件 keys 或环境变量 GUIDED_API_KEYS（逗号分隔）提供，
付费密钥使用 GUIDED_PAID_API_KEYS。`,
		Version:      fmt.Sprintf("%s (commit %s, built %s)", version, commit, buildDate),
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件路径 (默认查找 $HOME/.guided-translator.yaml 和 ./.guided-translator.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "启用调试日志")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "额外把 JSON 日志写入该文件")

	rootCmd.AddCommand(
		newTranslateCommand(),
		newExtractCommand(),
		newChunksCommand(),
		newGlossaryCommand(),
		newKeysCommand(),
		newExportCommand(),
		newProjectsCommand(),
	)
	return rootCmd
}
