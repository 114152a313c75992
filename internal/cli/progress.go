package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/nerdneilsfield/guided-translator/pkg/batch"
	"github.com/nerdneilsfield/guided-translator/pkg/translate"
)

// progressView 把批次事件渲染成单行进度条、状态行和最终汇总表
type progressView struct {
	w       io.Writer
	verbose bool

	barWidth      int
	completedChar string
	remainingChar string

	percentColor text.Colors
	barColor     text.Colors
	unitColor    text.Colors
	timeColor    text.Colors
	termColor    text.Colors

	start     time.Time
	onLine    bool
	countdown bool
	warnings  int
}

func newProgressView(w io.Writer, verbose bool) *progressView {
	return &progressView{
		w:             w,
		verbose:       verbose,
		barWidth:      40,
		completedChar: "█",
		remainingChar: "░",
		percentColor:  text.Colors{text.FgHiWhite},
		barColor:      text.Colors{text.FgCyan},
		unitColor:     text.Colors{text.FgYellow},
		timeColor:     text.Colors{text.FgGreen},
		termColor:     text.Colors{text.FgMagenta},
		start:         time.Now(),
	}
}

// Handle 处理一个事件，返回 Done 事件携带的汇总
func (v *progressView) Handle(ev batch.Event) *batch.Summary {
	switch ev.Kind {
	case batch.EventProgress:
		v.renderProgress(ev.Progress)
	case batch.EventStatus:
		v.renderStatus(ev.Status)
	case batch.EventChunkComplete:
		if v.verbose && ev.Chunk != nil {
			v.line(color.New(color.FgHiBlack).Sprintf("  ✓ %s (%d 个术语)", ev.Chunk.ID, len(ev.Chunk.MatchedTerms)))
		}
	case batch.EventError:
		v.warnings++
		v.line(color.RedString("  ✗ %s: %v", ev.ChunkID, ev.Err))
	case batch.EventDone:
		v.breakLine()
		return ev.Summary
	}
	return nil
}

func (v *progressView) renderProgress(p *batch.Progress) {
	if p == nil {
		return
	}
	var b strings.Builder
	b.WriteString("\r\x1b[K")
	b.WriteString(v.percentColor.Sprintf("%3d%%", p.Percentage))
	b.WriteString(" [")

	completed := 0
	if p.Total > 0 {
		completed = v.barWidth * p.Current / p.Total
	}
	if completed > v.barWidth {
		completed = v.barWidth
	}
	if completed > 0 {
		b.WriteString(v.barColor.Sprint(strings.Repeat(v.completedChar, completed)))
	}
	b.WriteString(strings.Repeat(v.remainingChar, v.barWidth-completed))
	b.WriteString("] ")

	b.WriteString(v.unitColor.Sprintf("%d/%d chunks", p.Current, p.Total))
	b.WriteString(" ")
	b.WriteString(v.timeColor.Sprintf("用时: %s", formatDuration(time.Since(v.start))))
	if p.EstimatedTimeRemaining > 0 {
		b.WriteString(" ")
		b.WriteString(v.timeColor.Sprintf("ETA: %s", formatDuration(p.EstimatedTimeRemaining)))
	}
	b.WriteString(" ")
	b.WriteString(v.termColor.Sprintf("术语覆盖: %d%%", p.GlossaryCoverage.Percentage))

	if v.countdown {
		v.breakLine()
	}
	fmt.Fprint(v.w, b.String())
	v.onLine = true
}

func (v *progressView) renderStatus(s *translate.Status) {
	if s == nil {
		return
	}
	msg := color.YellowString("  ⏳ %s", s.Message)
	if s.CanSkipToPaid {
		msg += color.CyanString("  (输入 p 回车切换到付费密钥)")
	}
	// 倒计时在同一行刷新
	if s.Countdown > 0 {
		if !v.countdown {
			v.breakLine()
		}
		fmt.Fprint(v.w, "\r\x1b[K"+msg)
		v.onLine = true
		v.countdown = true
		return
	}
	v.line(msg)
}

func (v *progressView) line(s string) {
	v.breakLine()
	fmt.Fprintln(v.w, s)
}

func (v *progressView) breakLine() {
	if v.onLine {
		fmt.Fprintln(v.w)
		v.onLine = false
	}
	v.countdown = false
}

// renderSummary 渲染最终的汇总表格
func renderSummary(w io.Writer, projectID string, s *batch.Summary) {
	if s == nil {
		return
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(w)

	tw.AppendRow(table.Row{"项", "值"})
	tw.AppendSeparator()
	tw.AppendRow(table.Row{"项目", projectID})
	tw.AppendRow(table.Row{"分块总数", s.Total})
	tw.AppendRow(table.Row{"续译跳过", s.Resumed})
	tw.AppendRow(table.Row{"本次翻译", s.Translated})
	tw.AppendRow(table.Row{"失败", s.Failed})
	tw.AppendRow(table.Row{"总耗时", formatDuration(s.Duration)})
	tw.AppendSeparator()
	tw.AppendRow(table.Row{"输入 Tokens", s.TokenUsage.Input})
	tw.AppendRow(table.Row{"输出 Tokens", s.TokenUsage.Output})
	tw.AppendRow(table.Row{"术语覆盖", fmt.Sprintf("%d/%d (%d%%)", s.Coverage.Matched, s.Coverage.Total, s.Coverage.Percentage)})

	switch {
	case s.Err != nil:
		tw.AppendSeparator()
		tw.AppendRow(table.Row{"状态", color.RedString("中止: %v", s.Err)})
	case s.Canceled:
		tw.AppendSeparator()
		tw.AppendRow(table.Row{"状态", color.YellowString("已取消，可使用 --resume %s 继续", projectID)})
	}

	tw.SetStyle(table.StyleLight)
	tw.Render()
	fmt.Fprintln(w)
}

// formatDuration 格式化时间间隔
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm%ds", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}
