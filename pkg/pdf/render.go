package pdf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"
)

// ErrRendererUnavailable 找不到 pdftoppm
var ErrRendererUnavailable = errors.New("pdftoppm not found, install poppler-utils")

const baseDPI = 72.0

// RenderOptions 渲染参数：scale 相对 72 DPI，quality 取 0-1
type RenderOptions struct {
	Scale   float64
	Quality float64
}

// Renderer 使用 poppler 的 pdftoppm 把单页渲染为 JPEG
type Renderer struct {
	path   string
	binary string
	logger *zap.Logger
}

// NewRenderer 为指定 PDF 创建渲染器
func NewRenderer(path string, logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{path: path, binary: "pdftoppm", logger: logger}
}

// Available 检查 pdftoppm 是否可用
func (r *Renderer) Available() bool {
	_, err := exec.LookPath(r.binary)
	return err == nil
}

// Args 构造 pdftoppm 参数
func (r *Renderer) Args(page int, opts RenderOptions, prefix string) []string {
	dpi := int(baseDPI * opts.Scale)
	quality := int(opts.Quality * 100)
	return []string{
		"-f", strconv.Itoa(page),
		"-l", strconv.Itoa(page),
		"-r", strconv.Itoa(dpi),
		"-jpeg",
		"-jpegopt", fmt.Sprintf("quality=%d", quality),
		"-singlefile",
		r.path,
		prefix,
	}
}

// RenderPage 渲染第 page 页（从 1 开始）并返回 JPEG 字节
func (r *Renderer) RenderPage(ctx context.Context, page int, opts RenderOptions) ([]byte, error) {
	if !r.Available() {
		return nil, ErrRendererUnavailable
	}

	dir, err := os.MkdirTemp("", "guided-render-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	prefix := filepath.Join(dir, fmt.Sprintf("page_%d", page))
	cmd := exec.CommandContext(ctx, r.binary, r.Args(page, opts, prefix)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w, output: %s", err, string(out))
	}

	data, err := os.ReadFile(prefix + ".jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to read rendered page: %w", err)
	}

	r.logger.Debug("page rendered",
		zap.Int("page", page),
		zap.Float64("scale", opts.Scale),
		zap.Int("bytes", len(data)))
	return data, nil
}
