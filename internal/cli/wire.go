package cli

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nerdneilsfield/guided-translator/internal/config"
	"github.com/nerdneilsfield/guided-translator/internal/logger"
	"github.com/nerdneilsfield/guided-translator/internal/store"
	"github.com/nerdneilsfield/guided-translator/pkg/extract"
	"github.com/nerdneilsfield/guided-translator/pkg/keypool"
	"github.com/nerdneilsfield/guided-translator/pkg/llm"
	"github.com/nerdneilsfield/guided-translator/pkg/translate"
	"github.com/nerdneilsfield/guided-translator/pkg/vision"
)

// runtime 一次命令执行所需的依赖
type runtime struct {
	cfg *config.Config
	log *zap.Logger
}

// setup 加载配置并创建日志；needKeys 为 true 时要求配置可用于模型调用
func setup(needKeys bool) (*runtime, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	if debugMode {
		cfg.Debug = true
	}
	if logFile != "" {
		cfg.LogFile = logFile
	}

	log, err := logger.New(logger.Options{Debug: cfg.Debug, LogFile: cfg.LogFile, Quiet: !cfg.Debug})
	if err != nil {
		return nil, err
	}

	if needKeys {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return &runtime{cfg: cfg, log: log}, nil
}

func (r *runtime) close() {
	_ = r.log.Sync()
}

func (r *runtime) keyPool() (*keypool.Pool, error) {
	pool, err := keypool.NewPool(r.cfg.Keys)
	if err != nil {
		return nil, fmt.Errorf("初始化密钥池失败: %w", err)
	}
	return pool, nil
}

func (r *runtime) llmClient() (llm.Client, error) {
	return llm.New(llm.Config{
		SDK:      r.cfg.LLM.SDK,
		BaseURL:  r.cfg.LLM.BaseURL,
		Timeout:  r.cfg.LLM.RequestTimeout,
		RPMLimit: r.cfg.LLM.RPMLimit,
	}, r.log)
}

// extractor 创建文档提取器；visionEnabled 为 false 时不需要模型客户端
func (r *runtime) extractor(client llm.Client, pool *keypool.Pool, visionEnabled bool, onProgress extract.ProgressFunc) *extract.Extractor {
	opts := extract.Options{
		VisionEnabled: visionEnabled && client != nil && pool != nil,
		Validate:      r.cfg.Extract.Validate,
		MaxFileBytes:  r.cfg.MaxFileBytes(),
		OnProgress:    onProgress,
	}
	var v extract.VisionExtractor
	if opts.VisionEnabled {
		v = vision.NewClient(client, pool, vision.Options{
			Model:           r.cfg.LLM.VisionModel,
			MaxOutputTokens: r.cfg.LLM.MaxOutputTokens,
		}, r.log)
	}
	return extract.NewExtractor(v, opts, r.log)
}

func (r *runtime) engine(client llm.Client, pool *keypool.Pool) *translate.Engine {
	return translate.NewEngine(client, pool, translate.Config{
		Model:           r.cfg.LLM.Model,
		Temperature:     r.cfg.LLM.Temperature,
		MaxOutputTokens: r.cfg.LLM.MaxOutputTokens,
		CooldownSeconds: r.cfg.RateLimit.CooldownSeconds,
		CooldownTick:    time.Second,
		MaxRetries:      r.cfg.RateLimit.MaxRetries,
	}, r.log)
}

func (r *runtime) openStore() (*store.Store, error) {
	return store.Open(r.cfg.Store.Dir, r.log)
}
