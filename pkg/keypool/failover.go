package keypool

import (
	"context"
	"fmt"
	"strings"
)

// KeyFailure 单个密钥的失败记录
type KeyFailure struct {
	Index int
	Key   string
	Err   error
}

// AggregateError 所有密钥都失败时返回，列出每个底层错误
type AggregateError struct {
	Failures []KeyFailure
}

func (e *AggregateError) Error() string {
	msgs := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		msgs = append(msgs, fmt.Sprintf("key %d (%s): %v", f.Index+1, Mask(f.Key), f.Err))
	}
	return fmt.Sprintf("all %d api keys failed: %s", len(e.Failures), strings.Join(msgs, "; "))
}

// Unwrap 暴露底层错误供 errors.Is/As 使用
func (e *AggregateError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// Task 使用指定密钥执行的一次调用
type Task[T any] func(ctx context.Context, key APIKey) (T, error)

// RunWithFailover 按顺序对每个密钥执行一次 task，首个成功即返回。
// 这一层不做退避；全部失败时返回 *AggregateError。
func RunWithFailover[T any](ctx context.Context, keys []APIKey, task Task[T]) (T, error) {
	var zero T
	if len(keys) == 0 {
		return zero, ErrEmptyPool
	}

	agg := &AggregateError{}
	for i, key := range keys {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		result, err := task(ctx, key)
		if err == nil {
			return result, nil
		}
		agg.Failures = append(agg.Failures, KeyFailure{Index: i, Key: key.Key, Err: err})
	}
	return zero, agg
}
