// Package ingest 负责把一批用户选择的文件写入对象存储与元数据表。
//
// 每个文件按顺序处理：先写对象，再插入元数据；元数据失败时尽力删除刚写入的对象。
// 任一时刻最多只有一个文件处于写入中。
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fileshelf/internal/repository"
	"fileshelf/internal/storage"
)

var (
	// ErrEmptyBatch 表示批次中没有任何文件。
	ErrEmptyBatch = errors.New("ingest: empty batch")
	// ErrUnreachable 表示连接状态为离线，拒绝开始批次。
	ErrUnreachable = errors.New("ingest: backend unreachable")
	// ErrStoreNotReady 表示存储容器不存在或不可访问。
	ErrStoreNotReady = errors.New("ingest: object store not ready")
)

// Gate 报告后端当前是否可达。
type Gate interface {
	IsReachable() bool
}

// ObjectStore 是协调器对对象存储的最小依赖。
type ObjectStore interface {
	storage.Writer
	storage.Prober
}

// MetadataStore 是协调器对元数据表的最小依赖。
type MetadataStore interface {
	Insert(ctx context.Context, record repository.NewFileRecord) (*repository.FileRecord, error)
}

// ProgressFunc 在每个文件开始处理前调用，index 从 0 开始。
type ProgressFunc func(index, total int, name string)

// Options 配置协调器的可选行为。
type Options struct {
	// OpTimeout 限制单次存储或数据库调用，零值表示不限制。
	OpTimeout time.Duration
	Progress  ProgressFunc
	Keys      *KeyDeriver
}

// Coordinator 顺序执行批次上传。
type Coordinator struct {
	objects  ObjectStore
	records  MetadataStore
	gate     Gate
	logger   *slog.Logger
	timeout  time.Duration
	progress ProgressFunc
	keys     *KeyDeriver
}

func NewCoordinator(objects ObjectStore, records MetadataStore, gate Gate, logger *slog.Logger, opts Options) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	keys := opts.Keys
	if keys == nil {
		keys = NewKeyDeriver()
	}
	return &Coordinator{
		objects:  objects,
		records:  records,
		gate:     gate,
		logger:   logger.With("component", "ingest"),
		timeout:  opts.OpTimeout,
		progress: opts.Progress,
		keys:     keys,
	}
}

// Ingest 处理已通过校验的文件。前置条件失败时返回错误且不做任何写入；
// 否则总是返回与输入顺序一致的逐文件结果。
//
// ctx 取消只在文件之间生效：正在处理的文件会完成写入、插入或补偿，
// 剩余文件标记为 cancelled。
func (c *Coordinator) Ingest(ctx context.Context, batch []Candidate) (Outcome, error) {
	if len(batch) == 0 {
		return Outcome{}, ErrEmptyBatch
	}
	if c.gate != nil && !c.gate.IsReachable() {
		return Outcome{}, ErrUnreachable
	}

	probeCtx, cancel := c.opContext(ctx)
	err := c.objects.Probe(probeCtx)
	cancel()
	if err != nil {
		c.logger.Warn("object store not ready, batch refused", "error", err)
		return Outcome{}, fmt.Errorf("%w: %v", ErrStoreNotReady, err)
	}

	start := time.Now()
	out := Outcome{Files: make([]FileOutcome, 0, len(batch))}

	for i, cand := range batch {
		if ctx.Err() != nil {
			for _, rest := range batch[i:] {
				res := FileOutcome{Name: rest.Name, Size: rest.Size, Status: StatusCancelled}
				recordFile(res)
				out.Files = append(out.Files, res)
			}
			c.logger.Info("batch cancelled", "processed", i, "remaining", len(batch)-i)
			break
		}
		if c.progress != nil {
			c.progress(i, len(batch), cand.Name)
		}

		res := c.ingestOne(context.WithoutCancel(ctx), cand)
		recordFile(res)
		out.Files = append(out.Files, res)
	}

	ingestBatchDuration.Observe(time.Since(start).Seconds())
	c.logger.Info("batch finished",
		"files", len(batch),
		"succeeded", out.Succeeded(),
		"failed", out.Failed(),
		"cancelled", out.Cancelled(),
		"duration", time.Since(start),
	)
	return out, nil
}

func (c *Coordinator) ingestOne(ctx context.Context, cand Candidate) FileOutcome {
	key := c.keys.Derive(cand.Name)
	res := FileOutcome{Name: cand.Name, Size: cand.Size, Key: key}

	if err := c.writeObject(ctx, key, cand); err != nil {
		c.logger.Warn("object write failed", "name", cand.Name, "key", key, "error", err)
		res.Status = StatusFailed
		res.Reason = ReasonWriteFailed
		res.Detail = err.Error()
		return res
	}

	previewURL := c.objects.PublicURL(key)

	insertCtx, cancel := c.opContext(ctx)
	rec, err := c.records.Insert(insertCtx, repository.NewFileRecord{
		Name:       cand.Name,
		Size:       cand.Size,
		Type:       cand.MimeType,
		FilePath:   key,
		PreviewURL: previewURL,
	})
	cancel()
	if err != nil {
		c.logger.Warn("metadata insert failed, removing object", "name", cand.Name, "key", key, "error", err)
		res.Status = StatusFailed
		res.Reason = ReasonMetadataFailed
		res.Detail = err.Error()
		res.orphaned = !c.compensate(ctx, key)
		return res
	}

	res.Status = StatusSucceeded
	res.RecordID = rec.ID
	res.PreviewURL = previewURL
	return res
}

func (c *Coordinator) writeObject(ctx context.Context, key string, cand Candidate) error {
	if cand.Open == nil {
		return errors.New("no content")
	}
	body, err := cand.Open()
	if err != nil {
		return fmt.Errorf("open content: %w", err)
	}
	defer body.Close()

	putCtx, cancel := c.opContext(ctx)
	defer cancel()
	return c.objects.Put(putCtx, key, body, cand.Size, cand.MimeType)
}

// compensate 删除元数据写入失败的对象，返回 false 表示对象可能残留。
func (c *Coordinator) compensate(ctx context.Context, key string) bool {
	delCtx, cancel := c.opContext(ctx)
	defer cancel()

	if err := c.objects.Delete(delCtx, key); err != nil {
		ingestCompensationsTotal.WithLabelValues("failed").Inc()
		c.logger.Error("compensating delete failed, object orphaned", "key", key, "error", err)
		return false
	}
	ingestCompensationsTotal.WithLabelValues("succeeded").Inc()
	return true
}

func (c *Coordinator) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}
