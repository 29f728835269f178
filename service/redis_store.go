package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/Areen-09/legal-doc-demystifier/config"
	"github.com/Areen-09/legal-doc-demystifier/model"
	"github.com/Areen-09/legal-doc-demystifier/pkg/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each document record in a hash, one field per record
// field, and announces committed revisions on a per-document channel.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to the configured Redis instance
func NewRedisStore(cfg *config.StoreConfig) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, cfg.ChannelPrefix), nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client
func NewRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "legalmind"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) docKey(id string) string {
	return s.prefix + ":doc:" + id
}

func (s *RedisStore) ownerKey(ownerID string) string {
	return s.prefix + ":owner:" + ownerID + ":docs"
}

func (s *RedisStore) channel(id string) string {
	return s.prefix + ":doc:" + id + ":revisions"
}

const (
	fieldOwnerID       = "owner_id"
	fieldFileName      = "file_name"
	fieldFileSize      = "file_size"
	fieldFileType      = "file_type"
	fieldUploadStatus  = "upload_status"
	fieldStatusMessage = "status_message"
	fieldBinaryPath    = "binary_path"
	fieldHTMLContent   = "html_content"
	fieldInsights      = "insights"
	fieldRevision      = "revision"
	fieldCreatedAt     = "created_at"
	fieldUpdatedAt     = "updated_at"
)

func (s *RedisStore) Create(ctx context.Context, ownerID string, initial model.DocumentRecord) (string, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	fields := map[string]any{
		fieldOwnerID:       ownerID,
		fieldFileName:      initial.FileName,
		fieldFileSize:      initial.FileSize,
		fieldFileType:      string(initial.FileType),
		fieldUploadStatus:  string(initial.UploadStatus),
		fieldStatusMessage: initial.StatusMessage,
		fieldBinaryPath:    initial.BinaryPath,
		fieldHTMLContent:   initial.HTMLContent,
		fieldRevision:      1,
		fieldCreatedAt:     now.Format(time.RFC3339Nano),
		fieldUpdatedAt:     now.Format(time.RFC3339Nano),
	}
	if initial.Insights != nil {
		raw, err := json.Marshal(initial.Insights)
		if err != nil {
			return "", fmt.Errorf("marshal insights: %w", err)
		}
		fields[fieldInsights] = string(raw)
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.docKey(id), fields)
		pipe.ZAdd(ctx, s.ownerKey(ownerID), redis.Z{Score: float64(now.UnixNano()), Member: id})
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("create document: %w", err)
	}
	return id, nil
}

// Update writes only the patched hash fields, bumps the revision in the same
// transaction and publishes the committed revision number.
func (s *RedisStore) Update(ctx context.Context, id string, patch model.Patch) error {
	key := s.docKey(id)

	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("check document: %w", err)
	}
	if n == 0 {
		return ErrDocumentNotFound
	}

	fields, err := patchFields(patch)
	if err != nil {
		return err
	}
	fields[fieldUpdatedAt] = time.Now().UTC().Format(time.RFC3339Nano)

	var rev *redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fields)
		rev = pipe.HIncrBy(ctx, key, fieldRevision, 1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}

	// The write is committed either way; a lost notification is caught up by
	// the next revision.
	if err := s.client.Publish(ctx, s.channel(id), rev.Val()).Err(); err != nil {
		logger.Warn(ctx, "failed to publish document revision", "document_id", id, "revision", rev.Val(), "error", err)
	}
	return nil
}

func patchFields(p model.Patch) (map[string]any, error) {
	fields := make(map[string]any)
	if p.UploadStatus != nil {
		fields[fieldUploadStatus] = string(*p.UploadStatus)
	}
	if p.StatusMessage != nil {
		fields[fieldStatusMessage] = *p.StatusMessage
	}
	if p.BinaryPath != nil {
		fields[fieldBinaryPath] = *p.BinaryPath
	}
	if p.HTMLContent != nil {
		fields[fieldHTMLContent] = *p.HTMLContent
	}
	if p.Insights != nil {
		raw, err := json.Marshal(p.Insights)
		if err != nil {
			return nil, fmt.Errorf("marshal insights: %w", err)
		}
		fields[fieldInsights] = string(raw)
	}
	return fields, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*model.DocumentRecord, error) {
	values, err := s.client.HGetAll(ctx, s.docKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	if len(values) == 0 {
		return nil, ErrDocumentNotFound
	}
	return decodeRecord(id, values)
}

// ListByOwner returns the owner's records, newest first
func (s *RedisStore) ListByOwner(ctx context.Context, ownerID string) ([]*model.DocumentRecord, error) {
	ids, err := s.client.ZRevRange(ctx, s.ownerKey(ownerID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	result := make([]*model.DocumentRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Get(ctx, id)
		if err == ErrDocumentNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, nil
}

// Subscribe delivers the current snapshot and then the record as of every
// announced revision. Announcements older than what was already delivered
// are skipped; delivery is at-least-once.
func (s *RedisStore) Subscribe(ctx context.Context, id string, onRevision RevisionFunc, onError ErrorFunc) (func(), error) {
	sub := s.client.Subscribe(ctx, s.channel(id))

	// ensures subscription actually started before the snapshot is read
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	snapshot, err := s.Get(ctx, id)
	if err != nil {
		_ = sub.Close()
		return nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)

	go func() {
		defer sub.Close()

		last := snapshot.Revision
		onRevision(snapshot)

		ch := sub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				if announced, err := strconv.ParseInt(m.Payload, 10, 64); err == nil && announced <= last {
					continue
				}

				rec, err := s.Get(subCtx, id)
				if subCtx.Err() != nil {
					return
				}
				if err != nil {
					if onError != nil {
						onError(err)
					}
					continue
				}
				if rec.Revision <= last {
					continue
				}
				last = rec.Revision
				onRevision(rec)
			}
		}
	}()

	return cancel, nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func decodeRecord(id string, v map[string]string) (*model.DocumentRecord, error) {
	rec := &model.DocumentRecord{
		ID:            id,
		OwnerID:       v[fieldOwnerID],
		FileName:      v[fieldFileName],
		FileType:      model.FileType(v[fieldFileType]),
		UploadStatus:  model.UploadStatus(v[fieldUploadStatus]),
		StatusMessage: v[fieldStatusMessage],
		BinaryPath:    v[fieldBinaryPath],
		HTMLContent:   v[fieldHTMLContent],
	}

	var err error
	if raw := v[fieldFileSize]; raw != "" {
		if rec.FileSize, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return nil, fmt.Errorf("decode file size: %w", err)
		}
	}
	if raw := v[fieldRevision]; raw != "" {
		if rec.Revision, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return nil, fmt.Errorf("decode revision: %w", err)
		}
	}
	if raw := v[fieldCreatedAt]; raw != "" {
		if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, raw); err != nil {
			return nil, fmt.Errorf("decode created_at: %w", err)
		}
	}
	if raw := v[fieldUpdatedAt]; raw != "" {
		if rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, raw); err != nil {
			return nil, fmt.Errorf("decode updated_at: %w", err)
		}
	}
	if raw := v[fieldInsights]; raw != "" {
		var insights model.InsightBundle
		if err := json.Unmarshal([]byte(raw), &insights); err != nil {
			return nil, fmt.Errorf("decode insights: %w", err)
		}
		rec.Insights = &insights
	}
	return rec, nil
}
