package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/eigloo/agentgraph/types"
)

const payloadField = "payload"

// RedisBus publishes node input events to per-tenant Redis streams.
// Delivery retries and consumer-group bookkeeping belong to the
// executors reading the streams, not to this publisher.
type RedisBus struct {
	client redis.UniversalClient
	topics TopicNames
	logger *zap.Logger
	// maxLen caps each stream's length (approximate trim); zero keeps
	// streams unbounded.
	maxLen int64
}

// RedisBusOptions configures a RedisBus.
type RedisBusOptions struct {
	TopicPrefix string
	MaxLen      int64
	Logger      *zap.Logger
}

// NewRedisBus wraps an existing Redis client. The caller owns the
// client's lifecycle.
func NewRedisBus(client redis.UniversalClient, opts RedisBusOptions) *RedisBus {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBus{
		client: client,
		topics: NewTopicNames(opts.TopicPrefix),
		logger: logger,
		maxLen: opts.MaxLen,
	}
}

// Ping checks connectivity to Redis.
func (b *RedisBus) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// PublishPlanInput publishes a plan input to the tenant's stream.
func (b *RedisBus) PublishPlanInput(ctx context.Context, tenantID string, in types.PlanInput) error {
	return b.publish(ctx, b.topics.PlanInputs(tenantID), in.InputID, in)
}

// PublishTaskInput publishes a task input to the tenant's stream.
func (b *RedisBus) PublishTaskInput(ctx context.Context, tenantID string, in types.TaskInput) error {
	return b.publish(ctx, b.topics.TaskInputs(tenantID), in.InputID, in)
}

func (b *RedisBus) publish(ctx context.Context, stream, inputID string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal input %s: %w", inputID, err)
	}
	args := &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{payloadField: data},
	}
	if b.maxLen > 0 {
		args.MaxLen = b.maxLen
		args.Approx = true
	}
	if err := b.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("publish input %s to %s: %w", inputID, stream, err)
	}
	b.logger.Debug("published node input",
		zap.String("stream", stream),
		zap.String("input_id", inputID))
	return nil
}

// ReadPlanInputs reads up to count plan inputs after fromID ("-" for
// the stream head) and returns them with the last stream ID seen, for
// resuming.
func (b *RedisBus) ReadPlanInputs(ctx context.Context, tenantID, fromID string, count int64) ([]types.PlanInput, string, error) {
	messages, lastID, err := b.read(ctx, b.topics.PlanInputs(tenantID), fromID, count)
	if err != nil {
		return nil, "", err
	}
	inputs := make([]types.PlanInput, 0, len(messages))
	for _, payload := range messages {
		var in types.PlanInput
		if err := json.Unmarshal(payload, &in); err != nil {
			return nil, "", fmt.Errorf("decode plan input: %w", err)
		}
		inputs = append(inputs, in)
	}
	return inputs, lastID, nil
}

// ReadTaskInputs reads up to count task inputs after fromID.
func (b *RedisBus) ReadTaskInputs(ctx context.Context, tenantID, fromID string, count int64) ([]types.TaskInput, string, error) {
	messages, lastID, err := b.read(ctx, b.topics.TaskInputs(tenantID), fromID, count)
	if err != nil {
		return nil, "", err
	}
	inputs := make([]types.TaskInput, 0, len(messages))
	for _, payload := range messages {
		var in types.TaskInput
		if err := json.Unmarshal(payload, &in); err != nil {
			return nil, "", fmt.Errorf("decode task input: %w", err)
		}
		inputs = append(inputs, in)
	}
	return inputs, lastID, nil
}

func (b *RedisBus) read(ctx context.Context, stream, fromID string, count int64) ([][]byte, string, error) {
	if fromID == "" {
		fromID = "-"
	}
	entries, err := b.client.XRangeN(ctx, stream, fromID, "+", count).Result()
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", stream, err)
	}
	payloads := make([][]byte, 0, len(entries))
	lastID := fromID
	for _, entry := range entries {
		raw, ok := entry.Values[payloadField].(string)
		if !ok {
			b.logger.Warn("skipping stream entry without payload",
				zap.String("stream", stream),
				zap.String("id", entry.ID))
			continue
		}
		payloads = append(payloads, []byte(raw))
		lastID = entry.ID
	}
	return payloads, lastID, nil
}
