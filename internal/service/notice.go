package service

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/atinyakov/BoxtalConnect/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CustomNoticeTTL is how long a non-core notice stays visible.
const CustomNoticeTTL = 24 * time.Hour

const customNoticePrefix = "bw_"

// NoticeController is the only writer of the active notice list.
//
// Core kinds keep their payload in a durable option and use the kind name as
// key. Other kinds are stored in a transient under a generated key and vanish
// from the list the first time they are read after expiring.
type NoticeController struct {
	store  Store
	log    *zap.Logger
	newKey func() string

	// mu serialises read-modify-write cycles on the active list within this process.
	mu sync.Mutex
}

// NewNoticeController constructs a NoticeController over store.
func NewNoticeController(store Store, log *zap.Logger) *NoticeController {
	return &NoticeController{
		store: store,
		log:   log,
		newKey: func() string {
			return customNoticePrefix + uuid.NewString()
		},
	}
}

// GetNoticeKeys returns the active notice keys in insertion order.
func (c *NoticeController) GetNoticeKeys(ctx context.Context) ([]string, error) {
	var keys []string
	if _, err := c.store.GetOption(ctx, optActiveNotices, &keys); err != nil {
		return nil, fmt.Errorf("load active notices: %w", err)
	}
	return keys, nil
}

// AddNotice activates a notice of kind. For core kinds a non-empty payload
// replaces the stored one and an empty payload keeps it; re-adding never
// duplicates the key.
func (c *NoticeController) AddNotice(ctx context.Context, kind models.NoticeKind, payload map[string]any) error {
	var key string
	if kind.IsCore() {
		key = string(kind)
		if len(payload) > 0 {
			if err := c.store.SetOption(ctx, optNoticePrefix+key, payload); err != nil {
				return fmt.Errorf("store %s notice: %w", kind, err)
			}
		}
	} else {
		key = c.newKey()
		value := make(map[string]any, len(payload)+1)
		maps.Copy(value, payload)
		value["kind"] = string(kind)
		if err := c.store.SetTransient(ctx, key, value, CustomNoticeTTL); err != nil {
			return fmt.Errorf("store %s notice: %w", kind, err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	keys, err := c.GetNoticeKeys(ctx)
	if err != nil {
		return err
	}
	if slices.Contains(keys, key) {
		return nil
	}
	return c.saveKeys(ctx, append(keys, key))
}

// RemoveNotice deactivates key. Unknown keys are ignored.
func (c *NoticeController) RemoveNotice(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys, err := c.GetNoticeKeys(ctx)
	if err != nil {
		return err
	}
	idx := slices.Index(keys, key)
	if idx < 0 {
		return nil
	}
	return c.saveKeys(ctx, slices.Delete(keys, idx, idx+1))
}

// RemoveAllNotices empties the active list. Stored core payloads are kept.
func (c *NoticeController) RemoveAllNotices(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saveKeys(ctx, []string{})
}

// HasNotice reports whether key is active.
func (c *NoticeController) HasNotice(ctx context.Context, key string) (bool, error) {
	keys, err := c.GetNoticeKeys(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(keys, key), nil
}

// HasNotices reports whether any notice is active.
func (c *NoticeController) HasNotices(ctx context.Context) (bool, error) {
	keys, err := c.GetNoticeKeys(ctx)
	if err != nil {
		return false, err
	}
	return len(keys) > 0, nil
}

// HasNoticeOfKind reports whether a live notice of kind is active.
func (c *NoticeController) HasNoticeOfKind(ctx context.Context, kind models.NoticeKind) (bool, error) {
	if kind.IsCore() {
		return c.HasNotice(ctx, string(kind))
	}
	notices, err := c.resolve(ctx)
	if err != nil {
		return false, err
	}
	return slices.ContainsFunc(notices, func(n models.Notice) bool { return n.Kind == kind }), nil
}

// RemoveNoticesOfKind deactivates every active notice of kind.
func (c *NoticeController) RemoveNoticesOfKind(ctx context.Context, kind models.NoticeKind) error {
	if kind.IsCore() {
		return c.RemoveNotice(ctx, string(kind))
	}
	notices, err := c.resolve(ctx)
	if err != nil {
		return err
	}
	for _, n := range notices {
		if n.Kind != kind {
			continue
		}
		if err := c.RemoveNotice(ctx, n.Key); err != nil {
			return err
		}
		if err := c.store.DeleteTransient(ctx, n.Key); err != nil {
			return fmt.Errorf("delete %s notice: %w", kind, err)
		}
	}
	return nil
}

// GetNotices renders every active notice in insertion order. Stale non-core
// keys are pruned from the active list; notices of unknown kind are skipped.
func (c *NoticeController) GetNotices(ctx context.Context) ([]models.RenderedNotice, error) {
	notices, err := c.resolve(ctx)
	if err != nil {
		return nil, err
	}

	rendered := make([]models.RenderedNotice, 0, len(notices))
	for _, n := range notices {
		r, ok := RenderNotice(n)
		if !ok {
			c.log.Warn("skipping notice of unknown kind", zap.String("key", n.Key), zap.String("kind", string(n.Kind)))
			continue
		}
		rendered = append(rendered, r)
	}
	return rendered, nil
}

// resolve maps active keys to notices, pruning keys whose transient is gone.
func (c *NoticeController) resolve(ctx context.Context) ([]models.Notice, error) {
	keys, err := c.GetNoticeKeys(ctx)
	if err != nil {
		return nil, err
	}

	notices := make([]models.Notice, 0, len(keys))
	for _, key := range keys {
		kind := models.NoticeKind(key)
		if kind.IsCore() {
			var payload map[string]any
			if _, err := c.store.GetOption(ctx, optNoticePrefix+key, &payload); err != nil {
				return nil, fmt.Errorf("load %s notice: %w", key, err)
			}
			notices = append(notices, models.Notice{Key: key, Kind: kind, Payload: payload})
			continue
		}

		var value map[string]any
		found, err := c.store.GetTransient(ctx, key, &value)
		if err != nil {
			return nil, fmt.Errorf("load notice %s: %w", key, err)
		}
		k, _ := value["kind"].(string)
		if !found || k == "" {
			if err := c.RemoveNotice(ctx, key); err != nil {
				return nil, err
			}
			continue
		}
		delete(value, "kind")
		notices = append(notices, models.Notice{Key: key, Kind: models.NoticeKind(k), Payload: value})
	}
	return notices, nil
}

func (c *NoticeController) saveKeys(ctx context.Context, keys []string) error {
	if err := c.store.SetOption(ctx, optActiveNotices, keys); err != nil {
		return fmt.Errorf("save active notices: %w", err)
	}
	return nil
}
