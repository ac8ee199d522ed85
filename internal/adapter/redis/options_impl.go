package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/user/gallery-service/internal/entity"
	"github.com/user/gallery-service/internal/repository"
)

const optionsKeyPrefix = "gallery:options:"

// Hash fields of a stored options record.
const (
	fieldColumns    = "columns"
	fieldMinSize    = "min_size"
	fieldMaxSize    = "max_size"
	fieldAutoScroll = "auto_scroll_seconds"
)

// OptionsRepoImpl stores user options as one Redis hash per profile.
type OptionsRepoImpl struct {
	client *redis.Client
}

// NewOptionsRepo creates a new instance of OptionsRepoImpl.
func NewOptionsRepo(client *redis.Client) *OptionsRepoImpl {
	return &OptionsRepoImpl{client: client}
}

var _ repository.OptionsRepository = (*OptionsRepoImpl)(nil)

func (r *OptionsRepoImpl) key(profile string) string {
	if profile == "" {
		profile = "default"
	}
	return optionsKeyPrefix + profile
}

// Get returns the stored options, filling any missing field from the defaults.
func (r *OptionsRepoImpl) Get(ctx context.Context, profile string) (entity.Options, error) {
	fields, err := r.client.HGetAll(ctx, r.key(profile)).Result()
	if err != nil {
		return entity.Options{}, err
	}
	return decodeOptions(fields)
}

// Save writes every field of opts in a single HSET.
func (r *OptionsRepoImpl) Save(ctx context.Context, profile string, opts entity.Options) error {
	return r.client.HSet(ctx, r.key(profile), encodeOptions(opts)).Err()
}

func encodeOptions(opts entity.Options) map[string]any {
	return map[string]any{
		fieldColumns:    opts.Columns,
		fieldMinSize:    opts.MinSize,
		fieldMaxSize:    opts.MaxSize,
		fieldAutoScroll: opts.AutoScrollSeconds,
	}
}

func decodeOptions(fields map[string]string) (entity.Options, error) {
	opts := entity.DefaultOptions()
	targets := map[string]*int{
		fieldColumns:    &opts.Columns,
		fieldMinSize:    &opts.MinSize,
		fieldMaxSize:    &opts.MaxSize,
		fieldAutoScroll: &opts.AutoScrollSeconds,
	}
	for name, dst := range targets {
		raw, ok := fields[name]
		if !ok {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return entity.Options{}, fmt.Errorf("options field %s: %w", name, err)
		}
		*dst = v
	}
	return opts, nil
}
