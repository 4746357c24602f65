package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKey is the hash holding platform settings.
const RedisKey = "sahara:settings"

const (
	fieldThreshold    = "verification_threshold"
	fieldMaxVerifiers = "max_verifiers"
	fieldPaused       = "paused"
	fieldTokens       = "allowed_tokens"
	fieldFeeBPS       = "platform_fee_bps"
	fieldClaimWindow  = "claim_window"
)

// RedisProvider reads settings from a Redis hash so every replica shares one
// pause switch and threshold. Fields missing from the hash fall back to defaults.
type RedisProvider struct {
	client   *redis.Client
	defaults Settings
}

func NewRedis(client *redis.Client, defaults Settings) *RedisProvider {
	return &RedisProvider{client: client, defaults: defaults.clone()}
}

func (p *RedisProvider) Current(ctx context.Context) (Settings, error) {
	values, err := p.client.HGetAll(ctx, RedisKey).Result()
	if err != nil {
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}

	s := p.defaults.clone()
	if v, ok := values[fieldThreshold]; ok {
		n, err := strconv.ParseUint(v, 10, 8)
		if err != nil {
			return Settings{}, fmt.Errorf("parse %s: %w", fieldThreshold, err)
		}
		s.VerificationThreshold = uint8(n)
	}
	if v, ok := values[fieldMaxVerifiers]; ok {
		n, err := strconv.ParseUint(v, 10, 8)
		if err != nil {
			return Settings{}, fmt.Errorf("parse %s: %w", fieldMaxVerifiers, err)
		}
		s.MaxVerifiers = uint8(n)
	}
	if v, ok := values[fieldPaused]; ok {
		paused, err := strconv.ParseBool(v)
		if err != nil {
			return Settings{}, fmt.Errorf("parse %s: %w", fieldPaused, err)
		}
		s.Paused = paused
	}
	if v, ok := values[fieldTokens]; ok {
		s.AllowedTokens = splitTokens(v)
	}
	if v, ok := values[fieldFeeBPS]; ok {
		n, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return Settings{}, fmt.Errorf("parse %s: %w", fieldFeeBPS, err)
		}
		s.PlatformFeeBPS = uint16(n)
	}
	if v, ok := values[fieldClaimWindow]; ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Settings{}, fmt.Errorf("parse %s: %w", fieldClaimWindow, err)
		}
		s.ClaimWindow = d
	}

	if err := s.Validate(); err != nil {
		return Settings{}, errors.Join(errors.New("stored settings are invalid"), err)
	}
	return s, nil
}

// Save writes every field.
func (p *RedisProvider) Save(ctx context.Context, s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	err := p.client.HSet(ctx, RedisKey, map[string]any{
		fieldThreshold:    strconv.FormatUint(uint64(s.VerificationThreshold), 10),
		fieldMaxVerifiers: strconv.FormatUint(uint64(s.MaxVerifiers), 10),
		fieldPaused:       strconv.FormatBool(s.Paused),
		fieldTokens:       strings.Join(s.AllowedTokens, ","),
		fieldFeeBPS:       strconv.FormatUint(uint64(s.PlatformFeeBPS), 10),
		fieldClaimWindow:  s.ClaimWindow.String(),
	}).Err()
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// Seed writes the defaults only for fields not already present, so restarts
// never clobber operator changes.
func (p *RedisProvider) Seed(ctx context.Context) error {
	d := p.defaults
	pipe := p.client.TxPipeline()
	pipe.HSetNX(ctx, RedisKey, fieldThreshold, strconv.FormatUint(uint64(d.VerificationThreshold), 10))
	pipe.HSetNX(ctx, RedisKey, fieldMaxVerifiers, strconv.FormatUint(uint64(d.MaxVerifiers), 10))
	pipe.HSetNX(ctx, RedisKey, fieldPaused, strconv.FormatBool(d.Paused))
	pipe.HSetNX(ctx, RedisKey, fieldTokens, strings.Join(d.AllowedTokens, ","))
	pipe.HSetNX(ctx, RedisKey, fieldFeeBPS, strconv.FormatUint(uint64(d.PlatformFeeBPS), 10))
	pipe.HSetNX(ctx, RedisKey, fieldClaimWindow, d.ClaimWindow.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("seed settings: %w", err)
	}
	return nil
}

// SetPaused flips the platform pause switch.
func (p *RedisProvider) SetPaused(ctx context.Context, paused bool) error {
	if err := p.client.HSet(ctx, RedisKey, fieldPaused, strconv.FormatBool(paused)).Err(); err != nil {
		return fmt.Errorf("set paused: %w", err)
	}
	return nil
}

func splitTokens(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
