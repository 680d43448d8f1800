package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"rentacar/internal/app/commands"
)

// IdempotentCommand is implemented by commands that accept an Idempotency-Key.
type IdempotentCommand interface {
	commands.Command
	IdempotencyKey() string
	// ResultPrototype returns a pointer the cached payload decodes into.
	ResultPrototype() any
}

type IdempotencyRecord struct {
	Key string
	// InFlight marks a claim whose command has not finished yet.
	InFlight   bool
	Payload    []byte
	Error      string
	ErrorKind  string
	OccurredAt time.Time
	ExpiresAt  time.Time
}

func (r IdempotencyRecord) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

// IdempotencyStore persists command outcomes by key. Claim inserts rec only
// when the key is absent or its record expired at rec.OccurredAt, and reports
// whether it did. Release drops an in-flight claim and leaves finished records.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (IdempotencyRecord, bool, error)
	Claim(ctx context.Context, rec IdempotencyRecord) (bool, error)
	Save(ctx context.Context, rec IdempotencyRecord) error
	Release(ctx context.Context, key string) error
}

type ResultCodec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, out any) error
}

type JSONResultCodec struct{}

func (JSONResultCodec) Encode(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSONResultCodec) Decode(data []byte, out any) error { return json.Unmarshal(data, out) }

// ReplayedError is a failure served from the idempotency cache. It unwraps to
// the sentinel recorded with it so callers still classify it with errors.Is.
type ReplayedError struct {
	Message string
	Kind    error
}

func (e *ReplayedError) Error() string { return e.Message }
func (e *ReplayedError) Unwrap() error { return e.Kind }

type IdempotencyOptions struct {
	Codec ResultCodec
	TTL   time.Duration
	// Kinds are the sentinels preserved across replays.
	Kinds []error
	// Retryable failures are not cached, so the same key may be retried.
	Retryable func(error) bool
	// Lease bounds how long a claim blocks the key if its holder never finishes.
	Lease time.Duration
	Now   func() time.Time
}

// ErrRequestInFlight is returned while another request holds the same key.
var ErrRequestInFlight = errors.New("idempotency: request with this key is still in progress")

var errMissingPrototype = errors.New("middleware: idempotent command requires result prototype")

func Idempotency(store IdempotencyStore, opts IdempotencyOptions) CommandMiddleware {
	if store == nil {
		panic("middleware: idempotency store required")
	}
	if opts.Codec == nil {
		opts.Codec = JSONResultCodec{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Lease <= 0 {
		opts.Lease = 30 * time.Second
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			idCmd, ok := cmd.(IdempotentCommand)
			if !ok || idCmd.IdempotencyKey() == "" {
				return next.Dispatch(ctx, cmd)
			}
			key := cmd.Key() + ":" + idCmd.IdempotencyKey()
			now := opts.Now().UTC()

			rec, found, err := store.Get(ctx, key)
			if err != nil {
				return nil, err
			}
			if found && !rec.Expired(now) {
				return replay(rec, idCmd, opts)
			}

			claimed, err := store.Claim(ctx, IdempotencyRecord{
				Key:        key,
				InFlight:   true,
				OccurredAt: now,
				ExpiresAt:  now.Add(opts.Lease),
			})
			if err != nil {
				return nil, err
			}
			if !claimed {
				rec, found, err := store.Get(ctx, key)
				if err != nil {
					return nil, err
				}
				if !found {
					return nil, ErrRequestInFlight
				}
				return replay(rec, idCmd, opts)
			}

			result, err := next.Dispatch(ctx, cmd)
			record := IdempotencyRecord{Key: key, OccurredAt: now}
			if opts.TTL > 0 {
				record.ExpiresAt = now.Add(opts.TTL)
			}
			if err != nil {
				if opts.Retryable != nil && opts.Retryable(err) {
					if relErr := store.Release(ctx, key); relErr != nil {
						return nil, errors.Join(err, relErr)
					}
					return nil, err
				}
				record.Error = err.Error()
				if kind := kindOf(err, opts.Kinds); kind != nil {
					record.ErrorKind = kind.Error()
				}
				if saveErr := store.Save(ctx, record); saveErr != nil {
					return nil, errors.Join(err, saveErr)
				}
				return nil, err
			}
			if result != nil {
				payload, encErr := opts.Codec.Encode(result)
				if encErr != nil {
					if relErr := store.Release(ctx, key); relErr != nil {
						return nil, errors.Join(encErr, relErr)
					}
					return nil, encErr
				}
				record.Payload = payload
			}
			if saveErr := store.Save(ctx, record); saveErr != nil {
				return nil, saveErr
			}
			return result, nil
		})
	}
}

func replay(rec IdempotencyRecord, cmd IdempotentCommand, opts IdempotencyOptions) (any, error) {
	if rec.InFlight {
		return nil, ErrRequestInFlight
	}
	if rec.Error != "" {
		var kind error
		for _, k := range opts.Kinds {
			if k.Error() == rec.ErrorKind {
				kind = k
				break
			}
		}
		return nil, &ReplayedError{Message: rec.Error, Kind: kind}
	}
	proto := cmd.ResultPrototype()
	if proto == nil {
		return nil, errMissingPrototype
	}
	if len(rec.Payload) == 0 {
		return nil, nil
	}
	if err := opts.Codec.Decode(rec.Payload, proto); err != nil {
		return nil, err
	}
	return proto, nil
}

func kindOf(err error, kinds []error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
