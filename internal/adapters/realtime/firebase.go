package realtime

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	firebase "firebase.google.com/go"
	"firebase.google.com/go/db"
	"google.golang.org/api/option"

	"github.com/okian/crowdwatch/internal/domain/ingest"
	"github.com/okian/crowdwatch/pkg/logger"
	"github.com/okian/crowdwatch/pkg/metrics"
)

const defaultPollInterval = time.Second

// FirebaseConfig locates the Realtime Database and its credentials.
// CredentialsB64 takes precedence over CredentialsFile; with neither,
// application default credentials are used.
type FirebaseConfig struct {
	DatabaseURL     string
	CredentialsFile string
	CredentialsB64  string
}

// Firebase reads and writes a Firebase Realtime Database.
type Firebase struct {
	client   *db.Client
	interval time.Duration
	logger   logger.Logger
}

// NewFirebase connects to the database described by cfg.
func NewFirebase(ctx context.Context, cfg FirebaseConfig, opts ...FirebaseOption) (*Firebase, error) {
	if cfg.DatabaseURL == "" {
		return nil, ErrMissingDatabaseURL
	}
	var clientOpts []option.ClientOption
	switch {
	case cfg.CredentialsB64 != "":
		creds, err := base64.StdEncoding.DecodeString(cfg.CredentialsB64)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
		}
		clientOpts = append(clientOpts, option.WithCredentialsJSON(creds))
	case cfg.CredentialsFile != "":
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{DatabaseURL: cfg.DatabaseURL}, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase: %w", err)
	}
	client, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("open realtime database: %w", err)
	}

	f := &Firebase{
		client:   client,
		interval: defaultPollInterval,
		logger:   logger.Get().Named("realtime.firebase"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Subscribe polls path with conditional reads and emits a full snapshot each
// time the ETag changes.
func (f *Firebase) Subscribe(ctx context.Context, path string) <-chan ingest.RawEvent {
	out := make(chan ingest.RawEvent)
	go func() {
		defer close(out)
		ref := f.client.NewRef(path)
		etag := ""
		ticker := time.NewTicker(f.interval)
		defer ticker.Stop()
		for {
			ev, changed := f.poll(ctx, ref, &etag)
			if ctx.Err() != nil {
				return
			}
			if changed {
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// poll reads ref once. The first read is unconditional.
func (f *Firebase) poll(ctx context.Context, ref *db.Ref, etag *string) (ingest.RawEvent, bool) {
	var v any
	if *etag == "" {
		tag, err := ref.GetWithETag(ctx, &v)
		if err != nil {
			return ingest.RawEvent{Err: fmt.Errorf("read %s: %w", ref.Path, err)}, true
		}
		*etag = tag
		return eventFrom(v), true
	}
	changed, tag, err := ref.GetIfChanged(ctx, *etag, &v)
	if err != nil {
		return ingest.RawEvent{Err: fmt.Errorf("poll %s: %w", ref.Path, err)}, true
	}
	if !changed {
		return ingest.RawEvent{}, false
	}
	*etag = tag
	f.logger.Debug(ctx, "snapshot changed", logger.String("path", ref.Path))
	return eventFrom(v), true
}

// FetchOnce reads the value at path.
func (f *Firebase) FetchOnce(ctx context.Context, path string) (any, error) {
	var v any
	if err := f.client.NewRef(path).Get(ctx, &v); err != nil {
		metrics.RecordErrorByComponent("realtime", "fetch")
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	return v, nil
}

// Publish replaces the value at path.
func (f *Firebase) Publish(ctx context.Context, path string, value any) error {
	if err := f.client.NewRef(path).Set(ctx, value); err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	return nil
}
