package backend

import (
	"context"
	"errors"
	"fmt"

	"zenith/internal/amqp"
	"zenith/internal/log"
	"zenith/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	persister, closer, err := f.createPersister(ctx, config)
	if err != nil {
		return nil, err
	}

	// AMQP is optional; an unreachable broker only disables notifications
	var publisher *amqp.Client
	if config.AMQPURL != "" {
		publisher, err = amqp.NewClient(config.AMQPURL, config.AMQPExchange, f.logger)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without change notifications", log.FieldError, err)
			publisher = nil
		} else {
			f.logger.Info("Initialized AMQP client", "exchange", config.AMQPExchange)
		}
	}

	return &BackendResult{
		Persister: persister,
		Publisher: publisher,
		Cleanup: func() error {
			var errs []error
			if publisher != nil {
				errs = append(errs, publisher.Close())
			}
			if closer != nil {
				errs = append(errs, closer())
			}
			return errors.Join(errs...)
		},
	}, nil
}

func (f *DefaultFactory) createPersister(ctx context.Context, config Config) (storage.Persister, func() error, error) {
	switch config.Type {
	case MemoryBackend:
		f.logger.Info("Initialized memory backend")
		return storage.NewMemoryPersister(), nil, nil

	case FileBackend:
		p, err := storage.NewFilePersister(config.DataFilePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize file backend: %w", err)
		}
		f.logger.Info("Initialized file backend", "path", config.DataFilePath)
		return p, nil, nil

	case SQLiteBackend:
		p, err := storage.NewSQLitePersister(config.SQLiteDBPath, f.logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize SQLite backend: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return p, p.Close, nil

	case RedisBackend:
		p, err := storage.NewRedisPersister(ctx, config.RedisURL, config.RedisKey)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize Redis backend: %w", err)
		}
		f.logger.Info("Initialized Redis backend", "key", config.RedisKey)
		return p, p.Close, nil

	case PostgresBackend:
		p, err := storage.NewPostgresPersister(ctx, config.PostgresURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize PostgreSQL backend: %w", err)
		}
		f.logger.Info("Initialized PostgreSQL backend")
		return p, p.Close, nil

	default:
		return nil, nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}
