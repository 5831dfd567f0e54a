package app

import (
	"amp-session/internal/common/logging"
	"amp-session/internal/config"
	"amp-session/internal/crypto"
	"amp-session/internal/redis"
	"amp-session/internal/tokenstore"
)

func (app *App) initializePersistence() error {
	if app.Config.Persistence == config.PersistenceNone {
		app.Logger.Debug("Token persistence: Disabled")
		return nil
	}

	var opts []tokenstore.Option
	if app.Config.TokenEncryptionKey != "" {
		encryptor, err := crypto.NewSecretEncryptor(app.Config.TokenEncryptionKey)
		if err != nil {
			return err
		}
		opts = append(opts, tokenstore.WithCipher(encryptor))
	}
	encrypted := logging.Bool("encrypted", len(opts) > 0)

	switch app.Config.Persistence {
	case config.PersistenceFile:
		app.Persister = tokenstore.NewFileStore(app.Config.TokenFile, opts...)
		app.Logger.Info("Token persistence: File", logging.String("path", app.Config.TokenFile), encrypted)

	case config.PersistenceRedis:
		client, err := redis.NewClient(&redis.Config{
			Address:  app.Config.RedisAddress,
			Password: app.Config.RedisPassword,
			DB:       app.Config.RedisDB,
		})
		if err != nil {
			return err
		}
		app.RedisClient = client
		app.Persister = tokenstore.NewRedisStore(client, app.Config.RedisKey, opts...)
		app.Logger.Info("Token persistence: Redis",
			logging.String("address", app.Config.RedisAddress),
			logging.String("key", app.Config.RedisKey),
			encrypted,
		)
	}
	return nil
}
