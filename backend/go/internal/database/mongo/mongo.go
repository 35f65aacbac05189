package mongo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"TechPulse/backend/go/internal/config"
	"TechPulse/backend/go/pkg/logger"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	client  *mongo.Client
	once    sync.Once
	initErr error
)

// GetClient 使用单例模式初始化并返回一个 MongoDB 客户端实例。
func GetClient(cfg *config.MongoConfig) (*mongo.Client, error) {
	once.Do(func() {
		clientOptions := options.Client().ApplyURI(cfg.Address)
		if cfg.Username != "" && cfg.Password != "" {
			clientOptions.SetAuth(options.Credential{
				Username: cfg.Username,
				Password: cfg.Password,
			})
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		c, err := mongo.Connect(ctx, clientOptions)
		if err != nil {
			initErr = fmt.Errorf("无法连接到 MongoDB: %w", err)
			return
		}

		if err = c.Ping(ctx, nil); err != nil {
			_ = c.Disconnect(context.Background())
			initErr = fmt.Errorf("无法 Ping MongoDB: %w", err)
			return
		}

		logger.New("database", "", "").WithComponent("mongodb").Info("成功连接到 MongoDB")
		client = c
	})

	return client, initErr
}

// Database 返回配置中指定的数据库句柄，内容缓存集合位于其中。
func Database(cfg *config.MongoConfig) (*mongo.Database, error) {
	c, err := GetClient(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("未配置 MongoDB 数据库名称")
	}
	return c.Database(cfg.Database), nil
}

// Close 安全地断开单例的 MongoDB 客户端连接。
func Close(ctx context.Context) error {
	if client != nil {
		return client.Disconnect(ctx)
	}
	return nil
}

// HealthCheck 检查 MongoDB 连接的健康状况。
func HealthCheck(ctx context.Context) error {
	if client == nil {
		return fmt.Errorf("MongoDB 客户端未初始化")
	}
	return client.Ping(ctx, nil)
}
