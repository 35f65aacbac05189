package config

import (
	"os"
	"strings"
	"sync"
)

// CredentialLoader 读取一份完整的提供方凭证表，键为提供方名称。
type CredentialLoader func() (map[string]string, error)

// Credentials 是延迟加载的提供方凭证集合。
// 首次读取时加载，之后一直复用，直到显式调用 Invalidate。
type Credentials struct {
	load CredentialLoader

	mu      sync.Mutex
	secrets map[string]string
	loaded  bool
	loads   int
}

// NewCredentials 使用给定的加载函数创建凭证集合。
func NewCredentials(load CredentialLoader) *Credentials {
	return &Credentials{load: load}
}

// StaticCredentials 返回固定内容的凭证集合，主要用于测试。
func StaticCredentials(secrets map[string]string) *Credentials {
	return NewCredentials(func() (map[string]string, error) {
		out := make(map[string]string, len(secrets))
		for k, v := range secrets {
			out[k] = v
		}
		return out, nil
	})
}

// FileCredentials 每次加载时重新读取配置文件，取出各提供方的 apiKey 或 apiKeyEnv。
func FileCredentials(path string) *Credentials {
	return NewCredentials(func() (map[string]string, error) {
		cfg, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		return SecretsFromProviders(cfg.Providers), nil
	})
}

// SecretsFromProviders 从提供方配置中提取密钥。环境变量优先于直接配置的值。
func SecretsFromProviders(providers []ProviderConfig) map[string]string {
	out := make(map[string]string, len(providers))
	for _, p := range providers {
		secret := strings.TrimSpace(p.APIKey)
		if p.APIKeyEnv != "" {
			if v := strings.TrimSpace(os.Getenv(p.APIKeyEnv)); v != "" {
				secret = v
			}
		}
		// ollama 以服务地址作为凭证，无需密钥。
		if secret == "" && p.Kind == "ollama" {
			secret = p.BaseURL
		}
		if secret != "" {
			out[p.Name] = secret
		}
	}
	return out
}

// Get 返回指定提供方的凭证。凭证缺失或加载失败时 ok 为 false。
func (c *Credentials) Get(name string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		secrets, err := c.load()
		c.loads++
		if err != nil {
			return "", false
		}
		c.secrets = secrets
		c.loaded = true
	}
	v, ok := c.secrets[name]
	return v, ok && v != ""
}

// Invalidate 丢弃已加载的凭证，下一次 Get 时重新加载。
func (c *Credentials) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.secrets = nil
	c.loaded = false
}

// Loads 返回加载函数被调用的次数。
func (c *Credentials) Loads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loads
}
