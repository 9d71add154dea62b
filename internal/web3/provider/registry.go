package provider

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	xerrors "TaikoMCP-Chain/internal/errors"
	"TaikoMCP-Chain/internal/web3"
	"TaikoMCP-Chain/internal/web3/ethereum"
)

// Dialer 根据链配置建立链客户端。
type Dialer func(ctx context.Context, chain web3.ChainConfig) (web3.ChainClient, error)

// EthereumDialer 返回基于 go-ethereum 的默认拨号器，privateKey 为空时客户端只读。
func EthereumDialer(privateKey string) Dialer {
	return func(ctx context.Context, chain web3.ChainConfig) (web3.ChainClient, error) {
		return ethereum.NewClient(ctx, ethereum.Config{
			Name:       chain.Name,
			RPCURL:     chain.RPCURL(),
			PrivateKey: privateKey,
		})
	}
}

// Registry 维护命名链配置、当前激活链以及按需建立的链客户端。
// 每个会话持有独立的 Registry，通过 Clone 派生。
type Registry struct {
	mu        sync.Mutex
	templates map[string]web3.ChainConfig
	chains    map[string]web3.ChainConfig
	active    string
	dialer    Dialer
	clients   map[string]web3.ChainClient
}

// Option 定义注册表的可选配置。
type Option func(*Registry)

// WithTemplates 替换内置链模板，通常用于合并 YAML 链文件后的配置。
func WithTemplates(templates map[string]web3.ChainConfig) Option {
	return func(r *Registry) {
		if len(templates) == 0 {
			return
		}
		r.templates = copyChains(templates)
	}
}

// WithActive 指定初始激活链。
func WithActive(name string) Option {
	return func(r *Registry) {
		r.active = strings.TrimSpace(name)
	}
}

// NewRegistry 构造注册表，初始包含全部内置链，默认激活 taiko。
func NewRegistry(dialer Dialer, opts ...Option) (*Registry, error) {
	r := &Registry{
		templates: web3.BuiltinChains(),
		active:    web3.ChainTaiko,
		dialer:    dialer,
		clients:   make(map[string]web3.ChainClient),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	r.chains = copyChains(r.templates)
	if _, ok := r.chains[r.active]; !ok {
		return nil, unknownChain(r.active)
	}
	return r, nil
}

// Resolve 返回指定名称的链配置。内置链若被移出映射会从模板重新补回。
func (r *Registry) Resolve(name string) (web3.ChainConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolveLocked(name)
}

func (r *Registry) resolveLocked(name string) (web3.ChainConfig, error) {
	if chain, ok := r.chains[name]; ok {
		return chain, nil
	}
	template, ok := r.templates[name]
	if !ok {
		return web3.ChainConfig{}, unknownChain(name)
	}
	r.chains[name] = template
	return template, nil
}

// Override 以模板为基础设置自定义 RPC 地址，并丢弃已缓存的客户端。
func (r *Registry) Override(name, customRPCURL string) (web3.ChainConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.overrideLocked(name, customRPCURL)
}

func (r *Registry) overrideLocked(name, customRPCURL string) (web3.ChainConfig, error) {
	chain, err := r.resolveLocked(name)
	if err != nil {
		return web3.ChainConfig{}, err
	}
	chain.CustomRPCURL = strings.TrimSpace(customRPCURL)
	r.chains[name] = chain
	r.dropClientLocked(name)
	return chain, nil
}

// SetActive 切换激活链，链必须已注册或为内置链。
func (r *Registry) SetActive(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.resolveLocked(name); err != nil {
		return err
	}
	r.active = name
	return nil
}

// Switch 在一次加锁内完成注册与切换；customRPCURL 非空时同时覆盖 RPC 地址。
func (r *Registry) Switch(name, customRPCURL string) (web3.ChainConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		chain web3.ChainConfig
		err   error
	)
	if strings.TrimSpace(customRPCURL) != "" {
		chain, err = r.overrideLocked(name, customRPCURL)
	} else {
		chain, err = r.resolveLocked(name)
	}
	if err != nil {
		return web3.ChainConfig{}, err
	}
	r.active = name
	return chain, nil
}

// Active 返回当前激活链的配置。
func (r *Registry) Active() web3.ChainConfig {
	r.mu.Lock()
	defer r.mu.Unlock()

	chain, err := r.resolveLocked(r.active)
	if err != nil {
		return web3.ChainConfig{}
	}
	return chain
}

// Client 返回指定链的客户端，首次调用时拨号并缓存。
func (r *Registry) Client(ctx context.Context, name string) (web3.ChainClient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if client, ok := r.clients[name]; ok {
		return client, nil
	}
	chain, err := r.resolveLocked(name)
	if err != nil {
		return nil, err
	}
	if r.dialer == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未配置链客户端拨号器")
	}
	client, err := r.dialer(ctx, chain)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", name, err)
	}
	r.clients[name] = client
	return client, nil
}

// Chains 返回已注册链名称，按字典序排列。
func (r *Registry) Chains() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.chains))
	for name := range r.chains {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone 派生一个独立的会话注册表：复制配置与激活指针，不共享客户端。
func (r *Registry) Clone() *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()

	return &Registry{
		templates: copyChains(r.templates),
		chains:    copyChains(r.chains),
		active:    r.active,
		dialer:    r.dialer,
		clients:   make(map[string]web3.ChainClient),
	}
}

// Close 释放注册表持有的全部客户端。
func (r *Registry) Close() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for name := range r.clients {
		r.dropClientLocked(name)
	}
}

func (r *Registry) dropClientLocked(name string) {
	if client, ok := r.clients[name]; ok {
		if client != nil {
			client.Close()
		}
		delete(r.clients, name)
	}
}

func copyChains(src map[string]web3.ChainConfig) map[string]web3.ChainConfig {
	dst := make(map[string]web3.ChainConfig, len(src))
	for name, chain := range src {
		dst[name] = chain
	}
	return dst
}

func unknownChain(name string) error {
	return xerrors.New(xerrors.CodeUnknownChain, "invalid chain name", xerrors.WithMetadata("chain", name))
}
