package config

import (
	"context"
	"fmt"

	"github.com/hashicorp/consul/api"
)

// ConsulKV is the subset of *api.KV used by the Consul store.
type ConsulKV interface {
	Get(key string, q *api.QueryOptions) (*api.KVPair, *api.QueryMeta, error)
	Put(p *api.KVPair, q *api.WriteOptions) (*api.WriteMeta, error)
}

type consulStore struct {
	kv ConsulKV
}

// NewConsulSource connects to the Consul agent at address. An empty address
// uses the client defaults (CONSUL_HTTP_ADDR or localhost:8500).
func NewConsulSource(address, prefix string) (*KVSource, error) {
	cfg := api.DefaultConfig()
	if address != "" {
		cfg.Address = address
	}

	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Consul client: %w", err)
	}

	return NewConsulSourceFromKV(client.KV(), prefix), nil
}

// NewConsulSourceFromKV builds a source over an existing KV client.
func NewConsulSourceFromKV(kv ConsulKV, prefix string) *KVSource {
	return NewKVSource(&consulStore{kv: kv}, prefix, "consul")
}

func (s *consulStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	pair, _, err := s.kv.Get(key, (&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return nil, false, err
	}

	if pair == nil {
		return nil, false, nil
	}

	return pair.Value, true, nil
}

func (s *consulStore) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.kv.Put(&api.KVPair{Key: key, Value: value}, (&api.WriteOptions{}).WithContext(ctx))
	return err
}

func (s *consulStore) Close() error { return nil }
