package config

import (
	"context"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// EtcdKV is the subset of clientv3.KV used by the etcd store.
type EtcdKV interface {
	Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error)
	Put(ctx context.Context, key, val string, opts ...clientv3.OpOption) (*clientv3.PutResponse, error)
}

type etcdStore struct {
	kv     EtcdKV
	closer func() error
}

// NewEtcdSource dials the etcd cluster at endpoints.
func NewEtcdSource(endpoints []string, prefix string) (*KVSource, error) {
	if len(endpoints) == 0 {
		endpoints = []string{"localhost:2379"}
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}

	return NewKVSource(&etcdStore{kv: client, closer: client.Close}, prefix, "etcd"), nil
}

// NewEtcdSourceFromKV builds a source over an existing KV client.
func NewEtcdSourceFromKV(kv EtcdKV, prefix string) *KVSource {
	return NewKVSource(&etcdStore{kv: kv}, prefix, "etcd")
}

func (s *etcdStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	resp, err := s.kv.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}

	if len(resp.Kvs) == 0 {
		return nil, false, nil
	}

	return resp.Kvs[0].Value, true, nil
}

func (s *etcdStore) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.kv.Put(ctx, key, string(value))
	return err
}

func (s *etcdStore) Close() error {
	if s.closer == nil {
		return nil
	}

	return s.closer()
}
