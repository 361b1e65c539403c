package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"
)

// ZookeeperConn is the subset of *zk.Conn used by the ZooKeeper store.
type ZookeeperConn interface {
	Get(path string) ([]byte, *zk.Stat, error)
	Set(path string, data []byte, version int32) (*zk.Stat, error)
	Create(path string, data []byte, flags int32, acl []zk.ACL) (string, error)
	Exists(path string) (bool, *zk.Stat, error)
}

type zookeeperStore struct {
	conn   ZookeeperConn
	closer func()
}

// NewZookeeperSource connects to the ZooKeeper ensemble at servers.
func NewZookeeperSource(servers []string, prefix string) (*KVSource, error) {
	if len(servers) == 0 {
		servers = []string{"localhost:2181"}
	}

	conn, _, err := zk.Connect(servers, 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ZooKeeper: %w", err)
	}

	return NewKVSource(&zookeeperStore{conn: conn, closer: conn.Close}, prefix, "zookeeper"), nil
}

// NewZookeeperSourceFromConn builds a source over an existing connection.
func NewZookeeperSourceFromConn(conn ZookeeperConn, prefix string) *KVSource {
	return NewKVSource(&zookeeperStore{conn: conn}, prefix, "zookeeper")
}

func znode(key string) string {
	return "/" + strings.TrimPrefix(key, "/")
}

// The zk client has no context support; ctx is only checked up front.
func (s *zookeeperStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	data, _, err := s.conn.Get(znode(key))
	if errors.Is(err, zk.ErrNoNode) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, err
	}

	return data, true, nil
}

func (s *zookeeperStore) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p := znode(key)

	exists, stat, err := s.conn.Exists(p)
	if err != nil {
		return err
	}

	if exists {
		_, err = s.conn.Set(p, value, stat.Version)
		return err
	}

	if err := s.ensureParents(p); err != nil {
		return err
	}

	_, err = s.conn.Create(p, value, 0, zk.WorldACL(zk.PermAll))

	return err
}

func (s *zookeeperStore) ensureParents(p string) error {
	parts := strings.Split(strings.Trim(p, "/"), "/")

	cur := ""
	for _, part := range parts[:len(parts)-1] {
		cur += "/" + part

		exists, _, err := s.conn.Exists(cur)
		if err != nil {
			return err
		}

		if exists {
			continue
		}

		if _, err := s.conn.Create(cur, nil, 0, zk.WorldACL(zk.PermAll)); err != nil && !errors.Is(err, zk.ErrNodeExists) {
			return err
		}
	}

	return nil
}

func (s *zookeeperStore) Close() error {
	if s.closer != nil {
		s.closer()
	}

	return nil
}
