package smartcache

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

const memcachedMaxKeyLength = 250

var dialMemcached = func(ctx context.Context, network, addr string) (net.Conn, error) {
	d := net.Dialer{Timeout: 3 * time.Second}
	return d.DialContext(ctx, network, addr)
}

// memcachedStore speaks the memcached text protocol. Keys are spread across
// servers by crc32 so a given key always lands on the same server.
type memcachedStore struct {
	addrs      []string
	defaultTTL time.Duration
	prefix     string

	mu     sync.Mutex
	pools  map[string]chan *memcachedConn
	closed bool
}

type memcachedConn struct {
	addr   string
	conn   net.Conn
	reader *bufio.Reader
}

func newMemcachedStore(addrs []string, defaultTTL time.Duration, prefix string) Store {
	if len(addrs) == 0 {
		addrs = []string{defaultMemcachedAddress}
	}
	if defaultTTL <= 0 {
		defaultTTL = defaultCacheTTL
	}
	pools := make(map[string]chan *memcachedConn, len(addrs))
	for _, addr := range addrs {
		pools[addr] = make(chan *memcachedConn, 16)
	}
	return &memcachedStore{addrs: addrs, defaultTTL: defaultTTL, prefix: prefix, pools: pools}
}

func (s *memcachedStore) Driver() Driver { return DriverMemcached }

func (s *memcachedStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	full := s.cacheKey(key)
	mc, err := s.acquire(ctx, s.serverFor(full))
	if err != nil {
		return nil, false, err
	}
	bad := false
	defer func() { s.release(mc, bad) }()

	if _, err := fmt.Fprintf(mc.conn, "get %s\r\n", full); err != nil {
		bad = true
		return nil, false, err
	}
	line, err := mc.reader.ReadString('\n')
	if err != nil {
		bad = true
		return nil, false, err
	}
	if line == "END\r\n" {
		return nil, false, nil
	}

	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) < 4 || fields[0] != "VALUE" {
		bad = true
		return nil, false, fmt.Errorf("memcached: unexpected response: %s", strings.TrimSpace(line))
	}
	size, err := strconv.Atoi(fields[3])
	if err != nil {
		bad = true
		return nil, false, fmt.Errorf("memcached: parse length: %w", err)
	}
	// payload + trailing \r\n
	value := make([]byte, size+2)
	if _, err := io.ReadFull(mc.reader, value); err != nil {
		bad = true
		return nil, false, err
	}
	if end, err := mc.reader.ReadString('\n'); err != nil || end != "END\r\n" {
		bad = true
		if err == nil {
			err = fmt.Errorf("memcached: unexpected trailer: %s", strings.TrimSpace(end))
		}
		return nil, false, err
	}
	return value[:size], true, nil
}

func (s *memcachedStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	full := s.cacheKey(key)
	mc, err := s.acquire(ctx, s.serverFor(full))
	if err != nil {
		return err
	}
	bad := false
	defer func() { s.release(mc, bad) }()

	seconds := int(ttl.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	if _, err := fmt.Fprintf(mc.conn, "set %s 0 %d %d\r\n", full, seconds, len(value)); err != nil {
		bad = true
		return err
	}
	if _, err := mc.conn.Write(append(cloneBytes(value), '\r', '\n')); err != nil {
		bad = true
		return err
	}
	line, err := mc.reader.ReadString('\n')
	if err != nil {
		bad = true
		return err
	}
	if !strings.HasPrefix(line, "STORED") {
		bad = true
		return fmt.Errorf("memcached set failed: %s", strings.TrimSpace(line))
	}
	return nil
}

func (s *memcachedStore) Delete(ctx context.Context, key string) error {
	full := s.cacheKey(key)
	mc, err := s.acquire(ctx, s.serverFor(full))
	if err != nil {
		return err
	}
	bad := false
	defer func() { s.release(mc, bad) }()
	if _, err := fmt.Fprintf(mc.conn, "delete %s\r\n", full); err != nil {
		bad = true
		return err
	}
	line, err := mc.reader.ReadString('\n')
	if err != nil {
		bad = true
		return err
	}
	switch strings.TrimSpace(line) {
	case "DELETED", "NOT_FOUND":
		return nil
	default:
		bad = true
		return fmt.Errorf("memcached delete failed: %s", strings.TrimSpace(line))
	}
}

// Flush clears every configured server.
func (s *memcachedStore) Flush(ctx context.Context) error {
	for _, addr := range s.addrs {
		if err := s.flushServer(ctx, addr); err != nil {
			return err
		}
	}
	return nil
}

func (s *memcachedStore) flushServer(ctx context.Context, addr string) error {
	mc, err := s.acquire(ctx, addr)
	if err != nil {
		return err
	}
	bad := false
	defer func() { s.release(mc, bad) }()
	if _, err := fmt.Fprintf(mc.conn, "flush_all\r\n"); err != nil {
		bad = true
		return err
	}
	line, err := mc.reader.ReadString('\n')
	if err != nil {
		bad = true
		return err
	}
	if !strings.HasPrefix(line, "OK") {
		bad = true
		return fmt.Errorf("memcached flush failed: %s", strings.TrimSpace(line))
	}
	return nil
}

// Close drops every pooled connection.
func (s *memcachedStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for _, pool := range s.pools {
	drain:
		for {
			select {
			case mc := <-pool:
				_ = mc.conn.Close()
			default:
				break drain
			}
		}
	}
	return nil
}

func (s *memcachedStore) serverFor(full string) string {
	if len(s.addrs) == 1 {
		return s.addrs[0]
	}
	return s.addrs[crc32.ChecksumIEEE([]byte(full))%uint32(len(s.addrs))]
}

func (s *memcachedStore) acquire(ctx context.Context, addr string) (*memcachedConn, error) {
	if addr == "" {
		return nil, errors.New("memcached: no addresses configured")
	}
	if pool, ok := s.pools[addr]; ok {
		select {
		case mc := <-pool:
			if mc != nil {
				return mc, nil
			}
		default:
		}
	}
	conn, err := dialMemcached(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("memcached dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	return &memcachedConn{addr: addr, conn: conn, reader: bufio.NewReader(conn)}, nil
}

func (s *memcachedStore) release(mc *memcachedConn, bad bool) {
	if mc == nil || mc.conn == nil {
		return
	}
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	pool, ok := s.pools[mc.addr]
	if bad || closed || !ok {
		_ = mc.conn.Close()
		return
	}
	_ = mc.conn.SetDeadline(time.Time{})
	select {
	case pool <- mc:
	default:
		_ = mc.conn.Close()
	}
}

// cacheKey prefixes key and hashes it when memcached would reject it.
func (s *memcachedStore) cacheKey(key string) string {
	full := key
	if s.prefix != "" {
		full = s.prefix + ":" + key
	}
	if validMemcachedKey(full) {
		return full
	}
	sum := sha256.Sum256([]byte(full))
	hashed := hex.EncodeToString(sum[:])
	if s.prefix != "" {
		return s.prefix + ":h:" + hashed
	}
	return "h:" + hashed
}

func validMemcachedKey(key string) bool {
	if key == "" || len(key) > memcachedMaxKeyLength {
		return false
	}
	for i := 0; i < len(key); i++ {
		if key[i] <= ' ' || key[i] == 0x7f {
			return false
		}
	}
	return true
}
