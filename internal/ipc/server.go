package ipc

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// defaultWriteTimeout 单次写入的超时，超时的客户端会被断开
const defaultWriteTimeout = 2 * time.Second

func logger() *zerolog.Logger {
	l := log.With().Str("component", "ipc").Logger()
	return &l
}

// client 每个客户端一个写协程，send 只保留最新一条未写出的快照
type client struct {
	conn         net.Conn
	send         chan []byte
	writeTimeout time.Duration
}

// Server 在 unix socket 上向所有客户端广播状态快照。
// 新客户端连接时先收到最近一次的快照。
type Server struct {
	socketPath      string
	listener        net.Listener
	clientConns     map[net.Conn]*client
	clientConnsLock sync.Mutex
	latest          []byte
	latestLock      sync.Mutex
	lockFile        *os.File
	lockFilePath    string
	writeTimeout    time.Duration
	wg              sync.WaitGroup
}

func NewServer(socketPath string) *Server {
	return &Server{
		socketPath:   socketPath,
		clientConns:  make(map[net.Conn]*client),
		lockFilePath: socketPath + ".lock",
		writeTimeout: defaultWriteTimeout,
	}
}

func (s *Server) checkAndCleanOldLock() {
	if _, err := os.Stat(s.lockFilePath); os.IsNotExist(err) {
		return // 锁文件不存在，无需清理
	}

	content, err := os.ReadFile(s.lockFilePath)
	if err != nil {
		logger().Warn().Err(err).Msg("Failed to read lock file, removing it")
		os.Remove(s.lockFilePath)
		return
	}

	pidStr := strings.TrimSpace(string(content))
	if pidStr == "" {
		logger().Warn().Msg("Lock file is empty, removing it")
		os.Remove(s.lockFilePath)
		return
	}

	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		logger().Warn().Err(err).Str("pid_str", pidStr).Msg("Invalid PID in lock file, removing it")
		os.Remove(s.lockFilePath)
		return
	}

	if !isProcessRunning(pid) {
		logger().Info().Int("old_pid", pid).Msg("Process in lock file is not running, removing lock file")
		os.Remove(s.lockFilePath)
		return
	}

	logger().Info().Int("existing_pid", pid).Msg("Another process is still running")
}

func isProcessRunning(pid int) bool {
	// kill(pid, 0) 只检查进程是否存在，不发送信号
	return syscall.Kill(pid, 0) == nil
}

func (s *Server) acquireLock() error {
	s.checkAndCleanOldLock()

	// 拿到锁之前不能截断，否则会清掉正在运行的实例写入的 PID
	file, err := os.OpenFile(s.lockFilePath, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create lock file: %w", err)
	}

	err = syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	if err != nil {
		file.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return fmt.Errorf("another lyrik instance is already running")
		}
		return fmt.Errorf("failed to acquire lock: %w", err)
	}

	if err := file.Truncate(0); err == nil {
		_, err = fmt.Fprintf(file, "%d\n", os.Getpid())
	}
	if err != nil {
		syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		file.Close()
		return fmt.Errorf("failed to write PID to lock file: %w", err)
	}

	s.lockFile = file
	logger().Info().Str("lock_file", s.lockFilePath).Int("pid", os.Getpid()).Msg("Acquired process lock")
	return nil
}

func (s *Server) releaseLock() {
	if s.lockFile != nil {
		syscall.Flock(int(s.lockFile.Fd()), syscall.LOCK_UN)
		s.lockFile.Close()
		os.Remove(s.lockFilePath)
		logger().Info().Str("lock_file", s.lockFilePath).Msg("Released process lock")
		s.lockFile = nil
	}
}

// Start 获取进程锁并开始监听
func (s *Server) Start() error {
	if err := s.acquireLock(); err != nil {
		return err
	}

	if err := os.RemoveAll(s.socketPath); err != nil {
		s.releaseLock()
		return err
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		s.releaseLock()
		return err
	}
	s.listener = listener

	logger().Info().Str("socket_path", s.socketPath).Msg("IPC server listening")

	s.wg.Add(1)
	go s.acceptConnections()

	return nil
}

func (s *Server) acceptConnections() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			logger().Error().Err(err).Msg("Failed to accept IPC connection")
			continue
		}
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	c := &client{conn: conn, send: make(chan []byte, 1), writeTimeout: s.writeTimeout}

	// 快照和登记在同一把锁下完成，避免和 Broadcast 交错
	s.latestLock.Lock()
	s.clientConnsLock.Lock()
	if len(s.latest) > 0 {
		c.send <- s.latest
	}
	s.clientConns[conn] = c
	s.clientConnsLock.Unlock()
	s.latestLock.Unlock()

	logger().Info().Msg("Client connected")
	go c.writeLoop()

	// 客户端不发送数据，读到 EOF 即断开
	io.Copy(io.Discard, conn)

	s.removeClient(conn)
	logger().Info().Msg("Client disconnected")
}

func (c *client) writeLoop() {
	for payload := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
		if _, err := c.conn.Write(payload); err != nil {
			logger().Warn().Err(err).Msg("Failed to write to client, disconnecting")
			// 关闭连接后 handleConnection 会把它移除
			c.conn.Close()
			return
		}
	}
}

// offer 放入最新快照，丢弃还没写出的旧快照。调用方持有 clientConnsLock
func (c *client) offer(payload []byte) {
	select {
	case c.send <- payload:
		return
	default:
	}
	select {
	case <-c.send:
	default:
	}
	select {
	case c.send <- payload:
	default:
	}
}

func (s *Server) removeClient(conn net.Conn) {
	s.clientConnsLock.Lock()
	defer s.clientConnsLock.Unlock()
	if c, ok := s.clientConns[conn]; ok {
		delete(s.clientConns, conn)
		close(c.send)
		conn.Close()
	}
}

// Broadcast 发送一行快照给所有客户端，并记为最新快照。
// 不会因为某个客户端不读数据而阻塞。
func (s *Server) Broadcast(payload []byte) {
	line := make([]byte, 0, len(payload)+1)
	line = append(line, payload...)
	line = append(line, '\n')

	s.latestLock.Lock()
	defer s.latestLock.Unlock()
	s.latest = line

	s.clientConnsLock.Lock()
	defer s.clientConnsLock.Unlock()

	for _, c := range s.clientConns {
		c.offer(line)
	}
}

// Clients 当前连接的客户端数量
func (s *Server) Clients() int {
	s.clientConnsLock.Lock()
	defer s.clientConnsLock.Unlock()
	return len(s.clientConns)
}

func (s *Server) Close() {
	if s.listener != nil {
		s.listener.Close()
		s.wg.Wait()
	}

	s.clientConnsLock.Lock()
	for conn, c := range s.clientConns {
		delete(s.clientConns, conn)
		close(c.send)
		conn.Close()
	}
	s.clientConnsLock.Unlock()

	s.releaseLock()
}
