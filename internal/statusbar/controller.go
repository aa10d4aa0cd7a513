package statusbar

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"lyrik/internal/tracker"
	"lyrik/pkg/fileutil"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// sigRTMin Linux 上 SIGRTMIN 的值，i3blocks 的 signal=N 对应 SIGRTMIN+N
const sigRTMin = 34

func logger() *zerolog.Logger {
	l := log.With().Str("component", "statusbar").Logger()
	return &l
}

// Options 状态栏配置
type Options struct {
	Process    string // 状态栏进程名，默认 i3blocks
	Signal     int    // i3blocks 块配置中的 signal 值
	OutputFile string // 当前行写入的文件，状态栏脚本从这里读取
}

// Controller 把当前歌词行写入文件并通知状态栏刷新。
// 只有显示内容变化时才写文件和发信号。
type Controller struct {
	process    string
	signal     syscall.Signal
	outputFile string

	pid       int
	pidMutex  sync.RWMutex
	ticker    *time.Ticker
	stopChan  chan struct{}
	isRunning bool
	runMutex  sync.Mutex

	lastText string
	textMu   sync.Mutex

	findPID func(process string) (int, error)
	send    func(pid int, sig syscall.Signal) error
}

// NewController creates a new status bar controller
func NewController(opts Options) *Controller {
	if opts.Process == "" {
		opts.Process = "i3blocks"
	}
	return &Controller{
		process:    opts.Process,
		signal:     syscall.Signal(sigRTMin + opts.Signal),
		outputFile: opts.OutputFile,
		pid:        -1,
		stopChan:   make(chan struct{}),
		findPID:    findPID,
		send:       sendSignal,
	}
}

// Start begins refreshing the status bar PID every 10 seconds
func (c *Controller) Start() error {
	c.runMutex.Lock()
	defer c.runMutex.Unlock()

	if c.isRunning {
		return fmt.Errorf("controller is already running")
	}

	if err := c.refreshPID(); err != nil {
		logger().Warn().Err(err).Str("process", c.process).Msg("Status bar process not found yet")
	}

	c.ticker = time.NewTicker(10 * time.Second)
	c.isRunning = true

	go c.monitorLoop(c.ticker, c.stopChan)

	logger().Info().Str("process", c.process).Int("signal", int(c.signal)).Str("output_file", c.outputFile).
		Msg("Status bar controller started")
	return nil
}

// Stop stops the controller
func (c *Controller) Stop() {
	c.runMutex.Lock()
	defer c.runMutex.Unlock()

	if !c.isRunning {
		return
	}

	close(c.stopChan)
	c.ticker.Stop()
	c.isRunning = false

	logger().Info().Msg("Status bar controller stopped")
}

func (c *Controller) monitorLoop(ticker *time.Ticker, stop <-chan struct{}) {
	for {
		select {
		case <-ticker.C:
			if err := c.refreshPID(); err != nil {
				logger().Debug().Err(err).Msg("Failed to refresh status bar PID")
			}
		case <-stop:
			return
		}
	}
}

func (c *Controller) refreshPID() error {
	pid, err := c.findPID(c.process)

	c.pidMutex.Lock()
	oldPID := c.pid
	if err != nil {
		c.pid = -1
	} else {
		c.pid = pid
	}
	c.pidMutex.Unlock()

	if err != nil {
		return err
	}
	if oldPID != pid {
		logger().Info().Int("old_pid", oldPID).Int("pid", pid).Msg("Status bar PID updated")
	}
	return nil
}

// findPID 用 pgrep 查找进程，失败时退回到解析 ps 的输出
func findPID(process string) (int, error) {
	output, err := exec.Command("pgrep", "-x", process).Output()
	if err == nil {
		lines := strings.Split(strings.TrimSpace(string(output)), "\n")
		if lines[0] != "" {
			pid, err := strconv.Atoi(lines[0])
			if err != nil {
				return -1, fmt.Errorf("failed to parse PID: %w", err)
			}
			return pid, nil
		}
	}

	output, err = exec.Command("ps", "-eo", "pid,comm").Output()
	if err != nil {
		return -1, fmt.Errorf("failed to run ps command: %w", err)
	}
	for _, line := range strings.Split(string(output), "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == process {
			if pid, err := strconv.Atoi(fields[0]); err == nil {
				return pid, nil
			}
		}
	}
	return -1, fmt.Errorf("%s process not found", process)
}

func sendSignal(pid int, sig syscall.Signal) error {
	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", pid, err)
	}
	if err := process.Signal(sig); err != nil {
		return fmt.Errorf("failed to send signal %d to process %d: %w", int(sig), pid, err)
	}
	return nil
}

// GetPID returns the current stored PID
func (c *Controller) GetPID() int {
	c.pidMutex.RLock()
	defer c.pidMutex.RUnlock()
	return c.pid
}

// Show 显示一行文本，与上次相同时不做任何事
func (c *Controller) Show(text string) error {
	c.textMu.Lock()
	defer c.textMu.Unlock()

	if text == c.lastText {
		return nil
	}
	if err := fileutil.WriteFileOverwrite(c.outputFile, []byte(text+"\n"), 0644); err != nil {
		return err
	}
	c.lastText = text

	pid := c.GetPID()
	if pid <= 0 {
		return fmt.Errorf("invalid PID: %d, %s process not found", pid, c.process)
	}
	return c.send(pid, c.signal)
}

// Update 是 tracker 的监听器，显示当前行；没有歌词时显示曲目名
func (c *Controller) Update(event tracker.Event, s tracker.State) {
	if err := c.Show(DisplayText(s)); err != nil {
		logger().Debug().Err(err).Msg("Failed to update status bar")
	}
}

// DisplayText 状态栏上显示的文本
func DisplayText(s tracker.State) string {
	if line, ok := s.CurrentLine(); ok {
		return line.Text
	}
	if s.Track == nil {
		return ""
	}
	return "♪ " + s.Track.String() + " ♪"
}
