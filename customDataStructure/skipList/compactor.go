package skipList

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"MisakaKV/logger"
)

// Compactable 可以被 Compactor 定时压缩的结构
type Compactable interface {
	Compact() int
}

// Compactor 后台定时调用 Compact 的协程
type Compactor struct {
	target   Compactable
	interval time.Duration

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      sync.WaitGroup

	sweepCount int // 已经完成的压缩次数 只在后台协程里写 Stop 之后读
}

// NewCompactor 给定要压缩的结构和压缩的时间间隔 新建一个 Compactor 需要调用 Start 才会开始运行
func NewCompactor(target Compactable, interval time.Duration) (*Compactor, error) {
	if target == nil || interval <= 0 {
		logger.GenerateErrorLog(false, false, logger.ParameterIsNotAllowed.Error(), interval.String())
		return nil, logger.ParameterIsNotAllowed
	}
	return &Compactor{
		target:   target,
		interval: interval,
		stop:     make(chan struct{}),
	}, nil
}

// Start 开始定时压缩 重复调用只会启动一次
func (c *Compactor) Start() {
	c.startOnce.Do(func() {
		c.done.Add(1)
		logger.GenerateInfoLog("Compactor Start! Interval: " + c.interval.String())
		go c.run()
	})
}

// Stop 立即唤醒后台协程并且等待它退出 正在进行的压缩会先完成
func (c *Compactor) Stop() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
	c.done.Wait()
}

// SweepCount 返回已经完成的压缩次数 只能在 Stop 之后调用
func (c *Compactor) SweepCount() int {
	return c.sweepCount
}

func (c *Compactor) run() {
	defer c.done.Done()
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			logger.GenerateInfoLog("Compactor Stop! Sweep Count: " + strconv.Itoa(c.sweepCount))
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

// sweep 进行一次压缩 压缩中出现的 panic 只记录不向外传递 等下一次定时再继续
func (c *Compactor) sweep() {
	defer func() {
		if r := recover(); r != nil {
			logger.GenerateErrorLog(false, true, "Compaction Failed", fmt.Sprint(r))
		}
	}()
	released := c.target.Compact()
	c.sweepCount += 1
	if released > 0 {
		logger.GenerateInfoLog("Compaction Released " + strconv.Itoa(released) + " Nodes")
	}
}
