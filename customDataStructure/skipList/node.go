package skipList

import (
	"cmp"
	"strconv"
	"sync/atomic"
	"time"

	"MisakaKV/logger"
)

// nodeHandle 节点在 arena 中的槽位编号 0 号槽位固定是头节点 所以 0 同时也表示空
type nodeHandle uint32

const (
	nilHandle    nodeHandle = 0
	headerHandle nodeHandle = 0

	arenaChunkSize = 1024 // 每个 chunk 的槽位数 chunk 一旦分配就不再移动 节点地址保持稳定
)

// skipListNode 跳表节点
//
// 第0层的 forward 链拥有节点 更高层的 forward 只是索引 节点只会在第0层被释放一次
type skipListNode[K cmp.Ordered, V any] struct {
	key     K
	value   V
	level   int          // 节点高度 forward 的长度为 level+1
	forward []nodeHandle // forward[i] 是该节点在第i层的下一个节点

	deleted atomic.Bool // 墓碑标记 expiryTracker 可能在持有读锁的情况下修改它

	timed     bool
	ttl       time.Duration
	expiresAt time.Time // 只在 expiryTracker 的锁内读写

	released bool // 槽位是否已经归还给 arena
}

func (n *skipListNode[K, V]) isAlive() bool {
	return !n.deleted.Load()
}

func (n *skipListNode[K, V]) next(level int) nodeHandle {
	return n.forward[level]
}

// nodeArena 分块的节点池 释放的槽位进入空闲列表等待复用
type nodeArena[K cmp.Ordered, V any] struct {
	chunks [][]skipListNode[K, V]
	used   uint32       // 已经分配过的槽位数 包括头节点
	free   []nodeHandle // 被释放 可以复用的槽位
}

func newNodeArena[K cmp.Ordered, V any](maxLevel int) *nodeArena[K, V] {
	a := &nodeArena[K, V]{}
	a.chunks = append(a.chunks, make([]skipListNode[K, V], arenaChunkSize))
	header := &a.chunks[0][0]
	header.level = maxLevel
	header.forward = make([]nodeHandle, maxLevel+1)
	a.used = 1
	return a
}

// get 根据槽位编号取出节点
func (a *nodeArena[K, V]) get(h nodeHandle) *skipListNode[K, V] {
	return &a.chunks[uint32(h)/arenaChunkSize][uint32(h)%arenaChunkSize]
}

// alloc 分配一个新节点 优先复用被释放的槽位
func (a *nodeArena[K, V]) alloc(key K, value V, level int) nodeHandle {
	var h nodeHandle
	if len(a.free) > 0 {
		h = a.free[len(a.free)-1]
		a.free = a.free[:len(a.free)-1]
	} else {
		if a.used == uint32(len(a.chunks))*arenaChunkSize {
			a.chunks = append(a.chunks, make([]skipListNode[K, V], arenaChunkSize))
		}
		h = nodeHandle(a.used)
		a.used += 1
	}

	n := a.get(h)
	n.key = key
	n.value = value
	n.level = level
	if cap(n.forward) >= level+1 {
		n.forward = n.forward[:level+1]
		clear(n.forward)
	} else {
		n.forward = make([]nodeHandle, level+1)
	}
	n.deleted.Store(false)
	n.released = false
	return h
}

// release 归还槽位 同一个槽位被释放两次说明链表结构已经损坏 直接 panic
func (a *nodeArena[K, V]) release(h nodeHandle) {
	if h == headerHandle {
		panic(logger.ParameterIsNotAllowed)
	}
	n := a.get(h)
	if n.released {
		logger.GenerateErrorLog(true, true, logger.SlotIsReleased.Error(), strconv.Itoa(int(h)))
		panic(logger.SlotIsReleased)
	}
	var (
		zeroKey   K
		zeroValue V
	)
	n.key = zeroKey
	n.value = zeroValue
	n.level = 0
	n.forward = n.forward[:0]
	n.timed = false
	n.ttl = 0
	n.expiresAt = time.Time{}
	n.released = true
	a.free = append(a.free, h)
}

// reset 释放所有节点 只保留头节点
func (a *nodeArena[K, V]) reset() {
	clear(a.get(headerHandle).forward)
	a.chunks = a.chunks[:1]
	clear(a.chunks[0][1:])
	a.used = 1
	a.free = a.free[:0]
}

// liveSlots 当前被占用的槽位数 不包括头节点
func (a *nodeArena[K, V]) liveSlots() int {
	return int(a.used) - 1 - len(a.free)
}
