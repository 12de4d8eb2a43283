package skipList

import (
	"cmp"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"MisakaKV/logger"
)

/*
带墓碑删除和滑动 TTL 的跳表 作为内存表使用

删除只打墓碑 不改指针 读者遇到墓碑直接跳过 真正的摘除和释放交给 Compact
带 TTL 的节点由 expiryTracker 追踪 过期的节点由它打墓碑 之后同样由 Compact 回收

锁的顺序：跳表的读写锁在外 expiryTracker 的锁在内 反过来加锁是不允许的
*/

const (
	indexUpgradeProbability = 0.5 // 索引晋升概率
	IndexMaxHeight          = 32  // maxLevel 的上限
)

// SkipList 跳表
type SkipList[K cmp.Ordered, V any] struct {
	mutex sync.RWMutex

	arena    *nodeArena[K, V]
	maxLevel int    // 节点最高的层数 构造之后不再改变
	level    int    // 当前使用到的最高层 只有 Compact 会让它下降
	length   int    // 节点数 打了墓碑的节点要等 Compact 释放之后才会减掉
	version  uint64 // 每次链表结构发生变化时递增 用来让迭代器失效
	tracker  *expiryTracker[K, V]

	randSource *rand.Rand
}

// NewSkipList 跳表的构造函数 maxLevel 为节点的最高层数 trackerCapacity 为最多追踪的带 TTL 节点数 为0时不限制
func NewSkipList[K cmp.Ordered, V any](maxLevel int, trackerCapacity int) (*SkipList[K, V], error) {
	if maxLevel < 1 || maxLevel > IndexMaxHeight || trackerCapacity < 0 {
		logger.GenerateErrorLog(false, false, logger.ParameterIsNotAllowed.Error(), strconv.Itoa(maxLevel), strconv.Itoa(trackerCapacity))
		return nil, logger.ParameterIsNotAllowed
	}
	return &SkipList[K, V]{
		arena:      newNodeArena[K, V](maxLevel),
		maxLevel:   maxLevel,
		tracker:    newExpiryTracker[K, V](trackerCapacity),
		randSource: rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// randomLevel 为每个新加入的节点随机一个高度 从1开始 每次以1/2的概率加一 不超过 maxLevel
func (sl *SkipList[K, V]) randomLevel() int {
	l := 1
	for l < sl.maxLevel && sl.randSource.Float64() < indexUpgradeProbability {
		l += 1
	}
	return l
}

// findGreaterOrEqual 从当前最高层开始向下寻找 返回第一个 key 大于等于给定 key 的节点 可能是墓碑
//
// update 不为空时记录每一层最后一个 key 小于给定 key 的节点
func (sl *SkipList[K, V]) findGreaterOrEqual(key K, update []nodeHandle) nodeHandle {
	current := headerHandle
	for i := sl.level; i >= 0; i-- {
		next := sl.arena.get(current).next(i)
		for next != nilHandle && sl.arena.get(next).key < key {
			current = next
			next = sl.arena.get(current).next(i)
		}
		if update != nil {
			update[i] = current
		}
	}
	return sl.arena.get(current).next(0)
}

// skipDeleted 沿着第0层跳过墓碑 返回第一个活的节点
func (sl *SkipList[K, V]) skipDeleted(h nodeHandle) nodeHandle {
	for h != nilHandle && !sl.arena.get(h).isAlive() {
		h = sl.arena.get(h).next(0)
	}
	return h
}

// findLiveNode 查询 key 对应的活的节点 不存在时返回空 如果节点带 TTL 会顺便刷新它的过期时间
func (sl *SkipList[K, V]) findLiveNode(key K) *skipListNode[K, V] {
	h := sl.skipDeleted(sl.findGreaterOrEqual(key, nil))
	if h == nilHandle {
		return nil
	}
	node := sl.arena.get(h)
	if node.key != key {
		return nil
	}
	if node.timed && !sl.tracker.touch(node) {
		// 刷新之前就已经过期了 被 tracker 打上了墓碑
		return nil
	}
	return node
}

// Search 查询 key 是否存在
func (sl *SkipList[K, V]) Search(key K) bool {
	sl.mutex.RLock()
	defer sl.mutex.RUnlock()
	return sl.findLiveNode(key) != nil
}

// Get 查询 key 对应的值 不存在时返回 KeyIsNotExisted
func (sl *SkipList[K, V]) Get(key K) (value V, err error) {
	sl.mutex.RLock()
	defer sl.mutex.RUnlock()
	node := sl.findLiveNode(key)
	if node == nil {
		err = logger.KeyIsNotExisted
		return
	}
	return node.value, nil
}

// Insert 插入一个不过期的键值对 key 已经存在时返回 KeyIsExisted 不会覆盖旧值
func (sl *SkipList[K, V]) Insert(key K, value V) error {
	return sl.InsertWithTTL(key, value, 0)
}

// InsertWithTTL 插入一个键值对 ttl 大于0时该键值对在 ttl 时间内没有被访问就会过期 每次访问都会重新计时
func (sl *SkipList[K, V]) InsertWithTTL(key K, value V, ttl time.Duration) error {
	if ttl < 0 {
		return logger.ParameterIsNotAllowed
	}

	sl.mutex.Lock()
	defer sl.mutex.Unlock()

	// 已经过期但还没被打墓碑的节点先处理掉 不然它会挡住重新插入
	sl.tracker.evictExpired()

	update := make([]nodeHandle, sl.maxLevel+1)
	h := sl.skipDeleted(sl.findGreaterOrEqual(key, update))
	if h != nilHandle && sl.arena.get(h).key == key {
		return logger.KeyIsExisted
	}

	level := sl.randomLevel()
	if level > sl.level {
		for i := sl.level + 1; i <= level; i++ {
			update[i] = headerHandle
		}
		sl.level = level
	}

	newHandle := sl.arena.alloc(key, value, level)
	newNode := sl.arena.get(newHandle)
	for i := 0; i <= level; i++ {
		prev := sl.arena.get(update[i])
		newNode.forward[i] = prev.forward[i]
		prev.forward[i] = newHandle
	}
	sl.length += 1
	sl.version += 1

	if ttl > 0 {
		newNode.timed = true
		newNode.ttl = ttl
		sl.tracker.touch(newNode)
	}
	return nil
}

// Edit 修改 key 对应的值 key 不存在时返回 KeyIsNotExisted
func (sl *SkipList[K, V]) Edit(key K, value V) error {
	sl.mutex.Lock()
	defer sl.mutex.Unlock()
	node := sl.findLiveNode(key)
	if node == nil {
		return logger.KeyIsNotExisted
	}
	node.value = value
	return nil
}

// Delete 给 key 对应的节点打上墓碑 节点要等到 Compact 时才会被真正摘除 返回是否真的删除了节点
func (sl *SkipList[K, V]) Delete(key K) bool {
	sl.mutex.Lock()
	defer sl.mutex.Unlock()
	h := sl.skipDeleted(sl.findGreaterOrEqual(key, nil))
	if h == nilHandle {
		return false
	}
	node := sl.arena.get(h)
	if node.key != key {
		return false
	}
	node.deleted.Store(true)
	if node.timed {
		sl.tracker.remove(key)
	}
	return true
}

// Compact 摘除所有墓碑节点并且释放 返回释放的节点数
//
// 从最高层开始往下摘 只在第0层释放 这样一个节点在释放之前一定已经从所有更高的层里摘掉了
func (sl *SkipList[K, V]) Compact() int {
	sl.mutex.Lock()
	defer sl.mutex.Unlock()

	sl.tracker.evictExpired()

	released := 0
	for i := sl.level; i >= 0; i-- {
		prev := sl.arena.get(headerHandle)
		for h := prev.next(i); h != nilHandle; h = prev.next(i) {
			node := sl.arena.get(h)
			if node.isAlive() {
				prev = node
				continue
			}
			prev.forward[i] = node.forward[i]
			if i == 0 {
				sl.arena.release(h)
				sl.length -= 1
				released += 1
			}
		}
	}

	header := sl.arena.get(headerHandle)
	for sl.level > 0 && header.next(sl.level) == nilHandle {
		sl.level -= 1
	}
	if released > 0 {
		sl.version += 1
	}
	return released
}

// ForEach 按 key 升序遍历所有活的节点 callback 返回 false 时停止
//
// callback 执行时持有跳表的读锁 不能在 callback 里修改跳表
func (sl *SkipList[K, V]) ForEach(callback func(key K, value V) bool) {
	sl.mutex.RLock()
	defer sl.mutex.RUnlock()
	sl.tracker.evictExpired()
	for h := sl.skipDeleted(sl.arena.get(headerHandle).next(0)); h != nilHandle; {
		node := sl.arena.get(h)
		if !callback(node.key, node.value) {
			return
		}
		h = sl.skipDeleted(node.next(0))
	}
}

// Clear 释放所有节点 跳表回到刚创建时的状态
func (sl *SkipList[K, V]) Clear() {
	sl.mutex.Lock()
	defer sl.mutex.Unlock()
	sl.tracker.reset()
	sl.arena.reset()
	sl.level = 0
	sl.length = 0
	sl.version += 1
}

// Size 返回节点数 被删除但还没被 Compact 回收的节点也会计算在内
func (sl *SkipList[K, V]) Size() int {
	sl.mutex.RLock()
	defer sl.mutex.RUnlock()
	return sl.length
}

// Level 返回当前使用到的最高层
func (sl *SkipList[K, V]) Level() int {
	sl.mutex.RLock()
	defer sl.mutex.RUnlock()
	return sl.level
}

func (sl *SkipList[K, V]) MaxLevel() int {
	return sl.maxLevel
}

// ToString 按层打印跳表中所有的节点 包括墓碑 仅作为检查使用
func (sl *SkipList[K, V]) ToString() string {
	sl.mutex.RLock()
	defer sl.mutex.RUnlock()

	result := make([]string, 0, sl.level+1)
	for i := sl.level; i >= 0; i-- {
		var builder strings.Builder
		builder.WriteString("Level " + strconv.Itoa(i) + ":")
		for h := sl.arena.get(headerHandle).next(i); h != nilHandle; {
			node := sl.arena.get(h)
			builder.WriteString(fmt.Sprintf(" %v:%v", node.key, node.value))
			if !node.isAlive() {
				builder.WriteString("(deleted)")
			}
			h = node.next(i)
		}
		result = append(result, builder.String())
	}
	return strings.Join(result, "\n")
}
