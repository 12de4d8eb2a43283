package skipList

import (
	"cmp"
	"container/list"
	"sync"
	"time"

	"github.com/tidwall/btree"
)

// trackerEntry 一个被追踪的带过期时间的节点 node 只是引用 节点归跳表所有
type trackerEntry[K cmp.Ordered, V any] struct {
	node    *skipListNode[K, V]
	recency *list.Element // 在 recency 链表中的位置
	seq     uint64        // 每次 touch 递增 过期时间相同时用它保证 btree 中的顺序唯一
}

// expiryTracker 只追踪带 TTL 的节点
//
// recency 按最近访问排序 前面是最近访问的 用于容量淘汰
// expiry 按过期时间排序 用于过期淘汰 这样不同 TTL 的节点也能严格按过期顺序被淘汰
type expiryTracker[K cmp.Ordered, V any] struct {
	mutex    sync.Mutex
	entries  map[K]*trackerEntry[K, V]
	recency  *list.List
	expiry   *btree.BTreeG[*trackerEntry[K, V]]
	capacity int // 最多追踪的节点数 0 表示不限制
	seq      uint64
	now      func() time.Time
}

func newExpiryTracker[K cmp.Ordered, V any](capacity int) *expiryTracker[K, V] {
	return &expiryTracker[K, V]{
		entries:  make(map[K]*trackerEntry[K, V]),
		recency:  list.New(),
		expiry:   newExpiryIndex[K, V](),
		capacity: capacity,
		now:      time.Now,
	}
}

func newExpiryIndex[K cmp.Ordered, V any]() *btree.BTreeG[*trackerEntry[K, V]] {
	// 外面已经有 mutex 了 btree 自己就不用再加锁
	return btree.NewBTreeGOptions(func(a, b *trackerEntry[K, V]) bool {
		if !a.node.expiresAt.Equal(b.node.expiresAt) {
			return a.node.expiresAt.Before(b.node.expiresAt)
		}
		return a.seq < b.seq
	}, btree.Options{NoLocks: true})
}

// touch 将节点放到 recency 的最前面并且重新计算过期时间 如果节点已经不存在就加入追踪
//
// 在这之前先淘汰所有已经过期的节点 如果该节点自己就是过期的 返回 false
func (et *expiryTracker[K, V]) touch(node *skipListNode[K, V]) bool {
	et.mutex.Lock()
	defer et.mutex.Unlock()

	now := et.now()
	et.evictExpiredLocked(now)
	if !node.isAlive() {
		return false
	}

	entry, ok := et.entries[node.key]
	if ok && entry.node == node {
		et.recency.Remove(entry.recency)
		et.expiry.Delete(entry)
	} else {
		if ok { // 同一个 key 的旧节点还没被移除 说明它已经不是活的节点了
			et.untrackLocked(entry)
		}
		entry = &trackerEntry[K, V]{node: node}
		et.entries[node.key] = entry
	}

	et.seq += 1
	entry.seq = et.seq
	node.expiresAt = now.Add(node.ttl)
	entry.recency = et.recency.PushFront(entry)
	et.expiry.Set(entry)

	et.evictOverCapacityLocked()
	return node.isAlive()
}

// evictExpired 淘汰所有已经过期的节点 返回淘汰的数量
func (et *expiryTracker[K, V]) evictExpired() int {
	et.mutex.Lock()
	defer et.mutex.Unlock()
	return et.evictExpiredLocked(et.now())
}

func (et *expiryTracker[K, V]) evictExpiredLocked(now time.Time) int {
	count := 0
	for {
		entry, ok := et.expiry.Min()
		if !ok || !now.After(entry.node.expiresAt) {
			return count
		}
		et.untrackLocked(entry)
		entry.node.deleted.Store(true)
		count += 1
	}
}

// evictOverCapacityLocked 追踪的节点数超过容量时 从 recency 的末尾开始淘汰最久没有被访问的节点
func (et *expiryTracker[K, V]) evictOverCapacityLocked() {
	if et.capacity <= 0 {
		return
	}
	for len(et.entries) > et.capacity {
		back := et.recency.Back()
		if back == nil {
			return
		}
		entry := back.Value.(*trackerEntry[K, V])
		et.untrackLocked(entry)
		entry.node.deleted.Store(true)
	}
}

// remove 停止追踪 key 但是不标记删除 调用者自己会打墓碑
func (et *expiryTracker[K, V]) remove(key K) {
	et.mutex.Lock()
	defer et.mutex.Unlock()
	if entry, ok := et.entries[key]; ok {
		et.untrackLocked(entry)
	}
}

func (et *expiryTracker[K, V]) untrackLocked(entry *trackerEntry[K, V]) {
	et.recency.Remove(entry.recency)
	et.expiry.Delete(entry)
	delete(et.entries, entry.node.key)
}

// isTracked 仅供检查使用
func (et *expiryTracker[K, V]) isTracked(key K) bool {
	et.mutex.Lock()
	defer et.mutex.Unlock()
	_, ok := et.entries[key]
	return ok
}

func (et *expiryTracker[K, V]) length() int {
	et.mutex.Lock()
	defer et.mutex.Unlock()
	return len(et.entries)
}

// reset 清空所有追踪信息 跳表 Clear 时调用
func (et *expiryTracker[K, V]) reset() {
	et.mutex.Lock()
	defer et.mutex.Unlock()
	et.entries = make(map[K]*trackerEntry[K, V])
	et.recency.Init()
	et.expiry = newExpiryIndex[K, V]()
}
