package skipList

import (
	"cmp"

	"MisakaKV/logger"
)

// Iterator 按 key 升序遍历跳表中活的节点 不持有锁 每一步单独加读锁
//
// 创建或者 Rewind 之后如果跳表发生了插入或者 Compact 迭代器就失效了 Next 会返回 ListIsModified
type Iterator[K cmp.Ordered, V any] struct {
	sl      *SkipList[K, V]
	version uint64
	next    nodeHandle
}

// Iterator 获取一个新的迭代器 每个迭代器之间互不影响
func (sl *SkipList[K, V]) Iterator() *Iterator[K, V] {
	it := &Iterator[K, V]{sl: sl}
	it.Rewind()
	return it
}

// Rewind 让迭代器回到第一个节点 同时重新记录跳表的版本
func (it *Iterator[K, V]) Rewind() {
	it.sl.mutex.RLock()
	defer it.sl.mutex.RUnlock()
	it.version = it.sl.version
	it.next = it.sl.arena.get(headerHandle).next(0)
}

// HasNext 是否还有下一个活的节点 迭代器失效时返回 false
func (it *Iterator[K, V]) HasNext() bool {
	it.sl.mutex.RLock()
	defer it.sl.mutex.RUnlock()
	if it.version != it.sl.version {
		return false
	}
	it.next = it.sl.skipDeleted(it.next)
	return it.next != nilHandle
}

// Next 返回下一个活的节点的键值对
func (it *Iterator[K, V]) Next() (key K, value V, e error) {
	it.sl.mutex.RLock()
	defer it.sl.mutex.RUnlock()
	if it.version != it.sl.version {
		e = logger.ListIsModified
		return
	}
	it.next = it.sl.skipDeleted(it.next)
	if it.next == nilHandle {
		e = logger.NoMoreNode
		return
	}
	node := it.sl.arena.get(it.next)
	it.next = node.next(0)
	return node.key, node.value, nil
}
