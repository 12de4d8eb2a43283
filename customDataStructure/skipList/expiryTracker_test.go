package skipList

import (
	"errors"
	"testing"
	"time"

	"MisakaKV/logger"
)

func TestSkipList_TTLExpire(t *testing.T) {
	sl := newTestSkipList[int](t, 6)
	if e := sl.InsertWithTTL(5, "five", 200*time.Millisecond); e != nil {
		t.Fatal(e)
	}
	if !sl.Search(5) {
		t.Fatal("key 5 should be found right after insert")
	}

	// 每次访问都会重新计时
	time.Sleep(120 * time.Millisecond)
	if !sl.Search(5) {
		t.Fatal("key 5 should still be alive at 120ms")
	}
	time.Sleep(120 * time.Millisecond)
	if !sl.Search(5) {
		t.Fatal("key 5 should be alive because the last search reset its expiry")
	}

	time.Sleep(300 * time.Millisecond)
	if sl.Search(5) {
		t.Fatal("key 5 should be expired")
	}
	if sl.tracker.isTracked(5) {
		t.Error("expired key should not be tracked")
	}
	if sl.Size() != 1 {
		t.Errorf("expired node waits for compaction, size should be 1, got %d", sl.Size())
	}
	if released := sl.Compact(); released != 1 || sl.Size() != 0 {
		t.Errorf("compaction should release the expired node, released %d size %d", released, sl.Size())
	}
}

func TestSkipList_TTLEditRefresh(t *testing.T) {
	sl := newTestSkipList[int](t, 6)
	_ = sl.InsertWithTTL(1, "a", 150*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	if e := sl.Edit(1, "b"); e != nil {
		t.Fatal(e)
	}
	time.Sleep(100 * time.Millisecond)
	value, e := sl.Get(1)
	if e != nil || value != "b" {
		t.Fatalf("edit should refresh the expiry, got %s %v", value, e)
	}

	time.Sleep(200 * time.Millisecond)
	if e = sl.Edit(1, "c"); !errors.Is(e, logger.KeyIsNotExisted) {
		t.Errorf("edit of an expired key should report KeyIsNotExisted, got %v", e)
	}
}

func TestSkipList_TTLReinsert(t *testing.T) {
	sl := newTestSkipList[int](t, 6)
	_ = sl.InsertWithTTL(1, "a", 20*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	// 没有任何访问 过期的节点也不应该挡住重新插入
	if e := sl.Insert(1, "b"); e != nil {
		t.Fatalf("insert of an expired key should succeed, got %v", e)
	}
	value, _ := sl.Get(1)
	if value != "b" {
		t.Errorf("expect b, got %s", value)
	}
	time.Sleep(60 * time.Millisecond)
	if !sl.Search(1) {
		t.Error("reinserted key has no ttl and should not expire")
	}
}

func TestSkipList_TTLDelete(t *testing.T) {
	sl := newTestSkipList[int](t, 6)
	_ = sl.InsertWithTTL(1, "a", time.Second)
	if !sl.tracker.isTracked(1) {
		t.Fatal("timed key should be tracked")
	}
	sl.Delete(1)
	if sl.tracker.isTracked(1) || sl.tracker.length() != 0 {
		t.Error("deleted key should not be tracked")
	}
}

func TestExpiryTracker_ExpireOrder(t *testing.T) {
	sl := newTestSkipList[string](t, 6)
	_ = sl.InsertWithTTL("long", "a", 500*time.Millisecond)
	_ = sl.InsertWithTTL("short", "b", 20*time.Millisecond)
	// short 是最近访问的 但它比 long 先过期
	time.Sleep(60 * time.Millisecond)

	if !sl.Search("long") {
		t.Fatal("long should still be alive")
	}
	keys, _ := collect(t, sl)
	if len(keys) != 1 || keys[0] != "long" {
		t.Errorf("short should be evicted by the touch of long, got %v", keys)
	}
	if sl.tracker.isTracked("short") {
		t.Error("short should not be tracked")
	}
}

func TestExpiryTracker_Capacity(t *testing.T) {
	sl, e := NewSkipList[int, string](6, 2)
	if e != nil {
		t.Fatal(e)
	}
	_ = sl.InsertWithTTL(1, "a", time.Minute)
	_ = sl.InsertWithTTL(2, "b", time.Minute)
	_ = sl.Insert(100, "untimed") // 不带 TTL 的节点不计入容量
	sl.Search(1)                  // 1 变成最近访问的 2 变成最久没访问的
	_ = sl.InsertWithTTL(3, "c", time.Minute)

	if sl.Search(2) {
		t.Error("least recently touched key 2 should be evicted")
	}
	for _, key := range []int{1, 3, 100} {
		if !sl.Search(key) {
			t.Errorf("key %d should be alive", key)
		}
	}
	if sl.tracker.length() != 2 {
		t.Errorf("tracker should hold 2 entries, got %d", sl.tracker.length())
	}
}

func TestExpiryTracker_Touch(t *testing.T) {
	now := time.Unix(1000, 0)
	et := newExpiryTracker[int, string](0)
	et.now = func() time.Time { return now }

	nodes := make([]*skipListNode[int, string], 3)
	for i := range nodes {
		nodes[i] = &skipListNode[int, string]{key: i, timed: true, ttl: time.Duration(i+1) * time.Second}
		if !et.touch(nodes[i]) {
			t.Fatalf("touch of node %d failed", i)
		}
	}
	if !nodes[2].expiresAt.Equal(now.Add(3 * time.Second)) {
		t.Errorf("unexpected expiry %v", nodes[2].expiresAt)
	}
	if front := et.recency.Front().Value.(*trackerEntry[int, string]); front.node != nodes[2] {
		t.Error("last touched node should be at the front")
	}

	now = now.Add(1500 * time.Millisecond)
	if count := et.evictExpired(); count != 1 {
		t.Errorf("only node 0 should expire, got %d", count)
	}
	if nodes[0].isAlive() || !nodes[1].isAlive() {
		t.Error("node 0 should be a tombstone and node 1 alive")
	}

	// 已经打了墓碑的节点不能再被追踪
	if et.touch(nodes[0]) {
		t.Error("touch of a tombstone should fail")
	}

	et.remove(1)
	if et.isTracked(1) || !nodes[1].isAlive() {
		t.Error("remove should untrack without marking deleted")
	}

	now = now.Add(time.Hour)
	if et.touch(nodes[2]) {
		t.Error("node 2 expired before the touch and should not come back")
	}
	if et.length() != 0 {
		t.Errorf("tracker should be empty, got %d", et.length())
	}
}
