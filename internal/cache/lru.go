package cache

// lruNode is one cached entry in a doubly-linked LRU list.
type lruNode[K comparable, V any] struct {
	key   K
	value V
	cost  int64
	prev  *lruNode[K, V]
	next  *lruNode[K, V]
}

// lruList orders entries by recency. The head is the most recently used,
// the tail the least recently used.
//
// The list is not thread-safe; callers must handle synchronization.
type lruList[K comparable, V any] struct {
	head *lruNode[K, V]
	tail *lruNode[K, V]
	len  int
	cost int64
}

// Len returns the number of nodes in the list.
func (l *lruList[K, V]) Len() int {
	return l.len
}

// Cost returns the summed cost of all nodes.
func (l *lruList[K, V]) Cost() int64 {
	return l.cost
}

// PushFront inserts node as the most recently used entry.
func (l *lruList[K, V]) PushFront(node *lruNode[K, V]) {
	node.prev = nil
	node.next = l.head
	if l.head != nil {
		l.head.prev = node
	}
	l.head = node
	if l.tail == nil {
		l.tail = node
	}
	l.len++
	l.cost += node.cost
}

// MoveToFront marks node as the most recently used entry.
func (l *lruList[K, V]) MoveToFront(node *lruNode[K, V]) {
	if node == l.head {
		return
	}
	l.Remove(node)
	l.PushFront(node)
}

// Remove unlinks node from the list.
func (l *lruList[K, V]) Remove(node *lruNode[K, V]) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		l.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		l.tail = node.prev
	}
	node.prev = nil
	node.next = nil
	l.len--
	l.cost -= node.cost
}

// Oldest returns the least recently used node, or nil.
func (l *lruList[K, V]) Oldest() *lruNode[K, V] {
	return l.tail
}

// Clear removes all nodes.
func (l *lruList[K, V]) Clear() {
	l.head = nil
	l.tail = nil
	l.len = 0
	l.cost = 0
}
