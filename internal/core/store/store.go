// Package store 提供按插入顺序迭代的键值存储
//
// Store 是纯数据结构，不加锁，由事件循环独占访问。
// 浏览会话用它保存已解析的服务记录。
package store

import "slices"

// Store 每个键至多一条记录的有序存储
type Store[K comparable, V any] struct {
	items map[K]V
	order []K
}

// New 创建空存储
func New[K comparable, V any]() *Store[K, V] {
	return &Store[K, V]{items: make(map[K]V)}
}

// Upsert 插入或替换，返回键是否已存在
//
// 替换不改变键的位置。
func (s *Store[K, V]) Upsert(k K, v V) (existed bool) {
	_, existed = s.items[k]
	s.items[k] = v
	if !existed {
		s.order = append(s.order, k)
	}
	return existed
}

// Remove 删除并返回记录
func (s *Store[K, V]) Remove(k K) (V, bool) {
	v, ok := s.items[k]
	if !ok {
		return v, false
	}
	delete(s.items, k)
	if i := slices.Index(s.order, k); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
	return v, true
}

// Get 查找记录
func (s *Store[K, V]) Get(k K) (V, bool) {
	v, ok := s.items[k]
	return v, ok
}

// Has 键是否存在
func (s *Store[K, V]) Has(k K) bool {
	_, ok := s.items[k]
	return ok
}

// Len 记录数
func (s *Store[K, V]) Len() int {
	return len(s.items)
}

// Keys 按插入顺序返回所有键
func (s *Store[K, V]) Keys() []K {
	return slices.Clone(s.order)
}

// Values 按插入顺序返回所有记录
func (s *Store[K, V]) Values() []V {
	out := make([]V, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.items[k])
	}
	return out
}

// Clear 清空存储，按插入顺序返回被删除的记录
func (s *Store[K, V]) Clear() []V {
	out := s.Values()
	s.items = make(map[K]V)
	s.order = nil
	return out
}
