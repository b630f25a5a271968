// Package pqueue содержит приоритетную очередь на двоичной куче.
//
// При равных приоритетах элементы извлекаются в порядке вставки.
package pqueue

import (
	"cmp"
	"container/heap"
)

// Order определяет направление извлечения
type Order int

const (
	MinFirst Order = iota // первым извлекается наименьший приоритет
	MaxFirst              // первым извлекается наибольший приоритет
)

type entry[T any, P cmp.Ordered] struct {
	value    T
	priority P
	seq      uint64 // порядковый номер вставки для стабильного разрешения ничьих
}

// Queue - приоритетная очередь. Значения могут повторяться.
// Не потокобезопасна.
type Queue[T any, P cmp.Ordered] struct {
	items entries[T, P]
	seq   uint64
}

// New создаёт очередь, извлекающую наименьший приоритет
func New[T any, P cmp.Ordered]() *Queue[T, P] {
	return NewOrdered[T, P](MinFirst)
}

// NewOrdered создаёт очередь с указанным направлением
func NewOrdered[T any, P cmp.Ordered](order Order) *Queue[T, P] {
	return &Queue[T, P]{items: entries[T, P]{order: order}}
}

// Insert добавляет значение с приоритетом за O(log n)
func (q *Queue[T, P]) Insert(value T, priority P) {
	q.seq++
	heap.Push(&q.items, entry[T, P]{value: value, priority: priority, seq: q.seq})
}

// PopBest извлекает лучшее значение. ok=false, если очередь пуста.
func (q *Queue[T, P]) PopBest() (value T, priority P, ok bool) {
	if q.items.Len() == 0 {
		return value, priority, false
	}
	e := heap.Pop(&q.items).(entry[T, P])
	return e.value, e.priority, true
}

// Peek возвращает лучшее значение без извлечения
func (q *Queue[T, P]) Peek() (value T, priority P, ok bool) {
	if q.items.Len() == 0 {
		return value, priority, false
	}
	e := q.items.list[0]
	return e.value, e.priority, true
}

// Len возвращает количество элементов
func (q *Queue[T, P]) Len() int { return q.items.Len() }

// Values возвращает значения в порядке извлечения, не изменяя очередь
func (q *Queue[T, P]) Values() []T {
	clone := entries[T, P]{order: q.items.order, list: append([]entry[T, P](nil), q.items.list...)}
	out := make([]T, 0, len(clone.list))
	for clone.Len() > 0 {
		out = append(out, heap.Pop(&clone).(entry[T, P]).value)
	}
	return out
}

// Reset очищает очередь, сохраняя выделенную память
func (q *Queue[T, P]) Reset() {
	clear(q.items.list)
	q.items.list = q.items.list[:0]
	q.seq = 0
}

// entries реализует heap.Interface
type entries[T any, P cmp.Ordered] struct {
	order Order
	list  []entry[T, P]
}

func (e entries[T, P]) Len() int { return len(e.list) }

func (e entries[T, P]) Less(i, j int) bool {
	a, b := e.list[i], e.list[j]
	if a.priority != b.priority {
		if e.order == MaxFirst {
			return a.priority > b.priority
		}
		return a.priority < b.priority
	}
	return a.seq < b.seq
}

func (e entries[T, P]) Swap(i, j int) { e.list[i], e.list[j] = e.list[j], e.list[i] }

func (e *entries[T, P]) Push(x any) {
	e.list = append(e.list, x.(entry[T, P]))
}

func (e *entries[T, P]) Pop() any {
	old := e.list
	n := len(old)
	item := old[n-1]
	var zero entry[T, P]
	old[n-1] = zero
	e.list = old[:n-1]
	return item
}
