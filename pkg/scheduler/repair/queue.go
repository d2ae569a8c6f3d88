package repair

import (
	"github.com/paiban/campsched/pkg/model"
)

// DefaultQueueLimit 恢复队列默认容量
const DefaultQueueLimit = 256

// Item 待恢复的活动请求
type Item struct {
	Troop    *model.Troop
	Activity *model.Activity
	Reason   string
}

// Queue 有界恢复队列
type Queue struct {
	items   []Item
	limit   int
	dropped int
}

// NewQueue 创建恢复队列
func NewQueue(limit int) *Queue {
	if limit <= 0 {
		limit = DefaultQueueLimit
	}
	return &Queue{limit: limit}
}

// Push 入队，队列已满或同一请求已在队列中时返回 false
func (q *Queue) Push(item Item) bool {
	for _, it := range q.items {
		if it.Troop.ID == item.Troop.ID && it.Activity.Name == item.Activity.Name {
			return false
		}
	}
	if len(q.items) >= q.limit {
		q.dropped++
		return false
	}
	q.items = append(q.items, item)
	return true
}

// Drain 取出全部请求并清空队列
func (q *Queue) Drain() []Item {
	items := q.items
	q.items = nil
	return items
}

// Len 当前队列长度
func (q *Queue) Len() int {
	return len(q.items)
}

// Dropped 因队列已满被丢弃的请求数
func (q *Queue) Dropped() int {
	return q.dropped
}
