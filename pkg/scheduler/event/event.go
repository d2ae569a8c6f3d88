// Package event 定义排班引擎对外暴露的结构化事件
package event

import (
	"github.com/paiban/campsched/pkg/logger"
)

// Kind 事件类型
type Kind string

const (
	PhaseStarted        Kind = "phase_started"
	AssignmentCommitted Kind = "assignment_committed"
	AssignmentDenied    Kind = "assignment_denied"
	AssignmentRelaxed   Kind = "assignment_relaxed"
	AssignmentForced    Kind = "assignment_forced"
	RepairAction        Kind = "repair_action"
)

// Event 引擎事件
type Event struct {
	Kind     Kind   `json:"kind"`
	Phase    string `json:"phase,omitempty"`
	Troop    string `json:"troop,omitempty"`
	Activity string `json:"activity,omitempty"`
	Slot     string `json:"slot,omitempty"`
	Mode     string `json:"mode,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Rule     string `json:"rule,omitempty"` // 放宽时被跳过的规则
	Action   string `json:"action,omitempty"`
}

// Sink 事件接收者
type Sink interface {
	Emit(e Event)
}

// Discard 丢弃所有事件
type Discard struct{}

// Emit 实现 Sink
func (Discard) Emit(Event) {}

// Multi 将事件分发给多个接收者
type Multi []Sink

// Emit 实现 Sink
func (m Multi) Emit(e Event) {
	for _, s := range m {
		s.Emit(e)
	}
}

// LogSink 通过 zerolog 输出事件
type LogSink struct {
	log *logger.SchedulerLogger
}

// NewLogSink 创建日志接收者
func NewLogSink() *LogSink {
	return &LogSink{log: logger.NewSchedulerLogger()}
}

// Emit 实现 Sink
func (s *LogSink) Emit(e Event) {
	switch e.Kind {
	case PhaseStarted:
		s.log.PhaseStarted(e.Phase)
	case AssignmentCommitted:
		s.log.Placement(e.Troop, e.Activity, e.Slot, e.Mode)
	case AssignmentRelaxed:
		s.log.Relaxed(e.Troop, e.Activity, e.Slot, e.Rule)
	case AssignmentForced:
		s.log.Forced(e.Troop, e.Activity, e.Slot, e.Reason)
	case RepairAction:
		s.log.Repair(e.Phase, e.Action, e.Troop, e.Activity, e.Slot)
	case AssignmentDenied:
		s.log.Base().Debug().
			Str("troop", e.Troop).
			Str("activity", e.Activity).
			Str("reason", e.Reason).
			Msg("安排被拒绝")
	}
}

// Recorder 在内存中记录事件，供测试与诊断使用
type Recorder struct {
	Events []Event
}

// NewRecorder 创建事件记录器
func NewRecorder() *Recorder {
	return &Recorder{Events: make([]Event, 0)}
}

// Emit 实现 Sink
func (r *Recorder) Emit(e Event) {
	r.Events = append(r.Events, e)
}

// Filter 返回某类型的事件
func (r *Recorder) Filter(kind Kind) []Event {
	var result []Event
	for _, e := range r.Events {
		if e.Kind == kind {
			result = append(result, e)
		}
	}
	return result
}

// Count 某类型事件的数量
func (r *Recorder) Count(kind Kind) int {
	return len(r.Filter(kind))
}

// Reset 清空记录
func (r *Recorder) Reset() {
	r.Events = r.Events[:0]
}
